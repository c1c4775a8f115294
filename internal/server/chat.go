// internal/server/chat.go
package server

import (
	"context"
	"net/http"

	"threex/internal/logx"
	"threex/internal/models"
	"threex/internal/stream"
)

// frameSink receives one chat stream in wire order.
type frameSink interface {
	Content(text string) error
	Fail(message string) error
	Done() error
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())

	req, model, err := s.readChatRequest(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		log.Warn("chat request rejected", "err", err)
		writeError(w, requestStatus(err), err)
		return
	}

	sink := stream.NewWriter(w, req.Model)
	if err := relay(r.Context(), model, req, sink); err != nil {
		log.Debug("chat relay ended early", "err", err)
	}
}

// relay forwards a backend stream to sink. Backend errors become failure
// frames; the returned error only reports a sink that stopped accepting.
func relay(ctx context.Context, model models.Model, req models.ChatRequest, sink frameSink) error {
	log := logx.WithModel(logx.Ctx(ctx), req.Model).With("backend", model.Info().ID)
	log.Info("chat stream start", "messages", len(req.Messages), "images", len(req.Images()))

	fragments := 0
	for chunk := range model.Send(ctx, req) {
		switch {
		case chunk.Error != nil:
			log.Warn("chat stream failed", "err", chunk.Error, "timeout", chunk.IsTimeout, "fragments", fragments)
			return sink.Fail(chunk.Error.Error())
		case chunk.Done:
			log.Info("chat stream done", "fragments", fragments, "bytes", len(chunk.Text))
			return sink.Done()
		case chunk.Text != "":
			fragments++
			if err := sink.Content(chunk.Text); err != nil {
				return err
			}
		}
	}

	// Closed without a terminal chunk, e.g. the client went away.
	if err := ctx.Err(); err != nil {
		return err
	}
	return sink.Done()
}
