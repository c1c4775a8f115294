// internal/server/ws.go
package server

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"threex/internal/logx"
	"threex/internal/stream"
)

const wsWriteTimeout = 10 * time.Second

// newUpgrader allows same-host origins plus the configured list.
func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// wsSink writes frame payloads as text messages.
type wsSink struct {
	conn  *websocket.Conn
	model string
}

func (s *wsSink) send(payload string) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

func (s *wsSink) Content(text string) error {
	return s.send(stream.EncodeContent(text, s.model))
}

func (s *wsSink) Fail(message string) error {
	if err := s.send(stream.EncodeError(message)); err != nil {
		return err
	}
	return s.send(stream.DoneSentinel)
}

func (s *wsSink) Done() error {
	return s.send(stream.DoneSentinel)
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxRequestBytes)
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Warn("websocket read request", "err", err)
		return
	}

	sink := &wsSink{conn: conn}
	req, model, err := s.readChatRequest(bytes.NewReader(data))
	if err != nil {
		log.Warn("chat request rejected", "err", err, "transport", "ws")
		_ = sink.Fail(err.Error())
		closeNormal(conn)
		return
	}
	sink.model = req.Model

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client sends nothing more; a read error means it went away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	if err := relay(ctx, model, req, sink); err != nil {
		log.Debug("chat relay ended early", "err", err, "transport", "ws")
		return
	}
	closeNormal(conn)
}

func closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
