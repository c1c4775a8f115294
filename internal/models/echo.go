// internal/models/echo.go
package models

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EchoModel answers offline by streaming the prompt back word by word.
// It backs demos and tests that must not reach a real provider.
type EchoModel struct {
	BaseModel
	delay time.Duration
}

func NewEcho(delay time.Duration) *EchoModel {
	return &EchoModel{
		BaseModel: NewBaseModel(ModelInfo{
			ID:    "echo",
			Name:  "Echo",
			Color: "#FFFF00", // Yellow
		}),
		delay: delay,
	}
}

// EchoReply is the full text EchoModel produces for req
func EchoReply(req ChatRequest) string {
	return fmt.Sprintf("[%s] %s", req.Model, req.Prompt())
}

func (m *EchoModel) Send(ctx context.Context, req ChatRequest) <-chan Chunk {
	ch := make(chan Chunk, 100)

	go func() {
		defer close(ch)
		genCtx, release := m.begin(ctx)
		defer release()

		reply := EchoReply(req)
		words := strings.SplitAfter(reply, " ")
		for _, word := range words {
			if m.delay > 0 {
				select {
				case <-genCtx.Done():
					sendChunk(ctx, ch, Chunk{Error: genCtx.Err(), IsTimeout: isTimeout(genCtx.Err())})
					return
				case <-time.After(m.delay):
				}
			}
			if !sendChunk(genCtx, ch, Chunk{Text: word}) {
				return
			}
		}
		sendChunk(genCtx, ch, Chunk{Text: reply, Done: true})
	}()

	return ch
}
