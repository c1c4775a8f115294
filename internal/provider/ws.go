// internal/provider/ws.go
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"threex/internal/models"
	"threex/internal/stream"
)

// ChatWSPath is the websocket variant of the chat endpoint.
const ChatWSPath = "/api/chat/ws"

// WSProvider speaks the chat protocol over a websocket. Every text message
// from the server is one frame payload; they are re-framed into an SSE byte
// stream so the response reads exactly like the HTTP one.
type WSProvider struct {
	url    string
	dialer *websocket.Dialer
}

// NewWS returns a provider for the server at endpoint (http, https, ws or
// wss scheme).
func NewWS(endpoint string) (*WSProvider, error) {
	u, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	u.Path += ChatWSPath

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 15 * time.Second
	return &WSProvider{url: u.String(), dialer: &dialer}, nil
}

// SubmitChat dials, sends req as the first message and returns a synthetic
// 200 response streaming the server's frames. A rejected handshake is
// returned as the server's HTTP response.
func (p *WSProvider) SubmitChat(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
	conn, resp, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		if resp != nil {
			return resp, nil
		}
		return nil, fmt.Errorf("network error: %w", err)
	}

	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("network error: send chat request: %w", err)
	}

	pr, pw := io.Pipe()
	go pump(ctx, conn, pw)

	header := make(http.Header)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     header,
		Body:       pr,
	}, nil
}

// pump copies websocket messages into pw as SSE frames until the server
// sends the sentinel, closes, or ctx ends.
func pump(ctx context.Context, conn *websocket.Conn, pw *io.PipeWriter) {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				pw.Close()
				return
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				pw.CloseWithError(ctxErr)
				return
			}
			pw.CloseWithError(fmt.Errorf("network error: %w", err))
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		payload := string(data)
		if _, err := fmt.Fprintf(pw, "%s%s\n\n", stream.DataPrefix, payload); err != nil {
			// Reader went away.
			return
		}
		if strings.TrimSpace(payload) == stream.DoneSentinel {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			pw.Close()
			return
		}
	}
}
