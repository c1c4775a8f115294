// Package provider submits chat requests to a threex server and hands back
// the raw streaming response.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"threex/internal/models"
)

// ChatPath is the streaming chat endpoint on a threex server.
const ChatPath = "/api/chat"

// Provider is the one capability the chat core needs: submit a request and
// get back a response whose body is an SSE-framed chat stream.
type Provider interface {
	SubmitChat(ctx context.Context, req models.ChatRequest) (*http.Response, error)
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, req models.ChatRequest) (*http.Response, error)

func (f Func) SubmitChat(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
	return f(ctx, req)
}

// HTTPProvider POSTs requests to <endpoint>/api/chat.
type HTTPProvider struct {
	endpoint string
	client   models.Doer
	headers  http.Header
}

// Option configures an HTTPProvider.
type Option func(*HTTPProvider)

// WithClient sets the client used to send requests.
func WithClient(c models.Doer) Option {
	return func(p *HTTPProvider) {
		p.client = c
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(p *HTTPProvider) {
		p.headers.Add(key, value)
	}
}

// NewHTTP returns a provider for the server at endpoint.
func NewHTTP(endpoint string, opts ...Option) *HTTPProvider {
	p := &HTTPProvider{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		headers:  make(http.Header),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = models.NewRetryableClient(models.DefaultRetryConfig())
	}
	return p
}

// SubmitChat sends req and returns the response unread. Non-2xx responses
// are returned as is; only transport failures produce an error.
func (p *HTTPProvider) SubmitChat(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := models.NewRequestWithBody(ctx, http.MethodPost, p.endpoint+ChatPath, body)
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	for key, values := range p.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	return resp, nil
}
