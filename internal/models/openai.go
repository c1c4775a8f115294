// internal/models/openai.go
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultGrokBaseURL   = "https://api.x.ai/v1"
)

// OpenAIModel talks to any OpenAI-compatible chat completions endpoint.
// GPT and Grok differ only in base URL and display info.
type OpenAIModel struct {
	BaseModel
	provider string
	apiKey   string
	baseURL  string
	client   Doer
}

func NewGPT(apiKey, baseURL string, client Doer) *OpenAIModel {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return newOpenAICompatible(ModelInfo{
		ID:    "openai",
		Name:  "GPT",
		Color: "#00FF00", // Green
	}, "OpenAI", apiKey, baseURL, client)
}

func NewGrok(apiKey, baseURL string, client Doer) *OpenAIModel {
	if baseURL == "" {
		baseURL = DefaultGrokBaseURL
	}
	return newOpenAICompatible(ModelInfo{
		ID:    "grok",
		Name:  "Grok",
		Color: "#FF6600", // Orange
	}, "Grok", apiKey, baseURL, client)
}

func newOpenAICompatible(info ModelInfo, provider, apiKey, baseURL string, client Doer) *OpenAIModel {
	if client == nil {
		client = NewRetryableClient(DefaultRetryConfig())
	}
	return &OpenAIModel{
		BaseModel: NewBaseModel(info),
		provider:  provider,
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
}

func buildOpenAIRequest(req ChatRequest) openAIRequest {
	out := openAIRequest{
		Model:       req.Model,
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	}

	if system := req.SystemInstruction(); system != "" {
		out.Messages = append(out.Messages, openAIMessage{Role: RoleSystem, Content: system})
	}

	turns := req.Turns()
	images := req.Images()
	for i, msg := range turns {
		if i == len(turns)-1 && len(images) > 0 {
			parts := []openAIPart{{Type: "text", Text: msg.Content}}
			for _, img := range images {
				parts = append(parts, openAIPart{
					Type:     "image_url",
					ImageURL: &openAIImageURL{URL: "data:" + img.MimeType + ";base64," + img.Data},
				})
			}
			out.Messages = append(out.Messages, openAIMessage{Role: msg.Role, Content: parts})
			continue
		}
		out.Messages = append(out.Messages, openAIMessage{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func (m *OpenAIModel) Send(ctx context.Context, req ChatRequest) <-chan Chunk {
	ch := make(chan Chunk, 100)

	go func() {
		defer close(ch)
		genCtx, release := m.begin(ctx)
		defer release()

		bodyBytes, err := json.Marshal(buildOpenAIRequest(req))
		if err != nil {
			sendChunk(genCtx, ch, Chunk{Error: fmt.Errorf("marshal: %w", err)})
			return
		}

		httpReq, err := NewRequestWithBody(genCtx, http.MethodPost, m.baseURL+"/chat/completions", bodyBytes)
		if err != nil {
			sendChunk(genCtx, ch, Chunk{Error: fmt.Errorf("request: %w", err)})
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)

		resp, err := m.client.Do(httpReq)
		if err != nil {
			sendChunk(genCtx, ch, Chunk{Error: fmt.Errorf("network error: %w", err), IsTimeout: isTimeout(err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			sendChunk(genCtx, ch, Chunk{Error: apiError(m.provider, resp)})
			return
		}

		var fullText strings.Builder
		err = readSSE(genCtx, resp.Body, func(payload string) error {
			if !gjson.Valid(payload) {
				return nil
			}
			if msg := gjson.Get(payload, "error.message"); msg.Exists() {
				return fmt.Errorf("%s API error: %s", m.provider, msg.String())
			}
			if text := gjson.Get(payload, "choices.0.delta.content").String(); text != "" {
				fullText.WriteString(text)
				if !sendChunk(genCtx, ch, Chunk{Text: text}) {
					return genCtx.Err()
				}
			}
			if gjson.Get(payload, "choices.0.finish_reason").String() == "stop" {
				return errStopStream
			}
			return nil
		})
		if err != nil {
			sendChunk(genCtx, ch, Chunk{Error: err, IsTimeout: isTimeout(err)})
			return
		}

		sendChunk(genCtx, ch, Chunk{Text: fullText.String(), Done: true})
	}()

	return ch
}
