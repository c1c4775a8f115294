// internal/models/gemini.go
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultGeminiBaseURL is the public Generative Language API
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiModel struct {
	BaseModel
	apiKey  string
	baseURL string
	client  Doer
}

func NewGemini(apiKey, baseURL string, client Doer) *GeminiModel {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if client == nil {
		client = NewRetryableClient(DefaultRetryConfig())
	}
	return &GeminiModel{
		BaseModel: NewBaseModel(ModelInfo{
			ID:    "gemini",
			Name:  "Gemini",
			Color: "#FF00FF", // Magenta
		}),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

func buildGeminiRequest(req ChatRequest) geminiRequest {
	turns := req.Turns()
	out := geminiRequest{Contents: make([]geminiContent, 0, len(turns))}

	for i, msg := range turns {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		content := geminiContent{Role: role, Parts: []geminiPart{{Text: msg.Content}}}
		// Images ride along with the final user turn.
		if i == len(turns)-1 {
			for _, img := range req.Images() {
				content.Parts = append(content.Parts, geminiPart{
					InlineData: &geminiInlineData{MimeType: img.MimeType, Data: img.Data},
				})
			}
		}
		out.Contents = append(out.Contents, content)
	}

	if system := req.SystemInstruction(); system != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if req.Temperature != nil || req.MaxTokens != nil || req.TopP != nil || req.TopK != nil {
		out.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			TopP:            req.TopP,
			TopK:            req.TopK,
		}
	}
	return out
}

func (m *GeminiModel) Send(ctx context.Context, req ChatRequest) <-chan Chunk {
	ch := make(chan Chunk, 100)

	go func() {
		defer close(ch)
		genCtx, release := m.begin(ctx)
		defer release()

		bodyBytes, err := json.Marshal(buildGeminiRequest(req))
		if err != nil {
			sendChunk(genCtx, ch, Chunk{Error: fmt.Errorf("marshal: %w", err)})
			return
		}

		endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", m.baseURL, url.PathEscape(req.Model))
		httpReq, err := NewRequestWithBody(genCtx, http.MethodPost, endpoint, bodyBytes)
		if err != nil {
			sendChunk(genCtx, ch, Chunk{Error: fmt.Errorf("request: %w", err)})
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", m.apiKey)

		resp, err := m.client.Do(httpReq)
		if err != nil {
			sendChunk(genCtx, ch, Chunk{Error: fmt.Errorf("network error: %w", err), IsTimeout: isTimeout(err)})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			sendChunk(genCtx, ch, Chunk{Error: apiError("Gemini", resp)})
			return
		}

		var fullText strings.Builder
		err = readSSE(genCtx, resp.Body, func(payload string) error {
			if !gjson.Valid(payload) {
				return nil
			}
			if msg := gjson.Get(payload, "error.message"); msg.Exists() {
				code := gjson.Get(payload, "error.code").Int()
				return fmt.Errorf("Gemini API error %d: %s", code, msg.String())
			}
			for _, part := range gjson.Get(payload, "candidates.0.content.parts.#.text").Array() {
				text := part.String()
				if text == "" {
					continue
				}
				fullText.WriteString(text)
				if !sendChunk(genCtx, ch, Chunk{Text: text}) {
					return genCtx.Err()
				}
			}
			if reason := gjson.Get(payload, "candidates.0.finishReason").String(); reason == "SAFETY" {
				return fmt.Errorf("Gemini blocked the response (finish reason %s)", reason)
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
