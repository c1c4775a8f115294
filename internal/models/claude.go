// internal/models/claude.go
package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultClaudeMaxTokens applies when a request sets no limit; the
// Messages API requires one.
const defaultClaudeMaxTokens = 4096

type ClaudeModel struct {
	BaseModel
	client anthropic.Client
}

func NewClaude(apiKey, baseURL string, maxRetries int) *ClaudeModel {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &ClaudeModel{
		BaseModel: NewBaseModel(ModelInfo{
			ID:    "claude",
			Name:  "Claude",
			Color: "#00FFFF", // Cyan
		}),
		client: anthropic.NewClient(opts...),
	}
}

func buildClaudeParams(req ChatRequest) anthropic.MessageNewParams {
	maxTokens := int64(defaultClaudeMaxTokens)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
	}
	if system := req.SystemInstruction(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		// The Messages API caps temperature at 1.
		params.Temperature = anthropic.Float(min(*req.Temperature, 1))
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if req.TopK != nil {
		params.TopK = anthropic.Int(int64(*req.TopK))
	}

	turns := req.Turns()
	for i, msg := range turns {
		blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)}
		if msg.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
			continue
		}
		if i == len(turns)-1 {
			for _, img := range req.Images() {
				blocks = append(blocks, anthropic.NewImageBlockBase64(img.MimeType, img.Data))
			}
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
	}
	return params
}

func (m *ClaudeModel) Send(ctx context.Context, req ChatRequest) <-chan Chunk {
	ch := make(chan Chunk, 100)

	go func() {
		defer close(ch)
		genCtx, release := m.begin(ctx)
		defer release()

		stream := m.client.Messages.NewStreaming(genCtx, buildClaudeParams(req))
		defer stream.Close()

		var fullText strings.Builder
		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
				if !ok || delta.Text == "" {
					continue
				}
				fullText.WriteString(delta.Text)
				if !sendChunk(genCtx, ch, Chunk{Text: delta.Text}) {
					return
				}
			case anthropic.MessageStopEvent:
				sendChunk(genCtx, ch, Chunk{Text: fullText.String(), Done: true})
				return
			}
		}

		if err := stream.Err(); err != nil {
			sendChunk(genCtx, ch, Chunk{Error: fmt.Errorf("Claude API error: %w", err), IsTimeout: isTimeout(err)})
			return
		}
		sendChunk(genCtx, ch, Chunk{Text: fullText.String(), Done: true})
	}()

	return ch
}
