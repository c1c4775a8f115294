// internal/models/types.go
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Chunk represents a piece of streaming response
type Chunk struct {
	Text      string
	Done      bool
	Error     error
	IsTimeout bool // Distinguishes timeout from other errors
}

// Message roles accepted in a chat request
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one turn of the conversation sent to a model
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Image is an inline attachment, base64 encoded
type Image struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// ChatContext carries material attached to a request
type ChatContext struct {
	Text         string  `json:"text,omitempty"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	Images       []Image `json:"images,omitempty"`
}

// IsEmpty reports whether the context carries nothing
func (c *ChatContext) IsEmpty() bool {
	return c == nil || (c.Text == "" && c.SystemPrompt == "" && len(c.Images) == 0)
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"maxTokens,omitempty"`
	TopP        *float64      `json:"topP,omitempty"`
	TopK        *int          `json:"topK,omitempty"`
	Context     *ChatContext  `json:"context,omitempty"`
}

// Request limits
const (
	MaxMessages  = 200
	MaxTokensCap = 65536
	MaxImages    = 8
)

// ValidationError describes why a request was rejected
type ValidationError struct {
	Field   string
	Problem string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Problem)
}

// IsValidationError reports whether err is a request validation failure
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Problem: fmt.Sprintf(format, args...)}
}

// Validate checks the request before any model is called
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return invalid("model", "is required")
	}
	if len(r.Messages) == 0 {
		return invalid("messages", "at least one message is required")
	}
	if len(r.Messages) > MaxMessages {
		return invalid("messages", "at most %d messages are allowed", MaxMessages)
	}
	for i, msg := range r.Messages {
		switch msg.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return invalid(fmt.Sprintf("messages[%d].role", i), "unknown role %q", msg.Role)
		}
		if strings.TrimSpace(msg.Content) == "" {
			return invalid(fmt.Sprintf("messages[%d].content", i), "is empty")
		}
	}
	if last := r.Messages[len(r.Messages)-1]; last.Role != RoleUser {
		return invalid("messages", "last message must come from the user")
	}

	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return invalid("temperature", "must be between 0 and 2")
	}
	if r.MaxTokens != nil && (*r.MaxTokens < 1 || *r.MaxTokens > MaxTokensCap) {
		return invalid("maxTokens", "must be between 1 and %d", MaxTokensCap)
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return invalid("topP", "must be between 0 and 1")
	}
	if r.TopK != nil && *r.TopK < 1 {
		return invalid("topK", "must be at least 1")
	}

	if r.Context != nil {
		if len(r.Context.Images) > MaxImages {
			return invalid("context.images", "at most %d images are allowed", MaxImages)
		}
		for i, img := range r.Context.Images {
			if !strings.HasPrefix(img.MimeType, "image/") {
				return invalid(fmt.Sprintf("context.images[%d].mimeType", i), "%q is not an image type", img.MimeType)
			}
			if img.Data == "" {
				return invalid(fmt.Sprintf("context.images[%d].data", i), "is empty")
			}
		}
	}
	return nil
}

// Prompt returns the content of the final user message
func (r ChatRequest) Prompt() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// SystemInstruction merges system messages, the context system prompt and
// attached text into one instruction block
func (r ChatRequest) SystemInstruction() string {
	var parts []string
	if r.Context != nil && r.Context.SystemPrompt != "" {
		parts = append(parts, r.Context.SystemPrompt)
	}
	for _, msg := range r.Messages {
		if msg.Role == RoleSystem {
			parts = append(parts, msg.Content)
		}
	}
	if r.Context != nil && r.Context.Text != "" {
		parts = append(parts, "Use the following context when answering:\n\n"+r.Context.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Turns returns user and assistant messages in order, without system turns
func (r ChatRequest) Turns() []ChatMessage {
	out := make([]ChatMessage, 0, len(r.Messages))
	for _, msg := range r.Messages {
		if msg.Role != RoleSystem {
			out = append(out, msg)
		}
	}
	return out
}

// Images returns the attached images, if any
func (r ChatRequest) Images() []Image {
	if r.Context == nil {
		return nil
	}
	return r.Context.Images
}

// NewPromptRequest builds a single-turn request
func NewPromptRequest(model, prompt string, ctx *ChatContext) ChatRequest {
	return ChatRequest{
		Model:    model,
		Messages: []ChatMessage{{Role: RoleUser, Content: prompt}},
		Context:  ctx,
	}
}

// ModelStatus represents the current state of a model
type ModelStatus int

const (
	StatusIdle ModelStatus = iota
	StatusResponding
	StatusWaiting
	StatusError
	StatusTimeout
)

func (s ModelStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusResponding:
		return "responding"
	case StatusWaiting:
		return "waiting"
	case StatusError:
		return "error"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ModelInfo contains display information for a backend
type ModelInfo struct {
	ID    string // gemini, claude, openai, grok, echo
	Name  string // Display name
	Color string // Hex color for UI
}
