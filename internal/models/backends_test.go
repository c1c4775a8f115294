// internal/models/backends_test.go
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func sseServer(t *testing.T, check func(r *http.Request, body string), frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if check != nil {
			check(r, string(body))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprint(w, f)
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
		}
	}))
}

func TestGeminiStreams(t *testing.T) {
	var gotPath, gotKey, gotQuery, gotBody string
	srv := sseServer(t, func(r *http.Request, body string) {
		gotPath, gotQuery, gotKey, gotBody = r.URL.Path, r.URL.RawQuery, r.Header.Get("x-goog-api-key"), body
	},
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}]}\r\n\r\n",
		"data: not-json\r\n\r\n",
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"lo\"}]},\"finishReason\":\"STOP\"}]}\r\n\r\n",
	)
	defer srv.Close()

	gemini := NewGemini("g-key", srv.URL, srv.Client())
	req := NewPromptRequest("gemini-2.0-flash", "hi", &ChatContext{
		SystemPrompt: "Be kind.",
		Images:       []Image{{MimeType: "image/png", Data: "iVBORw=="}},
	})
	req.Temperature = floatPtr(0.2)

	text, last := collect(t, gemini.Send(context.Background(), req))
	if text != "Hello" {
		t.Errorf("Expected 'Hello', got %q", text)
	}
	if !last.Done || last.Text != "Hello" {
		t.Errorf("Expected done chunk with full text, got %+v", last)
	}

	if gotPath != "/models/gemini-2.0-flash:streamGenerateContent" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if gotQuery != "alt=sse" {
		t.Errorf("Expected alt=sse, got %s", gotQuery)
	}
	if gotKey != "g-key" {
		t.Errorf("Expected api key header, got %q", gotKey)
	}
	if got := gjson.Get(gotBody, "systemInstruction.parts.0.text").String(); got != "Be kind." {
		t.Errorf("Expected system instruction, got %q", got)
	}
	if got := gjson.Get(gotBody, "contents.0.parts.1.inlineData.mimeType").String(); got != "image/png" {
		t.Errorf("Expected inline image, got %q", got)
	}
	if got := gjson.Get(gotBody, "generationConfig.temperature").Float(); got != 0.2 {
		t.Errorf("Expected temperature 0.2, got %v", got)
	}
}

func TestGeminiAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	gemini := NewGemini("bad", srv.URL, srv.Client())
	_, last := collect(t, gemini.Send(context.Background(), NewPromptRequest("gemini-2.5-pro", "hi", nil)))
	if last.Error == nil {
		t.Fatal("Expected an error chunk")
	}
	if !strings.Contains(last.Error.Error(), "401") {
		t.Errorf("Expected status in error, got %v", last.Error)
	}
}

func TestGeminiInStreamError(t *testing.T) {
	srv := sseServer(t, nil,
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"partial\"}]}}]}\n\n",
		"data: {\"error\":{\"code\":429,\"message\":\"Resource has been exhausted (e.g. check quota).\"}}\n\n",
	)
	defer srv.Close()

	gemini := NewGemini("k", srv.URL, srv.Client())
	text, last := collect(t, gemini.Send(context.Background(), NewPromptRequest("gemini-2.0-flash", "hi", nil)))
	if text != "partial" {
		t.Errorf("Expected partial text before error, got %q", text)
	}
	if last.Error == nil || !strings.Contains(last.Error.Error(), "quota") {
		t.Errorf("Expected quota error, got %+v", last)
	}
}

func TestOpenAICompatibleStreams(t *testing.T) {
	var gotAuth, gotBody, gotPath string
	srv := sseServer(t, func(r *http.Request, body string) {
		gotAuth, gotBody, gotPath = r.Header.Get("Authorization"), body, r.URL.Path
	},
		"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hi \"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"there\"},\"finish_reason\":\"stop\"}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n",
		"data: [DONE]\n\n",
	)
	defer srv.Close()

	for _, tc := range []struct {
		name  string
		model *OpenAIModel
	}{
		{"gpt", NewGPT("sk-test", srv.URL, srv.Client())},
		{"grok", NewGrok("sk-test", srv.URL, srv.Client())},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := ChatRequest{
				Model: "gpt-4o",
				Messages: []ChatMessage{
					{Role: RoleUser, Content: "one"},
					{Role: RoleAssistant, Content: "two"},
					{Role: RoleUser, Content: "three"},
				},
				MaxTokens: intPtr(64),
				Context:   &ChatContext{Images: []Image{{MimeType: "image/jpeg", Data: "abc"}}},
			}

			text, last := collect(t, tc.model.Send(context.Background(), req))
			if text != "Hi there" {
				t.Errorf("Expected 'Hi there', got %q", text)
			}
			if !last.Done {
				t.Errorf("Expected done chunk, got %+v", last)
			}
			if gotAuth != "Bearer sk-test" {
				t.Errorf("Expected bearer auth, got %q", gotAuth)
			}
			if gotPath != "/chat/completions" {
				t.Errorf("Unexpected path %s", gotPath)
			}

			var body struct {
				Messages []json.RawMessage `json:"messages"`
				Stream   bool              `json:"stream"`
				Max      int               `json:"max_tokens"`
			}
			if err := json.Unmarshal([]byte(gotBody), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if !body.Stream || body.Max != 64 || len(body.Messages) != 3 {
				t.Errorf("Unexpected request body %s", gotBody)
			}
			if got := gjson.Get(gotBody, "messages.2.content.1.image_url.url").String(); got != "data:image/jpeg;base64,abc" {
				t.Errorf("Expected data URL image on last turn, got %q", got)
			}
		})
	}
}

func TestOpenAIRateLimitedKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Too Many Requests"}}`))
	}))
	defer srv.Close()

	client := NewRetryableClientWith(srv.Client(), fastRetry(2))
	gpt := NewGPT("sk", srv.URL, client)
	_, last := collect(t, gpt.Send(context.Background(), NewPromptRequest("gpt-4o", "hi", nil)))
	if last.Error == nil || !strings.Contains(last.Error.Error(), "429") {
		t.Errorf("Expected 429 error, got %+v", last)
	}
}

const claudeStream = "event: message_start\n" +
	`data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-5","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":1}}}` + "\n\n" +
	"event: content_block_start\n" +
	`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}` + "\n\n" +
	"event: content_block_stop\n" +
	`data: {"type":"content_block_stop","index":0}` + "\n\n" +
	"event: message_delta\n" +
	`data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}` + "\n\n" +
	"event: message_stop\n" +
	`data: {"type":"message_stop"}` + "\n\n"

func TestClaudeStreams(t *testing.T) {
	var gotBody string
	srv := sseServer(t, func(r *http.Request, body string) { gotBody = body }, claudeStream)
	defer srv.Close()

	claude := NewClaude("ak-test", srv.URL, 0)
	req := NewPromptRequest("claude-sonnet-4-5", "hi", &ChatContext{SystemPrompt: "Terse."})

	text, last := collect(t, claude.Send(context.Background(), req))
	if text != "Hello world" {
		t.Errorf("Expected 'Hello world', got %q", text)
	}
	if !last.Done || last.Text != "Hello world" {
		t.Errorf("Expected done chunk with full text, got %+v", last)
	}
	if got := gjson.Get(gotBody, "system.0.text").String(); got != "Terse." {
		t.Errorf("Expected system block, got %q in %s", got, gotBody)
	}
	if got := gjson.Get(gotBody, "max_tokens").Int(); got != defaultClaudeMaxTokens {
		t.Errorf("Expected default max tokens, got %d", got)
	}
}

func TestClaudeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	claude := NewClaude("bad", srv.URL, 0)
	_, last := collect(t, claude.Send(context.Background(), NewPromptRequest("claude-haiku-4-5", "hi", nil)))
	if last.Error == nil || !strings.Contains(last.Error.Error(), "401") {
		t.Errorf("Expected 401 error, got %+v", last)
	}
}
