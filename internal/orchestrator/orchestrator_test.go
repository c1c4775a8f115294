// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"threex/internal/classify"
	"threex/internal/models"
	"threex/internal/provider"
	"threex/internal/remix"
	"threex/internal/slots"
	"threex/internal/stream"
)

// sseResponse renders fragments as a chat stream body
func sseResponse(model string, fragments []string, failure string) *http.Response {
	var sb strings.Builder
	w := stream.NewRawWriter(&sb, model)
	for _, f := range fragments {
		w.Content(f)
	}
	if failure != "" {
		w.Fail(failure)
	} else {
		w.Done()
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(sb.String()))}
}

// MockProvider answers each model id with a scripted stream
type MockProvider struct {
	mu       sync.Mutex
	requests []models.ChatRequest
	calls    atomic.Int32
	answer   func(ctx context.Context, req models.ChatRequest) (*http.Response, error)
}

func (p *MockProvider) SubmitChat(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	return p.answer(ctx, req)
}

func (p *MockProvider) Requests() []models.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChatRequest(nil), p.requests...)
}

func echoProvider() *MockProvider {
	return &MockProvider{answer: func(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
		return sseResponse(req.Model, []string{req.Model, ": ", req.Prompt()}, ""), nil
	}}
}

func newBoard(t *testing.T, selections ...slots.Selection) *slots.Board {
	t.Helper()
	st, err := slots.New(selections, false)
	if err != nil {
		t.Fatalf("slots.New failed: %v", err)
	}
	return slots.NewBoard(st)
}

func drain(t *testing.T, ch <-chan Response) []Response {
	t.Helper()
	var out []Response
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("timed out draining responses")
		}
	}
}

func finals(rs []Response) map[int]Response {
	out := make(map[int]Response)
	for _, r := range rs {
		if r.Done {
			out[r.Slot] = r
		}
	}
	return out
}

func TestParallelSeedFillsEverySlot(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "gemini-2.0-flash", Count: 2}, slots.Selection{ModelID: "gemini-2.5-pro", Count: 1})
	p := echoProvider()
	o := New(p, time.Second)

	rs := drain(t, o.ParallelSeed(context.Background(), board, Prompt{Text: "hi"}))

	if p.calls.Load() != 3 {
		t.Errorf("Expected 3 submissions, got %d", p.calls.Load())
	}
	done := finals(rs)
	if len(done) != 3 {
		t.Fatalf("Expected 3 settled slots, got %d", len(done))
	}

	snap := board.Snapshot()
	for _, s := range snap.Slots {
		want := s.ModelID + ": hi"
		if s.Phase != slots.Done || s.FinalText != want {
			t.Errorf("Slot %d: expected done with %q, got %s %q", s.Index, want, s.Phase, s.FinalText)
		}
		if strings.Join(s.Chunks, "") != want {
			t.Errorf("Slot %d: chunks %v do not match final text", s.Index, s.Chunks)
		}
		if done[s.Index].Text != want {
			t.Errorf("Slot %d: expected final response text %q, got %q", s.Index, want, done[s.Index].Text)
		}
	}
	if snap.Aggregate("hi").AnyGenerating {
		t.Error("Expected nothing generating after seed")
	}
}

func TestParallelSeedIssuesAllBeforeAwaiting(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "m", Count: 3})
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(3)

	p := &MockProvider{answer: func(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
		started.Done()
		<-release
		return sseResponse(req.Model, []string{"x"}, ""), nil
	}}
	o := New(p, 0)
	ch := o.ParallelSeed(context.Background(), board, Prompt{Text: "go"})

	waited := make(chan struct{})
	go func() {
		started.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected all three submissions in flight at once")
	}
	close(release)
	drain(t, ch)
}

func TestParallelSeedClassifiesErrors(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "ok", Count: 1}, slots.Selection{ModelID: "limited", Count: 1}, slots.Selection{ModelID: "down", Count: 1})
	p := &MockProvider{answer: func(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
		switch req.Model {
		case "limited":
			return sseResponse(req.Model, []string{"par"}, "429 quota exceeded"), nil
		case "down":
			return nil, errors.New("network error: connection refused")
		default:
			return sseResponse(req.Model, []string{"fine"}, ""), nil
		}
	}}
	o := New(p, time.Second)

	done := finals(drain(t, o.ParallelSeed(context.Background(), board, Prompt{Text: "q"})))

	snap := board.Snapshot()
	s1, _ := snap.Slot(1)
	s2, _ := snap.Slot(2)
	s3, _ := snap.Slot(3)

	if s1.Phase != slots.Done || s1.FinalText != "fine" {
		t.Errorf("Slot 1 should succeed, got %+v", s1)
	}
	if s2.Phase != slots.Failed || s2.FinalText != classify.MessageRateLimit {
		t.Errorf("Slot 2 should fail with rate limit message, got %+v", s2)
	}
	if len(s2.Chunks) != 2 || s2.Chunks[0] != "par" {
		t.Errorf("Slot 2 should keep its partial chunk before the message, got %v", s2.Chunks)
	}
	if s3.FinalText != classify.MessageNetwork {
		t.Errorf("Slot 3 should fail with network message, got %q", s3.FinalText)
	}

	var upstream *stream.UpstreamError
	if !errors.As(done[2].Error, &upstream) {
		t.Errorf("Expected UpstreamError for slot 2, got %v", done[2].Error)
	}
	if done[3].Message != classify.MessageNetwork {
		t.Errorf("Expected network message in response, got %q", done[3].Message)
	}
}

func TestParallelSeedHTTPError(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "m", Count: 1})
	p := &MockProvider{answer: func(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
		return &http.Response{StatusCode: 500, Body: io.NopCloser(strings.NewReader("Internal Server Error"))}, nil
	}}

	drain(t, New(p, time.Second).ParallelSeed(context.Background(), board, Prompt{Text: "q"}))

	s, _ := board.Snapshot().Slot(1)
	if s.FinalText != classify.MessageServer {
		t.Errorf("Expected server message, got %q", s.FinalText)
	}
}

func TestParallelSeedTimeout(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "slow", Count: 1})
	p := &MockProvider{answer: func(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	done := finals(drain(t, New(p, 20*time.Millisecond).ParallelSeed(context.Background(), board, Prompt{Text: "q"})))

	if !done[1].IsTimeout || !errors.Is(done[1].Error, ErrTimeout) {
		t.Errorf("Expected timeout response, got %+v", done[1])
	}
	s, _ := board.Snapshot().Slot(1)
	if s.Phase != slots.Failed || s.FinalText != TimeoutMessage {
		t.Errorf("Expected slot failed with timeout message, got %+v", s)
	}
}

func TestResetDuringStreamDropsLateChunks(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "m", Count: 1})
	gate := make(chan struct{})
	p := &MockProvider{answer: func(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
		<-gate
		return sseResponse(req.Model, []string{"late"}, ""), nil
	}}
	o := New(p, time.Second)

	ch := o.ParallelSeed(context.Background(), board, Prompt{Text: "q"})
	board.Reset()
	close(gate)

	done := finals(drain(t, ch))
	if !done[1].Stale {
		t.Error("Expected final response to be marked stale")
	}
	s, _ := board.Snapshot().Slot(1)
	if s.HasContent() || s.Phase != slots.Idle {
		t.Errorf("Expected reset slot untouched by late stream, got %+v", s)
	}
}

func TestSendToSlot(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "a", Count: 2})
	p := echoProvider()
	o := New(p, time.Second)
	drain(t, o.ParallelSeed(context.Background(), board, Prompt{Text: "first"}))

	ch, err := o.SendToSlot(context.Background(), board, 2, Prompt{Text: "second"})
	if err != nil {
		t.Fatalf("SendToSlot failed: %v", err)
	}
	drain(t, ch)

	snap := board.Snapshot()
	if s, _ := snap.Slot(1); s.FinalText != "a: first" {
		t.Errorf("Slot 1 should be untouched, got %q", s.FinalText)
	}
	if s, _ := snap.Slot(2); s.FinalText != "a: second" {
		t.Errorf("Slot 2 should be regenerated, got %q", s.FinalText)
	}

	if _, err := o.SendToSlot(context.Background(), board, 5, Prompt{Text: "x"}); !errors.Is(err, slots.ErrNoSuchSlot) {
		t.Errorf("Expected ErrNoSuchSlot, got %v", err)
	}
}

func TestRemix(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "a", Count: 1}, slots.Selection{ModelID: "b", Count: 1})
	p := echoProvider()
	o := New(p, time.Second)

	if _, err := o.Remix(context.Background(), board, Prompt{Text: "q"}, "judge"); !errors.Is(err, slots.ErrRemixDisabled) {
		t.Fatalf("Expected remix disabled before any content, got %v", err)
	}

	drain(t, o.ParallelSeed(context.Background(), board, Prompt{Text: "q"}))

	ch, err := o.Remix(context.Background(), board, Prompt{Text: "q"}, "judge")
	if err != nil {
		t.Fatalf("Remix failed: %v", err)
	}
	rs := drain(t, ch)
	if last := rs[len(rs)-1]; last.Lane != slots.LaneRemix || !last.Done {
		t.Errorf("Expected final remix lane response, got %+v", last)
	}

	reqs := p.Requests()
	remixReq := reqs[len(reqs)-1]
	if remixReq.Model != "judge" {
		t.Errorf("Expected remix model judge, got %s", remixReq.Model)
	}
	for _, want := range []string{"a: q", "b: q", "Question:\nq"} {
		if !strings.Contains(remixReq.Prompt(), want) {
			t.Errorf("Expected remix prompt to contain %q", want)
		}
	}

	remixSlot := board.Snapshot().Remix
	if remixSlot.Phase != slots.Done || !strings.HasPrefix(remixSlot.FinalText, "judge: ") {
		t.Errorf("Expected remix lane settled, got %+v", remixSlot)
	}
}

func TestRemixDisabledForSingleSlot(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "a", Count: 1})
	o := New(echoProvider(), time.Second)
	drain(t, o.ParallelSeed(context.Background(), board, Prompt{Text: "q"}))

	if _, err := o.Remix(context.Background(), board, Prompt{Text: "q"}, "judge"); !errors.Is(err, slots.ErrRemixDisabled) {
		t.Errorf("Expected remix disabled with one slot, got %v", err)
	}
}

func TestSocial(t *testing.T) {
	board := newBoard(t, slots.Selection{ModelID: "a", Count: 1})
	p := &MockProvider{answer: func(ctx context.Context, req models.ChatRequest) (*http.Response, error) {
		return sseResponse(req.Model, []string{"### X\nshort post"}, ""), nil
	}}
	o := New(p, time.Second)

	ch, err := o.Social(context.Background(), board, "Go is fun.", []remix.Platform{remix.PlatformX}, "writer")
	if err != nil {
		t.Fatalf("Social failed: %v", err)
	}
	drain(t, ch)

	social := board.Snapshot().Social
	posts := remix.ParseSocialPosts(social.FinalText)
	if posts[remix.PlatformX] != "short post" {
		t.Errorf("Expected X post, got %v", posts)
	}
	if _, err := o.Social(context.Background(), board, "", nil, "writer"); err == nil {
		t.Error("Expected error for empty source")
	}
}

func TestPromptRequest(t *testing.T) {
	temp := 0.5
	req := Prompt{
		Text:        "now",
		History:     []models.ChatMessage{{Role: models.RoleUser, Content: "before"}, {Role: models.RoleAssistant, Content: "reply"}},
		Temperature: &temp,
	}.Request("m")

	if len(req.Messages) != 3 || req.Prompt() != "now" {
		t.Errorf("Expected history plus prompt, got %+v", req.Messages)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Expected valid request, got %v", err)
	}
}

var _ provider.Provider = (*MockProvider)(nil)
