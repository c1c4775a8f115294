// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"threex/internal/classify"
	"threex/internal/logx"
	"threex/internal/models"
	"threex/internal/provider"
	"threex/internal/remix"
	"threex/internal/slots"
	"threex/internal/stream"
)

// Common error types
var (
	ErrTimeout = errors.New("model response timed out")
)

// TimeoutMessage is shown in a slot whose generation hit the per-slot limit.
const TimeoutMessage = "The model took too long to respond. Please try again."

// Response is one event from a slot's stream. Content carries a fragment;
// the final event for a slot has Done set and either Text or Error.
type Response struct {
	Lane      slots.Lane
	Slot      int
	ModelID   string
	Content   string
	Text      string
	Error     error
	Message   string // user-facing text for Error
	Done      bool
	IsTimeout bool // True if the error was due to timeout
	Stale     bool // The slot was reset or deleted while streaming
}

// Prompt is what the user asked plus the settings sent with every slot.
type Prompt struct {
	Text        string
	History     []models.ChatMessage
	Context     *models.ChatContext
	Temperature *float64
	MaxTokens   *int
}

// Request builds the chat request for modelID.
func (p Prompt) Request(modelID string) models.ChatRequest {
	messages := make([]models.ChatMessage, 0, len(p.History)+1)
	messages = append(messages, p.History...)
	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: p.Text})
	return models.ChatRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Context:     p.Context,
	}
}

// Orchestrator fans prompts out to slots and streams the answers back into
// a slots.Board.
type Orchestrator struct {
	provider provider.Provider
	timeout  time.Duration
}

// New returns an orchestrator. A zero timeout disables the per-slot limit.
func New(p provider.Provider, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		provider: p,
		timeout:  timeout,
	}
}

type job struct {
	ticket  slots.Ticket
	modelID string
	req     models.ChatRequest
}

// ParallelSeed starts every slot on the board and submits one request per
// slot concurrently. Every slot is settled, with its text or a classified
// error, before the returned channel closes. Callers must drain it.
func (o *Orchestrator) ParallelSeed(ctx context.Context, board *slots.Board, prompt Prompt) <-chan Response {
	tickets := board.BeginAll()
	snap := board.Snapshot()

	jobs := make([]job, 0, len(tickets))
	for _, t := range tickets {
		slot, ok := snap.Lookup(t)
		if !ok {
			continue
		}
		jobs = append(jobs, job{ticket: t, modelID: slot.ModelID, req: prompt.Request(slot.ModelID)})
	}
	return o.runAll(ctx, board, jobs)
}

// SendToSlot regenerates one slot.
func (o *Orchestrator) SendToSlot(ctx context.Context, board *slots.Board, index int, prompt Prompt) (<-chan Response, error) {
	ticket, err := board.Begin(index)
	if err != nil {
		return nil, err
	}
	slot, ok := board.Snapshot().Lookup(ticket)
	if !ok {
		return nil, fmt.Errorf("%w: %d", slots.ErrNoSuchSlot, index)
	}
	return o.runAll(ctx, board, []job{{ticket: ticket, modelID: slot.ModelID, req: prompt.Request(slot.ModelID)}}), nil
}

// Remix merges the grid's answers into the remix lane using modelID. It
// fails with slots.ErrRemixDisabled unless the board allows a remix for
// prompt.
func (o *Orchestrator) Remix(ctx context.Context, board *slots.Board, prompt Prompt, modelID string) (<-chan Response, error) {
	snap := board.Snapshot()
	if !snap.Aggregate(prompt.Text).RemixEnabled {
		return nil, slots.ErrRemixDisabled
	}

	answers := make([]remix.Answer, 0, len(snap.Slots))
	for _, s := range snap.Slots {
		if s.Phase == slots.Failed || s.IsGenerating() {
			continue
		}
		answers = append(answers, remix.Answer{Index: s.Index, ModelID: s.ModelID, Text: s.Text()})
	}

	ticket, err := board.BeginLane(slots.LaneRemix, modelID)
	if err != nil {
		return nil, err
	}

	req := Prompt{
		Text:        remix.BuildRemixPrompt(prompt.Text, answers),
		Context:     prompt.Context,
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	}.Request(modelID)
	return o.runAll(ctx, board, []job{{ticket: ticket, modelID: modelID, req: req}}), nil
}

// Social rewrites source as posts for targets into the social lane.
func (o *Orchestrator) Social(ctx context.Context, board *slots.Board, source string, targets []remix.Platform, modelID string) (<-chan Response, error) {
	if source == "" {
		return nil, errors.New("nothing to turn into posts")
	}
	ticket, err := board.BeginLane(slots.LaneSocial, modelID)
	if err != nil {
		return nil, err
	}
	req := models.NewPromptRequest(modelID, remix.BuildSocialPrompt(source, targets), nil)
	return o.runAll(ctx, board, []job{{ticket: ticket, modelID: modelID, req: req}}), nil
}

func (o *Orchestrator) runAll(ctx context.Context, board *slots.Board, jobs []job) <-chan Response {
	responses := make(chan Response, len(jobs)*10)

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			o.run(ctx, board, j, responses)
		}(j)
	}

	// Close responses channel when all slots settled
	go func() {
		wg.Wait()
		close(responses)
	}()

	return responses
}

// run streams one job into the board. The slot is always settled before the
// final Response is sent.
func (o *Orchestrator) run(ctx context.Context, board *slots.Board, j job, responses chan<- Response) {
	log := logx.WithSlot(logx.Ctx(ctx), j.ticket.Index, j.modelID).With("lane", j.ticket.Lane.String())

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
	}
	defer cancel()

	base := Response{Lane: j.ticket.Lane, Slot: j.ticket.Index, ModelID: j.modelID}
	emit := func(r Response) {
		select {
		case responses <- r:
		case <-ctx.Done():
		}
	}

	start := time.Now()
	log.Debug("slot submit")

	resp, err := o.provider.SubmitChat(runCtx, j.req)
	var full string
	if err == nil {
		full, err = stream.Consume(resp, func(fragment string) {
			if board.Append(j.ticket, fragment) {
				r := base
				r.Content = fragment
				emit(r)
			}
		})
	}

	final := base
	final.Done = true
	if err != nil {
		final.Error = err
		final.Message = classify.Classify(err)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			final.Error = fmt.Errorf("%w: %w", ErrTimeout, err)
			final.Message = TimeoutMessage
			final.IsTimeout = true
		}
		final.Stale = !board.Fail(j.ticket, final.Message)
		log.Warn("slot failed", "err", err, "category", classify.Categorize(err).String(), "stale", final.Stale)
	} else {
		final.Text = full
		final.Stale = !board.Finalize(j.ticket, full)
		log.Debug("slot done", "bytes", len(full), "elapsed", time.Since(start).String(), "stale", final.Stale)
	}
	emit(final)
}
