// Package slots holds the per-slot chat state: which model answers in each
// slot, what it has streamed so far and whether it is still generating.
//
// State is an immutable value. Every operation returns a new State and
// leaves its input untouched; Board wraps a State for concurrent use.
package slots

import (
	"errors"
	"strings"
)

// MaxSlots caps how many slots a chat may have.
const MaxSlots = 6

var (
	ErrLastSlot       = errors.New("at least one slot must remain")
	ErrSlotLimit      = errors.New("maximum of 6 slots reached")
	ErrNoSuchSlot     = errors.New("no such slot")
	ErrEmptyModel     = errors.New("model id is required")
	ErrInvalidCount   = errors.New("selection count must be at least 1")
	ErrTooManySlots   = errors.New("selections exceed the slot limit")
	ErrNoneSelected   = errors.New("at least one model must be selected")
	ErrRemixDisabled  = errors.New("remix needs two or more responses and a prompt")
	ErrLaneGenerating = errors.New("lane is already generating")
)

// Phase is where a slot is in its generation lifecycle.
type Phase int

const (
	Idle Phase = iota
	Generating
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Generating:
		return "generating"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Selection asks for Count slots answered by ModelID.
type Selection struct {
	ModelID string `json:"modelId" yaml:"model"`
	Count   int    `json:"count" yaml:"count"`
}

// Slot is one answer position in the grid.
type Slot struct {
	Index     int
	ModelID   string
	Phase     Phase
	Chunks    []string
	FinalText string
	Epoch     uint64
}

func (s Slot) IsGenerating() bool {
	return s.Phase == Generating
}

// HasContent reports whether anything has been streamed or finalized.
func (s Slot) HasContent() bool {
	return len(s.Chunks) > 0 || s.FinalText != ""
}

// Text is the final text once settled, otherwise the chunks so far.
func (s Slot) Text() string {
	if s.FinalText != "" {
		return s.FinalText
	}
	return strings.Join(s.Chunks, "")
}

// Lane identifies which slot collection a ticket belongs to.
type Lane int

const (
	LaneGrid Lane = iota
	LaneRemix
	LaneSocial
)

func (l Lane) String() string {
	switch l {
	case LaneRemix:
		return "remix"
	case LaneSocial:
		return "social"
	default:
		return "grid"
	}
}

// Ticket authorizes stream writes for one generation. Index is the slot
// position when the generation began; lookups go by Epoch, so the ticket
// keeps working after the slot is re-indexed.
type Ticket struct {
	Lane  Lane
	Index int
	Epoch uint64
}

// AggregateState holds the predicates the interface renders from.
type AggregateState struct {
	AnyGenerating bool
	HeaderVisible bool
	RemixEnabled  bool
}

func cloneSlot(s Slot) Slot {
	if s.Chunks != nil {
		s.Chunks = append([]string(nil), s.Chunks...)
	}
	return s
}

func cloneSlots(in []Slot) []Slot {
	if in == nil {
		return nil
	}
	out := make([]Slot, len(in))
	for i, s := range in {
		out[i] = cloneSlot(s)
	}
	return out
}
