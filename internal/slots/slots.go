// internal/slots/slots.go
package slots

import (
	"fmt"
	"strings"
)

// State is the whole chat state the grid renders.
type State struct {
	Slots             []Slot
	Selections        []Selection
	UsingDefaultModel bool
	Remix             Slot
	Social            Slot

	lastEpoch uint64
}

// New builds a State from selections.
func New(selections []Selection, usingDefaultModel bool) (State, error) {
	derived, err := Derive(nil, selections)
	if err != nil {
		return State{}, err
	}
	return State{
		Slots:             derived,
		Selections:        cloneSelections(selections),
		UsingDefaultModel: usingDefaultModel,
	}, nil
}

// Derive expands selections into contiguous slots 1..N in list order.
// Slots whose index already existed in prev keep their chunks, final text,
// phase and epoch; new indices start idle and empty.
func Derive(prev []Slot, selections []Selection) ([]Slot, error) {
	if len(selections) == 0 {
		return nil, ErrNoneSelected
	}

	total := 0
	for _, sel := range selections {
		if strings.TrimSpace(sel.ModelID) == "" {
			return nil, ErrEmptyModel
		}
		if sel.Count < 1 {
			return nil, fmt.Errorf("%w: %s has %d", ErrInvalidCount, sel.ModelID, sel.Count)
		}
		total += sel.Count
	}
	if total > MaxSlots {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySlots, total, MaxSlots)
	}

	out := make([]Slot, 0, total)
	for _, sel := range selections {
		for i := 0; i < sel.Count; i++ {
			index := len(out) + 1
			slot := Slot{Index: index, ModelID: sel.ModelID}
			if index <= len(prev) {
				old := prev[index-1]
				slot.Phase = old.Phase
				slot.Chunks = append([]string(nil), old.Chunks...)
				slot.FinalText = old.FinalText
				slot.Epoch = old.Epoch
			}
			out = append(out, slot)
		}
	}
	return out, nil
}

// Select replaces the selection list and re-derives the slots.
func Select(st State, selections []Selection, usingDefaultModel bool) (State, error) {
	derived, err := Derive(st.Slots, selections)
	if err != nil {
		return st, err
	}
	next := st.clone()
	next.Slots = derived
	next.Selections = cloneSelections(selections)
	next.UsingDefaultModel = usingDefaultModel
	return next, nil
}

// BeginGeneration marks the slot at index as generating with a fresh epoch
// and clears its previous output. Other slots are untouched.
func BeginGeneration(st State, index int) (State, Ticket, error) {
	pos := index - 1
	if pos < 0 || pos >= len(st.Slots) {
		return st, Ticket{}, fmt.Errorf("%w: %d", ErrNoSuchSlot, index)
	}

	next := st.clone()
	next.lastEpoch++
	slot := &next.Slots[pos]
	slot.Phase = Generating
	slot.Chunks = []string{}
	slot.FinalText = ""
	slot.Epoch = next.lastEpoch

	return next, Ticket{Lane: LaneGrid, Index: index, Epoch: slot.Epoch}, nil
}

// BeginLane starts a generation in the remix or social lane.
func BeginLane(st State, lane Lane, modelID string) (State, Ticket, error) {
	if lane == LaneGrid {
		return st, Ticket{}, fmt.Errorf("%w: grid is not a lane", ErrNoSuchSlot)
	}
	if modelID == "" {
		return st, Ticket{}, ErrEmptyModel
	}
	if lane == LaneRemix && st.Remix.IsGenerating() ||
		lane == LaneSocial && st.Social.IsGenerating() {
		return st, Ticket{}, fmt.Errorf("%w: %s", ErrLaneGenerating, lane)
	}

	next := st.clone()
	next.lastEpoch++
	fresh := Slot{
		Index:   1,
		ModelID: modelID,
		Phase:   Generating,
		Chunks:  []string{},
		Epoch:   next.lastEpoch,
	}
	if lane == LaneRemix {
		next.Remix = fresh
	} else {
		next.Social = fresh
	}
	return next, Ticket{Lane: lane, Index: 1, Epoch: fresh.Epoch}, nil
}

// AppendChunk adds a streamed fragment. It reports false, leaving st
// unchanged, when the ticket is stale.
func AppendChunk(st State, t Ticket, text string) (State, bool) {
	return st.apply(t, func(s *Slot) {
		s.Chunks = append(s.Chunks, text)
	})
}

// Finalize stores the complete text and settles the slot as Done.
func Finalize(st State, t Ticket, text string) (State, bool) {
	return st.apply(t, func(s *Slot) {
		s.Phase = Done
		s.FinalText = text
	})
}

// Fail settles the slot with a user-facing message. The message is shown
// as the slot's content, so it becomes both the last chunk and the final
// text.
func Fail(st State, t Ticket, message string) (State, bool) {
	return st.apply(t, func(s *Slot) {
		s.Phase = Failed
		s.Chunks = append(s.Chunks, message)
		s.FinalText = message
	})
}

// DeleteSlot removes the slot at index and shifts later slots down by one.
func DeleteSlot(st State, index int) (State, error) {
	if len(st.Slots) <= 1 {
		return st, ErrLastSlot
	}
	pos := index - 1
	if pos < 0 || pos >= len(st.Slots) {
		return st, fmt.Errorf("%w: %d", ErrNoSuchSlot, index)
	}

	next := st.clone()
	next.Slots = append(next.Slots[:pos], next.Slots[pos+1:]...)
	for i := pos; i < len(next.Slots); i++ {
		next.Slots[i].Index = i + 1
	}
	next.Selections = SelectionsFromSlots(next.Slots)
	return next, nil
}

// AddSlot appends an empty slot at N+1. An empty modelID reuses the model
// of the current last slot.
func AddSlot(st State, modelID string) (State, error) {
	if len(st.Slots) >= MaxSlots {
		return st, ErrSlotLimit
	}
	if modelID == "" {
		if len(st.Slots) == 0 {
			return st, ErrEmptyModel
		}
		modelID = st.Slots[len(st.Slots)-1].ModelID
	}

	next := st.clone()
	next.Slots = append(next.Slots, Slot{Index: len(next.Slots) + 1, ModelID: modelID})
	next.Selections = SelectionsFromSlots(next.Slots)
	next.UsingDefaultModel = false
	return next, nil
}

// Reset clears every slot and lane for a new chat. Tickets issued before
// the reset no longer match anything.
func Reset(st State) State {
	next := st.clone()
	for i := range next.Slots {
		next.Slots[i] = Slot{Index: i + 1, ModelID: next.Slots[i].ModelID}
	}
	next.Remix = Slot{}
	next.Social = Slot{}
	return next
}

// SelectionsFromSlots groups runs of equal model ids back into selections.
func SelectionsFromSlots(slots []Slot) []Selection {
	var out []Selection
	for _, s := range slots {
		if n := len(out); n > 0 && out[n-1].ModelID == s.ModelID {
			out[n-1].Count++
			continue
		}
		out = append(out, Selection{ModelID: s.ModelID, Count: 1})
	}
	return out
}

// TotalCount sums the selection counts.
func TotalCount(selections []Selection) int {
	total := 0
	for _, sel := range selections {
		total += sel.Count
	}
	return total
}

// ComputeAggregate derives the interface predicates from the slots.
func ComputeAggregate(slots []Slot, prompt string, selections []Selection, usingDefaultModel bool) AggregateState {
	var agg AggregateState
	allEmpty := true
	anyChunks := false

	for _, s := range slots {
		if s.IsGenerating() {
			agg.AnyGenerating = true
		}
		if len(s.Chunks) > 0 {
			anyChunks = true
		}
		if len(s.Chunks) > 0 || s.FinalText != "" {
			allEmpty = false
		}
	}

	agg.HeaderVisible = allEmpty && !agg.AnyGenerating && !usingDefaultModel
	agg.RemixEnabled = anyChunks && strings.TrimSpace(prompt) != "" && TotalCount(selections) >= 2
	return agg
}

// Aggregate is ComputeAggregate over st.
func (st State) Aggregate(prompt string) AggregateState {
	return ComputeAggregate(st.Slots, prompt, st.Selections, st.UsingDefaultModel)
}

// Slot returns the slot at index.
func (st State) Slot(index int) (Slot, bool) {
	if index < 1 || index > len(st.Slots) {
		return Slot{}, false
	}
	return cloneSlot(st.Slots[index-1]), true
}

// Lookup finds the slot a ticket refers to, wherever it now sits.
func (st State) Lookup(t Ticket) (Slot, bool) {
	switch t.Lane {
	case LaneRemix:
		if t.Epoch != 0 && st.Remix.Epoch == t.Epoch {
			return cloneSlot(st.Remix), true
		}
	case LaneSocial:
		if t.Epoch != 0 && st.Social.Epoch == t.Epoch {
			return cloneSlot(st.Social), true
		}
	default:
		if pos := st.findEpoch(t.Epoch); pos >= 0 {
			return cloneSlot(st.Slots[pos]), true
		}
	}
	return Slot{}, false
}

func (st State) findEpoch(epoch uint64) int {
	if epoch == 0 {
		return -1
	}
	for i, s := range st.Slots {
		if s.Epoch == epoch {
			return i
		}
	}
	return -1
}

// apply runs mutate on a copy of the ticket's slot if it is still
// generating under the same epoch.
func (st State) apply(t Ticket, mutate func(*Slot)) (State, bool) {
	if t.Epoch == 0 {
		return st, false
	}

	next := st.clone()
	var target *Slot
	switch t.Lane {
	case LaneRemix:
		target = &next.Remix
	case LaneSocial:
		target = &next.Social
	default:
		pos := st.findEpoch(t.Epoch)
		if pos < 0 {
			return st, false
		}
		target = &next.Slots[pos]
	}

	if target.Epoch != t.Epoch || !target.IsGenerating() {
		return st, false
	}
	mutate(target)
	return next, true
}

func (st State) clone() State {
	next := st
	next.Slots = cloneSlots(st.Slots)
	next.Selections = cloneSelections(st.Selections)
	next.Remix = cloneSlot(st.Remix)
	next.Social = cloneSlot(st.Social)
	return next
}

func cloneSelections(in []Selection) []Selection {
	if in == nil {
		return nil
	}
	return append([]Selection(nil), in...)
}
