// internal/slots/board.go
package slots

import "sync"

// Board owns a State shared by concurrent slot streams. Each method applies
// one operation under the lock and publishes the resulting snapshot.
type Board struct {
	mu      sync.Mutex
	state   State
	subs    map[int]chan State
	nextSub int
}

// NewBoard returns a Board holding st.
func NewBoard(st State) *Board {
	return &Board{
		state: st,
		subs:  make(map[int]chan State),
	}
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.clone()
}

// Subscribe returns a channel of snapshots published after every change.
// Slow subscribers miss intermediate snapshots instead of blocking writers.
// The returned func unsubscribes and closes the channel.
func (b *Board) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Update applies fn atomically. The state is replaced and published only
// when fn returns a nil error.
func (b *Board) Update(fn func(State) (State, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := fn(b.state)
	if err != nil {
		return err
	}
	b.state = next
	b.publishLocked()
	return nil
}

func (b *Board) Select(selections []Selection, usingDefaultModel bool) error {
	return b.Update(func(st State) (State, error) {
		return Select(st, selections, usingDefaultModel)
	})
}

func (b *Board) Begin(index int) (Ticket, error) {
	var ticket Ticket
	err := b.Update(func(st State) (State, error) {
		next, t, err := BeginGeneration(st, index)
		ticket = t
		return next, err
	})
	return ticket, err
}

// BeginAll starts every slot in one step, so observers never see a
// partially started grid.
func (b *Board) BeginAll() []Ticket {
	var tickets []Ticket
	_ = b.Update(func(st State) (State, error) {
		tickets = make([]Ticket, 0, len(st.Slots))
		for i := range st.Slots {
			next, t, err := BeginGeneration(st, i+1)
			if err != nil {
				return st, err
			}
			st = next
			tickets = append(tickets, t)
		}
		return st, nil
	})
	return tickets
}

func (b *Board) BeginLane(lane Lane, modelID string) (Ticket, error) {
	var ticket Ticket
	err := b.Update(func(st State) (State, error) {
		next, t, err := BeginLane(st, lane, modelID)
		ticket = t
		return next, err
	})
	return ticket, err
}

func (b *Board) Append(t Ticket, text string) bool {
	return b.guarded(func(st State) (State, bool) { return AppendChunk(st, t, text) })
}

func (b *Board) Finalize(t Ticket, text string) bool {
	return b.guarded(func(st State) (State, bool) { return Finalize(st, t, text) })
}

func (b *Board) Fail(t Ticket, message string) bool {
	return b.guarded(func(st State) (State, bool) { return Fail(st, t, message) })
}

func (b *Board) Delete(index int) error {
	return b.Update(func(st State) (State, error) { return DeleteSlot(st, index) })
}

func (b *Board) Add(modelID string) error {
	return b.Update(func(st State) (State, error) { return AddSlot(st, modelID) })
}

func (b *Board) Reset() {
	_ = b.Update(func(st State) (State, error) { return Reset(st), nil })
}

func (b *Board) guarded(fn func(State) (State, bool)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, ok := fn(b.state)
	if !ok {
		return false
	}
	b.state = next
	b.publishLocked()
	return true
}

func (b *Board) publishLocked() {
	for _, ch := range b.subs {
		select {
		case ch <- b.state.clone():
		default:
		}
	}
}
