package slots

import (
	"sync"
	"testing"
)

func TestBoardConcurrentStreams(t *testing.T) {
	st, err := New([]Selection{{"m", 3}}, false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	board := NewBoard(st)
	tickets := board.BeginAll()
	if len(tickets) != 3 {
		t.Fatalf("Expected 3 tickets, got %d", len(tickets))
	}

	var wg sync.WaitGroup
	for _, ticket := range tickets {
		wg.Add(1)
		go func(tk Ticket) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				board.Append(tk, "x")
			}
			board.Finalize(tk, "done")
		}(ticket)
	}
	wg.Wait()

	snap := board.Snapshot()
	for _, s := range snap.Slots {
		if len(s.Chunks) != 50 {
			t.Errorf("Slot %d: expected 50 chunks, got %d", s.Index, len(s.Chunks))
		}
		if s.Phase != Done {
			t.Errorf("Slot %d: expected done, got %s", s.Index, s.Phase)
		}
	}
	if snap.Aggregate("hi").AnyGenerating {
		t.Error("Expected nothing generating")
	}
}

func TestBoardResetDropsLateWrites(t *testing.T) {
	st, _ := New([]Selection{{"m", 1}}, false)
	board := NewBoard(st)

	ticket, err := board.Begin(1)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	board.Reset()

	if board.Append(ticket, "late") {
		t.Error("Expected append after reset to be rejected")
	}
	if board.Finalize(ticket, "late") {
		t.Error("Expected finalize after reset to be rejected")
	}
	if s, _ := board.Snapshot().Slot(1); s.HasContent() {
		t.Errorf("Expected empty slot, got %+v", s)
	}
}

func TestBoardSubscribe(t *testing.T) {
	st, _ := New([]Selection{{"m", 2}}, false)
	board := NewBoard(st)

	updates, cancel := board.Subscribe(4)
	defer cancel()

	if err := board.Add("n"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	snap := <-updates
	if len(snap.Slots) != 3 {
		t.Errorf("Expected 3 slots in snapshot, got %d", len(snap.Slots))
	}

	// Rejected operations do not publish.
	if err := board.Delete(7); err == nil {
		t.Error("Expected delete of missing slot to fail")
	}
	select {
	case s := <-updates:
		t.Errorf("Expected no snapshot, got %+v", s)
	default:
	}
}

func TestBoardSubscribeDropsWhenFull(t *testing.T) {
	st, _ := New([]Selection{{"m", 1}}, false)
	board := NewBoard(st)

	_, cancel := board.Subscribe(1)
	ticket, _ := board.Begin(1)
	for i := 0; i < 10; i++ {
		board.Append(ticket, "x")
	}
	cancel()
	cancel()

	if s, _ := board.Snapshot().Slot(1); len(s.Chunks) != 10 {
		t.Errorf("Expected writers not blocked by a full subscriber, got %d chunks", len(s.Chunks))
	}
}
