// internal/models/model.go
package models

import (
	"context"
	"sync"
)

// Model is the interface all model backends must implement
type Model interface {
	// Info returns display information about the backend
	Info() ModelInfo

	// Send streams the answer to req. The channel is closed after a chunk
	// with Done or Error set.
	Send(ctx context.Context, req ChatRequest) <-chan Chunk

	// Stop interrupts every in-progress generation
	Stop()

	// Status returns the current status of the model
	Status() ModelStatus

	// SetStatus updates the model status
	SetStatus(status ModelStatus)
}

// BaseModel provides common functionality for all models. A backend serves
// many requests at once, so in-flight generations are tracked by id.
type BaseModel struct {
	info ModelInfo

	mu       sync.Mutex
	status   ModelStatus
	inflight map[uint64]context.CancelFunc
	nextID   uint64
}

func NewBaseModel(info ModelInfo) BaseModel {
	return BaseModel{
		info:     info,
		status:   StatusIdle,
		inflight: make(map[uint64]context.CancelFunc),
	}
}

func (m *BaseModel) Info() ModelInfo {
	return m.info
}

func (m *BaseModel) Status() ModelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *BaseModel) SetStatus(status ModelStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// begin registers a generation and returns its context and a release func
// that must be called when the generation ends.
func (m *BaseModel) begin(ctx context.Context) (context.Context, func()) {
	genCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.inflight == nil {
		m.inflight = make(map[uint64]context.CancelFunc)
	}
	id := m.nextID
	m.nextID++
	m.inflight[id] = cancel
	m.status = StatusResponding
	m.mu.Unlock()

	return genCtx, func() {
		cancel()
		m.mu.Lock()
		delete(m.inflight, id)
		if len(m.inflight) == 0 && m.status == StatusResponding {
			m.status = StatusIdle
		}
		m.mu.Unlock()
	}
}

func (m *BaseModel) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cancel := range m.inflight {
		cancel()
	}
}

// sendChunk delivers c unless ctx is done first.
func sendChunk(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
