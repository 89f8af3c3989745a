package database

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds the in-memory event log.
const DefaultMemoryCapacity = 500

// MemoryRecorder keeps the most recent events in a ring buffer.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool

	// ErrorOnNextCall is returned once by the next call, for error path tests.
	ErrorOnNextCall error
}

// NewMemoryRecorder creates a ring holding up to capacity events.
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryRecorder{events: make([]Event, capacity)}
}

func (m *MemoryRecorder) checkError() error {
	if m.ErrorOnNextCall != nil {
		err := m.ErrorOnNextCall
		m.ErrorOnNextCall = nil
		return err
	}
	return nil
}

// Record appends ev, overwriting the oldest event when full.
func (m *MemoryRecorder) Record(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if err := ev.normalize(); err != nil {
		return err
	}

	m.events[m.next] = ev
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (m *MemoryRecorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}

	size := m.next
	if m.full {
		size = len(m.events)
	}
	limit = clampLimit(limit)
	if limit > size {
		limit = size
	}

	out := make([]Event, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (m.next - 1 - i + len(m.events)) % len(m.events)
		out = append(out, m.events[idx])
	}
	return out, nil
}

// Len returns the number of stored events.
func (m *MemoryRecorder) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.full {
		return len(m.events)
	}
	return m.next
}

var _ Recorder = (*MemoryRecorder)(nil)
