package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type Status struct {
	Exceeded  bool       `json:"exceeded"`
	Reason    string     `json:"reason,omitempty"`
	TrippedAt *time.Time `json:"tripped_at,omitempty"`
}

// Breaker is the sticky completion circuit breaker. Once tripped it stays open until an
// operator calls Reset; there is no half-open state.
type Breaker interface {
	Exceeded(ctx context.Context) bool
	Trip(ctx context.Context, reason string)
	Reset(ctx context.Context)
	Status(ctx context.Context) Status
}

type Memory struct {
	exceeded atomic.Bool

	mu        sync.Mutex
	reason    string
	trippedAt time.Time
}

var (
	_ Breaker = (*Memory)(nil)
	_ Breaker = (*Redis)(nil)
)

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Exceeded(context.Context) bool { return m.exceeded.Load() }

// Trip keeps the first reason; later trips of an open breaker are no-ops.
func (m *Memory) Trip(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exceeded.Load() {
		return
	}
	m.reason = reason
	m.trippedAt = time.Now().UTC()
	m.exceeded.Store(true)
}

func (m *Memory) Reset(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exceeded.Store(false)
	m.reason = ""
	m.trippedAt = time.Time{}
}

func (m *Memory) Status(context.Context) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{Exceeded: m.exceeded.Load(), Reason: m.reason}
	if st.Exceeded {
		t := m.trippedAt
		st.TrippedAt = &t
	}
	return st
}

func (m *Memory) set(st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reason = st.Reason
	if st.TrippedAt != nil {
		m.trippedAt = *st.TrippedAt
	} else {
		m.trippedAt = time.Now().UTC()
	}
	m.exceeded.Store(true)
}
