package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/support-assistant/internal/domain/support"
)

type Memory struct {
	mu         sync.RWMutex
	sessions   map[uuid.UUID]*support.Session
	byExternal map[string]uuid.UUID
	order      []uuid.UUID
	turns      map[uuid.UUID][]*support.Turn
	allTurns   []*support.Turn
	tickets    []*support.Ticket
}

func NewMemory() *Memory {
	return &Memory{
		sessions:   map[uuid.UUID]*support.Session{},
		byExternal: map[string]uuid.UUID{},
		turns:      map[uuid.UUID][]*support.Turn{},
	}
}

func externalKey(channel support.Channel, externalID string) string {
	return string(channel) + "\x00" + externalID
}

func (m *Memory) EnsureSession(_ context.Context, channel support.Channel, externalID string) (*support.Session, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("missing external id")
	}
	key := externalKey(channel, externalID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byExternal[key]; ok {
		cp := *m.sessions[id]
		return &cp, nil
	}
	s := &support.Session{ID: uuid.New(), Channel: channel, ExternalID: externalID, CreatedAt: time.Now().UTC()}
	m.sessions[s.ID] = s
	m.byExternal[key] = s.ID
	m.order = append(m.order, s.ID)
	cp := *s
	return &cp, nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*support.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) Sessions(context.Context) ([]*support.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*support.Session, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.sessions[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) AppendTurn(_ context.Context, turn *support.Turn) error {
	if turn == nil {
		return fmt.Errorf("nil turn")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[turn.SessionID]; !ok {
		return ErrSessionNotFound
	}
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	turn.Seq = int64(len(m.turns[turn.SessionID]) + 1)
	cp := *turn
	m.turns[turn.SessionID] = append(m.turns[turn.SessionID], &cp)
	m.allTurns = append(m.allTurns, &cp)
	return nil
}

func (m *Memory) Turns(_ context.Context, sessionID uuid.UUID) ([]*support.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	return copyTurns(m.turns[sessionID]), nil
}

func (m *Memory) AllTurns(context.Context) ([]*support.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyTurns(m.allTurns), nil
}

func (m *Memory) AppendTicket(_ context.Context, ticket *support.Ticket) error {
	if ticket == nil {
		return fmt.Errorf("nil ticket")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	ticket.Number = int64(len(m.tickets) + 1)
	cp := *ticket
	m.tickets = append(m.tickets, &cp)
	return nil
}

func (m *Memory) Tickets(context.Context) ([]*support.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*support.Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error              { return nil }

// Turns are never mutated after append, so sharing the pointed-to values is safe; only the
// slice is copied.
func copyTurns(in []*support.Turn) []*support.Turn {
	out := make([]*support.Turn, len(in))
	copy(out, in)
	return out
}
