package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/platform/apierr"
)

var ErrSessionNotFound = fmt.Errorf("session %w", apierr.ErrNotFound)

// Store persists sessions, the append-only transcript and the ticket log.
type Store interface {
	// EnsureSession returns the session for (channel, externalID), creating it if needed.
	EnsureSession(ctx context.Context, channel support.Channel, externalID string) (*support.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*support.Session, error)
	Sessions(ctx context.Context) ([]*support.Session, error)

	// AppendTurn assigns the next per-session Seq.
	AppendTurn(ctx context.Context, turn *support.Turn) error
	Turns(ctx context.Context, sessionID uuid.UUID) ([]*support.Turn, error)
	AllTurns(ctx context.Context) ([]*support.Turn, error)

	// AppendTicket assigns the next ticket Number, starting at 1.
	AppendTicket(ctx context.Context, ticket *support.Ticket) error
	Tickets(ctx context.Context) ([]*support.Ticket, error)

	Ping(ctx context.Context) error
	Close() error
}
