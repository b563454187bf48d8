package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type Gorm struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGorm(db *gorm.DB, log *logger.Logger) *Gorm {
	if log == nil {
		log = logger.Nop()
	}
	return &Gorm{db: db, log: log.With("repo", "SupportStore")}
}

func (g *Gorm) EnsureSession(ctx context.Context, channel support.Channel, externalID string) (*support.Session, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("missing external id")
	}
	s := &support.Session{ID: uuid.New(), Channel: channel, ExternalID: externalID, CreatedAt: time.Now().UTC()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(s).Error
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	var out support.Session
	if err := g.db.WithContext(ctx).
		Where("channel = ? AND external_id = ?", channel, externalID).
		First(&out).Error; err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &out, nil
}

func (g *Gorm) GetSession(ctx context.Context, id uuid.UUID) (*support.Session, error) {
	var out support.Session
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gorm) Sessions(ctx context.Context) ([]*support.Session, error) {
	var out []*support.Session
	if err := g.db.WithContext(ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gorm) AppendTurn(ctx context.Context, turn *support.Turn) error {
	if turn == nil {
		return fmt.Errorf("nil turn")
	}
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&support.Session{}).Where("id = ?", turn.SessionID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrSessionNotFound
		}
		var maxSeq int64
		if err := tx.Model(&support.Turn{}).
			Where("session_id = ?", turn.SessionID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		turn.Seq = maxSeq + 1
		return tx.Create(turn).Error
	})
}

func (g *Gorm) Turns(ctx context.Context, sessionID uuid.UUID) ([]*support.Turn, error) {
	if _, err := g.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var out []*support.Turn
	if err := g.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gorm) AllTurns(ctx context.Context) ([]*support.Turn, error) {
	var out []*support.Turn
	if err := g.db.WithContext(ctx).Order("created_at ASC, seq ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gorm) AppendTicket(ctx context.Context, ticket *support.Ticket) error {
	if ticket == nil {
		return fmt.Errorf("nil ticket")
	}
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	// Number comes from the autoincrement column.
	ticket.Number = 0
	if err := g.db.WithContext(ctx).Create(ticket).Error; err != nil {
		g.log.Error("append ticket failed", "error", err)
		return fmt.Errorf("append ticket: %w", err)
	}
	return nil
}

func (g *Gorm) Tickets(ctx context.Context) ([]*support.Ticket, error) {
	var out []*support.Ticket
	if err := g.db.WithContext(ctx).Order("number ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
