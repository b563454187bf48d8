package conversation

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/support-assistant/internal/data/store"
	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/completion"
	"github.com/yungbote/support-assistant/internal/modules/support/resolver"
	"github.com/yungbote/support-assistant/internal/platform/apierr"
	"github.com/yungbote/support-assistant/internal/platform/ctxutil"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

const MaxMessageLen = 4000

var (
	ErrEmptyMessage   = fmt.Errorf("message text is empty: %w", apierr.ErrInvalidArgument)
	ErrMessageTooLong = fmt.Errorf("message text exceeds %d characters: %w", MaxMessageLen, apierr.ErrInvalidArgument)
	ErrUnknownAction  = fmt.Errorf("unknown quick action: %w", apierr.ErrInvalidArgument)
)

// Exchange is one user turn and the assistant turn that answered it.
type Exchange struct {
	Session   *support.Session `json:"session"`
	User      *support.Turn    `json:"user"`
	Assistant *support.Turn    `json:"assistant"`
	Outcome   resolver.Outcome `json:"-"`
}

type Resolver interface {
	Resolve(ctx context.Context, req resolver.Request) resolver.Outcome
}

type Service struct {
	log      *logger.Logger
	store    store.Store
	resolver Resolver

	// Striped so the lock table stays fixed however many sessions the process sees.
	locks [lockStripes]sync.Mutex
}

const lockStripes = 256

func NewService(log *logger.Logger, st store.Store, r Resolver) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		log:      log.With("service", "ConversationService"),
		store:    st,
		resolver: r,
	}
}

// Open returns the session for a transport identity, creating it on first contact.
func (s *Service) Open(ctx context.Context, channel support.Channel, externalID string) (*support.Session, error) {
	return s.store.EnsureSession(ctx, channel, externalID)
}

func (s *Service) NewWebSession(ctx context.Context) (*support.Session, error) {
	return s.Open(ctx, support.ChannelWeb, uuid.NewString())
}

func (s *Service) Session(ctx context.Context, id uuid.UUID) (*support.Session, error) {
	return s.store.GetSession(ctx, id)
}

func (s *Service) Sessions(ctx context.Context) ([]*support.Session, error) {
	return s.store.Sessions(ctx)
}

func (s *Service) History(ctx context.Context, sessionID uuid.UUID) ([]*support.Turn, error) {
	return s.store.Turns(ctx, sessionID)
}

// Send records the user turn, resolves a reply against the prior history and records the
// assistant turn. Turns of one session are serialised; sessions proceed independently.
func (s *Service) Send(ctx context.Context, sessionID uuid.UUID, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}

	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	prior, err := s.store.Turns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	start := time.Now()
	out := s.resolver.Resolve(ctx, resolver.Request{
		Channel:        sess.Channel,
		ConversationID: sess.ExternalID,
		SessionID:      sess.ID,
		Text:           text,
		History:        toMessages(prior),
	})
	elapsed := time.Since(start)

	sentiment := out.Sentiment
	score := out.SentimentScore
	var language *string
	if out.Language != "" {
		lang := out.Language
		language = &lang
	}
	userTurn := &support.Turn{
		SessionID:      sess.ID,
		Channel:        sess.Channel,
		Role:           support.RoleUser,
		Content:        text,
		Sentiment:      &sentiment,
		SentimentScore: &score,
		IntentTags:     support.TagsJSON(out.IntentTags),
		Language:       language,
		CreatedAt:      start.UTC(),
	}
	if err := s.store.AppendTurn(ctx, userTurn); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	source := out.Result.Source
	confidence := out.Result.Confidence
	ms := elapsed.Milliseconds()
	assistantTurn := &support.Turn{
		SessionID:      sess.ID,
		Channel:        sess.Channel,
		Role:           support.RoleAssistant,
		Content:        out.Result.Text,
		Source:         &source,
		Confidence:     &confidence,
		ResponseTimeMs: &ms,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.AppendTurn(ctx, assistantTurn); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}

	s.log.Debug("turn resolved", append(ctxutil.LogFields(ctx),
		"session_id", sess.ID.String(),
		"source", source,
		"sentiment", sentiment,
		"response_ms", ms,
	)...)
	return &Exchange{Session: sess, User: userTurn, Assistant: assistantTurn, Outcome: out}, nil
}

// SendExternal is Send keyed by the transport identity instead of the session id.
func (s *Service) SendExternal(ctx context.Context, channel support.Channel, externalID, text string) (*Exchange, error) {
	sess, err := s.Open(ctx, channel, externalID)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, sess.ID, text)
}

func (s *Service) Quick(ctx context.Context, sessionID uuid.UUID, action string) (*Exchange, error) {
	prompt, ok := QuickPrompt(action)
	if !ok {
		return nil, ErrUnknownAction
	}
	return s.Send(ctx, sessionID, prompt)
}

func (s *Service) lockFor(id uuid.UUID) *sync.Mutex {
	return &s.locks[lockStripe(id)]
}

func lockStripe(id uuid.UUID) int {
	return int(binary.BigEndian.Uint32(id[12:]) % lockStripes)
}

func toMessages(turns []*support.Turn) []completion.Message {
	out := make([]completion.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, completion.Message{Role: string(t.Role), Content: t.Content})
	}
	return out
}
