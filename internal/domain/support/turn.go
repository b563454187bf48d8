package support

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Turn is one user or assistant message. Turns are appended to a session and never
// mutated afterwards.
type Turn struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	Seq       int64     `gorm:"not null;index" json:"seq"`
	Channel   Channel   `gorm:"type:text;not null" json:"channel"`

	Role    Role   `gorm:"type:text;not null" json:"role"`
	Content string `gorm:"type:text;not null" json:"content"`

	Sentiment      *Sentiment     `gorm:"type:text" json:"sentiment,omitempty"`
	SentimentScore *float64       `json:"sentiment_score,omitempty"`
	IntentTags     datatypes.JSON `gorm:"type:json" json:"intent_tags,omitempty"`
	Language       *string        `gorm:"type:text" json:"language,omitempty"`

	Source         *Source  `gorm:"type:text" json:"source,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	ResponseTimeMs *int64   `json:"response_time_ms,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"timestamp"`
}

func (Turn) TableName() string { return "support_turn" }

// Session is the conversation identity turns hang off. ExternalID is the transport's own
// identifier (telegram chat id, web session id).
type Session struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Channel    Channel   `gorm:"type:text;not null;uniqueIndex:idx_support_session_ext" json:"channel"`
	ExternalID string    `gorm:"type:text;not null;uniqueIndex:idx_support_session_ext" json:"external_id"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (Session) TableName() string { return "support_session" }
