package support

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

const TicketStatusOpen = "open"

// Ticket is an escalation raised as a side effect of a negative-sentiment turn. The log is
// append-only; Number is assigned by the store at append time.
type Ticket struct {
	Number int64     `gorm:"primaryKey;autoIncrement" json:"number"`
	ID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"id"`

	SessionID   uuid.UUID      `gorm:"type:uuid;index" json:"session_id"`
	Channel     Channel        `gorm:"type:text" json:"channel"`
	UserMessage string         `gorm:"type:text;not null" json:"user_message"`
	Sentiment   Sentiment      `gorm:"type:text;not null" json:"sentiment"`
	IntentTags  datatypes.JSON `gorm:"type:json" json:"intent_tags"`
	Priority    Priority       `gorm:"type:text;not null" json:"priority"`
	Status      string         `gorm:"type:text;not null" json:"status"`

	CreatedAt time.Time `gorm:"not null;index" json:"timestamp"`
}

func (Ticket) TableName() string { return "support_ticket" }

func PriorityFor(s Sentiment) Priority {
	if s == SentimentNegative {
		return PriorityHigh
	}
	return PriorityMedium
}

func NewTicket(sessionID uuid.UUID, channel Channel, message string, sentiment Sentiment, tags []string) *Ticket {
	return &Ticket{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Channel:     channel,
		UserMessage: message,
		Sentiment:   sentiment,
		IntentTags:  TagsJSON(tags),
		Priority:    PriorityFor(sentiment),
		Status:      TicketStatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
}

func TagsJSON(tags []string) datatypes.JSON {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

func DecodeTags(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
