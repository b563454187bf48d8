package analytics

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/analyzer"
)

type Report struct {
	GeneratedAt       time.Time          `json:"generated_at"`
	Sessions          int                `json:"sessions"`
	TotalMessages     int                `json:"total_messages"`
	UserMessages      int                `json:"user_messages"`
	AssistantMessages int                `json:"assistant_messages"`
	BySource          map[string]int     `json:"source_counts"`
	BySentiment       map[string]int     `json:"sentiment_counts"`
	ByIntent          map[string]int     `json:"intent_counts"`
	ByChannel         map[string]int     `json:"channel_counts"`
	ByLanguage        map[string]int     `json:"language_counts"`
	AvgResponseTimeMs float64            `json:"avg_response_time_ms"`
	AvgConfidence     map[string]float64 `json:"avg_confidence"`
	Tickets           int                `json:"support_tickets"`
	EscalationRate    float64            `json:"escalation_rate"`
}

type Filter struct {
	Channel   support.Channel
	SessionID uuid.UUID
}

func (f Filter) Match(channel support.Channel, sessionID uuid.UUID) bool {
	if f.Channel != "" && f.Channel != channel {
		return false
	}
	if f.SessionID != uuid.Nil && f.SessionID != sessionID {
		return false
	}
	return true
}

type Source interface {
	AllTurns(ctx context.Context) ([]*support.Turn, error)
	Tickets(ctx context.Context) ([]*support.Ticket, error)
}

func Generate(ctx context.Context, src Source, f Filter) (*Report, error) {
	turns, err := src.AllTurns(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := src.Tickets(ctx)
	if err != nil {
		return nil, err
	}
	return Build(turns, tickets, f), nil
}

// Build aggregates turns and tickets. Sentiment and intent counts come from user turns,
// source counts and timings from assistant turns.
func Build(turns []*support.Turn, tickets []*support.Ticket, f Filter) *Report {
	rep := &Report{
		GeneratedAt:   time.Now().UTC(),
		BySource:      map[string]int{},
		BySentiment:   map[string]int{},
		ByIntent:      map[string]int{},
		ByChannel:     map[string]int{},
		ByLanguage:    map[string]int{},
		AvgConfidence: map[string]float64{},
	}
	sessions := map[uuid.UUID]struct{}{}
	var (
		rtSum   int64
		rtCount int
	)
	confSum := map[string]float64{}

	for _, t := range turns {
		if t == nil || !f.Match(t.Channel, t.SessionID) {
			continue
		}
		sessions[t.SessionID] = struct{}{}
		rep.TotalMessages++
		rep.ByChannel[string(t.Channel)]++
		switch t.Role {
		case support.RoleUser:
			rep.UserMessages++
			label := support.SentimentNeutral
			if t.Sentiment != nil {
				label = *t.Sentiment
			}
			rep.BySentiment[string(label)]++
			tags := support.DecodeTags(t.IntentTags)
			if tags == nil {
				tags = analyzer.ExtractIntentTags(t.Content)
			}
			for _, tag := range tags {
				rep.ByIntent[tag]++
			}
			if t.Language != nil && *t.Language != "" {
				rep.ByLanguage[*t.Language]++
			}
		case support.RoleAssistant:
			rep.AssistantMessages++
			src := string(support.SourceFallback)
			if t.Source != nil {
				src = string(*t.Source)
			}
			rep.BySource[src]++
			if t.Confidence != nil {
				confSum[src] += *t.Confidence
			}
			if t.ResponseTimeMs != nil {
				rtSum += *t.ResponseTimeMs
				rtCount++
			}
		}
	}
	for src, n := range rep.BySource {
		rep.AvgConfidence[src] = round2(confSum[src] / float64(n))
	}
	if rtCount > 0 {
		rep.AvgResponseTimeMs = round2(float64(rtSum) / float64(rtCount))
	}
	for _, tk := range tickets {
		if tk != nil && f.Match(tk.Channel, tk.SessionID) {
			rep.Tickets++
		}
	}
	if rep.UserMessages > 0 {
		rep.EscalationRate = round2(float64(rep.Tickets) / float64(rep.UserMessages))
	}
	rep.Sessions = len(sessions)
	return rep
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
