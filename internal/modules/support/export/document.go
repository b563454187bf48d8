package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/analytics"
	"github.com/yungbote/support-assistant/internal/platform/apierr"
)

var ErrNothingToExport = fmt.Errorf("no conversation turns to export: %w", apierr.ErrNotFound)

type Metadata struct {
	ExportTimestamp time.Time `json:"export_timestamp"`
	TotalMessages   int       `json:"total_messages"`
	SessionDuration string    `json:"session_duration"`
	Platform        string    `json:"platform"`
	Channel         string    `json:"channel,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
}

// Document is the full export: transcript, aggregate statistics and the ticket log.
type Document struct {
	Metadata   Metadata          `json:"conversation_metadata"`
	Messages   []*support.Turn   `json:"messages"`
	Statistics *analytics.Report `json:"statistics"`
	Tickets    []*support.Ticket `json:"support_tickets"`
}

type Source interface {
	analytics.Source
}

// Build collects the turns and tickets matching f. It fails with ErrNothingToExport when
// no turn matches.
func Build(ctx context.Context, src Source, f analytics.Filter, platform string) (*Document, error) {
	turns, err := src.AllTurns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	tickets, err := src.Tickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}

	doc := &Document{
		Messages:   []*support.Turn{},
		Statistics: analytics.Build(turns, tickets, f),
		Tickets:    []*support.Ticket{},
	}
	var first, last time.Time
	for _, t := range turns {
		if t == nil || !f.Match(t.Channel, t.SessionID) {
			continue
		}
		doc.Messages = append(doc.Messages, t)
		if first.IsZero() || t.CreatedAt.Before(first) {
			first = t.CreatedAt
		}
		if t.CreatedAt.After(last) {
			last = t.CreatedAt
		}
	}
	if len(doc.Messages) == 0 {
		return nil, ErrNothingToExport
	}
	for _, tk := range tickets {
		if tk != nil && f.Match(tk.Channel, tk.SessionID) {
			doc.Tickets = append(doc.Tickets, tk)
		}
	}

	doc.Metadata = Metadata{
		ExportTimestamp: time.Now().UTC(),
		TotalMessages:   len(doc.Messages),
		SessionDuration: "N/A",
		Platform:        platform,
		Channel:         string(f.Channel),
	}
	if f.SessionID != uuid.Nil {
		doc.Metadata.SessionID = f.SessionID.String()
		doc.Metadata.SessionDuration = last.Sub(first).Round(time.Second).String()
	}
	return doc, nil
}

// Encode renders the document as indented JSON without HTML escaping.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return buf.Bytes(), nil
}

func FileName(now time.Time) string {
	return fmt.Sprintf("support_export_%s.json", now.UTC().Format("20060102_150405"))
}
