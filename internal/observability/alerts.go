package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/support-assistant/internal/platform/ctxutil"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

// Mailer delivers an alert by email.
type Mailer interface {
	SendAlert(ctx context.Context, title string, fields map[string]any) error
}

// Alerter posts operator alerts (breaker trips, escalations) to a JSON webhook and, when a
// mailer is configured, by email. Alerts are throttled per key.
type Alerter struct {
	log         *logger.Logger
	webhook     string
	mailer      Mailer
	minInterval time.Duration
	client      *http.Client

	mu   sync.Mutex
	last map[string]time.Time
}

func NewAlerter(log *logger.Logger, webhook string, minInterval time.Duration, mailer Mailer) *Alerter {
	webhook = strings.TrimSpace(webhook)
	if webhook == "" && mailer == nil {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	if minInterval <= 0 {
		minInterval = 5 * time.Minute
	}
	return &Alerter{
		log:         log.With("service", "Alerter"),
		webhook:     webhook,
		mailer:      mailer,
		minInterval: minInterval,
		client:      &http.Client{Timeout: 5 * time.Second},
		last:        map[string]time.Time{},
	}
}

// Notify sends in the background and never blocks the caller.
func (a *Alerter) Notify(ctx context.Context, key, title string, fields map[string]any) {
	if a == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := a.Send(ctx, key, title, fields); err != nil {
			a.log.Warn("alert post failed", "key", key, "error", err)
		}
	}()
}

// Send returns nil without posting when key is throttled.
func (a *Alerter) Send(ctx context.Context, key, title string, fields map[string]any) error {
	if a == nil {
		return nil
	}
	if !a.allow(key) {
		return nil
	}
	var errs []error
	if a.webhook != "" {
		if err := a.post(ctx, key, title, fields); err != nil {
			errs = append(errs, err)
		}
	}
	if a.mailer != nil {
		if err := a.mailer.SendAlert(ctx, title, fields); err != nil {
			errs = append(errs, fmt.Errorf("alert email: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *Alerter) post(ctx context.Context, key, title string, fields map[string]any) error {
	payload := map[string]any{
		"title":     title,
		"key":       key,
		"fields":    fields,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			payload["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			payload["request_id"] = td.RequestID
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook status %d", resp.StatusCode)
	}
	a.log.Info("alert sent", "key", key, "status", resp.StatusCode)
	return nil
}

func (a *Alerter) allow(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	last := a.last[key]
	if !last.IsZero() && time.Since(last) < a.minInterval {
		return false
	}
	a.last[key] = time.Now()
	return true
}
