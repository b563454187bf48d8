package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/analyzer"
	"github.com/yungbote/support-assistant/internal/modules/support/completion"
	"github.com/yungbote/support-assistant/internal/modules/support/rules"
	"github.com/yungbote/support-assistant/internal/modules/support/scripted"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/ctxutil"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

const (
	layerScripted   = "scripted"
	layerCompletion = "completion"
	layerRules      = "rules"

	outcomeAnswered = "answered"
	outcomeDeferred = "deferred"
	outcomeDegraded = "degraded"
	outcomeSkipped  = "skipped"
	outcomePanic    = "panic"
)

type TicketLog interface {
	AppendTicket(ctx context.Context, ticket *support.Ticket) error
}

type Request struct {
	Channel        support.Channel
	ConversationID string
	SessionID      uuid.UUID
	Text           string
	// Prior turns, oldest first, excluding Text.
	History []completion.Message
}

type Outcome struct {
	Result         support.ResponseResult
	Sentiment      support.Sentiment
	SentimentScore float64
	IntentTags     []string
	Language       string
	Ticket         *support.Ticket
	Duration       time.Duration
}

type Deps struct {
	Log        *logger.Logger
	Analyzer   *analyzer.Analyzer
	Scripted   *scripted.Client
	Completion *completion.Client
	Rules      *rules.Engine
	Tickets    TicketLog
	Alerts     *observability.Alerter
	Metrics    *observability.Metrics
}

type Resolver struct {
	log        *logger.Logger
	analyzer   *analyzer.Analyzer
	scripted   *scripted.Client
	completion *completion.Client
	rules      *rules.Engine
	tickets    TicketLog
	alerts     *observability.Alerter
	metrics    *observability.Metrics
}

func New(d Deps) *Resolver {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Analyzer == nil {
		d.Analyzer = analyzer.New(nil)
	}
	if d.Rules == nil {
		d.Rules = rules.New(nil)
	}
	return &Resolver{
		log:        d.Log.With("service", "Resolver"),
		analyzer:   d.Analyzer,
		scripted:   d.Scripted,
		completion: d.Completion,
		rules:      d.Rules,
		tickets:    d.Tickets,
		alerts:     d.Alerts,
		metrics:    d.Metrics,
	}
}

// Resolve runs scripted intent, completion, keyword rules and the final fallback in that
// order and always returns non-empty text. Negative messages raise exactly one ticket.
func (r *Resolver) Resolve(ctx context.Context, req Request) (out Outcome) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "support.resolve")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("resolver panic", append(ctxutil.LogFields(ctx), "panic", fmt.Sprint(rec))...)
			out.Result = *support.NewResult(rules.FinalFallback, support.SourceFallback, 0)
		}
		if out.Sentiment == "" {
			out.Sentiment = support.SentimentNeutral
		}
		out.Duration = time.Since(start)
		span.SetAttributes(
			attribute.String("support.channel", string(req.Channel)),
			attribute.String("support.source", string(out.Result.Source)),
			attribute.String("support.sentiment", string(out.Sentiment)),
			attribute.String("support.language", out.Language),
		)
		r.metrics.ObserveResolution(string(req.Channel), string(out.Result.Source), string(out.Sentiment), out.Duration)
	}()

	out.Sentiment, out.SentimentScore = r.analyzer.AnalyzeSentiment(req.Text)
	out.IntentTags = analyzer.ExtractIntentTags(req.Text)
	out.Language = r.analyzer.DetectLanguage(req.Text)

	res := r.chain(ctx, req, out.Language)
	if res == nil || res.Text == "" {
		res = support.NewResult(rules.FinalFallback, support.SourceFallback, 0)
	}
	out.Result = *res

	if out.Sentiment == support.SentimentNegative {
		if tk := r.raiseTicket(ctx, req, out); tk != nil {
			out.Ticket = tk
			out.Result.Text += fmt.Sprintf(rules.TicketNoticeFormat, tk.Number)
		}
	}
	return out
}

func (r *Resolver) chain(ctx context.Context, req Request, language string) *support.ResponseResult {
	if res := r.tryLayer(ctx, layerScripted, func(ctx context.Context) *support.ResponseResult {
		if r.scripted == nil || !r.scripted.Enabled() {
			return nil
		}
		return r.scripted.Query(ctx, scripted.SessionKey(req.Channel, req.ConversationID), req.Text, language)
	}); res != nil {
		return res
	}

	// A degraded completion answer only wins when no rule matches.
	var degraded *support.ResponseResult
	if r.completion != nil && r.completion.Available(ctx) {
		res := r.tryLayer(ctx, layerCompletion, func(ctx context.Context) *support.ResponseResult {
			return r.completion.Complete(ctx, req.Text, req.History)
		})
		switch {
		case res == nil:
		case res.Source == support.SourceCompletion:
			return res
		default:
			degraded = res
		}
		if !r.completion.Available(ctx) {
			r.onQuotaTripped(ctx)
		}
	} else {
		r.metrics.ObserveLayer(layerCompletion, outcomeSkipped, 0)
	}

	if res := r.tryLayer(ctx, layerRules, func(context.Context) *support.ResponseResult {
		return r.rules.Match(req.Text)
	}); res != nil {
		return res
	}
	if degraded != nil {
		return degraded
	}
	return support.NewResult(rules.FinalFallback, support.SourceFallback, 0)
}

// tryLayer isolates one layer: a panic reads as "no answer" so the chain moves on.
func (r *Resolver) tryLayer(ctx context.Context, layer string, fn func(context.Context) *support.ResponseResult) (res *support.ResponseResult) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "support.layer."+layer)
	outcome := outcomeDeferred
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("resolution layer panic", append(ctxutil.LogFields(ctx), "layer", layer, "panic", fmt.Sprint(rec))...)
			span.SetStatus(codes.Error, "panic")
			res = nil
			outcome = outcomePanic
		}
		span.SetAttributes(attribute.String("support.layer.outcome", outcome))
		span.End()
		r.metrics.ObserveLayer(layer, outcome, time.Since(start))
	}()
	res = fn(ctx)
	switch {
	case res == nil:
	case res.Source == support.SourceFallback:
		outcome = outcomeDegraded
	default:
		outcome = outcomeAnswered
	}
	return res
}

func (r *Resolver) raiseTicket(ctx context.Context, req Request, out Outcome) *support.Ticket {
	if r.tickets == nil {
		return nil
	}
	tk := support.NewTicket(req.SessionID, req.Channel, req.Text, out.Sentiment, out.IntentTags)
	if err := r.tickets.AppendTicket(ctx, tk); err != nil {
		r.log.Error("support ticket append failed", append(ctxutil.LogFields(ctx), "error", err)...)
		return nil
	}
	r.metrics.IncTicket()
	r.log.Info("support ticket created", "ticket", tk.Number, "channel", req.Channel, "priority", tk.Priority)
	r.alerts.Notify(ctx, fmt.Sprintf("ticket-%d", tk.Number), "Support ticket created", map[string]any{
		"number":   tk.Number,
		"channel":  tk.Channel,
		"priority": tk.Priority,
		"tags":     out.IntentTags,
	})
	return tk
}

func (r *Resolver) onQuotaTripped(ctx context.Context) {
	r.metrics.SetQuotaTripped(true)
	st := r.completion.Breaker().Status(ctx)
	r.alerts.Notify(ctx, "completion-quota", "Completion quota exceeded", map[string]any{
		"reason": st.Reason,
	})
}
