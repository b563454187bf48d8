package completion

import (
	"context"
	"errors"
	"strings"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/quota"
	"github.com/yungbote/support-assistant/internal/modules/support/rules"
	"github.com/yungbote/support-assistant/internal/platform/httpx"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 300
	HistoryWindow      = 6

	completionConfidence = 0.8
)

const SystemPrompt = `You are a professional, friendly, and helpful customer support AI assistant.
You provide clear, accurate, and helpful responses to customer inquiries.
Always be polite, professional, and try to be as helpful as possible.
If you don't know something, suggest contacting human support.`

var ErrQuotaExceeded = errors.New("completion quota exceeded")

type Message struct {
	Role    string
	Content string
}

type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

type Completer interface {
	CreateCompletion(ctx context.Context, req CompletionRequest) (string, error)
}

type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Client struct {
	log       *logger.Logger
	completer Completer
	breaker   quota.Breaker
	opts      Options
}

func New(log *logger.Logger, completer Completer, breaker quota.Breaker, opts Options) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if breaker == nil {
		breaker = quota.NewMemory()
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Client{log: log, completer: completer, breaker: breaker, opts: opts}
}

func (c *Client) Breaker() quota.Breaker { return c.breaker }

// Available reports whether a Complete call could reach the upstream service.
func (c *Client) Available(ctx context.Context) bool {
	return c != nil && c.completer != nil && !c.breaker.Exceeded(ctx)
}

// Complete never returns nil. Any failure degrades to a canned message with source
// fallback; quota failures additionally trip the breaker for every later call.
func (c *Client) Complete(ctx context.Context, prompt string, history []Message) *support.ResponseResult {
	if c == nil || c.completer == nil {
		return support.NewResult(rules.TryAgain, support.SourceFallback, 0)
	}
	if c.breaker.Exceeded(ctx) {
		return support.NewResult(rules.Unavailable, support.SourceFallback, 0)
	}

	req := CompletionRequest{
		Model:       c.opts.Model,
		Messages:    BuildMessages(prompt, history),
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}
	text, err := c.completer.CreateCompletion(ctx, req)
	if err != nil {
		if IsQuotaError(err) {
			c.breaker.Trip(ctx, err.Error())
			c.log.Warn("completion quota exceeded, breaker tripped", "error", err)
			return support.NewResult(rules.Unavailable, support.SourceFallback, 0)
		}
		c.log.Warn("completion failed", "error", err)
		return support.NewResult(rules.TryAgain, support.SourceFallback, 0)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return support.NewResult(rules.TryAgain, support.SourceFallback, 0)
	}
	return support.NewResult(text, support.SourceCompletion, completionConfidence)
}

// BuildMessages is the persona, the last HistoryWindow turns, then the prompt.
func BuildMessages(prompt string, history []Message) []Message {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: SystemPrompt})
	for _, h := range history {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		role := h.Role
		if role != string(support.RoleAssistant) {
			role = string(support.RoleUser)
		}
		msgs = append(msgs, Message{Role: role, Content: h.Content})
	}
	msgs = append(msgs, Message{Role: string(support.RoleUser), Content: prompt})
	return msgs
}

func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}
	if sc, ok := httpx.StatusCode(err); ok && sc == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}
