package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/support-assistant/internal/modules/support/completion"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/httpx"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
	Timeout      time.Duration
	MaxRetries   int
}

// Client adapts the chat completions API to completion.Completer. Quota and rate-limit
// rejections surface as completion.ErrQuotaExceeded and are never retried.
type Client struct {
	log        *logger.Logger
	api        *goopenai.Client
	maxRetries int
}

var _ completion.Completer = (*Client)(nil)

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if log == nil {
		log = logger.Nop()
	}
	oc := goopenai.DefaultConfig(key)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		oc.BaseURL = base
	}
	if org := strings.TrimSpace(cfg.Organization); org != "" {
		oc.OrgID = org
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		log:        log.With("client", "OpenAIClient"),
		api:        goopenai.NewClientWithConfig(oc),
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (c *Client) CreateCompletion(ctx context.Context, req completion.CompletionRequest) (string, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	creq := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	backoff := 1 * time.Second
	start := time.Now()
	for attempt := 0; ; attempt++ {
		resp, err := c.api.CreateChatCompletion(ctx, creq)
		if err == nil {
			observability.Current().ObserveCompletion(req.Model, "ok", time.Since(start))
			if len(resp.Choices) == 0 {
				return "", nil
			}
			return resp.Choices[0].Message.Content, nil
		}

		err = classify(err)
		if errors.Is(err, completion.ErrQuotaExceeded) {
			observability.Current().ObserveCompletion(req.Model, "quota", time.Since(start))
			return "", err
		}
		if !httpx.IsRetryableError(err) || attempt >= c.maxRetries {
			observability.Current().ObserveCompletion(req.Model, "error", time.Since(start))
			return "", err
		}

		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("OpenAI request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if serr := httpx.Sleep(ctx, sleepFor); serr != nil {
			return "", serr
		}
		backoff *= 2
	}
}

func chatRole(role string) string {
	switch role {
	case goopenai.ChatMessageRoleSystem:
		return goopenai.ChatMessageRoleSystem
	case goopenai.ChatMessageRoleAssistant:
		return goopenai.ChatMessageRoleAssistant
	default:
		return goopenai.ChatMessageRoleUser
	}
}

type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string       { return fmt.Sprintf("openai http %d: %v", e.status, e.err) }
func (e *statusError) Unwrap() error       { return e.err }
func (e *statusError) HTTPStatusCode() int { return e.status }

// classify maps go-openai errors onto completion.ErrQuotaExceeded or a status-carrying
// error that httpx can judge for retries.
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || isQuotaCode(apiErr.Type) || isQuotaCode(fmt.Sprint(apiErr.Code)) {
			return fmt.Errorf("%w: %s", completion.ErrQuotaExceeded, apiErr.Message)
		}
		return &statusError{status: apiErr.HTTPStatusCode, err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", completion.ErrQuotaExceeded, reqErr.Err)
		}
		return &statusError{status: reqErr.HTTPStatusCode, err: err}
	}
	return err
}

func isQuotaCode(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "insufficient_quota" || s == "rate_limit_exceeded"
}
