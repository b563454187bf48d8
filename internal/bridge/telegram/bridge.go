package telegram

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/conversation"
	"github.com/yungbote/support-assistant/internal/modules/support/rules"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/ctxutil"
	"github.com/yungbote/support-assistant/internal/platform/httpx"
	"github.com/yungbote/support-assistant/internal/platform/logger"
	tg "github.com/yungbote/support-assistant/internal/platform/telegram"
)

type API interface {
	GetMe(ctx context.Context) (*tg.User, error)
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]tg.Update, int64, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Conversations interface {
	SendExternal(ctx context.Context, channel support.Channel, externalID, text string) (*conversation.Exchange, error)
}

type Options struct {
	PollTimeout  time.Duration
	ErrorBackoff time.Duration
	MaxBackoff   time.Duration
}

// Bridge long-polls the Bot API and answers each text message through the conversation
// service. Updates are handled one at a time in arrival order.
type Bridge struct {
	log     *logger.Logger
	api     API
	conv    Conversations
	metrics *observability.Metrics
	opts    Options

	offset atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	botName string
	err     error
}

func New(log *logger.Logger, api API, conv Conversations, metrics *observability.Metrics, opts Options) *Bridge {
	if log == nil {
		log = logger.Nop()
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = tg.DefaultPollTimeout
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 5 * time.Second
	}
	if opts.MaxBackoff < opts.ErrorBackoff {
		opts.MaxBackoff = 60 * time.Second
		if opts.MaxBackoff < opts.ErrorBackoff {
			opts.MaxBackoff = opts.ErrorBackoff
		}
	}
	return &Bridge{
		log:     log.With("component", "TelegramBridge"),
		api:     api,
		conv:    conv,
		metrics: metrics,
		opts:    opts,
	}
}

var ErrAlreadyRunning = errors.New("telegram bridge already running")

// Start begins polling in the background until Stop is called or ctx is cancelled. The
// token is verified inside the loop: transient getMe failures are retried with backoff and
// only a rejected token disables the bridge (see Err).
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done != nil {
		return ErrAlreadyRunning
	}
	b.err = nil
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.loop(runCtx, b.done)
	return nil
}

// Stop cancels the poll loop and waits for the in-flight update to finish.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (b *Bridge) Offset() int64 { return b.offset.Load() }

func (b *Bridge) BotName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.botName
}

// Err is set when the Bot API rejected the token and the bridge gave up.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// IsTokenRejected reports Bot API answers that no retry can fix.
func IsTokenRejected(err error) bool {
	var apiErr *tg.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusNotFound
}

// connect retries getMe until it succeeds, the token is rejected or ctx ends.
func (b *Bridge) connect(ctx context.Context) bool {
	backoff := b.opts.ErrorBackoff
	for ctx.Err() == nil {
		me, err := b.api.GetMe(ctx)
		if err == nil {
			b.mu.Lock()
			b.botName = me.Username
			b.mu.Unlock()
			b.log.Info("Telegram bot connected", "bot", me.Username)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if IsTokenRejected(err) {
			b.mu.Lock()
			b.err = err
			b.mu.Unlock()
			b.log.Error("Telegram token rejected, bridge disabled", "error", err.Error())
			return false
		}
		b.metrics.IncBridgePollError()
		sleepFor := httpx.JitterSleep(backoff)
		b.log.Warn("Telegram getMe failed, retrying", "error", err.Error(), "sleep", sleepFor.String())
		if httpx.Sleep(ctx, sleepFor) != nil {
			return false
		}
		backoff = b.nextBackoff(backoff)
	}
	return false
}

func (b *Bridge) nextBackoff(cur time.Duration) time.Duration {
	cur *= 2
	if cur > b.opts.MaxBackoff {
		cur = b.opts.MaxBackoff
	}
	return cur
}

func (b *Bridge) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if !b.connect(ctx) {
		b.log.Info("Telegram bridge stopped before polling")
		return
	}
	backoff := b.opts.ErrorBackoff
	for ctx.Err() == nil {
		_, err := b.RunOnce(ctx)
		if err == nil {
			backoff = b.opts.ErrorBackoff
			continue
		}
		if ctx.Err() != nil {
			break
		}
		b.metrics.IncBridgePollError()
		sleepFor := httpx.JitterSleep(backoff)
		b.log.Warn("Telegram poll failed, backing off",
			"error", err.Error(),
			"retryable", httpx.IsRetryableError(err),
			"sleep", sleepFor.String(),
		)
		if httpx.Sleep(ctx, sleepFor) != nil {
			break
		}
		backoff = b.nextBackoff(backoff)
	}
	b.log.Info("Telegram bridge stopped", "offset", b.Offset())
}

// RunOnce performs one long poll and handles every update it returned. The offset moves
// past all returned updates, including ones that failed, so a poisoned update is never
// redelivered.
func (b *Bridge) RunOnce(ctx context.Context) (int, error) {
	updates, next, err := b.api.GetUpdates(ctx, b.offset.Load(), b.opts.PollTimeout)
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, u := range updates {
		if b.handle(ctx, u) {
			handled++
		}
	}
	if next > b.offset.Load() {
		b.offset.Store(next)
		b.metrics.SetBridgeOffset(next)
	}
	return handled, nil
}

func (b *Bridge) handle(ctx context.Context, u tg.Update) bool {
	msg := u.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		b.metrics.IncBridgeUpdate("skipped")
		return false
	}
	chatID := msg.Chat.ID
	ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{
		RequestID: "tg-" + strconv.FormatInt(u.UpdateID, 10),
		Channel:   string(support.ChannelTelegram),
	})

	reply := rules.FinalFallback
	ex, resolveErr := b.conv.SendExternal(ctx, support.ChannelTelegram, strconv.FormatInt(chatID, 10), msg.Text)
	if resolveErr != nil {
		b.log.Warn("Telegram message not resolved", "chat_id", chatID, "update_id", u.UpdateID, "error", resolveErr.Error())
	} else {
		reply = ex.Assistant.Content
	}

	if err := b.api.SendMessage(ctx, chatID, reply); err != nil {
		b.metrics.IncBridgeUpdate("send_error")
		b.log.Warn("Telegram reply failed", "chat_id", chatID, "update_id", u.UpdateID, "error", err.Error())
		return false
	}
	status := "answered"
	if resolveErr != nil {
		status = "fallback"
	}
	b.metrics.IncBridgeUpdate(status)
	return true
}
