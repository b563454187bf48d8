package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/support-assistant/internal/data/store"
	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/conversation"
	"github.com/yungbote/support-assistant/internal/modules/support/resolver"
	"github.com/yungbote/support-assistant/internal/modules/support/rules"
	"github.com/yungbote/support-assistant/internal/observability"
	tg "github.com/yungbote/support-assistant/internal/platform/telegram"
)

type sent struct {
	chatID int64
	text   string
}

type fakeAPI struct {
	mu      sync.Mutex
	batches [][]tg.Update
	errs    []error
	sent    []sent
	offsets []int64
	sendErr error
	meErr   error
	meErrs  []error
	meCalls int
}

func (f *fakeAPI) GetMe(context.Context) (*tg.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if f.meErr != nil {
		return nil, f.meErr
	}
	if len(f.meErrs) > 0 {
		err := f.meErrs[0]
		f.meErrs = f.meErrs[1:]
		return nil, err
	}
	return &tg.User{ID: 1, Username: "support_bot"}, nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]tg.Update, int64, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return nil, offset, err
	}
	if len(f.batches) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, offset, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	f.mu.Unlock()
	next := offset
	for _, u := range batch {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return batch, next, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{chatID: chatID, text: text})
	return nil
}

func (f *fakeAPI) sentCopy() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func textUpdate(id, chat int64, text string) tg.Update {
	return tg.Update{UpdateID: id, Message: &tg.Message{MessageID: id, Chat: &tg.Chat{ID: chat}, Text: text}}
}

func newBridge(api *fakeAPI) (*Bridge, *store.Memory, *observability.Metrics) {
	st := store.NewMemory()
	conv := conversation.NewService(nil, st, resolver.New(resolver.Deps{Tickets: st}))
	m := observability.NewMetrics()
	return New(nil, api, conv, m, Options{PollTimeout: time.Second, ErrorBackoff: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}), st, m
}

func TestRunOnceAnswersAndAdvancesOffset(t *testing.T) {
	api := &fakeAPI{batches: [][]tg.Update{{
		textUpdate(100, 7, "hello"),
		{UpdateID: 101},
		textUpdate(102, 8, "where is my order"),
	}}}
	b, st, m := newBridge(api)

	n, err := b.RunOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("handled=%d err=%v", n, err)
	}
	if b.Offset() != 103 {
		t.Fatalf("offset=%d", b.Offset())
	}
	got := api.sentCopy()
	if len(got) != 2 || got[0].chatID != 7 || got[1].chatID != 8 {
		t.Fatalf("sent=%+v", got)
	}
	if !strings.Contains(strings.ToLower(got[1].text), "order") {
		t.Fatalf("order reply=%q", got[1].text)
	}

	sessions, _ := st.Sessions(context.Background())
	if len(sessions) != 2 || sessions[0].Channel != support.ChannelTelegram {
		t.Fatalf("sessions=%+v", sessions)
	}
	var buf strings.Builder
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	for _, want := range []string{`status="answered"} 2.000000`, `status="skipped"} 1.000000`, "support_bridge_offset 103"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("metrics missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRunOnceRepliesFallbackWhenResolveFails(t *testing.T) {
	api := &fakeAPI{batches: [][]tg.Update{{textUpdate(5, 9, strings.Repeat("x", conversation.MaxMessageLen+1))}}}
	b, _, _ := newBridge(api)
	if _, err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := api.sentCopy()
	if len(got) != 1 || got[0].text != rules.FinalFallback {
		t.Fatalf("sent=%+v", got)
	}
	if b.Offset() != 6 {
		t.Fatalf("offset=%d", b.Offset())
	}
}

func TestRunOnceSendFailureStillAdvances(t *testing.T) {
	api := &fakeAPI{batches: [][]tg.Update{{textUpdate(20, 1, "hi")}}, sendErr: errors.New("blocked by user")}
	b, _, _ := newBridge(api)
	n, err := b.RunOnce(context.Background())
	if err != nil || n != 0 || b.Offset() != 21 {
		t.Fatalf("n=%d err=%v offset=%d", n, err, b.Offset())
	}
}

func TestStartRetriesAfterPollErrorsAndStops(t *testing.T) {
	api := &fakeAPI{
		errs:    []error{errors.New("connection reset"), errors.New("connection reset")},
		batches: [][]tg.Update{{textUpdate(1, 3, "thanks, bye")}},
	}
	b, _, _ := newBridge(api)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start err=%v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(api.sentCopy()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("bridge never answered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	b.Stop()
	b.Stop()

	if b.BotName() != "support_bot" || b.Offset() != 2 {
		t.Fatalf("bot=%q offset=%d", b.BotName(), b.Offset())
	}
}

func TestBadTokenDisablesBridge(t *testing.T) {
	api := &fakeAPI{meErr: &tg.APIError{StatusCode: 401, Method: "getMe", Description: "Unauthorized"}}
	b, _, _ := newBridge(api)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "token rejection", func() bool { return b.Err() != nil })
	b.Stop()
	if !IsTokenRejected(b.Err()) {
		t.Fatalf("err=%v", b.Err())
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.meCalls != 1 || len(api.offsets) != 0 {
		t.Fatalf("getMe calls=%d polls=%d", api.meCalls, len(api.offsets))
	}
}

func TestStartRetriesTransientGetMe(t *testing.T) {
	api := &fakeAPI{
		meErrs:  []error{errors.New("dial tcp: lookup api.telegram.org: no such host"), &tg.APIError{StatusCode: 502, Method: "getMe", Description: "Bad Gateway"}},
		batches: [][]tg.Update{{textUpdate(7, 9, "hello")}},
	}
	b, _, m := newBridge(api)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "reply after reconnect", func() bool { return len(api.sentCopy()) == 1 })
	b.Stop()
	if b.Err() != nil || b.BotName() != "support_bot" {
		t.Fatalf("err=%v bot=%q", b.Err(), b.BotName())
	}
	var buf strings.Builder
	_ = m.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), "support_bridge_poll_errors_total 2.000000") {
		t.Fatalf("metrics=%s", buf.String())
	}
}
