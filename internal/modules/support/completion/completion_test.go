package completion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/quota"
	"github.com/yungbote/support-assistant/internal/modules/support/rules"
)

type fakeCompleter struct {
	text  string
	err   error
	calls int
	last  CompletionRequest
}

func (f *fakeCompleter) CreateCompletion(_ context.Context, req CompletionRequest) (string, error) {
	f.calls++
	f.last = req
	return f.text, f.err
}

type statusErr struct{ code int }

func (e statusErr) Error() string       { return "upstream failed" }
func (e statusErr) HTTPStatusCode() int { return e.code }

func TestCompleteSuccess(t *testing.T) {
	f := &fakeCompleter{text: "  We ship worldwide.\n"}
	c := New(nil, f, nil, Options{})
	res := c.Complete(context.Background(), "do you ship abroad?", nil)
	if res.Source != support.SourceCompletion || res.Confidence != 0.8 || res.Text != "We ship worldwide." {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.last.Model != DefaultModel || f.last.Temperature != DefaultTemperature || f.last.MaxTokens != DefaultMaxTokens {
		t.Fatalf("unexpected request params %+v", f.last)
	}
}

func TestQuotaErrorTripsBreakerOnce(t *testing.T) {
	ctx := context.Background()
	f := &fakeCompleter{err: fmt.Errorf("create completion: %w", ErrQuotaExceeded)}
	b := quota.NewMemory()
	c := New(nil, f, b, Options{})

	first := c.Complete(ctx, "hi", nil)
	if first.Source != support.SourceFallback || first.Confidence != 0 || first.Text != rules.Unavailable {
		t.Fatalf("first=%+v", first)
	}
	if !b.Exceeded(ctx) {
		t.Fatalf("breaker should be tripped")
	}
	second := c.Complete(ctx, "something unrelated", nil)
	if second.Source != support.SourceFallback || second.Text != rules.Unavailable {
		t.Fatalf("second=%+v", second)
	}
	if f.calls != 1 {
		t.Fatalf("completer called %d times, want 1", f.calls)
	}
	if c.Available(ctx) {
		t.Fatalf("client should be unavailable once tripped")
	}

	b.Reset(ctx)
	f.err, f.text = nil, "back"
	if res := c.Complete(ctx, "hi", nil); res.Source != support.SourceCompletion {
		t.Fatalf("after reset=%+v", res)
	}
}

func TestOtherErrorDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	b := quota.NewMemory()
	c := New(nil, &fakeCompleter{err: errors.New("connection reset by peer")}, b, Options{})
	res := c.Complete(ctx, "hi", nil)
	if res.Source != support.SourceFallback || res.Text != rules.TryAgain {
		t.Fatalf("res=%+v", res)
	}
	if b.Exceeded(ctx) {
		t.Fatalf("non-quota error tripped the breaker")
	}
}

func TestEmptyCompletionIsFallback(t *testing.T) {
	res := New(nil, &fakeCompleter{text: "   "}, nil, Options{}).Complete(context.Background(), "hi", nil)
	if res.Source != support.SourceFallback {
		t.Fatalf("res=%+v", res)
	}
}

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrQuotaExceeded, true},
		{statusErr{code: 429}, true},
		{statusErr{code: 500}, false},
		{errors.New("You exceeded your current QUOTA"), true},
		{errors.New("error, status code: 429"), true},
		{errors.New("Rate limit reached for requests"), true},
		{errors.New("timeout"), false},
	}
	for _, tc := range cases {
		if got := IsQuotaError(tc.err); got != tc.want {
			t.Fatalf("IsQuotaError(%v)=%v want %v", tc.err, got, tc.want)
		}
	}
}

func TestBuildMessagesWindow(t *testing.T) {
	var history []Message
	for i := 0; i < 10; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	msgs := BuildMessages("now", history)
	if len(msgs) != 1+HistoryWindow+1 {
		t.Fatalf("len=%d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != SystemPrompt {
		t.Fatalf("first message %+v", msgs[0])
	}
	if msgs[1].Content != "m4" {
		t.Fatalf("window starts at %q, want m4", msgs[1].Content)
	}
	if last := msgs[len(msgs)-1]; last.Role != "user" || last.Content != "now" {
		t.Fatalf("last message %+v", last)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c := New(nil, nil, nil, Options{})
	if c.Available(context.Background()) {
		t.Fatalf("client without completer should be unavailable")
	}
	if res := c.Complete(context.Background(), "hi", nil); res.Source != support.SourceFallback {
		t.Fatalf("res=%+v", res)
	}
}
