package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/yungbote/support-assistant/internal/modules/support/completion"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(nil, Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", MaxRetries: retries})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func testRequest() completion.CompletionRequest {
	return completion.CompletionRequest{
		Model:       "gpt-3.5-turbo",
		Messages:    completion.BuildMessages("where is my order", nil),
		Temperature: 0.7,
		MaxTokens:   300,
	}
}

func TestCreateCompletion(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("auth=%q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"It ships tomorrow."},"finish_reason":"stop"}]}`)
	}, 0)

	text, err := c.CreateCompletion(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("CreateCompletion: %v", err)
	}
	if text != "It ships tomorrow." {
		t.Fatalf("text=%q", text)
	}
	if got["model"] != "gpt-3.5-turbo" || got["max_tokens"] != float64(300) {
		t.Fatalf("request=%v", got)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages=%v", got["messages"])
	}
}

func TestCreateCompletionQuota(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	}, 3)

	_, err := c.CreateCompletion(context.Background(), testRequest())
	if !errors.Is(err, completion.ErrQuotaExceeded) {
		t.Fatalf("err=%v", err)
	}
	if !completion.IsQuotaError(err) {
		t.Fatalf("IsQuotaError false for %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("quota errors must not be retried; calls=%d", n)
	}
}

func TestCreateCompletionRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"error":{"message":"upstream","type":"server_error"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c2","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	}, 1)

	text, err := c.CreateCompletion(context.Background(), testRequest())
	if err != nil || text != "ok" {
		t.Fatalf("text=%q err=%v", text, err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls=%d", n)
	}
}

func TestCreateCompletionBadRequestNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}, 3)

	_, err := c.CreateCompletion(context.Background(), testRequest())
	if err == nil || errors.Is(err, completion.ErrQuotaExceeded) {
		t.Fatalf("err=%v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls=%d", n)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(nil, Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
