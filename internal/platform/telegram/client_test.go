package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testToken = "123:ABC"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(nil, srv.Client(), srv.URL, testToken)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGetMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot"+testToken+"/getMe" {
			t.Errorf("path=%s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":42,"is_bot":true,"username":"support_bot"}}`)
	})
	me, err := c.GetMe(context.Background())
	if err != nil || me.Username != "support_bot" || me.ID != 42 {
		t.Fatalf("me=%+v err=%v", me, err)
	}
}

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("offset"); got != "10" {
			t.Errorf("offset=%q", got)
		}
		if got := r.URL.Query().Get("timeout"); got != "1" {
			t.Errorf("timeout=%q", got)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"chat":{"id":7},"text":"hello"}},
			{"update_id":12,"message":{"message_id":2,"chat":{"id":8},"text":"where is my order"}}
		]}`)
	})
	updates, next, err := c.GetUpdates(context.Background(), 10, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 2 || next != 13 {
		t.Fatalf("updates=%d next=%d", len(updates), next)
	}
	if updates[1].Message.Chat.ID != 8 || updates[1].Message.Text != "where is my order" {
		t.Fatalf("update=%+v", updates[1].Message)
	}
}

func TestGetUpdatesEmptyKeepsOffset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
	})
	_, next, err := c.GetUpdates(context.Background(), 5, time.Second)
	if err != nil || next != 5 {
		t.Fatalf("next=%d err=%v", next, err)
	}
}

func TestSendMessageFallsBackToPlainText(t *testing.T) {
	var (
		mu    sync.Mutex
		modes []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		modes = append(modes, req.ParseMode)
		mu.Unlock()
		if req.ParseMode == "Markdown" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":3}}`)
	})
	if err := c.SendMessage(context.Background(), 7, "order_status *broken"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if strings.Join(modes, ",") != "Markdown," {
		t.Fatalf("modes=%v", modes)
	}
}

func TestSendMessageServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `bad gateway`)
	})
	err := c.SendMessage(context.Background(), 7, "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode() != http.StatusBadGateway {
		t.Fatalf("err=%v", err)
	}
}

func TestErrorsDoNotLeakToken(t *testing.T) {
	c, err := NewClient(nil, &http.Client{Timeout: time.Second}, "http://127.0.0.1:1", testToken)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.GetMe(context.Background())
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if strings.Contains(err.Error(), testToken) {
		t.Fatalf("token leaked: %v", err)
	}
}

func TestSplitMessage(t *testing.T) {
	parts := splitMessage(strings.Repeat("é", 10), 4)
	if len(parts) != 3 || parts[2] != "éé" {
		t.Fatalf("parts=%q", parts)
	}
	if got := splitMessage("short", 4096); len(got) != 1 {
		t.Fatalf("parts=%q", got)
	}
}
