package sendgrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestAlertMailerSends(t *testing.T) {
	var got mailSendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("path=%s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(nil, Config{APIKey: "sg-key", BaseURL: srv.URL, DefaultFromEmail: "bot@example.com", DefaultFromName: "Support Bot"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m := c.AlertMailer([]string{" ops@example.com ", ""})
	if err := m.SendAlert(context.Background(), "Support ticket created", map[string]any{"ticket": 7, "priority": "high"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer sg-key" {
		t.Fatalf("auth=%q", auth)
	}
	if got.From.Email != "bot@example.com" || len(got.Personalizations) != 1 || len(got.Personalizations[0].To) != 1 || got.Personalizations[0].To[0].Email != "ops@example.com" {
		t.Fatalf("request=%+v", got)
	}
	if got.Subject != "[support-assistant] Support ticket created" {
		t.Fatalf("subject=%q", got.Subject)
	}
	if len(got.Content) != 1 || !strings.Contains(got.Content[0].Value, "priority: high\nticket: 7") {
		t.Fatalf("content=%+v", got.Content)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, _ := New(nil, Config{APIKey: "k", BaseURL: srv.URL, DefaultFromEmail: "a@example.com", MaxRetries: 1})
	res, err := c.Send(context.Background(), SendEmailRequest{To: []EmailAddress{{Email: "b@example.com"}}, Subject: "s", Text: "t"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.StatusCode != http.StatusAccepted || hits.Load() != 2 {
		t.Fatalf("status=%d hits=%d", res.StatusCode, hits.Load())
	}
}

func TestSendRejectsBadRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from"}]}`))
	}))
	defer srv.Close()

	c, _ := New(nil, Config{APIKey: "k", BaseURL: srv.URL, DefaultFromEmail: "a@example.com", MaxRetries: 3})
	_, err := c.Send(context.Background(), SendEmailRequest{To: []EmailAddress{{Email: "b@example.com"}}, Subject: "s", Text: "t"})
	if err == nil || !strings.Contains(err.Error(), "bad from") {
		t.Fatalf("err=%v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("400 should not be retried, hits=%d", hits.Load())
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, Config{DefaultFromEmail: "a@example.com"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := New(nil, Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected missing from error")
	}
}
