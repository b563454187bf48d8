package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/support-assistant/internal/data/store"
	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/analytics"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/apierr"
)

func seed(t *testing.T) (*store.Memory, *support.Session) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	sess, err := st.EnsureSession(ctx, support.ChannelWeb, "w1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	neg := support.SentimentNegative
	src := support.SourceRuleEngine
	conf := 0.9
	for _, turn := range []*support.Turn{
		{SessionID: sess.ID, Channel: support.ChannelWeb, Role: support.RoleUser, Content: "this is <terrible>", Sentiment: &neg},
		{SessionID: sess.ID, Channel: support.ChannelWeb, Role: support.RoleAssistant, Content: "sorry", Source: &src, Confidence: &conf},
	} {
		if err := st.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := st.AppendTicket(ctx, support.NewTicket(sess.ID, support.ChannelWeb, "this is <terrible>", neg, nil)); err != nil {
		t.Fatalf("ticket: %v", err)
	}
	return st, sess
}

func TestBuildDocument(t *testing.T) {
	st, sess := seed(t)
	doc, err := Build(context.Background(), st, analytics.Filter{SessionID: sess.ID}, "web")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if doc.Metadata.TotalMessages != 2 || len(doc.Tickets) != 1 || doc.Metadata.SessionID != sess.ID.String() {
		t.Fatalf("doc=%+v", doc.Metadata)
	}
	if doc.Statistics.Tickets != 1 || doc.Statistics.UserMessages != 1 {
		t.Fatalf("stats=%+v", doc.Statistics)
	}

	body, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(body, []byte("<terrible>")) {
		t.Fatalf("expected unescaped html in %s", body)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"conversation_metadata", "messages", "statistics", "support_tickets"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing %q in export", key)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(context.Background(), store.NewMemory(), analytics.Filter{}, "web")
	if !errors.Is(err, ErrNothingToExport) || !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	loc, err := sink.Write(context.Background(), "a.json", []byte(`{}`))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(loc)
	if err != nil || string(got) != "{}" {
		t.Fatalf("read back=%q err=%v", got, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("leftover temp files: %v", entries)
	}
	if _, err := sink.Write(context.Background(), "../escape.json", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for path traversal")
	}
	if _, err := NewFileSink("  "); err == nil {
		t.Fatalf("expected error for blank dir")
	}
}

type fakeBucket struct {
	uploads map[string]string
	ctype   string
	err     error
}

func (f *fakeBucket) Upload(_ context.Context, name string, r io.Reader, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(r)
	key := "exports/" + name
	f.uploads[key] = string(b)
	f.ctype = contentType
	return key, nil
}

func (f *fakeBucket) PublicURL(key string) string { return "https://storage.example/" + key }

func TestExporter(t *testing.T) {
	st, _ := seed(t)
	bucket := &fakeBucket{uploads: map[string]string{}}
	m := observability.NewMetrics()
	fileSink, _ := NewFileSink(t.TempDir())
	exp := New(nil, st, m, "web", NewGCSSink(bucket), fileSink)
	exp.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }

	res, err := exp.Export(context.Background(), "", analytics.Filter{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Sink != "gcs" || res.Location != "https://storage.example/exports/support_export_20240301_123000.json" {
		t.Fatalf("result=%+v", res)
	}
	if bucket.ctype != "application/json" || res.Messages != 2 || res.Tickets != 1 {
		t.Fatalf("ctype=%q result=%+v", bucket.ctype, res)
	}

	res, err = exp.Export(context.Background(), "file", analytics.Filter{})
	if err != nil || !strings.HasSuffix(res.Location, "support_export_20240301_123000.json") {
		t.Fatalf("file export=%+v err=%v", res, err)
	}

	if _, err := exp.Export(context.Background(), "s3", analytics.Filter{}); !errors.Is(err, ErrUnknownSink) {
		t.Fatalf("unknown sink err=%v", err)
	}

	bucket.err = errors.New("boom")
	if _, err := exp.Export(context.Background(), "gcs", analytics.Filter{}); err == nil {
		t.Fatalf("expected upload error")
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `support_exports_total{sink="gcs",status="ok"} 1.000000`) ||
		!strings.Contains(out, `support_exports_total{sink="gcs",status="error"} 1.000000`) {
		t.Fatalf("metrics:\n%s", out)
	}
}
