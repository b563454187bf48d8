package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/ctxutil"
	"github.com/yungbote/support-assistant/internal/platform/opsauth"
)

func TestTraceContextPropagatesHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil || seen.RequestID != "req-1" || seen.TraceID == "" || seen.Channel != "web" {
		t.Fatalf("trace=%+v", seen)
	}
	if rec.Header().Get("X-Request-Id") != "req-1" || rec.Header().Get("X-Trace-Id") != seen.TraceID {
		t.Fatalf("headers=%v", rec.Header())
	}
}

func TestRequireOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer := opsauth.NewSigner("s3cret", "")
	good, _ := signer.Issue("ops-alice", time.Hour)

	cases := []struct {
		name   string
		signer *opsauth.Signer
		header string
		want   int
	}{
		{"valid", signer, "Bearer " + good, http.StatusOK},
		{"missing", signer, "", http.StatusUnauthorized},
		{"garbage", signer, "Bearer nope", http.StatusUnauthorized},
		{"disabled", opsauth.NewSigner("", ""), "Bearer " + good, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/ops", NewOpsAuthMiddleware(nil, tc.signer).RequireOperator(), func(c *gin.Context) {
				c.String(http.StatusOK, Operator(c))
			})
			req := httptest.NewRequest(http.MethodGet, "/ops", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tc.want, rec.Body.String())
			}
			if tc.want == http.StatusOK && rec.Body.String() != "ops-alice" {
				t.Fatalf("operator=%q", rec.Body.String())
			}
		})
	}
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(nil))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.NewMetrics()
	r := gin.New()
	r.Use(Metrics(m, DefaultUnmeteredRoutes...))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/chat/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	for _, path := range []string{"/api/chat/sessions/abc", "/healthz", "/no/such/a", "/no/such/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`support_api_requests_total{method="GET",route="/api/chat/sessions/:id",status="200"} 1.000000`,
		`support_api_requests_total{method="GET",route="unmatched",status="404"} 2.000000`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, `route="/healthz"`) || strings.Contains(out, "/no/such") {
		t.Fatalf("unexpected series in:\n%s", out)
	}
}

func TestTraceContextSessionAndUnsafeIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/api/chat/sessions/:id", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	sid := "0b8f9a52-2f6e-4c1e-9d53-1f5d7b0c2a11"
	req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions/"+sid, nil)
	req.Header.Set("X-Request-Id", "bad id\twith spaces")
	req.Header.Set("X-Trace-Id", strings.Repeat("t", 200))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil || seen.SessionID != sid {
		t.Fatalf("trace=%+v", seen)
	}
	if seen.RequestID == "bad id\twith spaces" || len(seen.TraceID) > maxClientIDLen {
		t.Fatalf("unsafe ids echoed: %+v", seen)
	}
	fields := ctxutil.LogFields(ctxutil.WithTraceData(req.Context(), seen))
	if len(fields) != 8 || fields[6] != "session_id" {
		t.Fatalf("fields=%v", fields)
	}

	seen = nil
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/chat/sessions/not-a-uuid", nil))
	if seen == nil || seen.SessionID != "" {
		t.Fatalf("trace=%+v", seen)
	}
}
