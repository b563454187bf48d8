package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	responses    *CounterVec
	sentiment    *CounterVec
	layerLatency *HistogramVec
	resolveTime  *HistogramVec
	tickets      *Counter
	quotaTripped *Gauge

	completionRequests *CounterVec
	completionLatency  *HistogramVec

	bridgeUpdates    *CounterVec
	bridgePollErrors *Counter
	bridgeOffset     *Gauge

	exports *CounterVec

	dbStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	all []metric
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init builds the process-wide registry once. Returns nil when metrics are disabled; every
// method is nil-safe so callers never need to check.
func Init(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
	})
	return instance
}

// NewMetrics returns an unregistered instance. Tests use it directly.
func NewMetrics() *Metrics {
	m := &Metrics{
		apiRequests: NewCounterVec("support_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"support_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight:  NewGauge("support_api_inflight_requests", "In-flight API requests."),
		responses:    NewCounterVec("support_responses_total", "Resolved replies by answering source.", []string{"source"}),
		sentiment:    NewCounterVec("support_sentiment_total", "User turns by sentiment label.", []string{"sentiment"}),
		layerLatency: NewHistogramVec(
			"support_layer_duration_seconds",
			"Resolution layer latency by layer/outcome.",
			[]string{"layer", "outcome"},
			[]float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		resolveTime: NewHistogramVec(
			"support_resolve_duration_seconds",
			"End-to-end resolution latency by channel/source.",
			[]string{"channel", "source"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		tickets:      NewCounter("support_tickets_total", "Support tickets created."),
		quotaTripped: NewGauge("support_completion_quota_tripped", "1 while the completion quota breaker is open."),
		completionRequests: NewCounterVec(
			"support_completion_requests_total",
			"Completion requests by model/status.",
			[]string{"model", "status"},
		),
		completionLatency: NewHistogramVec(
			"support_completion_request_duration_seconds",
			"Completion request latency by model/status.",
			[]string{"model", "status"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		bridgeUpdates:    NewCounterVec("support_bridge_updates_total", "Bridge inbound updates by status.", []string{"status"}),
		bridgePollErrors: NewCounter("support_bridge_poll_errors_total", "Bridge long-poll failures."),
		bridgeOffset:     NewGauge("support_bridge_offset", "Next update offset requested by the bridge."),
		exports:          NewCounterVec("support_exports_total", "Exports by sink/status.", []string{"sink", "status"}),
		dbStats:          NewGaugeVec("support_db_pool", "Database pool stats.", []string{"stat"}),
		redisUp:          NewGauge("support_redis_up", "Redis reachable (1) or not (0)."),
		redisPing:        NewGauge("support_redis_ping_seconds", "Redis ping latency."),
	}
	m.all = []metric{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.responses, m.sentiment, m.layerLatency, m.resolveTime, m.tickets, m.quotaTripped,
		m.completionRequests, m.completionLatency,
		m.bridgeUpdates, m.bridgePollErrors, m.bridgeOffset,
		m.exports, m.dbStats, m.redisUp, m.redisPing,
	}
	return m
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, mt := range m.all {
		if err := mt.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveResolution(channel, source, sentiment string, dur time.Duration) {
	if m == nil {
		return
	}
	m.responses.Inc(source)
	m.sentiment.Inc(sentiment)
	m.resolveTime.Observe(dur.Seconds(), channel, source)
}

// ObserveLayer records one attempt of a resolution layer. outcome is answered, deferred,
// skipped or panic.
func (m *Metrics) ObserveLayer(layer, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.layerLatency.Observe(dur.Seconds(), layer, outcome)
}

func (m *Metrics) IncTicket() {
	if m == nil {
		return
	}
	m.tickets.Inc()
}

func (m *Metrics) SetQuotaTripped(tripped bool) {
	if m == nil {
		return
	}
	if tripped {
		m.quotaTripped.Set(1)
		return
	}
	m.quotaTripped.Set(0)
}

func (m *Metrics) ObserveCompletion(model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.completionRequests.Inc(model, status)
	m.completionLatency.Observe(dur.Seconds(), model, status)
}

func (m *Metrics) IncBridgeUpdate(status string) {
	if m == nil {
		return
	}
	m.bridgeUpdates.Inc(status)
}

func (m *Metrics) IncBridgePollError() {
	if m == nil {
		return
	}
	m.bridgePollErrors.Inc()
}

func (m *Metrics) SetBridgeOffset(offset int64) {
	if m == nil {
		return
	}
	m.bridgeOffset.Set(float64(offset))
}

func (m *Metrics) IncExport(sink, status string) {
	if m == nil {
		return
	}
	m.exports.Inc(sink, status)
}

func (m *Metrics) ResponsesBySource(source string) float64 {
	if m == nil {
		return 0
	}
	return m.responses.Value(source)
}

func (m *Metrics) SentimentCount(label string) float64 {
	if m == nil {
		return 0
	}
	return m.sentiment.Value(label)
}

func (m *Metrics) TicketCount() float64 {
	if m == nil {
		return 0
	}
	return m.tickets.Value()
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db stats unavailable", "error", err)
		}
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := sqlDB.Stats()
				m.dbStats.Set(float64(stats.OpenConnections), "open")
				m.dbStats.Set(float64(stats.InUse), "in_use")
				m.dbStats.Set(float64(stats.Idle), "idle")
				m.dbStats.Set(float64(stats.WaitCount), "wait_count")
				m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_seconds")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
