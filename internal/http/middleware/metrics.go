package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/support-assistant/internal/observability"
)

const unmatchedRoute = "unmatched"

// DefaultUnmeteredRoutes are probe routes kept out of the API series.
var DefaultUnmeteredRoutes = []string{"/healthz", "/readyz"}

// Metrics records API counts and latency per route template. Probe routes are skipped and
// requests that matched no route share one label so unknown paths cannot grow the series.
func Metrics(m *observability.Metrics, skipRoutes ...string) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	skip := make(map[string]bool, len(skipRoutes))
	for _, r := range skipRoutes {
		skip[r] = true
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if skip[route] {
			c.Next()
			return
		}
		if route == "" {
			route = unmatchedRoute
		}
		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
