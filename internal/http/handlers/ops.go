package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/support-assistant/internal/http/middleware"
	"github.com/yungbote/support-assistant/internal/http/response"
	"github.com/yungbote/support-assistant/internal/modules/support/quota"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type OpsHandler struct {
	log     *logger.Logger
	breaker quota.Breaker
	metrics *observability.Metrics
}

func NewOpsHandler(log *logger.Logger, breaker quota.Breaker, metrics *observability.Metrics) *OpsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OpsHandler{log: log.With("handler", "OpsHandler"), breaker: breaker, metrics: metrics}
}

// GET /api/ops/quota
func (h *OpsHandler) QuotaStatus(c *gin.Context) {
	response.RespondOK(c, gin.H{"quota": h.breaker.Status(c.Request.Context())})
}

// POST /api/ops/quota/reset
func (h *OpsHandler) QuotaReset(c *gin.Context) {
	ctx := c.Request.Context()
	before := h.breaker.Status(ctx)
	h.breaker.Reset(ctx)
	h.metrics.SetQuotaTripped(false)
	h.log.Warn("completion quota breaker reset",
		"operator", middleware.Operator(c),
		"was_exceeded", before.Exceeded,
		"reason", before.Reason,
	)
	response.RespondOK(c, gin.H{"quota": h.breaker.Status(ctx)})
}
