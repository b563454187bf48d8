package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/support-assistant/internal/http/middleware"
	"github.com/yungbote/support-assistant/internal/http/response"
	"github.com/yungbote/support-assistant/internal/modules/support/export"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type ExportHandler struct {
	log      *logger.Logger
	exporter *export.Exporter
}

func NewExportHandler(log *logger.Logger, exporter *export.Exporter) *ExportHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ExportHandler{log: log.With("handler", "ExportHandler"), exporter: exporter}
}

// GET /api/export?channel=&session_id=
func (h *ExportHandler) Download(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	_, body, err := h.exporter.Document(c.Request.Context(), f)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(time.Now())))
	c.Data(200, "application/json; charset=utf-8", body)
}

// POST /api/ops/export?sink=&channel=&session_id=
func (h *ExportHandler) Write(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	res, err := h.exporter.Export(c.Request.Context(), c.Query("sink"), f)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.log.Info("export requested", "operator", middleware.Operator(c), "sink", res.Sink, "location", res.Location)
	response.RespondCreated(c, gin.H{"export": res})
}

// GET /api/ops/export/sinks
func (h *ExportHandler) Sinks(c *gin.Context) {
	response.RespondOK(c, gin.H{"sinks": h.exporter.Sinks()})
}
