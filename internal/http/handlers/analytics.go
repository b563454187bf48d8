package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/http/response"
	"github.com/yungbote/support-assistant/internal/modules/support/analytics"
)

type AnalyticsHandler struct {
	src analytics.Source
}

func NewAnalyticsHandler(src analytics.Source) *AnalyticsHandler {
	return &AnalyticsHandler{src: src}
}

// GET /api/analytics?channel=&session_id=
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	rep, err := analytics.Generate(c.Request.Context(), h.src, f)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, rep)
}

// GET /api/tickets?channel=&session_id=
func (h *AnalyticsHandler) Tickets(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	tickets, err := matchingTickets(c.Request.Context(), h.src, f)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tickets": tickets})
}

func matchingTickets(ctx context.Context, src analytics.Source, f analytics.Filter) ([]*support.Ticket, error) {
	all, err := src.Tickets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*support.Ticket, 0, len(all))
	for _, tk := range all {
		if tk != nil && f.Match(tk.Channel, tk.SessionID) {
			out = append(out, tk)
		}
	}
	return out, nil
}

func filterFromQuery(c *gin.Context) (analytics.Filter, bool) {
	var f analytics.Filter
	switch ch := support.Channel(strings.ToLower(strings.TrimSpace(c.Query("channel")))); ch {
	case "":
	case support.ChannelWeb, support.ChannelTelegram:
		f.Channel = ch
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_channel", fmt.Errorf("unknown channel %q", ch))
		return f, false
	}
	if raw := strings.TrimSpace(c.Query("session_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
			return f, false
		}
		f.SessionID = id
	}
	return f, true
}
