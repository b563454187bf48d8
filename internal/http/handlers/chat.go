package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/http/response"
	"github.com/yungbote/support-assistant/internal/modules/support/conversation"
)

type Conversations interface {
	NewWebSession(ctx context.Context) (*support.Session, error)
	Session(ctx context.Context, id uuid.UUID) (*support.Session, error)
	History(ctx context.Context, sessionID uuid.UUID) ([]*support.Turn, error)
	Send(ctx context.Context, sessionID uuid.UUID, text string) (*conversation.Exchange, error)
	Quick(ctx context.Context, sessionID uuid.UUID, action string) (*conversation.Exchange, error)
}

type ChatHandler struct {
	conv Conversations
}

func NewChatHandler(conv Conversations) *ChatHandler {
	return &ChatHandler{conv: conv}
}

type sendMessageReq struct {
	Text string `json:"text"`
}

type exchangeResp struct {
	User      *support.Turn   `json:"user"`
	Assistant *support.Turn   `json:"assistant"`
	Ticket    *support.Ticket `json:"ticket,omitempty"`
}

func toExchangeResp(ex *conversation.Exchange) exchangeResp {
	return exchangeResp{User: ex.User, Assistant: ex.Assistant, Ticket: ex.Outcome.Ticket}
}

// POST /api/chat/sessions
func (h *ChatHandler) CreateSession(c *gin.Context) {
	sess, err := h.conv.NewWebSession(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"session": sess})
}

// GET /api/chat/sessions/:id
func (h *ChatHandler) GetSession(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	sess, err := h.conv.Session(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	turns, err := h.conv.History(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess, "messages": turns})
}

// POST /api/chat/sessions/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ex, err := h.conv.Send(c.Request.Context(), id, req.Text)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, toExchangeResp(ex))
}

// POST /api/chat/sessions/:id/quick/:action
func (h *ChatHandler) QuickAction(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}
	ex, err := h.conv.Quick(c.Request.Context(), id, c.Param("action"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, toExchangeResp(ex))
}

// GET /api/chat/quick-actions
func (h *ChatHandler) ListQuickActions(c *gin.Context) {
	response.RespondOK(c, gin.H{"actions": conversation.QuickActions})
}

func sessionParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return uuid.Nil, false
	}
	return id, true
}
