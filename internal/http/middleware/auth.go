package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/support-assistant/internal/http/response"
	"github.com/yungbote/support-assistant/internal/platform/logger"
	"github.com/yungbote/support-assistant/internal/platform/opsauth"
)

const ctxOperatorKey = "operator"

type OpsAuthMiddleware struct {
	log    *logger.Logger
	signer *opsauth.Signer
}

func NewOpsAuthMiddleware(log *logger.Logger, signer *opsauth.Signer) *OpsAuthMiddleware {
	if log == nil {
		log = logger.Nop()
	}
	return &OpsAuthMiddleware{log: log.With("Middleware", "OpsAuthMiddleware"), signer: signer}
}

// RequireOperator accepts only bearer tokens carrying role=operator.
func (m *OpsAuthMiddleware) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.signer.Enabled() {
			response.RespondError(c, http.StatusServiceUnavailable, "ops_disabled", opsauth.ErrDisabled)
			return
		}
		token := bearerToken(c)
		if token == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		claims, err := m.signer.Verify(token)
		if errors.Is(err, opsauth.ErrForbidden) {
			response.RespondError(c, http.StatusForbidden, "forbidden", err)
			return
		}
		if err != nil {
			m.log.Debug("operator token rejected", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		c.Set(ctxOperatorKey, claims.Subject)
		c.Next()
	}
}

func Operator(c *gin.Context) string {
	return c.GetString(ctxOperatorKey)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
