package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/support-assistant/internal/modules/support/completion"
)

// Completer echoes the last user message. Used for local runs without an API key.
type Completer struct{}

func New() *Completer { return &Completer{} }

func (c *Completer) CreateCompletion(ctx context.Context, req completion.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var user string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if strings.EqualFold(req.Messages[i].Role, "user") {
			user = req.Messages[i].Content
			break
		}
	}
	if strings.TrimSpace(user) == "" {
		return "mock: ok", nil
	}
	return fmt.Sprintf("mock: %s", user), nil
}
