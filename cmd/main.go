package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/support-assistant/internal/app"
	"github.com/yungbote/support-assistant/internal/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		a.Log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
