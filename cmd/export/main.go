package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/support-assistant/internal/app"
	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/modules/support/analytics"
)

func main() {
	var sink, channel, session string
	flag.StringVar(&sink, "sink", "", "export sink (file or gcs); defaults to export.sink")
	flag.StringVar(&channel, "channel", "", "only export turns from this channel (web or telegram)")
	flag.StringVar(&session, "session", "", "only export this session id")
	flag.Parse()

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	f := analytics.Filter{Channel: support.Channel(strings.ToLower(strings.TrimSpace(channel)))}
	if s := strings.TrimSpace(session); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			fmt.Printf("invalid -session: %v\n", err)
			os.Exit(2)
		}
		f.SessionID = id
	}

	res, err := application.Services.Exporter.Export(ctx, sink, f)
	if err != nil {
		fmt.Printf("export: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d messages and %d tickets (%d bytes) to %s\n", res.Messages, res.Tickets, res.Bytes, res.Location)
}
