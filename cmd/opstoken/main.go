package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yungbote/support-assistant/internal/config"
	"github.com/yungbote/support-assistant/internal/platform/opsauth"
)

func main() {
	var subject string
	var ttl time.Duration
	flag.StringVar(&subject, "subject", "", "operator name recorded in the token")
	flag.DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if strings.TrimSpace(subject) == "" {
		fmt.Println("-subject is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}
	signer := opsauth.NewSigner(cfg.Auth.OpsJWTSecret, cfg.Auth.OpsIssuer)
	token, err := signer.Issue(subject, ttl)
	if err != nil {
		fmt.Printf("issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
