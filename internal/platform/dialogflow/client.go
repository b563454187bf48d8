package dialogflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dfapi "cloud.google.com/go/dialogflow/apiv2"
	"cloud.google.com/go/dialogflow/apiv2/dialogflowpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/support-assistant/internal/modules/support/scripted"
	"github.com/yungbote/support-assistant/internal/platform/gcp"
	"github.com/yungbote/support-assistant/internal/platform/httpx"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type Config struct {
	ProjectID   string
	Credentials string
	Timeout     time.Duration
	MaxRetries  int
}

type detectFunc func(ctx context.Context, req *dialogflowpb.DetectIntentRequest) (*dialogflowpb.DetectIntentResponse, error)

// Client implements scripted.Detector against the Dialogflow ES sessions API.
type Client struct {
	log        *logger.Logger
	projectID  string
	timeout    time.Duration
	maxRetries int
	detect     detectFunc
	close      func() error
}

var _ scripted.Detector = (*Client)(nil)

func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("missing DIALOGFLOW_PROJECT_ID")
	}
	sc, err := dfapi.NewSessionsClient(ctx, gcp.ClientOptionsFromEnv(cfg.Credentials)...)
	if err != nil {
		return nil, fmt.Errorf("create dialogflow sessions client: %w", err)
	}
	c := newClient(log, cfg, func(ctx context.Context, req *dialogflowpb.DetectIntentRequest) (*dialogflowpb.DetectIntentResponse, error) {
		return sc.DetectIntent(ctx, req)
	})
	c.close = sc.Close
	return c, nil
}

func newClient(log *logger.Logger, cfg Config, detect detectFunc) *Client {
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		log:        log.With("client", "DialogflowClient"),
		projectID:  strings.TrimSpace(cfg.ProjectID),
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		detect:     detect,
	}
}

func (c *Client) SessionPath(sessionKey string) string {
	return fmt.Sprintf("projects/%s/agent/sessions/%s", c.projectID, sessionKey)
}

func (c *Client) DetectIntent(ctx context.Context, sessionKey, text, languageCode string) (scripted.Detection, error) {
	req := &dialogflowpb.DetectIntentRequest{
		Session: c.SessionPath(sessionKey),
		QueryInput: &dialogflowpb.QueryInput{
			Input: &dialogflowpb.QueryInput_Text{
				Text: &dialogflowpb.TextInput{Text: text, LanguageCode: languageCode},
			},
		},
	}

	backoff := 500 * time.Millisecond
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.detect(callCtx, req)
		cancel()
		if err == nil {
			qr := resp.GetQueryResult()
			return scripted.Detection{
				FulfillmentText: qr.GetFulfillmentText(),
				Confidence:      float64(qr.GetIntentDetectionConfidence()),
				IntentName:      qr.GetIntent().GetDisplayName(),
			}, nil
		}
		if !IsRetryable(err) || attempt >= c.maxRetries || ctx.Err() != nil {
			return scripted.Detection{}, fmt.Errorf("dialogflow detect intent (%s): %w", status.Code(err), err)
		}
		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("Dialogflow request retrying",
			"attempt", attempt+1,
			"code", status.Code(err).String(),
			"sleep", sleepFor.String(),
		)
		if serr := httpx.Sleep(ctx, sleepFor); serr != nil {
			return scripted.Detection{}, serr
		}
		backoff *= 2
	}
}

// IsRetryable reports transient gRPC failures. Auth, quota and argument errors are final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) Close() error {
	if c == nil || c.close == nil {
		return nil
	}
	return c.close()
}
