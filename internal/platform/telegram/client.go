package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/support-assistant/internal/platform/logger"
)

const (
	DefaultBaseURL     = "https://api.telegram.org"
	DefaultPollTimeout = 30 * time.Second

	// Telegram rejects longer message bodies.
	maxMessageRunes = 4096
)

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      *Chat  `json:"chat,omitempty"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
	Date      int64  `json:"date,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// APIError is a non-2xx answer or an ok=false envelope from the Bot API.
type APIError struct {
	StatusCode  int
	Method      string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, e.Description)
}

func (e *APIError) HTTPStatusCode() int { return e.StatusCode }

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type Client struct {
	log     *logger.Logger
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(log *logger.Logger, httpClient *http.Client, baseURL, token string) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("missing TELEGRAM_BOT_TOKEN")
	}
	if log == nil {
		log = logger.Nop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		log:     log.With("client", "TelegramClient"),
		http:    httpClient,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
	}, nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var out User
	if err := c.call(ctx, http.MethodGet, "getMe", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUpdates long-polls for updates starting at offset. The returned offset is one past the
// highest update id seen, or the input offset when nothing arrived.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	q := map[string]string{"timeout": strconv.Itoa(secs)}
	if offset > 0 {
		q["offset"] = strconv.FormatInt(offset, 10)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	var updates []Update
	if err := c.call(reqCtx, http.MethodGet, "getUpdates", q, nil, &updates); err != nil {
		return nil, offset, err
	}
	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMessage sends Markdown and retries as plain text when Telegram cannot parse the
// entities. Bodies longer than a single message are split.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, maxMessageRunes) {
		err := c.call(ctx, http.MethodPost, "sendMessage", nil, sendMessageRequest{ChatID: chatID, Text: chunk, ParseMode: "Markdown"}, nil)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			c.log.Debug("markdown rejected, resending as plain text", "chat_id", chatID, "error", apiErr.Description)
			err = c.call(ctx, http.MethodPost, "sendMessage", nil, sendMessageRequest{ChatID: chatID, Text: chunk}, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func splitMessage(text string, max int) []string {
	r := []rune(text)
	if len(r) <= max {
		return []string{text}
	}
	var out []string
	for len(r) > 0 {
		n := max
		if len(r) < n {
			n = len(r)
		}
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	return out
}

func (c *Client) call(ctx context.Context, method, apiMethod string, query map[string]string, body any, out any) error {
	u := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, apiMethod)
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("telegram %s: encode: %w", apiMethod, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("telegram %s: %s", apiMethod, c.scrub(err.Error()))
	}
	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &transportError{msg: fmt.Sprintf("telegram %s: %s", apiMethod, c.scrub(err.Error())), err: err}
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	_ = resp.Body.Close()

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.OK {
		desc := strings.TrimSpace(env.Description)
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Method: apiMethod, Description: c.scrub(desc)}
	}
	if decodeErr != nil {
		return fmt.Errorf("telegram %s: decode: %w", apiMethod, decodeErr)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", apiMethod, err)
		}
	}
	return nil
}

// scrub keeps the bot token out of errors and logs; *url.Error embeds the full URL.
func (c *Client) scrub(s string) string {
	return strings.ReplaceAll(s, c.token, "<redacted>")
}

type transportError struct {
	msg string
	err error
}

func (e *transportError) Error() string { return e.msg }
func (e *transportError) Unwrap() error { return e.err }
