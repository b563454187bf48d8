package scripted

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/yungbote/support-assistant/internal/domain/support"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

// Dialogflow rejects session ids longer than this.
const maxSessionKeyLen = 36

const DefaultLanguageCode = "en"

type Detection struct {
	FulfillmentText string
	Confidence      float64
	IntentName      string
}

type Detector interface {
	DetectIntent(ctx context.Context, sessionKey, text, languageCode string) (Detection, error)
}

type Client struct {
	log          *logger.Logger
	detector     Detector
	languageCode string
	supported    map[string]bool
}

// New builds the scripted layer. supported lists the agent languages a detected message
// language may select; anything else is sent as languageCode.
func New(log *logger.Logger, detector Detector, languageCode string, supported ...string) *Client {
	if log == nil {
		log = logger.Nop()
	}
	languageCode = normalizeLanguage(languageCode)
	if languageCode == "" {
		languageCode = DefaultLanguageCode
	}
	c := &Client{log: log, detector: detector, languageCode: languageCode, supported: map[string]bool{languageCode: true}}
	for _, code := range supported {
		if code = normalizeLanguage(code); code != "" {
			c.supported[code] = true
		}
	}
	return c
}

// LanguageFor picks the language code sent with a query.
func (c *Client) LanguageFor(detected string) string {
	if c == nil {
		return DefaultLanguageCode
	}
	if code := normalizeLanguage(detected); code != "" && c.supported[code] {
		return code
	}
	return c.languageCode
}

func normalizeLanguage(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func (c *Client) Enabled() bool { return c != nil && c.detector != nil }

// Query returns nil whenever the reply should not be shown: transport errors, empty text
// and catch-all template replies all defer to the next layer.
func (c *Client) Query(ctx context.Context, sessionKey, text, language string) *support.ResponseResult {
	if !c.Enabled() {
		return nil
	}
	det, err := c.detector.DetectIntent(ctx, sessionKey, text, c.LanguageFor(language))
	if err != nil {
		c.log.Warn("scripted intent detect failed", "session_key", sessionKey, "error", err)
		return nil
	}
	reply := strings.TrimSpace(det.FulfillmentText)
	if reply == "" {
		return nil
	}
	if IsGeneric(reply) {
		c.log.Debug("scripted intent reply is generic", "session_key", sessionKey, "intent", det.IntentName)
		return nil
	}
	return support.NewResult(reply, support.SourceScriptedIntent, det.Confidence)
}

func IsGeneric(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range GenericPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// SessionKey is stable per conversation so the intent service can keep turn context.
func SessionKey(channel support.Channel, conversationID string) string {
	key := fmt.Sprintf("%s-%s", channel, strings.TrimSpace(conversationID))
	if len(key) <= maxSessionKeyLen && isSafeKey(key) {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "s-" + hex.EncodeToString(sum[:])[:32]
}

func isSafeKey(key string) bool {
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// GenericPhrases are the catch-all prompts an intent agent emits when nothing matched.
var GenericPhrases = []string{
	"hmm, i'm not sure i understand",
	"could you rephrase",
	"sorry, i'm still learning",
	"i'm afraid i don't have an answer",
	"that's a bit outside my knowledge",
	"can you ask something else",
	"i'll pass it along to the team",
	"that's a great question",
	"i'm not sure about that",
	"let me check on that",
	"i don't have information about that",
	"that's beyond my capabilities",
	"i didn't get that",
	"i'm sorry, i didn't quite catch that",
	"would you like to talk to a support agent",
	"can you try saying it differently",
	"i didn't catch that",
	"could you please rephrase",
	"i'm sorry, i didn't understand",
	"let me connect you with someone",
	"i'll transfer you to an agent",
	"that's outside my scope",
	"i can't help with that",
	"i don't have that information",
	"i'm not programmed for that",
	"that's not something i can assist with",
	"i'm limited in what i can help with",
	"i don't have access to that",
	"that's beyond my training",
	"i can't process that request",
}
