package support

import "strings"

// Source names the resolution layer that produced a reply.
type Source string

const (
	SourceScriptedIntent Source = "scripted_intent"
	SourceCompletion     Source = "completion"
	SourceRuleEngine     Source = "rule_engine"
	SourceFallback       Source = "fallback"
)

func (s Source) Valid() bool {
	switch s {
	case SourceScriptedIntent, SourceCompletion, SourceRuleEngine, SourceFallback:
		return true
	}
	return false
}

// ResponseResult is the answer of one resolution layer. Source always names the layer that
// actually produced Text.
type ResponseResult struct {
	Text       string  `json:"text"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
}

func NewResult(text string, source Source, confidence float64) *ResponseResult {
	return &ResponseResult{
		Text:       strings.TrimSpace(text),
		Source:     source,
		Confidence: ClampConfidence(confidence),
	}
}

func ClampConfidence(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelTelegram Channel = "telegram"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)
