package analyzer

import "strings"

type intentGroup struct {
	tag      string
	keywords []string
}

// Tag order is stable; callers and the analytics report rely on it.
var intentGroups = []intentGroup{
	{tag: "order", keywords: []string{"order", "tracking", "delivery", "shipping", "where", "when"}},
	{tag: "support", keywords: []string{"help", "support", "assist", "problem", "issue", "trouble"}},
	{tag: "product", keywords: []string{"product", "item", "buy", "purchase", "price", "cost"}},
	{tag: "return", keywords: []string{"return", "refund", "exchange", "cancel", "send back"}},
	{tag: "contact", keywords: []string{"contact", "phone", "email", "speak", "human", "agent"}},
	{tag: "hours", keywords: []string{"hours", "open", "closed", "time", "when", "available"}},
}

// IntentTags lists every tag name in table order.
func IntentTags() []string {
	out := make([]string, 0, len(intentGroups))
	for _, g := range intentGroups {
		out = append(out, g.tag)
	}
	return out
}

func ExtractIntentTags(text string) []string {
	lower := strings.ToLower(text)
	tags := []string{}
	if strings.TrimSpace(lower) == "" {
		return tags
	}
	for _, g := range intentGroups {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, g.tag)
				break
			}
		}
	}
	return tags
}

func (a *Analyzer) ExtractIntentTags(text string) []string { return ExtractIntentTags(text) }
