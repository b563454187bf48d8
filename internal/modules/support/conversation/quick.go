package conversation

import "strings"

type QuickAction struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

var QuickActions = []QuickAction{
	{Name: "contact", Label: "📞 Contact Support", Prompt: "I need to contact support"},
	{Name: "order", Label: "📦 Order Status", Prompt: "Where is my order?"},
	{Name: "returns", Label: "🔄 Returns", Prompt: "I want to return something"},
	{Name: "hours", Label: "⏰ Business Hours", Prompt: "What are your business hours?"},
	{Name: "joke", Label: "🎭 Tell me a joke", Prompt: "Tell me a funny joke"},
	{Name: "weather", Label: "🌤️ Weather", Prompt: "What's the weather like today?"},
	{Name: "recipe", Label: "🍕 Pizza recipe", Prompt: "How do I make homemade pizza?"},
	{Name: "philosophy", Label: "💭 Philosophy", Prompt: "What's the meaning of life?"},
}

func QuickPrompt(action string) (string, bool) {
	action = strings.ToLower(strings.TrimSpace(action))
	for _, qa := range QuickActions {
		if qa.Name == action {
			return qa.Prompt, true
		}
	}
	return "", false
}
