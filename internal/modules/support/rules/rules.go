package rules

import (
	"strings"

	"github.com/yungbote/support-assistant/internal/domain/support"
)

// Rule maps a trigger set onto one canned answer. Triggers are lower-case substrings.
type Rule struct {
	Name       string
	Triggers   []string
	Response   string
	Confidence float64
}

type Engine struct {
	rules []Rule
}

func New(rules []Rule) *Engine {
	if rules == nil {
		rules = Default
	}
	return &Engine{rules: rules}
}

// Match returns the answer of the first rule with a trigger contained in text, or nil.
func (e *Engine) Match(text string) *support.ResponseResult {
	if e == nil {
		return nil
	}
	r := e.Rule(text)
	if r == nil {
		return nil
	}
	return support.NewResult(r.Response, support.SourceRuleEngine, r.Confidence)
}

func (e *Engine) Rule(text string) *Rule {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return nil
	}
	for i := range e.rules {
		for _, trig := range e.rules[i].Triggers {
			if strings.Contains(lower, trig) {
				return &e.rules[i]
			}
		}
	}
	return nil
}

func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

const FinalFallback = "I'm here to help! Please contact our support team at 1-800-SUPPORT for immediate assistance."

const Unavailable = `I understand you need help! Unfortunately, my advanced AI service is temporarily unavailable due to usage limits.

Here are your options:
📞 **Call Support:** 1-800-SUPPORT (24/7)
📧 **Email:** support@company.com
💬 **Live Chat:** Available on our website
⏰ **Business Hours:** Mon-Fri 8AM-8PM EST

For immediate assistance, I recommend contacting our human support team who can help you right away!`

const TryAgain = "I apologize, but I'm having trouble processing your request right now. Please try again in a moment or contact our human support team for immediate assistance."

const TicketNoticeFormat = "\n\n⚠️ Support ticket #%d created - A human agent will contact you soon."

// Default is evaluated in order; the first matching group wins.
var Default = []Rule{
	{
		Name:       "greeting",
		Triggers:   []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
		Confidence: 0.95,
		Response:   "Hello! 👋 I'm your AI-powered support assistant. I'm here to help you with any questions about our products, services, or support needs. How can I assist you today?",
	},
	{
		Name:       "help",
		Triggers:   []string{"help", "support", "assist", "what can you do", "how can you help"},
		Confidence: 0.9,
		Response: `I'm your comprehensive support assistant! Here's what I can help you with:

🔍 **Product Information** - Find details, pricing, and availability
📦 **Order Management** - Track orders, check status, and manage deliveries
🔄 **Returns & Refunds** - Process returns and handle refunds
🔧 **Technical Support** - Troubleshoot issues and provide solutions
📞 **Contact Information** - Connect you with the right team
⏰ **Business Hours** - Check availability and support times
💳 **Payment & Billing** - Handle payment issues and billing questions

What would you like to know about?`,
	},
	{
		Name:       "product",
		Triggers:   []string{"product", "item", "buy", "purchase", "price", "cost", "available"},
		Confidence: 0.85,
		Response:   "I'd be happy to help you with product information! Could you please specify which product or category you're interested in? I can provide details about pricing, features, availability, and help you make the best choice.",
	},
	{
		Name:       "order",
		Triggers:   []string{"order", "tracking", "shipping", "delivery", "when", "status", "where is my"},
		Confidence: 0.9,
		Response: `To check your order status, I'll need your order number. Here's how to find it:

📧 **Email Confirmation** - Check your email for order confirmation
📱 **Account Dashboard** - Log into your account to view order history
📞 **Phone Support** - Call us at 1-800-SUPPORT with your order number

Once you have your order number, I can help you track its status and estimated delivery date. Do you have your order number handy?`,
	},
	{
		Name:       "returns",
		Triggers:   []string{"return", "refund", "exchange", "cancel", "send back", "money back"},
		Confidence: 0.9,
		Response: `Our return and refund policy is designed to make things easy for you:

✅ **30-Day Return Window** - Return items within 30 days of purchase
📦 **Free Return Shipping** - We cover all return shipping costs
💳 **Full Refund** - Money back to your original payment method
🔄 **Easy Process** - Use our online return portal or contact support

To start a return, I'll need your order number and the reason for return. Do you have your order details ready?`,
	},
	{
		Name:       "technical",
		Triggers:   []string{"technical", "broken", "not working", "error", "problem", "issue", "trouble", "fix"},
		Confidence: 0.85,
		Response: `I'm sorry to hear you're experiencing technical issues. Let me help you troubleshoot:

🔍 **Quick Troubleshooting Steps:**
• Restart your device/browser
• Clear cache and cookies
• Check your internet connection
• Try a different browser or device
• Update to the latest version

📞 **Still having issues?** I can connect you with our technical support team for personalized assistance.

Could you describe the problem in detail so I can provide more specific help?`,
	},
	{
		Name:       "contact",
		Triggers:   []string{"contact", "phone", "email", "speak", "human", "agent", "talk to someone"},
		Confidence: 0.9,
		Response: `You can reach our customer service team through multiple channels:

📞 **Phone Support:** 1-800-SUPPORT (24/7)
📧 **Email:** support@company.com
💬 **Live Chat:** Available on our website
📱 **Mobile App:** Download our app for quick support

⏰ **Business Hours:**
Monday-Friday: 8 AM - 8 PM EST
Saturday: 9 AM - 6 PM EST
Sunday: 10 AM - 4 PM EST

Would you like me to connect you with a human agent right now?`,
	},
	{
		Name:       "hours",
		Triggers:   []string{"hours", "open", "closed", "time", "when", "available", "business hours"},
		Confidence: 0.9,
		Response: `Our customer support is available:

🕐 **Monday-Friday:** 8 AM - 8 PM EST
🕐 **Saturday:** 9 AM - 6 PM EST
🕐 **Sunday:** 10 AM - 4 PM EST

📞 **24/7 Emergency Support:** Available for urgent technical issues
💬 **Online Chat:** Available 24/7 for general inquiries

We're here to help whenever you need us!`,
	},
	{
		Name:       "goodbye",
		Triggers:   []string{"bye", "goodbye", "end", "exit", "see you", "thank you", "thanks"},
		Confidence: 0.95,
		Response:   "Thank you for chatting with us! Have a wonderful day! 👋 Feel free to come back anytime you need assistance. We're here to help!",
	},
}
