package scripted

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/support-assistant/internal/domain/support"
)

type fakeDetector struct {
	det   Detection
	err   error
	calls int
	key   string
	lang  string
}

func (f *fakeDetector) DetectIntent(_ context.Context, sessionKey, _ string, languageCode string) (Detection, error) {
	f.calls++
	f.key = sessionKey
	f.lang = languageCode
	return f.det, f.err
}

func TestQueryMeaningfulReply(t *testing.T) {
	d := &fakeDetector{det: Detection{FulfillmentText: "  Your order ships tomorrow. ", Confidence: 0.73}}
	c := New(nil, d, "")
	res := c.Query(context.Background(), "web-abc", "where is my order", "")
	if res == nil {
		t.Fatalf("expected result")
	}
	if res.Source != support.SourceScriptedIntent || res.Confidence != 0.73 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Text != "Your order ships tomorrow." {
		t.Fatalf("text=%q", res.Text)
	}
	if d.key != "web-abc" || d.lang != DefaultLanguageCode {
		t.Fatalf("key=%q lang=%q", d.key, d.lang)
	}
}

func TestQueryDefersToNextLayer(t *testing.T) {
	cases := []struct {
		name string
		d    *fakeDetector
	}{
		{"generic", &fakeDetector{det: Detection{FulfillmentText: "Sorry, I didn't get that. Can you say it again?", Confidence: 1}}},
		{"generic upper", &fakeDetector{det: Detection{FulfillmentText: "COULD YOU REPHRASE?", Confidence: 1}}},
		{"empty", &fakeDetector{det: Detection{FulfillmentText: "   ", Confidence: 1}}},
		{"error", &fakeDetector{err: errors.New("unavailable")}},
	}
	for _, tc := range cases {
		if res := New(nil, tc.d, "en").Query(context.Background(), "k", "x", ""); res != nil {
			t.Fatalf("%s: expected nil, got %+v", tc.name, res)
		}
	}
	var disabled *Client
	if disabled.Query(context.Background(), "k", "x", "") != nil {
		t.Fatalf("nil client should return nil")
	}
	if New(nil, nil, "en").Query(context.Background(), "k", "x", "") != nil {
		t.Fatalf("client without detector should return nil")
	}
}

func TestIsGenericCoversEveryPhrase(t *testing.T) {
	if len(GenericPhrases) != 30 {
		t.Fatalf("phrase count=%d", len(GenericPhrases))
	}
	for _, p := range GenericPhrases {
		if !IsGeneric("Well... " + strings.ToUpper(p) + "!") {
			t.Fatalf("phrase not detected: %q", p)
		}
	}
	if IsGeneric("Our store opens at 9 AM.") {
		t.Fatalf("meaningful reply flagged generic")
	}
}

func TestSessionKey(t *testing.T) {
	if got := SessionKey(support.ChannelTelegram, "12345"); got != "telegram-12345" {
		t.Fatalf("got %q", got)
	}
	long := SessionKey(support.ChannelWeb, "0f8fad5b-d9cb-469f-a165-70867728950e")
	if len(long) > maxSessionKeyLen {
		t.Fatalf("key too long: %q", long)
	}
	if long != SessionKey(support.ChannelWeb, "0f8fad5b-d9cb-469f-a165-70867728950e") {
		t.Fatalf("key not deterministic")
	}
	if long == SessionKey(support.ChannelWeb, "1f8fad5b-d9cb-469f-a165-70867728950e") {
		t.Fatalf("distinct conversations share a key")
	}
	if got := SessionKey(support.ChannelTelegram, "-100 42"); !strings.HasPrefix(got, "s-") {
		t.Fatalf("unsafe key not hashed: %q", got)
	}
}

func TestQueryLanguageSelection(t *testing.T) {
	cases := []struct {
		name     string
		detected string
		want     string
	}{
		{"supported", "es", "es"},
		{"supported upper", " FR ", "fr"},
		{"unsupported", "de", "en"},
		{"undetected", "", "en"},
	}
	for _, tc := range cases {
		d := &fakeDetector{det: Detection{FulfillmentText: "Hola", Confidence: 0.9}}
		New(nil, d, "EN", "es", "fr").Query(context.Background(), "k", "hola", tc.detected)
		if d.lang != tc.want {
			t.Fatalf("%s: lang=%q want %q", tc.name, d.lang, tc.want)
		}
	}
}
