package analyzer

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// DefaultLanguage is reported when detection is inconclusive.
const DefaultLanguage = "en"

// LanguageDetector returns a lower-case ISO 639-1 code, or "" when unsure.
type LanguageDetector interface {
	DetectLanguage(text string) string
}

// DefaultLanguages are the languages the lingua detector chooses between.
var DefaultLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
}

type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector limits detection to languages (DefaultLanguages when empty). Short,
// ambiguous messages come back undetected instead of guessed.
func NewLinguaDetector(languages ...lingua.Language) *LinguaDetector {
	if len(languages) < 2 {
		languages = DefaultLanguages
	}
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			WithMinimumRelativeDistance(0.1).
			Build(),
	}
}

func (l *LinguaDetector) DetectLanguage(text string) string {
	if l == nil || l.detector == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	lang, ok := l.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

var (
	linguaOnce   sync.Once
	sharedLingua *LinguaDetector
)

func defaultLanguageDetector() LanguageDetector {
	linguaOnce.Do(func() { sharedLingua = NewLinguaDetector() })
	return sharedLingua
}

// DetectLanguage never fails the caller; anything inconclusive reads as DefaultLanguage.
func (a *Analyzer) DetectLanguage(text string) (code string) {
	defer func() {
		if rec := recover(); rec != nil {
			code = DefaultLanguage
		}
	}()
	if a == nil || a.languages == nil {
		return DefaultLanguage
	}
	if code = a.languages.DetectLanguage(text); code == "" {
		return DefaultLanguage
	}
	return code
}
