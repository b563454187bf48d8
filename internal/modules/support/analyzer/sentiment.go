package analyzer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jonreiter/govader"

	"github.com/yungbote/support-assistant/internal/domain/support"
)

const (
	positiveThreshold = 0.1
	negativeThreshold = -0.1
)

// Scorer returns a polarity score in [-1, 1] for free text.
type Scorer interface {
	Polarity(text string) (float64, error)
}

type ScorerFunc func(text string) (float64, error)

func (f ScorerFunc) Polarity(text string) (float64, error) { return f(text) }

var (
	vaderOnce   sync.Once
	sharedVader *VaderScorer
)

// defaultScorer shares one VADER instance; building the lexicon is not free.
func defaultScorer() Scorer {
	vaderOnce.Do(func() { sharedVader = NewVaderScorer() })
	return sharedVader
}

type Analyzer struct {
	scorer    Scorer
	languages LanguageDetector
}

type Option func(*Analyzer)

func WithLanguageDetector(d LanguageDetector) Option {
	return func(a *Analyzer) { a.languages = d }
}

func New(scorer Scorer, opts ...Option) *Analyzer {
	if scorer == nil {
		scorer = defaultScorer()
	}
	a := &Analyzer{scorer: scorer}
	for _, opt := range opts {
		opt(a)
	}
	if a.languages == nil {
		a.languages = defaultLanguageDetector()
	}
	return a
}

// AnalyzeSentiment never fails the caller: scorer errors and panics both read as neutral.
func (a *Analyzer) AnalyzeSentiment(text string) (label support.Sentiment, score float64) {
	defer func() {
		if rec := recover(); rec != nil {
			label, score = support.SentimentNeutral, 0
		}
	}()
	if a == nil || a.scorer == nil {
		return support.SentimentNeutral, 0
	}
	s, err := a.scorer.Polarity(text)
	if err != nil || s != s {
		return support.SentimentNeutral, 0
	}
	return Classify(s), s
}

func Classify(score float64) support.Sentiment {
	switch {
	case score > positiveThreshold:
		return support.SentimentPositive
	case score < negativeThreshold:
		return support.SentimentNegative
	default:
		return support.SentimentNeutral
	}
}

// VaderScorer scores with the VADER lexicon; the compound score is already in [-1, 1].
type VaderScorer struct {
	sia *govader.SentimentIntensityAnalyzer
}

func NewVaderScorer() *VaderScorer {
	return &VaderScorer{sia: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderScorer) Polarity(text string) (float64, error) {
	if v == nil || v.sia == nil {
		return 0, fmt.Errorf("vader scorer not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	return v.sia.PolarityScores(text).Compound, nil
}
