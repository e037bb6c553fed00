// Package sentiment derives the evaluator's optional bullish/bearish
// context from recent headline text using weighted keyword scoring.
package sentiment

import (
	"strings"
)

// Analyzer performs keyword-based sentiment analysis
type Analyzer struct {
	positiveWords map[string]float64
	negativeWords map[string]float64
}

// NewAnalyzer creates new sentiment analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		positiveWords: buildPositiveWords(),
		negativeWords: buildNegativeWords(),
	}
}

// Score analyzes text and returns a sentiment score in [-1, 1]
func (a *Analyzer) Score(text string) float64 {
	if text == "" {
		return 0.0
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0.0
	}

	var score float64
	matched := 0

	for _, word := range words {
		word = strings.Trim(word, ".,!?;:\"'()")

		if weight, ok := a.positiveWords[word]; ok {
			score += weight
			matched++
		}
		if weight, ok := a.negativeWords[word]; ok {
			score -= weight
			matched++
		}
	}

	if matched == 0 {
		return 0.0
	}

	normalized := score / float64(len(words))
	if normalized > 1.0 {
		return 1.0
	}
	if normalized < -1.0 {
		return -1.0
	}
	return normalized
}

func buildPositiveWords() map[string]float64 {
	return map[string]float64{
		"bullish":       1.0,
		"bull":          0.9,
		"rally":         0.9,
		"surge":         0.8,
		"soar":          0.8,
		"breakout":      0.7,
		"pump":          0.7,
		"moon":          0.7,
		"ath":           0.8,
		"gain":          0.6,
		"profit":        0.6,
		"green":         0.6,
		"adoption":      0.6,
		"breakthrough":  0.6,
		"halving":       0.6,
		"up":            0.5,
		"rise":          0.5,
		"growth":        0.5,
		"positive":      0.5,
		"optimistic":    0.5,
		"partnership":   0.5,
		"upgrade":       0.5,
		"institutional": 0.5,
		"accumulation":  0.5,
		"support":       0.4,
		"recovery":      0.4,
	}
}

func buildNegativeWords() map[string]float64 {
	return map[string]float64{
		"bearish":     1.0,
		"bear":        0.9,
		"crash":       1.0,
		"dump":        0.8,
		"plunge":      0.8,
		"collapse":    0.9,
		"panic":       0.8,
		"selloff":     0.7,
		"liquidation": 0.7,
		"hack":        0.8,
		"exploit":     0.7,
		"scam":        0.8,
		"fraud":       0.8,
		"ban":         0.6,
		"lawsuit":     0.6,
		"fud":         0.6,
		"loss":        0.6,
		"red":         0.5,
		"down":        0.5,
		"fall":        0.5,
		"drop":        0.5,
		"decline":     0.5,
		"negative":    0.5,
		"fear":        0.5,
		"resistance":  0.4,
		"correction":  0.4,
	}
}
