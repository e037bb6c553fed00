package workers

import (
	"context"

	"github.com/mkryl/sigflow/internal/sentiment"
)

// SentimentWorker refreshes cached sentiment context ahead of engine cycles
// so that scoring never waits on a headline fetch.
type SentimentWorker struct {
	provider *sentiment.Provider
	symbols  []string
}

// NewSentimentWorker creates a sentiment refresh worker
func NewSentimentWorker(provider *sentiment.Provider, symbols []string) *SentimentWorker {
	return &SentimentWorker{
		provider: provider,
		symbols:  symbols,
	}
}

// Name returns the worker name
func (w *SentimentWorker) Name() string {
	return "sentiment_refresh"
}

// Run refreshes sentiment context for all tracked symbols
func (w *SentimentWorker) Run(ctx context.Context) error {
	w.provider.Refresh(ctx, w.symbols)
	return nil
}
