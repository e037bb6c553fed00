package sentiment

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

// HeadlineSource fetches recent headline/post text mentioning a symbol.
// Implementations live outside the core (news adapters, Reddit, etc.).
type HeadlineSource interface {
	RecentHeadlines(ctx context.Context, symbol string, limit int) ([]string, error)
}

// biasThreshold is the normalized score beyond which mood stops being neutral.
const biasThreshold = 0.15

// Provider caches per-symbol sentiment context with a TTL so a cycle over
// many symbols does not hammer the headline source.
type Provider struct {
	analyzer *Analyzer
	source   HeadlineSource
	ttl      time.Duration
	limit    int
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]models.SentimentContext
}

// NewProvider creates a sentiment provider over the given headline source
func NewProvider(source HeadlineSource, ttl time.Duration, headlineLimit int) *Provider {
	if headlineLimit <= 0 {
		headlineLimit = 25
	}
	return &Provider{
		analyzer: NewAnalyzer(),
		source:   source,
		ttl:      ttl,
		limit:    headlineLimit,
		now:      time.Now,
		cache:    make(map[string]models.SentimentContext),
	}
}

// Context returns the cached sentiment context for a symbol, refreshing it
// from the headline source when stale. A headline fetch failure degrades to
// "no context" rather than failing the caller.
func (p *Provider) Context(ctx context.Context, symbol string) *models.SentimentContext {
	p.mu.RLock()
	cached, ok := p.cache[symbol]
	p.mu.RUnlock()

	if ok && p.now().Sub(cached.UpdatedAt) < p.ttl {
		return &cached
	}

	refreshed, err := p.refresh(ctx, symbol)
	if err != nil {
		logger.Debug("sentiment refresh failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		if ok {
			return &cached // stale beats nothing
		}
		return nil
	}

	return refreshed
}

// Refresh forces a refresh for all given symbols. Called by the periodic
// sentiment worker so engine cycles mostly hit warm cache.
func (p *Provider) Refresh(ctx context.Context, symbols []string) {
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.refresh(ctx, symbol); err != nil {
			logger.Debug("sentiment refresh failed",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
		}
	}
}

func (p *Provider) refresh(ctx context.Context, symbol string) (*models.SentimentContext, error) {
	headlines, err := p.source.RecentHeadlines(ctx, symbol, p.limit)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, h := range headlines {
		total += p.analyzer.Score(h)
	}

	score := 0.0
	if len(headlines) > 0 {
		score = total / float64(len(headlines))
	}

	sc := models.SentimentContext{
		Symbol:     symbol,
		Bias:       biasFor(score),
		Confidence: math.Min(1, math.Abs(score)*2),
		UpdatedAt:  p.now(),
	}

	p.mu.Lock()
	p.cache[symbol] = sc
	p.mu.Unlock()

	return &sc, nil
}

func biasFor(score float64) models.SentimentBias {
	switch {
	case score > biasThreshold:
		return models.SentimentBullish
	case score < -biasThreshold:
		return models.SentimentBearish
	default:
		return models.SentimentNeutral
	}
}
