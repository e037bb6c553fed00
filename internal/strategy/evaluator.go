// Package strategy turns market snapshots into candidate signals using
// deterministic rules. No randomness: the same snapshot and context always
// produce the same outcome.
package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mkryl/sigflow/internal/indicators"
	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

// CandleSource supplies candle history for the indicator rule. Optional;
// without one the evaluator runs on momentum breakouts alone.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

// Config holds evaluator tuning knobs
type Config struct {
	// MomentumThreshold is the 24h move (percent) that counts as a breakout
	MomentumThreshold float64
	// VolumeFloor is the minimum 24h quote volume backing a breakout, USD
	VolumeFloor float64
	// Timeframe and CandleLookback parameterize the indicator rule
	Timeframe      string
	CandleLookback int
	// RSI bands for the reversal rule
	RSIOversold   float64
	RSIOverbought float64
}

// DefaultConfig returns the evaluator defaults
func DefaultConfig() Config {
	return Config{
		MomentumThreshold: 8.0,
		VolumeFloor:       5e7,
		Timeframe:         "1h",
		CandleLookback:    100,
		RSIOversold:       30,
		RSIOverbought:     70,
	}
}

// Evaluator produces at most one candidate signal per symbol per cycle
type Evaluator struct {
	cfg     Config
	candles CandleSource
	calc    *indicators.Calculator
	now     func() time.Time
}

// NewEvaluator creates an evaluator. candles may be nil.
func NewEvaluator(cfg Config, candles CandleSource) *Evaluator {
	return &Evaluator{
		cfg:     cfg,
		candles: candles,
		calc:    indicators.NewCalculator(),
		now:     time.Now,
	}
}

// Evaluate inspects the snapshot and optional sentiment context and returns
// a candidate signal or nil. An unusable snapshot yields (nil, nil), never
// an error: bad upstream data is a normal outcome, not a fault.
func (e *Evaluator) Evaluate(ctx context.Context, snap *models.MarketSnapshot, sentiment *models.SentimentContext) (*models.Signal, error) {
	if !snap.Valid() {
		return nil, nil
	}

	if sig := e.momentumBreakout(snap); sig != nil {
		e.applySentiment(sig, sentiment)
		return sig, nil
	}

	if e.candles != nil {
		sig, err := e.rsiReversal(ctx, snap)
		if err != nil {
			return nil, err
		}
		if sig != nil {
			e.applySentiment(sig, sentiment)
			return sig, nil
		}
	}

	return nil, nil
}

// momentumBreakout fires when the 24h move crosses the configured threshold
// with real volume behind it.
func (e *Evaluator) momentumBreakout(snap *models.MarketSnapshot) *models.Signal {
	move := math.Abs(snap.Change24h)
	if move < e.cfg.MomentumThreshold || snap.Volume24h < e.cfg.VolumeFloor {
		return nil
	}

	direction := models.DirectionBuy
	if snap.Change24h < 0 {
		direction = models.DirectionSell
	}

	confidence := 50 + math.Min(30, (move-e.cfg.MomentumThreshold)*2)
	rationale := fmt.Sprintf("24h move %+.2f%% beyond ±%.1f%% threshold on %.0fM volume",
		snap.Change24h, e.cfg.MomentumThreshold, snap.Volume24h/1e6)

	return e.build(snap, direction, confidence, "momentum-breakout", rationale)
}

// rsiReversal fires on RSI extremes confirmed by the MACD histogram.
func (e *Evaluator) rsiReversal(ctx context.Context, snap *models.MarketSnapshot) (*models.Signal, error) {
	candles, err := e.candles.GetCandles(ctx, snap.Symbol, e.cfg.Timeframe, e.cfg.CandleLookback)
	if err != nil {
		return nil, fmt.Errorf("candle history unavailable for %s: %w", snap.Symbol, err)
	}

	momentum, err := e.calc.Momentum(candles)
	if err != nil {
		// Not enough history yet; treat as no signal.
		logger.Debug("skipping indicator rule",
			zap.String("symbol", snap.Symbol),
			zap.Error(err),
		)
		return nil, nil
	}

	var direction models.SignalDirection
	switch {
	case momentum.RSI <= e.cfg.RSIOversold && momentum.MACDHistogram > 0:
		direction = models.DirectionBuy
	case momentum.RSI >= e.cfg.RSIOverbought && momentum.MACDHistogram < 0:
		direction = models.DirectionSell
	default:
		return nil, nil
	}

	// Deeper RSI extremes read as stronger setups.
	depth := math.Min(20, math.Abs(momentum.RSI-50)-20)
	confidence := 45 + depth
	rationale := fmt.Sprintf("RSI %.1f with MACD histogram %+.4f on %s candles",
		momentum.RSI, momentum.MACDHistogram, e.cfg.Timeframe)

	return e.build(snap, direction, confidence, "rsi-reversal", rationale), nil
}

// applySentiment shades confidence by the optional sentiment context.
// Sentiment never creates or flips a signal on its own.
func (e *Evaluator) applySentiment(sig *models.Signal, sentiment *models.SentimentContext) {
	if sentiment == nil || sentiment.Bias == models.SentimentNeutral {
		return
	}

	aligned := (sentiment.Bias == models.SentimentBullish && sig.Direction == models.DirectionBuy) ||
		(sentiment.Bias == models.SentimentBearish && sig.Direction == models.DirectionSell)

	adjust := math.Min(10, sentiment.Confidence*10)
	if !aligned {
		adjust = -adjust
	}

	sig.Confidence = clampConfidence(sig.Confidence + adjust)
	sig.Rationale = fmt.Sprintf("%s; sentiment %s (%.0f%%)", sig.Rationale, sentiment.Bias, sentiment.Confidence*100)
}

// build derives targets from recent volatility: risk one volatility unit,
// aim for two, so every signal leaves with a 2:1 reward-to-risk shape.
func (e *Evaluator) build(snap *models.MarketSnapshot, direction models.SignalDirection, confidence float64, strat, rationale string) *models.Signal {
	riskPct := clamp(math.Abs(snap.Change24h)/2, 1, 5)

	risk := decimal.NewFromFloat(riskPct / 100)
	reward := decimal.NewFromFloat(2 * riskPct / 100)
	one := decimal.NewFromInt(1)

	var target, stop decimal.Decimal
	if direction == models.DirectionBuy {
		target = snap.Price.Mul(one.Add(reward))
		stop = snap.Price.Mul(one.Sub(risk))
	} else {
		target = snap.Price.Mul(one.Sub(reward))
		stop = snap.Price.Mul(one.Add(risk))
	}

	return &models.Signal{
		Symbol:     snap.Symbol,
		Direction:  direction,
		Price:      snap.Price,
		Confidence: clampConfidence(confidence),
		Strategy:   strat,
		Timeframe:  e.cfg.Timeframe,
		Target:     target,
		Stop:       stop,
		RiskReward: 2,
		Rationale:  rationale,
		Source:     "sigflow",
		CreatedAt:  e.now().UTC(),
	}
}

func clampConfidence(v float64) float64 {
	return clamp(v, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
