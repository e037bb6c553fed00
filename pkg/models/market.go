package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// NewDecimal creates decimal from float64
func NewDecimal(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// MarketSnapshot represents the current state of one symbol as reported
// by an upstream market data provider. Snapshots are produced fresh each
// cycle and never mutated.
type MarketSnapshot struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Change24h float64         `json:"change_24h"` // percent
	Change1h  *float64        `json:"change_1h,omitempty"`
	Volume24h float64         `json:"volume_24h"` // quote volume, USD
	Timestamp time.Time       `json:"timestamp"`
}

// Valid reports whether the snapshot carries usable numbers. Providers
// occasionally return partial tickers; those must never reach the evaluator.
func (s *MarketSnapshot) Valid() bool {
	if s == nil || s.Symbol == "" {
		return false
	}
	if s.Price.IsZero() || s.Price.IsNegative() {
		return false
	}
	if math.IsNaN(s.Change24h) || math.IsInf(s.Change24h, 0) {
		return false
	}
	if math.IsNaN(s.Volume24h) || math.IsInf(s.Volume24h, 0) || s.Volume24h < 0 {
		return false
	}
	if s.Change1h != nil && (math.IsNaN(*s.Change1h) || math.IsInf(*s.Change1h, 0)) {
		return false
	}
	return true
}

// Candle represents OHLCV candlestick data
type Candle struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// HeatBucket is the qualitative tradeability band derived from the heat index.
type HeatBucket string

const (
	BucketCold    HeatBucket = "COLD"
	BucketWarm    HeatBucket = "WARM"
	BucketHot     HeatBucket = "HOT"
	BucketExtreme HeatBucket = "EXTREME"
)

// HeatAssessment is the per-symbol, per-cycle output of the heat scorer.
// It is consumed immediately by the admission gate and never persisted.
type HeatAssessment struct {
	Symbol          string     `json:"symbol"`
	VolatilityScore float64    `json:"volatility_score"`
	VolumeScore     float64    `json:"volume_score"`
	LiquidityScore  float64    `json:"liquidity_score"`
	SpreadScore     float64    `json:"spread_score"`
	HeatIndex       float64    `json:"heat_index"`
	Bucket          HeatBucket `json:"bucket"`
	Admitted        bool       `json:"admitted"`
	RejectReason    string     `json:"reject_reason,omitempty"`
}

// SentimentBias classifies aggregate market mood around a symbol.
type SentimentBias string

const (
	SentimentBullish SentimentBias = "bullish"
	SentimentBearish SentimentBias = "bearish"
	SentimentNeutral SentimentBias = "neutral"
)

// SentimentContext is the optional secondary input to signal evaluation.
// It may shade confidence but is never the sole basis for a signal.
type SentimentContext struct {
	Symbol     string        `json:"symbol"`
	Bias       SentimentBias `json:"bias"`
	Confidence float64       `json:"confidence"` // 0..1
	UpdatedAt  time.Time     `json:"updated_at"`
}
