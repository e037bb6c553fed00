package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SignalDirection represents the side of an emitted trading signal
type SignalDirection string

const (
	DirectionBuy  SignalDirection = "buy"
	DirectionSell SignalDirection = "sell"
	DirectionInfo SignalDirection = "info"
)

// Signal is an immutable, append-only record of one trading opportunity
// detected by the engine. Once stored it is never updated; old rows are
// removed only by the retention policy.
type Signal struct {
	ID         int64           `db:"id" json:"id"`
	Symbol     string          `db:"symbol" json:"symbol"`
	Direction  SignalDirection `db:"direction" json:"direction"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Confidence float64         `db:"confidence" json:"confidence"` // 0..100
	Strategy   string          `db:"strategy" json:"strategy"`
	Timeframe  string          `db:"timeframe" json:"timeframe"`
	Target     decimal.Decimal `db:"target_price" json:"target_price"`
	Stop       decimal.Decimal `db:"stop_loss" json:"stop_loss"`
	RiskReward float64         `db:"risk_reward" json:"risk_reward"`
	Rationale  string          `db:"rationale" json:"rationale"`
	Source     string          `db:"source" json:"source"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Validate checks internal consistency of the signal. For directional
// signals the target and stop must sit on the correct side of the entry:
// buy means target > price > stop, sell means target < price < stop.
func (s *Signal) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("signal has no symbol")
	}
	if s.Price.IsZero() || s.Price.IsNegative() {
		return fmt.Errorf("signal %s has non-positive price %s", s.Symbol, s.Price)
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return fmt.Errorf("signal %s has confidence %.2f out of range", s.Symbol, s.Confidence)
	}

	switch s.Direction {
	case DirectionBuy:
		if s.Target.LessThanOrEqual(s.Price) {
			return fmt.Errorf("buy signal %s: target %s must be above price %s", s.Symbol, s.Target, s.Price)
		}
		if s.Stop.GreaterThanOrEqual(s.Price) {
			return fmt.Errorf("buy signal %s: stop %s must be below price %s", s.Symbol, s.Stop, s.Price)
		}
	case DirectionSell:
		if s.Target.GreaterThanOrEqual(s.Price) {
			return fmt.Errorf("sell signal %s: target %s must be below price %s", s.Symbol, s.Target, s.Price)
		}
		if s.Stop.LessThanOrEqual(s.Price) {
			return fmt.Errorf("sell signal %s: stop %s must be above price %s", s.Symbol, s.Stop, s.Price)
		}
	case DirectionInfo:
		// informational signals carry no levels
	default:
		return fmt.Errorf("signal %s has unknown direction %q", s.Symbol, s.Direction)
	}

	return nil
}

// CooldownEntry records the last accepted signal per symbol. It drives the
// at-most-one-signal-per-direction-per-window admission rule.
type CooldownEntry struct {
	Symbol        string          `db:"symbol" json:"symbol"`
	LastSignalAt  time.Time       `db:"last_signal_at" json:"last_signal_at"`
	LastDirection SignalDirection `db:"last_direction" json:"last_direction"`
}
