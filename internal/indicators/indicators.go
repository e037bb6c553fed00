// Package indicators derives technical indicator values from candle history.
package indicators

import (
	"fmt"

	"github.com/cinar/indicator"

	"github.com/mkryl/sigflow/pkg/models"
)

// minCandles is the warmup the slowest indicator (MACD, 26) needs.
const minCandles = 35

// Momentum bundles the indicator values the evaluator consumes.
type Momentum struct {
	RSI           float64
	MACD          float64
	MACDSignal    float64
	MACDHistogram float64
}

// Calculator computes momentum indicators from candle data
type Calculator struct{}

// NewCalculator creates new indicator calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Momentum computes RSI(14) and MACD for the latest candle. Candles must be
// in chronological order, oldest first.
func (c *Calculator) Momentum(candles []models.Candle) (*Momentum, error) {
	if len(candles) < minCandles {
		return nil, fmt.Errorf("insufficient candles for indicators (need at least %d, got %d)", minCandles, len(candles))
	}

	closes := make([]float64, len(candles))
	for i, candle := range candles {
		closes[i], _ = candle.Close.Float64()
	}

	_, rsi := indicator.Rsi(closes)
	macdLine, signalLine := indicator.Macd(closes)

	last := len(closes) - 1
	m := &Momentum{
		RSI:        rsi[last],
		MACD:       macdLine[last],
		MACDSignal: signalLine[last],
	}
	m.MACDHistogram = m.MACD - m.MACDSignal

	return m, nil
}
