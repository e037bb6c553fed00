// Package heat scores how tradeable a symbol currently is and gates
// whether signal evaluation should run for it at all.
package heat

import (
	"math"

	"github.com/mkryl/sigflow/pkg/models"
)

// Weighting of the composite heat index.
const (
	weightVolatility = 0.4
	weightVolume     = 0.3
	weightLiquidity  = 0.2
	weightSpread     = 0.1
)

// Hard limits applied before the heat gate. A pumped illiquid symbol or an
// extreme 1h move is rejected outright regardless of its heat index.
const (
	spikeChangeLimit  = 20.0 // percent, 24h
	spikeVolumeFloor  = 1e7  // USD
	extremeHourlyMove = 10.0 // percent, 1h
)

// Scorer computes heat assessments. Pure and deterministic; safe for
// concurrent use.
type Scorer struct {
	admitThreshold float64
}

// NewScorer creates a scorer with the given admission threshold
func NewScorer(admitThreshold float64) *Scorer {
	return &Scorer{admitThreshold: admitThreshold}
}

// Assess maps a snapshot to its heat assessment. The safety filters are
// independent hard rejects checked before the heat gate; they do not feed
// the score.
func (s *Scorer) Assess(snap *models.MarketSnapshot) models.HeatAssessment {
	volatility := math.Abs(snap.Change24h)
	volumeScore := math.Min(100, (snap.Volume24h/1e8)*10)
	liquidityScore := math.Min(100, volumeScore*0.8)
	spreadScore := math.Min(100, volumeScore*0.6)

	index := weightVolatility*volatility +
		weightVolume*volumeScore +
		weightLiquidity*liquidityScore +
		weightSpread*spreadScore
	index = clamp(index, 0, 100)

	a := models.HeatAssessment{
		Symbol:          snap.Symbol,
		VolatilityScore: volatility,
		VolumeScore:     volumeScore,
		LiquidityScore:  liquidityScore,
		SpreadScore:     spreadScore,
		HeatIndex:       index,
		Bucket:          bucketFor(index),
	}

	if volatility > spikeChangeLimit && snap.Volume24h < spikeVolumeFloor {
		a.RejectReason = models.ReasonSafetyFilter
		return a
	}
	if snap.Change1h != nil && math.Abs(*snap.Change1h) > extremeHourlyMove {
		a.RejectReason = models.ReasonSafetyFilter
		return a
	}

	if index < s.admitThreshold {
		a.RejectReason = models.ReasonBelowHeat
		return a
	}

	a.Admitted = true
	return a
}

func bucketFor(index float64) models.HeatBucket {
	switch {
	case index >= 80:
		return models.BucketExtreme
	case index >= 60:
		return models.BucketHot
	case index >= 40:
		return models.BucketWarm
	default:
		return models.BucketCold
	}
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
