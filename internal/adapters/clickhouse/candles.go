// Package clickhouse reads candle history from the market_ohlcv table
// populated by the ingestion pipeline.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mkryl/sigflow/pkg/models"
)

// CandleRepository reads OHLCV history for the indicator-based evaluation rule
type CandleRepository struct {
	ch *sqlx.DB
}

// NewCandleRepository creates a candle repository over a ClickHouse connection
func NewCandleRepository(ch *sqlx.DB) *CandleRepository {
	return &CandleRepository{ch: ch}
}

// GetCandles returns the most recent candles in chronological order
// (oldest first), as the indicator calculator expects.
func (r *CandleRepository) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	query := `
		SELECT timestamp, symbol, timeframe, open, high, low, close, volume
		FROM market_ohlcv
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.ch.QueryxContext(ctx, query, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	candles := []models.Candle{}
	for rows.Next() {
		var candle models.Candle
		var open, high, low, closePrice, volume float64

		err := rows.Scan(
			&candle.Timestamp,
			&candle.Symbol,
			&candle.Timeframe,
			&open,
			&high,
			&low,
			&closePrice,
			&volume,
		)
		if err != nil {
			continue
		}

		candle.Open = models.NewDecimal(open)
		candle.High = models.NewDecimal(high)
		candle.Low = models.NewDecimal(low)
		candle.Close = models.NewDecimal(closePrice)
		candle.Volume = models.NewDecimal(volume)

		candles = append(candles, candle)
	}

	// Reverse to chronological order
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}
