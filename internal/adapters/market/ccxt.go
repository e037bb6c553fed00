package market

import (
	"context"
	"fmt"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
	"github.com/shopspring/decimal"
)

// decimalFromString parses an exchange-formatted number
func decimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// CCXTProvider adapts any CCXT-supported spot exchange as a snapshot
// source. Symbols use CCXT notation ("BTC/USDT").
type CCXTProvider struct {
	exchange *ccxt.Binance
	name     string
}

// NewCCXTProvider creates a CCXT-backed provider against Binance spot
func NewCCXTProvider() (*CCXTProvider, error) {
	exchange := ccxt.NewBinance(map[string]interface{}{})
	exchange.SetOption("defaultType", "spot")
	exchange.SetOption("adjustForTimeDifference", true)

	if err := exchange.LoadMarkets(); err != nil {
		return nil, fmt.Errorf("failed to load markets: %w", err)
	}

	logger.Info("ccxt provider initialized",
		zap.Int("markets_count", len(exchange.Markets)),
	)

	return &CCXTProvider{
		exchange: exchange,
		name:     "ccxt-binance",
	}, nil
}

func (c *CCXTProvider) Name() string {
	return c.name
}

// GetSnapshot fetches the current ticker through CCXT
func (c *CCXTProvider) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	ticker, err := c.exchange.FetchTicker(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker: %w", err)
	}

	if ticker.Last == nil || ticker.Percentage == nil || ticker.BaseVolume == nil || ticker.Timestamp == nil {
		return nil, fmt.Errorf("incomplete ticker for %s", symbol)
	}

	return &models.MarketSnapshot{
		Symbol:    symbol,
		Price:     models.NewDecimal(*ticker.Last),
		Change24h: *ticker.Percentage,
		// base volume is in coin units; convert to quote notional
		Volume24h: *ticker.BaseVolume * *ticker.Last,
		Timestamp: time.UnixMilli(*ticker.Timestamp),
	}, nil
}
