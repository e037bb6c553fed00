package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mkryl/sigflow/pkg/models"
	"github.com/shopspring/decimal"
)

const binanceAPIURL = "https://api.binance.com/api/v3"

// BinanceProvider fetches 24h ticker statistics from the Binance REST API
// (public endpoint, no API key needed)
type BinanceProvider struct {
	client  *http.Client
	baseURL string
}

// NewBinanceProvider creates new Binance REST snapshot provider
func NewBinanceProvider() *BinanceProvider {
	return &BinanceProvider{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: binanceAPIURL,
	}
}

func (b *BinanceProvider) Name() string {
	return "binance-rest"
}

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
	CloseTime          int64  `json:"closeTime"`
}

// GetSnapshot fetches the 24h rolling ticker for a symbol
func (b *BinanceProvider) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	url := fmt.Sprintf("%s/ticker/24hr?symbol=%s", b.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("binance API error %d: %s", resp.StatusCode, string(body))
	}

	var ticker binanceTicker
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return nil, fmt.Errorf("failed to decode ticker: %w", err)
	}

	return ticker.toSnapshot()
}

func (t *binanceTicker) toSnapshot() (*models.MarketSnapshot, error) {
	price, err := decimal.NewFromString(t.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("bad lastPrice %q: %w", t.LastPrice, err)
	}
	change, err := strconv.ParseFloat(t.PriceChangePercent, 64)
	if err != nil {
		return nil, fmt.Errorf("bad priceChangePercent %q: %w", t.PriceChangePercent, err)
	}
	volume, err := strconv.ParseFloat(t.QuoteVolume, 64)
	if err != nil {
		return nil, fmt.Errorf("bad quoteVolume %q: %w", t.QuoteVolume, err)
	}

	return &models.MarketSnapshot{
		Symbol:    t.Symbol,
		Price:     price,
		Change24h: change,
		Volume24h: volume,
		Timestamp: time.UnixMilli(t.CloseTime),
	}, nil
}
