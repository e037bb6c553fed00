package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

const binanceWSURL = "wss://stream.binance.com:9443/ws"

// WSProvider keeps a live snapshot cache fed by the Binance 24h ticker
// stream, so GetSnapshot never touches the network on the hot path. The
// read loop reconnects on failure with a fixed backoff.
type WSProvider struct {
	url            string
	symbols        []string
	staleAfter     time.Duration
	reconnectDelay time.Duration

	mu    sync.RWMutex
	cache map[string]models.MarketSnapshot

	connMu sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWSProvider creates a websocket-backed snapshot provider for symbols
func NewWSProvider(symbols []string, staleAfter time.Duration) *WSProvider {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &WSProvider{
		url:            binanceWSURL,
		symbols:        symbols,
		staleAfter:     staleAfter,
		reconnectDelay: 5 * time.Second,
		cache:          make(map[string]models.MarketSnapshot),
	}
}

func (w *WSProvider) Name() string {
	return "binance-ws"
}

// Start connects and begins feeding the cache. Runs until Stop or ctx end.
func (w *WSProvider) Start(ctx context.Context) error {
	if err := w.connect(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.readLoop(ctx)

	return nil
}

// Stop closes the connection and waits for the read loop
func (w *WSProvider) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.connMu.Lock()
	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.connMu.Unlock()
	w.wg.Wait()
}

// GetSnapshot serves the cached ticker, rejecting entries older than the
// staleness bound so a dead stream surfaces as data errors, not stale reads.
func (w *WSProvider) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	w.mu.RLock()
	snap, ok := w.cache[symbol]
	w.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no ticker received yet for %s", symbol)
	}
	if age := time.Since(snap.Timestamp); age > w.staleAfter {
		return nil, fmt.Errorf("ticker for %s is stale (%s old)", symbol, age.Round(time.Second))
	}

	return &snap, nil
}

func (w *WSProvider) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(w.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to binance websocket: %w", err)
	}

	streams := make([]string, len(w.symbols))
	for i, symbol := range w.symbols {
		streams[i] = strings.ToLower(symbol) + "@ticker"
	}

	sub := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     1,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()

	logger.Info("binance websocket connected",
		zap.Int("streams", len(streams)),
	)

	return nil
}

// wsTicker is the Binance 24h ticker stream payload (abbreviated keys)
type wsTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
	ChangePct string `json:"P"`
	QuoteVol  string `json:"q"`
}

func (w *WSProvider) readLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("binance websocket read failed, reconnecting",
				zap.Error(err),
				zap.Duration("delay", w.reconnectDelay),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.reconnectDelay):
			}
			if err := w.connect(); err != nil {
				logger.Error("binance websocket reconnect failed", zap.Error(err))
			}
			continue
		}

		var tick wsTicker
		if err := json.Unmarshal(payload, &tick); err != nil || tick.EventType != "24hrTicker" {
			continue // subscription acks and unknown frames
		}

		w.update(&tick)
	}
}

func (w *WSProvider) update(tick *wsTicker) {
	price, err := decimalFromString(tick.LastPrice)
	if err != nil {
		return
	}
	change, err1 := strconv.ParseFloat(tick.ChangePct, 64)
	volume, err2 := strconv.ParseFloat(tick.QuoteVol, 64)
	if err1 != nil || err2 != nil {
		return
	}

	w.mu.Lock()
	w.cache[tick.Symbol] = models.MarketSnapshot{
		Symbol:    tick.Symbol,
		Price:     price,
		Change24h: change,
		Volume24h: volume,
		Timestamp: time.UnixMilli(tick.EventTime),
	}
	w.mu.Unlock()
}
