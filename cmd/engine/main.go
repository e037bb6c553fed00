package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mkryl/sigflow/internal/adapters/clickhouse"
	"github.com/mkryl/sigflow/internal/adapters/config"
	"github.com/mkryl/sigflow/internal/adapters/database"
	"github.com/mkryl/sigflow/internal/adapters/market"
	"github.com/mkryl/sigflow/internal/adapters/news"
	"github.com/mkryl/sigflow/internal/adapters/redis"
	"github.com/mkryl/sigflow/internal/adapters/telegram"
	"github.com/mkryl/sigflow/internal/adapters/webhook"
	"github.com/mkryl/sigflow/internal/alerts"
	"github.com/mkryl/sigflow/internal/dedup"
	"github.com/mkryl/sigflow/internal/engine"
	"github.com/mkryl/sigflow/internal/health"
	"github.com/mkryl/sigflow/internal/heat"
	"github.com/mkryl/sigflow/internal/sentiment"
	"github.com/mkryl/sigflow/internal/signals"
	"github.com/mkryl/sigflow/internal/strategy"
	"github.com/mkryl/sigflow/internal/workers"
	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting sigflow engine",
		zap.Strings("symbols", cfg.Engine.Symbols),
		zap.Duration("interval", cfg.Engine.Interval),
		zap.String("provider", cfg.Provider.Kind),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	checkers := make(map[string]health.Checker)

	// Signal store: Postgres when configured, in-memory otherwise.
	var store signals.Store
	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := database.RunMigrations(db.Conn(), "migrations"); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}

		store = signals.NewPostgresStore(db.DB())
		checkers["postgres"] = db
	} else {
		logger.Warn("Database disabled, signals are kept in memory only")
		store = signals.NewMemoryStore(cfg.Retention.MemoryEntries)
	}

	// Candle history feeds the RSI reversal rule; without it the evaluator
	// runs on the breakout rule alone.
	var candleSource strategy.CandleSource
	if cfg.ClickHouse.Enabled {
		ch, err := database.NewClickHouse(cfg.ClickHouse.DSN())
		if err != nil {
			logger.Fatal("Failed to connect to clickhouse", zap.Error(err))
		}
		defer ch.Close()

		candleSource = clickhouse.NewCandleRepository(ch.DB())
		checkers["clickhouse"] = ch
	}

	provider, providerCleanup, err := buildProvider(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create snapshot provider", zap.Error(err))
	}
	if providerCleanup != nil {
		defer providerCleanup()
	}

	var cycleLock engine.CycleLock
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()

		cycleLock = redis.NewCycleLock(redisClient, "engine", 2*cfg.Engine.Interval)
		checkers["redis"] = redisClient
	}

	var sentimentProvider *sentiment.Provider
	var sentimentSource engine.SentimentSource
	if cfg.Sentiment.Enabled {
		sentimentProvider = sentiment.NewProvider(
			news.NewClient(cfg.Sentiment.NewsToken),
			cfg.Sentiment.CacheTTL,
			cfg.Sentiment.HeadlineLimit,
		)
		sentimentSource = sentimentProvider
	}

	evaluator := strategy.NewEvaluator(strategy.DefaultConfig(), candleSource)
	scorer := heat.NewScorer(cfg.Engine.HeatThreshold)
	admitter := dedup.NewTracker(cfg.Engine.CooldownWindow, cfg.Engine.AllowReversals)

	eng := engine.New(
		engine.Config{
			Symbols:     cfg.Engine.Symbols,
			Interval:    cfg.Engine.Interval,
			Concurrency: cfg.Engine.Concurrency,
			StopTimeout: cfg.Engine.StopTimeout,
		},
		provider, scorer, evaluator, admitter, store, nil, sentimentSource, cycleLock,
	)

	// Alert destinations are assembled after the engine exists because the
	// telegram bot doubles as its remote control.
	var destinations []alerts.Destination
	if cfg.Telegram.Enabled() {
		bot, err := telegram.NewBot(&cfg.Telegram, eng, store)
		if err != nil {
			logger.Fatal("Failed to create telegram bot", zap.Error(err))
		}
		destinations = append(destinations, bot)

		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Telegram bot stopped", zap.Error(err))
			}
		}()
	}
	if cfg.Webhook.URL != "" {
		destinations = append(destinations,
			webhook.New(cfg.Webhook.URL, cfg.Webhook.Timeout, cfg.Webhook.Retries))
	}
	eng.SetDispatcher(alerts.NewDispatcher(destinations...))

	healthServer := health.NewServer(cfg.Health.Port, eng, checkers)
	go func() {
		if err := healthServer.Start(ctx); err != nil {
			logger.Error("Health server stopped", zap.Error(err))
		}
	}()

	group := worker.NewGroup(ctx)
	group.Add(workers.NewRetentionWorker(store, cfg.Retention.MaxAge), cfg.Retention.PruneInterval)
	if sentimentProvider != nil {
		group.Add(workers.NewSentimentWorker(sentimentProvider, cfg.Engine.Symbols), cfg.Sentiment.RefreshEvery)
	}
	group.Start()

	eng.Start(ctx)

	sig := <-sigCh
	logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

	eng.Stop()
	group.Stop(cfg.Engine.StopTimeout)
	cancel()

	// Give the HTTP server and bot a moment to wind down.
	time.Sleep(500 * time.Millisecond)
	logger.Info("Shutdown complete")
}

// buildProvider selects the market data source. The websocket provider needs
// an explicit start and stop; its cleanup func is returned for deferral.
func buildProvider(ctx context.Context, cfg *config.Config) (market.SnapshotProvider, func(), error) {
	switch cfg.Provider.Kind {
	case "websocket":
		ws := market.NewWSProvider(cfg.Engine.Symbols, cfg.Provider.StaleAfter)
		if err := ws.Start(ctx); err != nil {
			return nil, nil, err
		}
		return ws, ws.Stop, nil

	case "ccxt":
		p, err := market.NewCCXTProvider()
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil

	default:
		return market.NewBinanceProvider(), nil, nil
	}
}
