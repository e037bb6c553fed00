// Package engine drives the periodic analysis cycle: snapshot, heat gate,
// evaluation, admission, persistence and alert dispatch for every tracked
// symbol.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mkryl/sigflow/internal/adapters/market"
	"github.com/mkryl/sigflow/internal/signals"
	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

// Evaluator produces at most one candidate signal per snapshot
type Evaluator interface {
	Evaluate(ctx context.Context, snap *models.MarketSnapshot, sentiment *models.SentimentContext) (*models.Signal, error)
}

// Admitter applies dedup/cooldown policy to candidate signals
type Admitter interface {
	Admit(sig *models.Signal) error
}

// Dispatcher fans an accepted signal out to alert destinations
type Dispatcher interface {
	Dispatch(ctx context.Context, sig *models.Signal) error
}

// HeatScorer gates symbols on their heat assessment
type HeatScorer interface {
	Assess(snap *models.MarketSnapshot) models.HeatAssessment
}

// SentimentSource supplies optional per-symbol sentiment context
type SentimentSource interface {
	Context(ctx context.Context, symbol string) *models.SentimentContext
}

// CycleLock serializes cycles across replicas. Optional.
type CycleLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Config holds scheduler tuning knobs
type Config struct {
	Symbols     []string
	Interval    time.Duration
	Concurrency int
	StopTimeout time.Duration
}

// Engine is the periodic scheduler. Lifecycle:
// Stopped -> Starting -> Running -> Stopping -> Stopped.
// Start and Stop are idempotent; the only way the engine stops is Stop().
type Engine struct {
	cfg       Config
	provider  market.SnapshotProvider
	scorer    HeatScorer
	evaluator Evaluator
	admitter  Admitter
	store     signals.Store
	dispatch  Dispatcher
	sentiment SentimentSource
	lock      CycleLock

	mu     sync.Mutex
	state  models.EngineState
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycleActive atomic.Bool

	cycleCount      atomic.Uint64
	totalSignals    atomic.Uint64
	totalRejections atomic.Uint64

	statusMu     sync.RWMutex
	rejections   map[string]uint64
	lastCycleAt  time.Time
	lastReport   string
	sourceHealth map[string]bool

	subMu sync.Mutex
	subs  []chan models.EngineStatus
}

// New creates an engine. sentiment and lock may be nil.
func New(
	cfg Config,
	provider market.SnapshotProvider,
	scorer HeatScorer,
	evaluator Evaluator,
	admitter Admitter,
	store signals.Store,
	dispatch Dispatcher,
	sentiment SentimentSource,
	lock CycleLock,
) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}

	return &Engine{
		cfg:          cfg,
		provider:     provider,
		scorer:       scorer,
		evaluator:    evaluator,
		admitter:     admitter,
		store:        store,
		dispatch:     dispatch,
		sentiment:    sentiment,
		lock:         lock,
		state:        models.StateStopped,
		rejections:   make(map[string]uint64),
		sourceHealth: make(map[string]bool),
	}
}

// SetDispatcher installs the alert dispatcher. The telegram destination is
// built around the engine itself, so dispatch wiring happens after New and
// before Start.
func (e *Engine) SetDispatcher(d Dispatcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatch = d
}

// Start begins periodic cycling. A no-op when already starting or running.
// Returns the state after the call.
func (e *Engine) Start(ctx context.Context) models.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == models.StateRunning || e.state == models.StateStarting {
		return e.state
	}

	e.state = models.StateStarting

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.run(runCtx)

	e.state = models.StateRunning
	e.publishStatus()

	logger.Info("engine started",
		zap.Int("symbols", len(e.cfg.Symbols)),
		zap.Duration("interval", e.cfg.Interval),
		zap.Int("concurrency", e.cfg.Concurrency),
	)

	return e.state
}

// Stop cancels the tick and waits for any in-flight cycle, bounded by the
// configured stop timeout. A no-op when already stopped or stopping.
// Returns the state after the call.
func (e *Engine) Stop() models.EngineState {
	e.mu.Lock()
	if e.state == models.StateStopped || e.state == models.StateStopping {
		state := e.state
		e.mu.Unlock()
		return state
	}

	e.state = models.StateStopping
	cancel := e.cancel
	e.mu.Unlock()

	e.publishStatus()
	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("engine stopped gracefully")
	case <-time.After(e.cfg.StopTimeout):
		logger.Warn("engine stop timeout, in-flight work abandoned",
			zap.Duration("timeout", e.cfg.StopTimeout),
		)
	}

	e.mu.Lock()
	e.state = models.StateStopped
	e.mu.Unlock()

	e.publishStatus()
	return models.StateStopped
}

// State returns the current lifecycle state
func (e *Engine) State() models.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status returns a copy of the current engine status
func (e *Engine) Status() models.EngineStatus {
	state := e.State()

	e.statusMu.RLock()
	defer e.statusMu.RUnlock()

	rejections := make(map[string]uint64, len(e.rejections))
	for reason, n := range e.rejections {
		rejections[reason] = n
	}
	health := make(map[string]bool, len(e.sourceHealth))
	for source, ok := range e.sourceHealth {
		health[source] = ok
	}

	return models.EngineStatus{
		State:           state,
		Running:         state == models.StateRunning,
		CycleCount:      e.cycleCount.Load(),
		TotalSignals:    e.totalSignals.Load(),
		TotalRejections: e.totalRejections.Load(),
		Rejections:      rejections,
		LastCycleAt:     e.lastCycleAt,
		LastReport:      e.lastReport,
		SourceHealth:    health,
	}
}

// Subscribe returns a channel receiving a status snapshot after every cycle
// and on state transitions. Slow subscribers miss updates instead of
// blocking the scheduler.
func (e *Engine) Subscribe() <-chan models.EngineStatus {
	ch := make(chan models.EngineStatus, 8)
	e.subMu.Lock()
	e.subs = append(e.subs, ch)
	e.subMu.Unlock()
	return ch
}

func (e *Engine) publishStatus() {
	status := e.Status()

	e.subMu.Lock()
	defer e.subMu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- status:
		default:
		}
	}
}

// run drives the tick loop. The first cycle fires immediately.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	e.tick(ctx)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one cycle unless the previous one is still in flight, in which
// case the tick is dropped rather than queued.
func (e *Engine) tick(ctx context.Context) {
	if !e.cycleActive.CompareAndSwap(false, true) {
		logger.Warn("previous cycle still running, skipping tick")
		return
	}
	defer e.cycleActive.Store(false)

	e.runCycle(ctx)
}
