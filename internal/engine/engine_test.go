package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkryl/sigflow/internal/dedup"
	"github.com/mkryl/sigflow/internal/heat"
	"github.com/mkryl/sigflow/internal/signals"
	"github.com/mkryl/sigflow/pkg/models"
)

type fakeProvider struct {
	mu    sync.Mutex
	snaps map[string]*models.MarketSnapshot
	err   error
	block chan struct{} // when set, GetSnapshot waits for ctx or the channel
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	err := f.err
	snap := f.snaps[symbol]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("no snapshot for %s", symbol)
	}
	clone := *snap
	return &clone, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEvaluator struct {
	direction models.SignalDirection
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, snap *models.MarketSnapshot, _ *models.SentimentContext) (*models.Signal, error) {
	if f.direction == "" {
		return nil, nil
	}
	sig := &models.Signal{
		Symbol:     snap.Symbol,
		Direction:  f.direction,
		Price:      snap.Price,
		Confidence: 70,
		Strategy:   "fake_strategy",
		Timeframe:  "1h",
		Source:     "fake",
		CreatedAt:  time.Now().UTC(),
	}
	if f.direction == models.DirectionBuy {
		sig.Target = snap.Price.Mul(decimal.NewFromFloat(1.02))
		sig.Stop = snap.Price.Mul(decimal.NewFromFloat(0.99))
	} else {
		sig.Target = snap.Price.Mul(decimal.NewFromFloat(0.98))
		sig.Stop = snap.Price.Mul(decimal.NewFromFloat(1.01))
	}
	return sig, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []models.Signal
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, sig *models.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *sig)
	return nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func hotSnapshot(symbol string) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:    symbol,
		Price:     decimal.NewFromInt(50000),
		Change24h: 12.0,
		Volume24h: 8e8,
		Timestamp: time.Now().UTC(),
	}
}

type testRig struct {
	engine   *Engine
	provider *fakeProvider
	store    *signals.MemoryStore
	dispatch *fakeDispatcher
}

func newRig(t *testing.T, cfg Config, provider *fakeProvider, eval Evaluator) *testRig {
	t.Helper()

	if cfg.Interval == 0 {
		cfg.Interval = time.Hour // only the immediate first cycle runs
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	store := signals.NewMemoryStore(100)
	dispatch := &fakeDispatcher{}

	eng := New(cfg, provider, heat.NewScorer(30), eval,
		dedup.NewTracker(time.Hour, true), store, dispatch, nil, nil)

	return &testRig{engine: eng, provider: provider, store: store, dispatch: dispatch}
}

func waitForCycles(t *testing.T, e *Engine, want uint64) models.EngineStatus {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		status := e.Status()
		if status.CycleCount >= want {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("engine never reached %d cycles (at %d)", want, e.Status().CycleCount)
	return models.EngineStatus{}
}

func TestStartStopIdempotent(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]*models.MarketSnapshot{
		"BTCUSDT": hotSnapshot("BTCUSDT"),
	}}
	rig := newRig(t, Config{Symbols: []string{"BTCUSDT"}}, provider, &fakeEvaluator{})

	if got := rig.engine.State(); got != models.StateStopped {
		t.Fatalf("initial state = %s, want stopped", got)
	}

	ctx := context.Background()
	if got := rig.engine.Start(ctx); got != models.StateRunning {
		t.Fatalf("Start() = %s, want running", got)
	}
	waitForCycles(t, rig.engine, 1)

	calls := rig.provider.callCount()
	if got := rig.engine.Start(ctx); got != models.StateRunning {
		t.Fatalf("second Start() = %s, want running", got)
	}
	time.Sleep(50 * time.Millisecond)
	if rig.provider.callCount() != calls {
		t.Error("second Start spawned an extra cycle loop")
	}

	if got := rig.engine.Stop(); got != models.StateStopped {
		t.Fatalf("Stop() = %s, want stopped", got)
	}
	if got := rig.engine.Stop(); got != models.StateStopped {
		t.Fatalf("second Stop() = %s, want stopped", got)
	}
}

func TestRestartKeepsCountersAndHonorsCooldown(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]*models.MarketSnapshot{
		"BTCUSDT": hotSnapshot("BTCUSDT"),
	}}
	rig := newRig(t, Config{Symbols: []string{"BTCUSDT"}}, provider,
		&fakeEvaluator{direction: models.DirectionBuy})

	ctx := context.Background()
	rig.engine.Start(ctx)
	first := waitForCycles(t, rig.engine, 1)
	rig.engine.Stop()

	if first.TotalSignals != 1 {
		t.Fatalf("first run emitted %d signals, want 1", first.TotalSignals)
	}

	rig.engine.Start(ctx)
	second := waitForCycles(t, rig.engine, 2)
	rig.engine.Stop()

	if second.TotalSignals != 1 {
		t.Errorf("restart emitted a duplicate: %d total signals", second.TotalSignals)
	}
	if second.Rejections[models.ReasonCooldownActive] == 0 {
		t.Error("expected cooldown rejection on the second cycle")
	}

	rows, err := rig.store.Query(ctx, signals.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("store holds %d signals, want 1", len(rows))
	}
	if rig.dispatch.count() != 1 {
		t.Errorf("dispatched %d alerts, want 1", rig.dispatch.count())
	}
}

func TestSafetyFilterRejection(t *testing.T) {
	// Pump pattern: huge 24h move on thin volume must never alert.
	provider := &fakeProvider{snaps: map[string]*models.MarketSnapshot{
		"BTCUSDT": {
			Symbol:    "BTCUSDT",
			Price:     decimal.NewFromInt(50000),
			Change24h: 25.0,
			Volume24h: 5e6,
			Timestamp: time.Now().UTC(),
		},
	}}
	rig := newRig(t, Config{Symbols: []string{"BTCUSDT"}}, provider,
		&fakeEvaluator{direction: models.DirectionBuy})

	rig.engine.Start(context.Background())
	status := waitForCycles(t, rig.engine, 1)
	rig.engine.Stop()

	if status.TotalSignals != 0 {
		t.Errorf("signals = %d, want 0", status.TotalSignals)
	}
	if status.TotalRejections != 1 {
		t.Errorf("rejections = %d, want 1", status.TotalRejections)
	}
	if status.Rejections[models.ReasonSafetyFilter] != 1 {
		t.Errorf("safety-filter count = %d, want 1", status.Rejections[models.ReasonSafetyFilter])
	}
	if rig.dispatch.count() != 0 {
		t.Errorf("dispatched %d alerts, want 0", rig.dispatch.count())
	}
}

func TestProviderFailureCountsDataError(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("exchange unavailable")}
	rig := newRig(t, Config{Symbols: []string{"BTCUSDT", "ETHUSDT"}}, provider, &fakeEvaluator{})

	rig.engine.Start(context.Background())
	status := waitForCycles(t, rig.engine, 1)
	rig.engine.Stop()

	if status.Rejections[models.ReasonDataError] != 2 {
		t.Errorf("data-error count = %d, want 2", status.Rejections[models.ReasonDataError])
	}
	if healthy := status.SourceHealth["fake"]; healthy {
		t.Error("source should be reported unhealthy after fetch failures")
	}
}

func TestStopBoundedByTimeoutMidCycle(t *testing.T) {
	block := make(chan struct{})
	provider := &fakeProvider{
		snaps: map[string]*models.MarketSnapshot{"BTCUSDT": hotSnapshot("BTCUSDT")},
		block: block,
	}
	rig := newRig(t, Config{Symbols: []string{"BTCUSDT"}, StopTimeout: 200 * time.Millisecond},
		provider, &fakeEvaluator{})

	rig.engine.Start(context.Background())

	// Let the cycle enter the blocking fetch before stopping.
	deadline := time.Now().Add(time.Second)
	for provider.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stopStart := time.Now()
	if got := rig.engine.Stop(); got != models.StateStopped {
		t.Fatalf("Stop() = %s, want stopped", got)
	}
	if elapsed := time.Since(stopStart); elapsed > time.Second {
		t.Errorf("Stop took %s, want bounded by timeout", elapsed)
	}
	close(block)
}

func TestOverlappingTickDropped(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]*models.MarketSnapshot{
		"BTCUSDT": hotSnapshot("BTCUSDT"),
	}}
	rig := newRig(t, Config{Symbols: []string{"BTCUSDT"}}, provider, &fakeEvaluator{})

	// Simulate a cycle still in flight: the next tick must be dropped,
	// not queued.
	rig.engine.cycleActive.Store(true)
	rig.engine.tick(context.Background())

	if got := rig.engine.Status().CycleCount; got != 0 {
		t.Errorf("dropped tick still ran a cycle (count %d)", got)
	}
	if rig.provider.callCount() != 0 {
		t.Error("dropped tick still fetched snapshots")
	}

	rig.engine.cycleActive.Store(false)
	rig.engine.tick(context.Background())
	if got := rig.engine.Status().CycleCount; got != 1 {
		t.Errorf("cycle count = %d after free tick, want 1", got)
	}
}

func TestCyclePanicRecovered(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]*models.MarketSnapshot{
		"BTCUSDT": hotSnapshot("BTCUSDT"),
	}}
	rig := newRig(t, Config{Symbols: []string{"BTCUSDT"}}, provider, panicEvaluator{})

	// Must not crash the test binary.
	rig.engine.tick(context.Background())

	if got := rig.engine.State(); got != models.StateStopped {
		t.Errorf("state = %s after recovered panic, want stopped (engine never started)", got)
	}
}

type panicEvaluator struct{}

func (panicEvaluator) Evaluate(context.Context, *models.MarketSnapshot, *models.SentimentContext) (*models.Signal, error) {
	panic("evaluator bug")
}

func TestSubscribeReceivesCycleStatus(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]*models.MarketSnapshot{
		"BTCUSDT": hotSnapshot("BTCUSDT"),
	}}
	rig := newRig(t, Config{Symbols: []string{"BTCUSDT"}}, provider, &fakeEvaluator{})

	updates := rig.engine.Subscribe()
	rig.engine.Start(context.Background())
	defer rig.engine.Stop()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case status := <-updates:
			if status.CycleCount >= 1 {
				if status.LastReport == "" {
					t.Error("cycle status carries no report")
				}
				return
			}
		case <-deadline:
			t.Fatal("no cycle status received")
		}
	}
}
