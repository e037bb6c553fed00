package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mkryl/sigflow/internal/dedup"
	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

// runCycle executes one full pass over the tracked symbols. A panic inside
// the cycle is recovered so a scheduler fault never kills the process; the
// engine stays running and picks up at the next tick.
func (e *Engine) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduler fault, cycle abandoned",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	// Upstream calls share a deadline tied to the interval so a hung fetch
	// cannot stall future cycles.
	cycleCtx, cancel := context.WithTimeout(ctx, e.cfg.Interval)
	defer cancel()

	if e.lock != nil {
		acquired, err := e.lock.TryAcquire(cycleCtx)
		if err != nil {
			logger.Error("cycle lock error, skipping cycle", zap.Error(err))
			return
		}
		if !acquired {
			logger.Debug("cycle lock held by another replica, skipping cycle")
			return
		}
		defer func() {
			_ = e.lock.Release(context.WithoutCancel(cycleCtx))
		}()
	}

	started := time.Now()
	outcomes := make([]string, len(e.cfg.Symbols))
	var healthy atomic.Bool
	healthy.Store(true)

	sem := make(chan struct{}, e.cfg.Concurrency)
	var inFlight int
	doneCh := make(chan struct{}, len(e.cfg.Symbols))

	for i, symbol := range e.cfg.Symbols {
		if cycleCtx.Err() != nil {
			outcomes[i] = fmt.Sprintf("%s: aborted", symbol)
			continue
		}

		sem <- struct{}{}
		inFlight++
		go func(i int, symbol string) {
			defer func() { <-sem; doneCh <- struct{}{} }()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("symbol pipeline fault",
						zap.String("symbol", symbol),
						zap.Any("panic", r),
						zap.Stack("stack"),
					)
					outcomes[i] = fmt.Sprintf("%s: fault", symbol)
					healthy.Store(false)
				}
			}()
			outcome, ok := e.processSymbol(cycleCtx, symbol)
			outcomes[i] = outcome
			if !ok {
				healthy.Store(false)
			}
		}(i, symbol)
	}

	for n := 0; n < inFlight; n++ {
		<-doneCh
	}

	cycle := e.cycleCount.Add(1)
	report := fmt.Sprintf("cycle %d (%s): %s",
		cycle, time.Since(started).Round(time.Millisecond), strings.Join(nonEmpty(outcomes), "; "))

	e.statusMu.Lock()
	e.lastCycleAt = time.Now()
	e.lastReport = report
	e.sourceHealth[e.provider.Name()] = healthy.Load()
	e.statusMu.Unlock()

	logger.Info("cycle complete",
		zap.Uint64("cycle", cycle),
		zap.Uint64("total_signals", e.totalSignals.Load()),
		zap.Uint64("total_rejections", e.totalRejections.Load()),
		zap.Duration("took", time.Since(started)),
	)

	e.publishStatus()
}

// processSymbol runs the snapshot -> gate -> evaluate -> admit -> store ->
// dispatch pipeline for one symbol. Failures are contained here: the bool
// result feeds source health, the string the cycle report.
func (e *Engine) processSymbol(ctx context.Context, symbol string) (string, bool) {
	snap, err := e.provider.GetSnapshot(ctx, symbol)
	if err != nil {
		e.countRejection(models.ReasonDataError)
		logger.Warn("snapshot fetch failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return fmt.Sprintf("%s: fetch failed", symbol), false
	}

	if !snap.Valid() {
		e.countRejection(models.ReasonInvalidData)
		return fmt.Sprintf("%s: invalid snapshot", symbol), false
	}

	assessment := e.scorer.Assess(snap)
	if !assessment.Admitted {
		e.countRejection(assessment.RejectReason)
		return fmt.Sprintf("%s: %s (heat %.1f)", symbol, assessment.RejectReason, assessment.HeatIndex), true
	}

	var sctx *models.SentimentContext
	if e.sentiment != nil {
		sctx = e.sentiment.Context(ctx, symbol)
	}

	sig, err := e.evaluator.Evaluate(ctx, snap, sctx)
	if err != nil {
		e.countRejection(models.ReasonDataError)
		logger.Warn("evaluation failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return fmt.Sprintf("%s: evaluation failed", symbol), false
	}
	if sig == nil {
		return fmt.Sprintf("%s: no setup (heat %.1f, %s)", symbol, assessment.HeatIndex, assessment.Bucket), true
	}

	if err := e.admitter.Admit(sig); err != nil {
		if errors.Is(err, dedup.ErrCooldownActive) {
			e.countRejection(models.ReasonCooldownActive)
			return fmt.Sprintf("%s: cooldown", symbol), true
		}
		e.countRejection(models.ReasonDataError)
		logger.Error("admission failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return fmt.Sprintf("%s: admission failed", symbol), false
	}

	id, err := e.store.Append(ctx, sig)
	if err != nil {
		// The cooldown entry is already burnt; better to suppress this
		// window than to double-alert on a store hiccup.
		e.countRejection(models.ReasonDataError)
		logger.Error("signal store append failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return fmt.Sprintf("%s: store failed", symbol), false
	}
	sig.ID = id

	// Best-effort: the signal is durable regardless of delivery.
	if e.dispatch != nil {
		_ = e.dispatch.Dispatch(ctx, sig)
	}

	e.totalSignals.Add(1)

	logger.Info("signal emitted",
		zap.Int64("id", id),
		zap.String("symbol", symbol),
		zap.String("direction", string(sig.Direction)),
		zap.String("strategy", sig.Strategy),
		zap.Float64("confidence", sig.Confidence),
	)

	return fmt.Sprintf("%s: %s %s (%.0f%%)", symbol, sig.Direction, sig.Strategy, sig.Confidence), true
}

func (e *Engine) countRejection(reason string) {
	e.totalRejections.Add(1)

	e.statusMu.Lock()
	e.rejections[reason]++
	e.statusMu.Unlock()
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
