// Package workers contains background maintenance jobs run by the worker group.
package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mkryl/sigflow/internal/signals"
	"github.com/mkryl/sigflow/pkg/logger"
)

// RetentionWorker prunes signals older than the retention window
type RetentionWorker struct {
	store  signals.Store
	maxAge time.Duration
}

// NewRetentionWorker creates a retention worker
func NewRetentionWorker(store signals.Store, maxAge time.Duration) *RetentionWorker {
	return &RetentionWorker{
		store:  store,
		maxAge: maxAge,
	}
}

// Name returns the worker name
func (w *RetentionWorker) Name() string {
	return "signal_retention"
}

// Run deletes signals past the retention window
func (w *RetentionWorker) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-w.maxAge)

	removed, err := w.store.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune signals: %w", err)
	}

	if removed > 0 {
		logger.Info("pruned expired signals",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff),
		)
	}

	return nil
}
