// Package market supplies point-in-time snapshots of tracked symbols from
// upstream exchanges.
package market

import (
	"context"

	"github.com/mkryl/sigflow/pkg/models"
)

// SnapshotProvider is the pull interface the engine consumes. How the data
// gets here (REST polling, websocket cache, ccxt) is the provider's business.
type SnapshotProvider interface {
	// Name identifies the provider in health reporting
	Name() string
	// GetSnapshot returns the current snapshot for a symbol
	GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error)
}
