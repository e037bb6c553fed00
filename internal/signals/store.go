// Package signals provides the durable append-only log of emitted signals.
package signals

import (
	"context"
	"time"

	"github.com/mkryl/sigflow/pkg/models"
)

// Filter narrows a store query. Zero values mean "no constraint";
// Limit <= 0 falls back to DefaultQueryLimit.
type Filter struct {
	Symbol string
	Since  time.Time
	Limit  int
}

// DefaultQueryLimit bounds unconstrained queries.
const DefaultQueryLimit = 100

// Store is the append-only signal log. Append is the only mutation on the
// hot path; Prune implements the retention policy and never runs mid-query.
// Query returns signals newest first, with insertion order breaking
// timestamp ties.
type Store interface {
	Append(ctx context.Context, sig *models.Signal) (int64, error)
	Query(ctx context.Context, f Filter) ([]models.Signal, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}
