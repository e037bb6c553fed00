package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

// PostgresStore persists signals in the migration-managed signals table.
// Ordering by (created_at DESC, id DESC) keeps insertion order for rows
// sharing a timestamp.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a Postgres-backed signal store
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts the signal and returns the generated id
func (s *PostgresStore) Append(ctx context.Context, sig *models.Signal) (int64, error) {
	if err := sig.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to store invalid signal: %w", err)
	}

	query := `
		INSERT INTO signals
			(symbol, direction, price, confidence, strategy, timeframe,
			 target_price, stop_loss, risk_reward, rationale, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		sig.Symbol,
		sig.Direction,
		sig.Price,
		sig.Confidence,
		sig.Strategy,
		sig.Timeframe,
		sig.Target,
		sig.Stop,
		sig.RiskReward,
		sig.Rationale,
		sig.Source,
		sig.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert signal: %w", err)
	}

	return id, nil
}

// Query returns matching signals newest first
func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]models.Signal, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	query := `
		SELECT id, symbol, direction, price, confidence, strategy, timeframe,
		       target_price, stop_loss, risk_reward, rationale, source, created_at
		FROM signals
		WHERE ($1 = '' OR symbol = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	var since *time.Time
	if !f.Since.IsZero() {
		since = &f.Since
	}

	rows := []models.Signal{}
	if err := s.db.SelectContext(ctx, &rows, query, f.Symbol, since, limit); err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}

	return rows, nil
}

// Prune deletes signals created before olderThan
func (s *PostgresStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM signals WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune signals: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		logger.Debug("pruned signals",
			zap.Int64("removed", removed),
			zap.Time("older_than", olderThan),
		)
	}

	return removed, nil
}
