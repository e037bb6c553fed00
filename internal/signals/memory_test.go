package signals

import (
	"context"
	"testing"
	"time"

	"github.com/mkryl/sigflow/pkg/models"
)

func storedSignal(symbol string, createdAt time.Time) *models.Signal {
	return &models.Signal{
		Symbol:     symbol,
		Direction:  models.DirectionBuy,
		Price:      models.NewDecimal(100),
		Confidence: 70,
		Strategy:   "momentum",
		Timeframe:  "1h",
		Target:     models.NewDecimal(110),
		Stop:       models.NewDecimal(95),
		RiskReward: 2,
		Rationale:  "test",
		Source:     "unit-test",
		CreatedAt:  createdAt,
	}
}

func TestMemoryStore_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		sig := storedSignal("BTCUSDT", base.Add(time.Duration(i)*time.Minute))
		if _, err := store.Append(ctx, sig); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if _, err := store.Append(ctx, storedSignal("ETHUSDT", base.Add(10*time.Minute))); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	t.Run("limit respected, newest first", func(t *testing.T) {
		rows, err := store.Query(ctx, Filter{Symbol: "BTCUSDT", Limit: 3})
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}
		for i := 1; i < len(rows); i++ {
			if rows[i].CreatedAt.After(rows[i-1].CreatedAt) {
				t.Errorf("rows out of order: %v before %v", rows[i-1].CreatedAt, rows[i].CreatedAt)
			}
		}
	})

	t.Run("since filter", func(t *testing.T) {
		rows, err := store.Query(ctx, Filter{Symbol: "BTCUSDT", Since: base.Add(3 * time.Minute)})
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows since cutoff, got %d", len(rows))
		}
	})

	t.Run("timestamp ties keep insertion order", func(t *testing.T) {
		tied := NewMemoryStore(10)
		at := base
		first, _ := tied.Append(ctx, storedSignal("SOLUSDT", at))
		second, _ := tied.Append(ctx, storedSignal("SOLUSDT", at))

		rows, err := tied.Query(ctx, Filter{Symbol: "SOLUSDT"})
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if rows[0].ID != second || rows[1].ID != first {
			t.Errorf("tie order wrong: got ids %d,%d want %d,%d", rows[0].ID, rows[1].ID, second, first)
		}
	})
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	original := storedSignal("BTCUSDT", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	original.Rationale = "RSI oversold with MACD agreement"
	id, err := store.Append(ctx, original)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	rows, err := store.Query(ctx, Filter{Symbol: "BTCUSDT"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	got := rows[0]
	if got.ID != id ||
		got.Symbol != original.Symbol ||
		got.Direction != original.Direction ||
		!got.Price.Equal(original.Price) ||
		got.Confidence != original.Confidence ||
		got.Strategy != original.Strategy ||
		got.Timeframe != original.Timeframe ||
		!got.Target.Equal(original.Target) ||
		!got.Stop.Equal(original.Stop) ||
		got.RiskReward != original.RiskReward ||
		got.Rationale != original.Rationale ||
		got.Source != original.Source ||
		!got.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, original)
	}
}

func TestMemoryStore_RejectsInvalid(t *testing.T) {
	store := NewMemoryStore(10)
	bad := storedSignal("BTCUSDT", time.Now())
	bad.Target = models.NewDecimal(50) // below price on a buy

	if _, err := store.Append(context.Background(), bad); err == nil {
		t.Fatal("expected invalid signal to be rejected")
	}
}

func TestMemoryStore_Prune(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, _ = store.Append(ctx, storedSignal("BTCUSDT", base.Add(time.Duration(i)*time.Hour)))
	}

	removed, err := store.Prune(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 pruned rows, got %d", removed)
	}

	rows, _ := store.Query(ctx, Filter{})
	if len(rows) != 2 {
		t.Errorf("expected 2 surviving rows, got %d", len(rows))
	}
}

func TestMemoryStore_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, _ = store.Append(ctx, storedSignal("BTCUSDT", base.Add(time.Duration(i)*time.Minute)))
	}

	rows, _ := store.Query(ctx, Filter{Limit: 10})
	if len(rows) != 3 {
		t.Fatalf("expected capacity to bound rows at 3, got %d", len(rows))
	}
	if !rows[0].CreatedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("newest row should survive eviction, got %v", rows[0].CreatedAt)
	}
}
