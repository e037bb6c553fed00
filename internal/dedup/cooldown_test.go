package dedup

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mkryl/sigflow/pkg/models"
)

func candidate(symbol string, direction models.SignalDirection) *models.Signal {
	return &models.Signal{
		Symbol:    symbol,
		Direction: direction,
		Price:     models.NewDecimal(100),
	}
}

func TestTracker_Admit(t *testing.T) {
	t.Run("first signal always admitted", func(t *testing.T) {
		tr := NewTracker(15*time.Minute, true)
		if err := tr.Admit(candidate("BTCUSDT", models.DirectionBuy)); err != nil {
			t.Fatalf("unexpected rejection: %v", err)
		}
	})

	t.Run("same direction inside window rejected", func(t *testing.T) {
		tr := NewTracker(15*time.Minute, true)
		_ = tr.Admit(candidate("BTCUSDT", models.DirectionBuy))

		err := tr.Admit(candidate("BTCUSDT", models.DirectionBuy))
		if !errors.Is(err, ErrCooldownActive) {
			t.Fatalf("expected ErrCooldownActive, got %v", err)
		}
	})

	t.Run("opposite direction inside window admitted as reversal", func(t *testing.T) {
		tr := NewTracker(15*time.Minute, true)
		_ = tr.Admit(candidate("BTCUSDT", models.DirectionBuy))

		if err := tr.Admit(candidate("BTCUSDT", models.DirectionSell)); err != nil {
			t.Fatalf("reversal should be admitted: %v", err)
		}

		// The reversal resets the window for its own direction.
		err := tr.Admit(candidate("BTCUSDT", models.DirectionSell))
		if !errors.Is(err, ErrCooldownActive) {
			t.Fatalf("expected ErrCooldownActive after reversal, got %v", err)
		}
	})

	t.Run("reversals rejected when disabled", func(t *testing.T) {
		tr := NewTracker(15*time.Minute, false)
		_ = tr.Admit(candidate("BTCUSDT", models.DirectionBuy))

		err := tr.Admit(candidate("BTCUSDT", models.DirectionSell))
		if !errors.Is(err, ErrCooldownActive) {
			t.Fatalf("expected rejection with reversals disabled, got %v", err)
		}
	})

	t.Run("window expiry admits again", func(t *testing.T) {
		tr := NewTracker(15*time.Minute, true)
		current := time.Now()
		tr.now = func() time.Time { return current }

		_ = tr.Admit(candidate("BTCUSDT", models.DirectionBuy))

		current = current.Add(16 * time.Minute)
		if err := tr.Admit(candidate("BTCUSDT", models.DirectionBuy)); err != nil {
			t.Fatalf("expected admission after window expiry: %v", err)
		}
	})

	t.Run("symbols are independent", func(t *testing.T) {
		tr := NewTracker(15*time.Minute, true)
		_ = tr.Admit(candidate("BTCUSDT", models.DirectionBuy))

		if err := tr.Admit(candidate("ETHUSDT", models.DirectionBuy)); err != nil {
			t.Fatalf("other symbol must not be affected: %v", err)
		}
	})
}

func TestTracker_ConcurrentAdmit(t *testing.T) {
	tr := NewTracker(15*time.Minute, true)

	const goroutines = 32
	var wg sync.WaitGroup
	admitted := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tr.Admit(candidate("BTCUSDT", models.DirectionBuy)); err == nil {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	if n := len(admitted); n != 1 {
		t.Fatalf("exactly one concurrent same-direction candidate may win, got %d", n)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(15*time.Minute, true)
	_ = tr.Admit(candidate("BTCUSDT", models.DirectionBuy))

	tr.Reset()

	if err := tr.Admit(candidate("BTCUSDT", models.DirectionBuy)); err != nil {
		t.Fatalf("reset must clear cooldown state: %v", err)
	}
	if _, ok := tr.Entry("SOLUSDT"); ok {
		t.Error("unexpected entry for untouched symbol")
	}
}
