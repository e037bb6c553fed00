// Package dedup enforces the per-symbol cooldown between emitted signals.
package dedup

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

// ErrCooldownActive is returned when a same-direction signal arrives
// before the symbol's cooldown window has elapsed.
var ErrCooldownActive = errors.New("cooldown active for symbol")

// Tracker admits or rejects candidate signals based on per-symbol cooldown
// state. An opposite-direction candidate inside the window is treated as a
// trend reversal and admitted (configurable).
//
// State is keyed by symbol and guarded by per-symbol locks so parallel
// evaluation of different symbols never contends, while two candidates for
// the same symbol serialize and at most one wins the window.
type Tracker struct {
	window         time.Duration
	allowReversals bool
	now            func() time.Time

	mu      sync.Mutex
	entries map[string]*symbolState
}

type symbolState struct {
	mu    sync.Mutex
	entry models.CooldownEntry
	set   bool
}

// NewTracker creates a cooldown tracker
func NewTracker(window time.Duration, allowReversals bool) *Tracker {
	return &Tracker{
		window:         window,
		allowReversals: allowReversals,
		now:            time.Now,
		entries:        make(map[string]*symbolState),
	}
}

// Admit decides whether the candidate may be emitted. On accept the
// symbol's cooldown entry is updated atomically with the decision.
func (t *Tracker) Admit(sig *models.Signal) error {
	st := t.state(sig.Symbol)

	st.mu.Lock()
	defer st.mu.Unlock()

	now := t.now()

	if st.set && now.Sub(st.entry.LastSignalAt) < t.window {
		sameDirection := st.entry.LastDirection == sig.Direction
		if sameDirection || !t.allowReversals {
			return fmt.Errorf("%w: %s %s emitted %s ago",
				ErrCooldownActive, sig.Symbol, st.entry.LastDirection,
				now.Sub(st.entry.LastSignalAt).Round(time.Second))
		}
		logger.Debug("reversal admitted inside cooldown window",
			zap.String("symbol", sig.Symbol),
			zap.String("previous", string(st.entry.LastDirection)),
			zap.String("direction", string(sig.Direction)),
		)
	}

	st.entry = models.CooldownEntry{
		Symbol:        sig.Symbol,
		LastSignalAt:  now,
		LastDirection: sig.Direction,
	}
	st.set = true

	return nil
}

// Entry returns the current cooldown entry for a symbol, if any.
func (t *Tracker) Entry(symbol string) (models.CooldownEntry, bool) {
	st := t.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.entry, st.set
}

// Reset clears all cooldown state. Used on engine reset only.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*symbolState)
}

func (t *Tracker) state(symbol string) *symbolState {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.entries[symbol]
	if !ok {
		st = &symbolState{}
		t.entries[symbol] = st
	}
	return st
}
