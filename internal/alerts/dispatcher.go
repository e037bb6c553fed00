// Package alerts fans emitted signals out to configured destinations.
// Dispatch is best-effort: a destination failure is logged and counted but
// never affects the stored signal.
package alerts

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mkryl/sigflow/pkg/logger"
	"github.com/mkryl/sigflow/pkg/models"
)

// Destination delivers a signal to one outside channel
type Destination interface {
	Name() string
	Send(ctx context.Context, sig *models.Signal) error
}

// Dispatcher fans a signal out to every destination
type Dispatcher struct {
	destinations []Destination
	failures     atomic.Uint64
}

// NewDispatcher creates a dispatcher over the given destinations
func NewDispatcher(destinations ...Destination) *Dispatcher {
	return &Dispatcher{destinations: destinations}
}

// Dispatch delivers the signal to all destinations in parallel. Always
// returns nil: delivery failures are absorbed here.
func (d *Dispatcher) Dispatch(ctx context.Context, sig *models.Signal) error {
	var wg sync.WaitGroup
	for _, dest := range d.destinations {
		wg.Add(1)
		go func(dest Destination) {
			defer wg.Done()
			if err := dest.Send(ctx, sig); err != nil {
				d.failures.Add(1)
				logger.Error("alert delivery failed",
					zap.String("destination", dest.Name()),
					zap.String("symbol", sig.Symbol),
					zap.Error(err),
				)
			}
		}(dest)
	}
	wg.Wait()
	return nil
}

// Failures returns the cumulative count of failed deliveries
func (d *Dispatcher) Failures() uint64 {
	return d.failures.Load()
}
