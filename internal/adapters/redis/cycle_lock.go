package redis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mkryl/sigflow/pkg/logger"
)

// CycleLock serializes engine cycles across replicas via Redlock. The lock
// covers a single cycle: acquired at cycle start, released at cycle end,
// with a TTL safety net in case a replica dies mid-cycle.
type CycleLock struct {
	client   *Client
	lockName string
	ttl      time.Duration
}

// NewCycleLock creates a cycle lock with the given TTL. The TTL should
// exceed the cycle interval so a live holder is never preempted.
func NewCycleLock(client *Client, name string, ttl time.Duration) *CycleLock {
	return &CycleLock{
		client:   client,
		lockName: "sigflow:cycle:" + name,
		ttl:      ttl,
	}
}

// TryAcquire attempts to take the cycle lock. (false, nil) means another
// replica holds it, which is a normal skip rather than an error.
func (cl *CycleLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := cl.client.lockManager.Lock(ctx, cl.lockName, cl.ttl)
	if err != nil {
		logger.Debug("cycle lock held elsewhere",
			zap.String("lock", cl.lockName),
		)
		return false, nil
	}
	if expiry <= 0 {
		return false, nil
	}

	return true, nil
}

// Release releases the cycle lock. Expiry races are tolerated.
func (cl *CycleLock) Release(ctx context.Context) error {
	if err := cl.client.lockManager.UnLock(ctx, cl.lockName); err != nil {
		logger.Warn("failed to release cycle lock (may have expired)",
			zap.String("lock", cl.lockName),
			zap.Error(err),
		)
	}
	return nil
}
