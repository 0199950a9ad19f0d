package admission

import (
	"context"
	"sync"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/domain"
	"golang.org/x/sync/semaphore"
)

// Gate bounds concurrent work against the store. Two semaphores: entry
// caps everything in the system (running + queued) and rejects beyond it;
// slots caps what actually runs. A waiter that cannot get a slot within
// the queue timeout is turned away, which keeps latency bounded under a
// spike instead of letting the queue grow without limit.
//
// The controller shrinks effective capacity by parking slot units. Parking
// is opportunistic: units that are busy get parked as they free up.
type Gate struct {
	slots *semaphore.Weighted
	entry *semaphore.Weighted

	ceiling      int64
	queueTimeout time.Duration

	mu     sync.Mutex
	target int64 // desired effective capacity
	parked int64 // slot units currently held back
}

func NewGate(cfg config.AdmissionConfig) *Gate {
	g := &Gate{
		slots:        semaphore.NewWeighted(cfg.GateCeiling),
		entry:        semaphore.NewWeighted(cfg.GateCeiling + cfg.GateQueueSize),
		ceiling:      cfg.GateCeiling,
		queueTimeout: cfg.GateQueueTimeout,
		target:       cfg.GateBaseline,
	}
	g.reconcile()
	return g
}

// Acquire admits one request. The returned release must be called exactly
// once. ErrSaturated means the bounded queue is full or the wait timed
// out; callers surface it with a retry hint.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if !g.entry.TryAcquire(1) {
		return nil, domain.ErrSaturated
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.queueTimeout)
	defer cancel()
	if err := g.slots.Acquire(waitCtx, 1); err != nil {
		g.entry.Release(1)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrSaturated
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.slots.Release(1)
			g.entry.Release(1)
			g.reconcile()
		})
	}, nil
}

// SetCapacity sets the effective concurrency ceiling. Clamped to
// [1, ceiling]; the gap up to the ceiling is parked.
func (g *Gate) SetCapacity(n int64) {
	if n < 1 {
		n = 1
	}
	if n > g.ceiling {
		n = g.ceiling
	}
	g.mu.Lock()
	g.target = n
	g.mu.Unlock()
	g.reconcile()
}

// Capacity returns the current effective ceiling (target, whether or not
// all parking has caught up yet).
func (g *Gate) Capacity() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target
}

// reconcile moves parked toward ceiling-target without ever blocking:
// shrinking parks whatever units are free right now and picks up the rest
// as releases come in; growing hands parked units straight back.
func (g *Gate) reconcile() {
	g.mu.Lock()
	defer g.mu.Unlock()

	want := g.ceiling - g.target
	for g.parked < want {
		if !g.slots.TryAcquire(1) {
			return
		}
		g.parked++
	}
	for g.parked > want {
		g.slots.Release(1)
		g.parked--
	}
}
