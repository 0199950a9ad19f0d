package retry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/lib/pq"
)

// Policy controls the backoff schedule: exponential growth from BaseDelay
// capped at MaxDelay, with jitter so competing retries spread out.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var Default = Policy{
	Attempts:  3,
	BaseDelay: 25 * time.Millisecond,
	MaxDelay:  500 * time.Millisecond,
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. All storage writes go through here; call sites never
// roll their own retry loops.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if attempt > 1 {
			if werr := sleep(ctx, p.delay(attempt-1)); werr != nil {
				return err
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
	}
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	// half deterministic, half jitter
	return d/2 + time.Duration(rand.Int63n(int64(d)/2+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Postgres error codes worth another attempt.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
)

// Retryable classifies transient failures: connection trouble,
// serialization failures and deadlock victims retry; domain and context
// errors never do.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgSerializationFailure, pgDeadlockDetected, pgQueryCanceled:
			return true
		}
		// class 08: connection exceptions
		return pqErr.Code.Class() == "08"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
