package repository

import (
	"context"
	"time"
)

// HistoryRepository is the append-only rematch ledger. Both methods accept
// the pair in any order.
type HistoryRepository interface {
	Exists(ctx context.Context, a, b int64) (bool, error)

	// Record is idempotent: recording a pair that is already present is not
	// an error.
	Record(ctx context.Context, a, b int64, now time.Time) error
}
