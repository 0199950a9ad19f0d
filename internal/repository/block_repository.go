package repository

import "context"

// BlockRepository reads the safety service's block table. Create exists for
// that service (and tests); the engine itself never blocks anyone.
type BlockRepository interface {
	ExistsBetween(ctx context.Context, a, b int64) (bool, error)
	Create(ctx context.Context, blockerID, blockedID int64) error
}
