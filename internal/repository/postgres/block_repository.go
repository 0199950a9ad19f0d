package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type blockRepository struct {
	q queryer
}

func (r *blockRepository) ExistsBetween(ctx context.Context, a, b int64) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1))
	`
	err := sqlx.GetContext(ctx, r.q, &exists, query, a, b)
	return exists, err
}

func (r *blockRepository) Create(ctx context.Context, blockerID, blockedID int64) error {
	query := `
		INSERT INTO blocks (blocker_id, blocked_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, blockerID, blockedID)
	return err
}
