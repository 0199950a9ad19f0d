package postgres

import (
	"context"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/jmoiron/sqlx"
)

type historyRepository struct {
	q queryer
}

func (r *historyRepository) Exists(ctx context.Context, a, b int64) (bool, error) {
	u1, u2 := domain.CanonicalPair(a, b)
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM match_history WHERE user1_id = $1 AND user2_id = $2)`
	err := sqlx.GetContext(ctx, r.q, &exists, query, u1, u2)
	return exists, err
}

func (r *historyRepository) Record(ctx context.Context, a, b int64, now time.Time) error {
	u1, u2 := domain.CanonicalPair(a, b)
	// ON CONFLICT DO NOTHING: a concurrent duplicate insert must not fail
	// the surrounding pairing transaction.
	query := `
		INSERT INTO match_history (user1_id, user2_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, u1, u2, now)
	return err
}
