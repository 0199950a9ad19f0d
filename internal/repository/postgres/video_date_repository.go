package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type videoDateRepository struct {
	q queryer
}

func (r *videoDateRepository) Create(ctx context.Context, vd *domain.VideoDate) error {
	query := `
		INSERT INTO video_dates (match_id, status, countdown_started_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := r.q.QueryRowxContext(ctx, query, vd.MatchID, vd.Status, vd.CountdownStartedAt).
		Scan(&vd.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// The other participant won the creation race.
			return domain.ErrVideoDateExists
		}
		return err
	}
	return nil
}

func (r *videoDateRepository) Get(ctx context.Context, matchID int64) (*domain.VideoDate, error) {
	var vd domain.VideoDate
	query := `SELECT * FROM video_dates WHERE match_id = $1`
	err := sqlx.GetContext(ctx, r.q, &vd, query, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVideoDateNotFound
		}
		return nil, err
	}
	return &vd, nil
}

func (r *videoDateRepository) Promote(ctx context.Context, matchID int64, startedAt time.Time) (bool, error) {
	query := `
		UPDATE video_dates SET status = 'active', started_at = $2
		WHERE match_id = $1 AND status = 'countdown'
	`
	res, err := r.q.ExecContext(ctx, query, matchID, startedAt)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *videoDateRepository) Complete(ctx context.Context, matchID int64) (bool, error) {
	query := `
		UPDATE video_dates SET status = 'completed'
		WHERE match_id = $1 AND status IN ('countdown', 'active')
	`
	res, err := r.q.ExecContext(ctx, query, matchID)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *videoDateRepository) EndEarly(ctx context.Context, matchID, byUserID int64) (bool, error) {
	query := `
		UPDATE video_dates SET status = 'ended_early', ended_by_user_id = $2
		WHERE match_id = $1 AND status IN ('countdown', 'active')
	`
	res, err := r.q.ExecContext(ctx, query, matchID, byUserID)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}
