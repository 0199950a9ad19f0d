package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/jmoiron/sqlx"
)

type matchRepository struct {
	q queryer
}

func (r *matchRepository) Create(ctx context.Context, match *domain.Match) error {
	// Ensure user1_id < user2_id for the table constraint.
	match.User1ID, match.User2ID = domain.CanonicalPair(match.User1ID, match.User2ID)

	query := `
		INSERT INTO matches (user1_id, user2_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	return r.q.QueryRowxContext(ctx, query, match.User1ID, match.User2ID, match.Status).
		Scan(&match.ID, &match.CreatedAt)
}

func (r *matchRepository) Activate(ctx context.Context, id int64, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE matches SET status = 'active', vote_window_expires_at = $2
		WHERE id = $1 AND status = 'paired'
	`
	res, err := r.q.ExecContext(ctx, query, id, expiresAt)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *matchRepository) GetByID(ctx context.Context, id int64) (*domain.Match, error) {
	var match domain.Match
	query := `SELECT * FROM matches WHERE id = $1`
	err := sqlx.GetContext(ctx, r.q, &match, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (r *matchRepository) CastVote(ctx context.Context, id, voterID int64, vote domain.Vote, now time.Time) (bool, error) {
	// COALESCE keeps the first stored vote: re-votes are accepted but
	// cannot flip the original answer.
	query := `
		UPDATE matches SET
			user1_vote = CASE WHEN user1_id = $2 THEN COALESCE(user1_vote, $3) ELSE user1_vote END,
			user2_vote = CASE WHEN user2_id = $2 THEN COALESCE(user2_vote, $3) ELSE user2_vote END
		WHERE id = $1 AND status = 'active' AND vote_window_expires_at > $4
	`
	res, err := r.q.ExecContext(ctx, query, id, voterID, vote, now)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *matchRepository) Resolve(ctx context.Context, id int64, outcome domain.MatchOutcome, now time.Time) (bool, error) {
	query := `
		UPDATE matches SET status = 'completed', outcome = $2, completed_at = $3
		WHERE id = $1 AND status = 'active'
	`
	res, err := r.q.ExecContext(ctx, query, id, outcome, now)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *matchRepository) Cancel(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE matches SET status = 'cancelled', completed_at = $2
		WHERE id = $1 AND status IN ('paired', 'active')
	`
	res, err := r.q.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *matchRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*domain.Match, error) {
	var matches []*domain.Match
	query := `
		SELECT * FROM matches
		WHERE status = 'active' AND vote_window_expires_at <= $1
		ORDER BY vote_window_expires_at ASC
		LIMIT $2
	`
	err := sqlx.SelectContext(ctx, r.q, &matches, query, now, limit)
	return matches, err
}

func (r *matchRepository) ListLiveUnreferenced(ctx context.Context, limit int) ([]*domain.Match, error) {
	var matches []*domain.Match
	query := `
		SELECT m.* FROM matches m
		LEFT JOIN users_state s1 ON s1.user_id = m.user1_id
		LEFT JOIN users_state s2 ON s2.user_id = m.user2_id
		WHERE m.status IN ('paired', 'active')
		  AND (s1.user_id IS NULL OR s1.state <> 'matched' OR s1.match_id IS DISTINCT FROM m.id
		    OR s2.user_id IS NULL OR s2.state <> 'matched' OR s2.match_id IS DISTINCT FROM m.id)
		ORDER BY m.created_at ASC
		LIMIT $1
	`
	err := sqlx.SelectContext(ctx, r.q, &matches, query, limit)
	return matches, err
}
