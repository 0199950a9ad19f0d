package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type stateRepository struct {
	q queryer
}

func (r *stateRepository) Get(ctx context.Context, userID int64) (*domain.UserState, error) {
	var st domain.UserState
	query := `SELECT * FROM users_state WHERE user_id = $1`
	err := sqlx.GetContext(ctx, r.q, &st, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStateNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (r *stateRepository) GetForUpdate(ctx context.Context, userID int64) (*domain.UserState, error) {
	var st domain.UserState
	query := `SELECT * FROM users_state WHERE user_id = $1 FOR UPDATE`
	err := sqlx.GetContext(ctx, r.q, &st, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStateNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (r *stateRepository) GetCandidate(ctx context.Context, userID int64) (*domain.Candidate, error) {
	users := &userRepository{q: r.q}
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs, err := users.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	st, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.Candidate{User: *user, Preferences: *prefs, State: *st}, nil
}

func (r *stateRepository) Create(ctx context.Context, st *domain.UserState) error {
	query := `
		INSERT INTO users_state (user_id, state, waiting_since, fairness_score, preference_stage, last_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err := r.q.ExecContext(ctx, query,
		st.UserID, st.State, st.WaitingSince, st.FairnessScore, st.PreferenceStage, st.LastActive)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrAlreadyQueued
		}
		return err
	}
	return nil
}

func (r *stateRepository) MarkWaiting(ctx context.Context, userID int64, now time.Time, fairnessBonus float64) (bool, error) {
	query := `
		UPDATE users_state
		SET state = 'waiting', waiting_since = $2, preference_stage = 0,
		    fairness_score = fairness_score + $3, last_active = $2, updated_at = $2
		WHERE user_id = $1 AND state = 'idle'
	`
	res, err := r.q.ExecContext(ctx, query, userID, now, fairnessBonus)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *stateRepository) MarkMatched(ctx context.Context, userID, matchID, partnerID int64, now time.Time) (bool, error) {
	query := `
		UPDATE users_state
		SET state = 'matched', match_id = $2, partner_id = $3,
		    waiting_since = NULL, fairness_score = 0, preference_stage = 0,
		    last_active = $4, updated_at = $4
		WHERE user_id = $1 AND state = 'waiting'
	`
	res, err := r.q.ExecContext(ctx, query, userID, matchID, partnerID, now)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *stateRepository) LeaveQueue(ctx context.Context, userID int64, now time.Time) (bool, error) {
	// fairness_score is deliberately kept: leaving does not forfeit earned
	// priority.
	query := `
		UPDATE users_state
		SET state = 'idle', waiting_since = NULL, preference_stage = 0, updated_at = $2
		WHERE user_id = $1 AND state = 'waiting'
	`
	res, err := r.q.ExecContext(ctx, query, userID, now)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *stateRepository) Release(ctx context.Context, userID, matchID int64, now time.Time) (bool, error) {
	query := `
		UPDATE users_state
		SET state = 'idle', match_id = NULL, partner_id = NULL, updated_at = $3
		WHERE user_id = $1 AND state = 'matched' AND match_id = $2
	`
	res, err := r.q.ExecContext(ctx, query, userID, matchID, now)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *stateRepository) Heartbeat(ctx context.Context, userID int64, now time.Time) error {
	query := `UPDATE users_state SET last_active = $2, updated_at = $2 WHERE user_id = $1`
	_, err := r.q.ExecContext(ctx, query, userID, now)
	return err
}

func (r *stateRepository) AdvanceStage(ctx context.Context, userID int64, stage int) error {
	// GREATEST keeps the stage monotonic even if a slower writer shows up
	// with an older value.
	query := `
		UPDATE users_state
		SET preference_stage = GREATEST(preference_stage, $2)
		WHERE user_id = $1 AND state = 'waiting'
	`
	_, err := r.q.ExecContext(ctx, query, userID, stage)
	return err
}

func (r *stateRepository) BumpFairness(ctx context.Context, userID int64, delta float64) error {
	query := `
		UPDATE users_state
		SET fairness_score = fairness_score + $2
		WHERE user_id = $1 AND state = 'waiting'
	`
	_, err := r.q.ExecContext(ctx, query, userID, delta)
	return err
}

// FindCandidate runs the selector in one query. The candidate's own
// filters are evaluated from its row at its stored preference_stage; the
// requester's filters arrive pre-relaxed as parameters. Blocks and match
// history exclude in both directions; ordering is fairness, then wait,
// then random so equal candidates cannot starve each other.
func (r *stateRepository) FindCandidate(ctx context.Context, q repository.CandidateQuery) (*domain.Candidate, error) {
	req := q.Requester

	reqMinAge, reqMaxAge := req.Preferences.MinAge, req.Preferences.MaxAge
	if req.State.PreferenceStage >= domain.StageWideAge {
		reqMinAge -= domain.AgeWiden
		reqMaxAge += domain.AgeWiden
	}
	reqAnyAge := req.State.PreferenceStage >= domain.StageAnyAgePlace
	reqAnyCity := req.State.PreferenceStage >= domain.StageAnyLocation || len(req.Preferences.Cities) == 0

	query := `
		SELECT s.user_id
		FROM users_state s
		JOIN users u ON u.id = s.user_id
		JOIN preferences p ON p.user_id = s.user_id
		WHERE s.user_id <> $1
		  AND s.state = 'waiting'
		  AND u.is_online
		  AND (u.cooldown_until IS NULL OR u.cooldown_until <= $2)
		  AND (s.waiting_since >= $3 OR s.last_active >= $4)
		  -- candidate wants someone like the requester
		  AND p.desired_gender = $5
		  AND (s.preference_stage >= 3 OR $6 BETWEEN
		       p.min_age - (CASE WHEN s.preference_stage >= 1 THEN $7 ELSE 0 END) AND
		       p.max_age + (CASE WHEN s.preference_stage >= 1 THEN $7 ELSE 0 END))
		  AND (s.preference_stage >= 2 OR cardinality(p.cities) = 0 OR $8 = ANY(p.cities))
		  -- requester wants someone like the candidate
		  AND u.gender = $9
		  AND ($10 OR u.age BETWEEN $11 AND $12)
		  AND ($13 OR u.city = ANY($14))
		  -- never matched before, in either recorded order
		  AND NOT EXISTS (
		      SELECT 1 FROM match_history h
		      WHERE h.user1_id = LEAST(s.user_id, $1::bigint) AND h.user2_id = GREATEST(s.user_id, $1::bigint))
		  -- no block in either direction
		  AND NOT EXISTS (
		      SELECT 1 FROM blocks b
		      WHERE (b.blocker_id = s.user_id AND b.blocked_id = $1)
		         OR (b.blocker_id = $1 AND b.blocked_id = s.user_id))
		ORDER BY s.fairness_score DESC, s.waiting_since ASC, random()
		LIMIT 1
	`
	var candidateID int64
	err := sqlx.GetContext(ctx, r.q, &candidateID, query,
		req.User.ID,                      // $1
		q.Now,                            // $2
		q.Now.Add(-q.JoinGrace),          // $3
		q.Now.Add(-q.Liveness),           // $4
		req.User.Gender,                  // $5
		req.User.Age,                     // $6
		domain.AgeWiden,                  // $7
		req.User.City,                    // $8
		req.Preferences.DesiredGender,    // $9
		reqAnyAge,                        // $10
		reqMinAge,                        // $11
		reqMaxAge,                        // $12
		reqAnyCity,                       // $13
		pq.Array(req.Preferences.Cities), // $14
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r.GetCandidate(ctx, candidateID)
}

func (r *stateRepository) ListWaitingIDs(ctx context.Context, q repository.PoolQuery) ([]int64, error) {
	query := `
		SELECT s.user_id
		FROM users_state s
		JOIN users u ON u.id = s.user_id
		WHERE s.state = 'waiting'
		  AND u.is_online
		  AND (u.cooldown_until IS NULL OR u.cooldown_until <= $1)
		  AND (s.waiting_since >= $2 OR s.last_active >= $3)
		ORDER BY s.fairness_score DESC, s.waiting_since ASC
		LIMIT $4
	`
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids, query,
		q.Now, q.Now.Add(-q.JoinGrace), q.Now.Add(-q.Liveness), q.Limit)
	return ids, err
}

func (r *stateRepository) CountWaitingByGender(ctx context.Context, q repository.PoolQuery) (map[domain.Gender]int, error) {
	query := `
		SELECT u.gender, COUNT(*)
		FROM users_state s
		JOIN users u ON u.id = s.user_id
		WHERE s.state = 'waiting'
		  AND u.is_online
		  AND (s.waiting_since >= $1 OR s.last_active >= $2)
		GROUP BY u.gender
	`
	rows, err := r.q.QueryxContext(ctx, query, q.Now.Add(-q.JoinGrace), q.Now.Add(-q.Liveness))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Gender]int)
	for rows.Next() {
		var g domain.Gender
		var n int
		if err := rows.Scan(&g, &n); err != nil {
			return nil, err
		}
		counts[g] = n
	}
	return counts, rows.Err()
}

func (r *stateRepository) ResetStaleWaiting(ctx context.Context, q repository.StaleQuery) (int64, error) {
	query := `
		UPDATE users_state s
		SET state = 'idle', waiting_since = NULL, preference_stage = 0, updated_at = $1
		FROM users u
		WHERE u.id = s.user_id
		  AND s.state = 'waiting'
		  AND (NOT u.is_online
		       OR (s.waiting_since < $2 AND s.last_active < $3)
		       OR s.waiting_since < $4)
	`
	res, err := r.q.ExecContext(ctx, query,
		q.Now, q.Now.Add(-q.JoinGrace), q.Now.Add(-q.StaleAfter), q.Now.Add(-q.MaxWait))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *stateRepository) ResetMatchedOrphans(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users_state s
		SET state = 'idle', match_id = NULL, partner_id = NULL, updated_at = $1
		WHERE s.state = 'matched'
		  AND NOT EXISTS (
		      SELECT 1 FROM matches m
		      WHERE m.id = s.match_id AND m.status IN ('paired', 'active'))
	`
	res, err := r.q.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
