package repository

import (
	"context"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
)

// PoolQuery scopes reads of the waiting pool to users that are actually
// matchable right now (recency windows from config).
type PoolQuery struct {
	Now       time.Time
	JoinGrace time.Duration
	Liveness  time.Duration
	Limit     int
}

// CandidateQuery asks for the best partner for Requester: both sides'
// filters applied at their own relaxation stages, blocks and past matches
// excluded, ordered by fairness desc, wait desc, random tie-break.
type CandidateQuery struct {
	Requester *domain.Candidate
	Now       time.Time
	JoinGrace time.Duration
	Liveness  time.Duration
}

// StaleQuery is the guardian's eviction rule for waiting entries: the user
// went offline, or stopped heartbeating after the join grace, or overstayed
// the queue outright.
type StaleQuery struct {
	Now        time.Time
	JoinGrace  time.Duration
	StaleAfter time.Duration
	MaxWait    time.Duration
}

// StateRepository owns users_state. Mutations are guarded updates: they
// only apply when the row is still in the expected state and report whether
// they did, so racing writers can never clobber a concurrent transition.
type StateRepository interface {
	Get(ctx context.Context, userID int64) (*domain.UserState, error)

	// GetForUpdate row-locks the state inside the current transaction.
	GetForUpdate(ctx context.Context, userID int64) (*domain.UserState, error)

	// GetCandidate assembles the user, preference and state rows; it is the
	// selector's view of one user.
	GetCandidate(ctx context.Context, userID int64) (*domain.Candidate, error)

	// Create inserts a fresh waiting row (first ever join). A duplicate key
	// means a concurrent join won; it surfaces as ErrAlreadyQueued.
	Create(ctx context.Context, st *domain.UserState) error

	// MarkWaiting re-enters the queue from idle, stamping a new
	// waiting_since, stage 0 and any fairness bonus on top of the carried
	// score. Returns false when the row was not idle anymore.
	MarkWaiting(ctx context.Context, userID int64, now time.Time, fairnessBonus float64) (bool, error)

	// MarkMatched moves waiting → matched and resets fairness and stage.
	// Returns false when the row left waiting in the meantime.
	MarkMatched(ctx context.Context, userID, matchID, partnerID int64, now time.Time) (bool, error)

	// LeaveQueue moves waiting → idle, keeping the fairness score.
	LeaveQueue(ctx context.Context, userID int64, now time.Time) (bool, error)

	// Release moves matched → idle, but only while the row still points at
	// matchID, so releases for stale matches cannot undo a newer pairing.
	Release(ctx context.Context, userID, matchID int64, now time.Time) (bool, error)

	Heartbeat(ctx context.Context, userID int64, now time.Time) error

	// AdvanceStage raises preference_stage to stage, never lowers it.
	AdvanceStage(ctx context.Context, userID int64, stage int) error

	BumpFairness(ctx context.Context, userID int64, delta float64) error

	FindCandidate(ctx context.Context, q CandidateQuery) (*domain.Candidate, error)
	ListWaitingIDs(ctx context.Context, q PoolQuery) ([]int64, error)
	CountWaitingByGender(ctx context.Context, q PoolQuery) (map[domain.Gender]int, error)

	// ResetStaleWaiting evicts dead queue entries; returns how many.
	ResetStaleWaiting(ctx context.Context, q StaleQuery) (int64, error)

	// ResetMatchedOrphans returns matched rows whose match is gone or
	// terminal back to idle; returns how many.
	ResetMatchedOrphans(ctx context.Context, now time.Time) (int64, error)
}
