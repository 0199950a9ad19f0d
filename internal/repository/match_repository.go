package repository

import (
	"context"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
)

type MatchRepository interface {
	// Create inserts a paired match, swapping ids into canonical order
	// first. The match's ID and CreatedAt are filled in on return.
	Create(ctx context.Context, match *domain.Match) error

	// Activate opens the vote window: paired → active. False when the match
	// already left paired.
	Activate(ctx context.Context, id int64, expiresAt time.Time) (bool, error)

	GetByID(ctx context.Context, id int64) (*domain.Match, error)

	// CastVote records the voter's vote if none is stored yet (first write
	// wins), guarded by status=active and an unexpired window. False means
	// the guard failed, not that the vote differed.
	CastVote(ctx context.Context, id, voterID int64, vote domain.Vote, now time.Time) (bool, error)

	// Resolve closes an active match with an outcome. False when the match
	// already resolved.
	Resolve(ctx context.Context, id int64, outcome domain.MatchOutcome, now time.Time) (bool, error)

	// Cancel ends a live match without an outcome (early exit, repairs).
	Cancel(ctx context.Context, id int64, now time.Time) (bool, error)

	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*domain.Match, error)

	// ListLiveUnreferenced finds live matches that some participant's state
	// row no longer points at (guardian repair input).
	ListLiveUnreferenced(ctx context.Context, limit int) ([]*domain.Match, error)
}
