package repository

import (
	"context"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
)

type VideoDateRepository interface {
	// Create inserts the date row for a match. When another participant got
	// there first the unique key fires and ErrVideoDateExists comes back;
	// callers then Get the winner's row.
	Create(ctx context.Context, vd *domain.VideoDate) error

	Get(ctx context.Context, matchID int64) (*domain.VideoDate, error)

	// Promote persists countdown → active once the countdown has elapsed.
	Promote(ctx context.Context, matchID int64, startedAt time.Time) (bool, error)

	Complete(ctx context.Context, matchID int64) (bool, error)

	EndEarly(ctx context.Context, matchID, byUserID int64) (bool, error)
}
