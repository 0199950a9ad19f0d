package repository

import (
	"context"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetPreferences(ctx context.Context, userID int64) (*domain.Preferences, error)

	// SetCooldown stamps the early-exit penalty on the user row.
	SetCooldown(ctx context.Context, userID int64, until time.Time) error
}
