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

type userRepository struct {
	q queryer
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	query := `SELECT * FROM users WHERE id = $1`
	err := sqlx.GetContext(ctx, r.q, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetPreferences(ctx context.Context, userID int64) (*domain.Preferences, error) {
	var p domain.Preferences
	query := `SELECT user_id, desired_gender, min_age, max_age, cities FROM preferences WHERE user_id = $1`
	row := r.q.QueryRowxContext(ctx, query, userID)
	err := row.Scan(&p.UserID, &p.DesiredGender, &p.MinAge, &p.MaxAge, pq.Array(&p.Cities))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *userRepository) SetCooldown(ctx context.Context, userID int64, until time.Time) error {
	query := `UPDATE users SET cooldown_until = $1 WHERE id = $2`
	res, err := r.q.ExecContext(ctx, query, until, userID)
	if err != nil {
		return err
	}
	changed, err := rowsChanged(res)
	if err != nil {
		return err
	}
	if !changed {
		return domain.ErrUserNotFound
	}
	return nil
}
