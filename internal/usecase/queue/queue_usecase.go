package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/repository"
	"github.com/glintdate/glint-backend/internal/retry"
	"go.uber.org/zap"
)

// QueueUseCase owns queue admission: join, leave, heartbeat and the
// client's polling view of its own state.
type QueueUseCase struct {
	store repository.Store
	cfg   config.MatchingConfig
	log   *zap.Logger
	now   func() time.Time

	// Joined is signalled (best-effort) after every successful join so the
	// scheduler can run a pass without waiting for the next tick.
	Joined chan struct{}
}

func NewQueueUseCase(store repository.Store, cfg config.MatchingConfig, log *zap.Logger) *QueueUseCase {
	return &QueueUseCase{
		store:  store,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		Joined: make(chan struct{}, 1),
	}
}

// CooldownError carries how long the early-exit penalty still has to
// run; it unwraps to domain.ErrInCooldown for classification.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string { return domain.ErrInCooldown.Error() }
func (e *CooldownError) Unwrap() error { return domain.ErrInCooldown }

// StatusResponse is the client's polling surface.
type StatusResponse struct {
	State           domain.QueueState `json:"state"`
	WaitingSince    *time.Time        `json:"waiting_since,omitempty"`
	WaitingSeconds  int               `json:"waiting_seconds"`
	PreferenceStage int               `json:"preference_stage"`
	FairnessScore   float64           `json:"fairness_score"`
	MatchID         *int64            `json:"match_id,omitempty"`
}

// Join puts the user into the waiting pool. Rejections: offline users,
// users in cooldown, users already waiting or already matched.
func (uc *QueueUseCase) Join(ctx context.Context, userID int64) (*StatusResponse, error) {
	now := uc.now().UTC()

	user, err := uc.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsOnline {
		return nil, domain.ErrUserOffline
	}
	if user.InCooldown(now) {
		return nil, &CooldownError{RetryAfter: user.CooldownUntil.Sub(now)}
	}

	bonus, err := uc.minorityBonus(ctx, user.Gender, now)
	if err != nil {
		// The bonus is best-effort; a failed count must not block a join.
		uc.log.Warn("minority bonus lookup failed", zap.Error(err))
		bonus = 0
	}

	err = retry.Do(ctx, retry.Default, func(ctx context.Context) error {
		st, err := uc.store.States().Get(ctx, userID)
		if err == domain.ErrStateNotFound {
			return uc.store.States().Create(ctx, &domain.UserState{
				UserID:        userID,
				State:         domain.StateWaiting,
				WaitingSince:  &now,
				FairnessScore: bonus,
				LastActive:    now,
				UpdatedAt:     now,
			})
		}
		if err != nil {
			return err
		}
		switch st.State {
		case domain.StateWaiting:
			return domain.ErrAlreadyQueued
		case domain.StateMatched:
			return domain.ErrAlreadyMatched
		}
		ok, err := uc.store.States().MarkWaiting(ctx, userID, now, bonus)
		if err != nil {
			return err
		}
		if !ok {
			// The row left idle between Get and MarkWaiting.
			return domain.ErrContention
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.poke()
	uc.log.Debug("user joined queue", zap.Int64("user_id", userID), zap.Float64("bonus", bonus))
	return uc.Status(ctx, userID)
}

// Leave is idempotent: leaving while not waiting is a success.
func (uc *QueueUseCase) Leave(ctx context.Context, userID int64) error {
	now := uc.now().UTC()
	return retry.Do(ctx, retry.Default, func(ctx context.Context) error {
		_, err := uc.store.States().LeaveQueue(ctx, userID, now)
		return err
	})
}

// Heartbeat refreshes liveness so a long-waiting user stays matchable.
func (uc *QueueUseCase) Heartbeat(ctx context.Context, userID int64) error {
	return uc.store.States().Heartbeat(ctx, userID, uc.now().UTC())
}

func (uc *QueueUseCase) Status(ctx context.Context, userID int64) (*StatusResponse, error) {
	st, err := uc.store.States().Get(ctx, userID)
	if err == domain.ErrStateNotFound {
		return &StatusResponse{State: domain.StateIdle}, nil
	}
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		State:           st.State,
		WaitingSince:    st.WaitingSince,
		WaitingSeconds:  int(st.WaitDuration(uc.now().UTC()).Seconds()),
		PreferenceStage: st.PreferenceStage,
		FairnessScore:   st.FairnessScore,
		MatchID:         st.MatchID,
	}, nil
}

// minorityBonus grants the fairness head start when the joiner's gender is
// strictly underrepresented among current waiters.
func (uc *QueueUseCase) minorityBonus(ctx context.Context, g domain.Gender, now time.Time) (float64, error) {
	counts, err := uc.store.States().CountWaitingByGender(ctx, repository.PoolQuery{
		Now:       now,
		JoinGrace: uc.cfg.JoinGrace,
		Liveness:  uc.cfg.Liveness,
	})
	if err != nil {
		return 0, fmt.Errorf("count waiting by gender: %w", err)
	}
	other := domain.GenderFemale
	if g == domain.GenderFemale {
		other = domain.GenderMale
	}
	if counts[g] < counts[other] {
		return uc.cfg.FairnessMinorityBonus, nil
	}
	return 0, nil
}

func (uc *QueueUseCase) poke() {
	select {
	case uc.Joined <- struct{}{}:
	default:
	}
}
