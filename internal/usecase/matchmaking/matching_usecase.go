package matchmaking

import (
	"context"
	"errors"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/infrastructure/cache"
	"github.com/glintdate/glint-backend/internal/repository"
	"github.com/glintdate/glint-backend/internal/retry"
	"go.uber.org/zap"
)

// MatchingUseCase is the pairing engine: the candidate selector on the
// read side and the two-phase pairing transactor on the write side.
type MatchingUseCase struct {
	store repository.Store
	cache *cache.Cache
	cfg   config.MatchingConfig
	log   *zap.Logger
	now   func() time.Time
}

func NewMatchingUseCase(store repository.Store, c *cache.Cache, cfg config.MatchingConfig, log *zap.Logger) *MatchingUseCase {
	return &MatchingUseCase{
		store: store,
		cache: c,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// RunPass walks the waiting pool in priority order and attempts to pair
// each user. Safe to run concurrently with itself: the transactor's locks
// and guarded updates make double-pairing impossible, a racing pass just
// loses some attempts to contention.
func (uc *MatchingUseCase) RunPass(ctx context.Context) (int, error) {
	now := uc.now().UTC()
	ids, err := uc.store.States().ListWaitingIDs(ctx, repository.PoolQuery{
		Now:       now,
		JoinGrace: uc.cfg.JoinGrace,
		Liveness:  uc.cfg.Liveness,
		Limit:     uc.cfg.PassBatchSize,
	})
	if err != nil {
		return 0, err
	}

	created := 0
	paired := make(map[int64]bool)
	for _, id := range ids {
		if paired[id] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return created, err
		}
		matchID, partnerID, err := uc.TryMatch(ctx, id)
		switch {
		case errors.Is(err, domain.ErrContention):
			// Another transactor beat this pass to one of the users.
			uc.log.Debug("pairing contention", zap.Int64("user_id", id))
		case err != nil:
			uc.log.Error("pairing attempt failed", zap.Int64("user_id", id), zap.Error(err))
		case matchID != 0:
			created++
			paired[id] = true
			paired[partnerID] = true
		default:
			// No candidate this pass: reward the wait.
			if err := uc.store.States().BumpFairness(ctx, id, uc.cfg.FairnessPassBump); err != nil {
				uc.log.Warn("fairness bump failed", zap.Int64("user_id", id), zap.Error(err))
			}
		}
	}

	if created > 0 {
		uc.log.Info("matching pass complete", zap.Int("waiting", len(ids)), zap.Int("created", created))
	} else {
		uc.log.Debug("matching pass complete", zap.Int("waiting", len(ids)))
	}
	return created, nil
}

// TryMatch attempts to pair one requester. Returns (0, 0, nil) when there
// is no candidate, and domain.ErrContention when a concurrent transactor
// held one of the advisory locks or won a guarded update; both are normal.
//
// Phase 1 runs without any lock so selectors can run fully in parallel;
// only the commit takes the two per-user advisory locks, and re-validates
// both rows because the world may have moved between the phases.
func (uc *MatchingUseCase) TryMatch(ctx context.Context, requesterID int64) (matchID, partnerID int64, err error) {
	now := uc.now().UTC()

	req, err := uc.store.States().GetCandidate(ctx, requesterID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrStateNotFound) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	if !req.Matchable(now, uc.cfg.JoinGrace, uc.cfg.Liveness) {
		return 0, 0, nil
	}

	// Advance the relaxation stage earned by the wait so far; stages only
	// ever go up within one queue entry.
	if stage := domain.StageForWait(req.State.WaitDuration(now)); stage > req.State.PreferenceStage {
		if err := uc.store.States().AdvanceStage(ctx, requesterID, stage); err != nil {
			return 0, 0, err
		}
		req.State.PreferenceStage = stage
	}

	cand, err := uc.store.States().FindCandidate(ctx, repository.CandidateQuery{
		Requester: req,
		Now:       now,
		JoinGrace: uc.cfg.JoinGrace,
		Liveness:  uc.cfg.Liveness,
	})
	if err != nil {
		return 0, 0, err
	}
	if cand == nil {
		return 0, 0, nil
	}
	if uc.cache.HistorySeen(ctx, requesterID, cand.User.ID) {
		// The store query already excludes history; the cached positive
		// just spares a doomed commit after a very recent pairing.
		return 0, 0, nil
	}

	candidateID := cand.User.ID
	err = retry.Do(ctx, retry.Default, func(ctx context.Context) error {
		return uc.store.InTx(ctx, func(tx repository.Store) error {
			id, err := uc.commit(ctx, tx, requesterID, candidateID, now)
			if err != nil {
				return err
			}
			matchID = id
			return nil
		})
	})
	if err != nil {
		return 0, 0, err
	}

	uc.cache.MarkHistorySeen(ctx, requesterID, candidateID)
	uc.cache.DropActiveMatch(ctx, requesterID, candidateID)
	uc.log.Info("match created",
		zap.Int64("match_id", matchID),
		zap.Int64("requester_id", requesterID),
		zap.Int64("candidate_id", candidateID))
	return matchID, candidateID, nil
}

// commit is the locked critical section. Both advisory locks are
// transaction-scoped: a rollback for any reason drops them, so there is no
// unlock bookkeeping and no way to leak a lock.
func (uc *MatchingUseCase) commit(ctx context.Context, tx repository.Store, requesterID, candidateID int64, now time.Time) (int64, error) {
	ok, err := tx.TryLockUser(ctx, requesterID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrContention
	}
	ok, err = tx.TryLockUser(ctx, candidateID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrContention
	}

	// Re-validate under the locks: either user may have been paired,
	// left, or gone stale since the unlocked read phase.
	for _, id := range []int64{requesterID, candidateID} {
		st, err := tx.States().GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrStateNotFound) {
				return 0, domain.ErrContention
			}
			return 0, err
		}
		if !st.Live(now, uc.cfg.JoinGrace, uc.cfg.Liveness) {
			return 0, domain.ErrContention
		}
	}

	match := &domain.Match{
		User1ID: requesterID,
		User2ID: candidateID,
		Status:  domain.MatchStatusPaired,
	}
	if err := tx.Matches().Create(ctx, match); err != nil {
		return 0, err
	}
	if ok, err := tx.Matches().Activate(ctx, match.ID, now.Add(uc.cfg.VoteWindow)); err != nil || !ok {
		if err != nil {
			return 0, err
		}
		return 0, domain.ErrContention
	}

	for _, side := range [2][2]int64{{requesterID, candidateID}, {candidateID, requesterID}} {
		ok, err := tx.States().MarkMatched(ctx, side[0], match.ID, side[1], now)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, domain.ErrContention
		}
	}

	if err := tx.History().Record(ctx, requesterID, candidateID, now); err != nil {
		return 0, err
	}
	return match.ID, nil
}
