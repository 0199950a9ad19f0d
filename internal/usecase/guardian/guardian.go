// Package guardian is the reconciliation sweep: it repairs drift between
// the queue, the matches and the per-user state rows. It only ever
// restores invariants; it never creates pairings.
package guardian

import (
	"context"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/repository"
	"github.com/glintdate/glint-backend/internal/retry"
	"github.com/glintdate/glint-backend/internal/usecase/lifecycle"
	"go.uber.org/zap"
)

const sweepBatch = 200

type Guardian struct {
	store     repository.Store
	lifecycle *lifecycle.LifecycleUseCase
	cfg       config.MatchingConfig
	log       *zap.Logger
	now       func() time.Time
}

func NewGuardian(store repository.Store, lc *lifecycle.LifecycleUseCase, cfg config.MatchingConfig, log *zap.Logger) *Guardian {
	return &Guardian{
		store:     store,
		lifecycle: lc,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Sweep runs all duties once. Each duty is independently idempotent and
// failure-isolated: one failing repair never blocks the others.
func (g *Guardian) Sweep(ctx context.Context) {
	g.resetStaleWaiting(ctx)
	g.resolveExpiredMatches(ctx)
	g.resetMatchedOrphans(ctx)
	g.cancelUnreferencedMatches(ctx)
}

// resetStaleWaiting evicts waiting entries whose user went offline,
// stopped heartbeating, or overstayed the queue.
func (g *Guardian) resetStaleWaiting(ctx context.Context) {
	now := g.now().UTC()
	var n int64
	err := retry.Do(ctx, retry.Default, func(ctx context.Context) error {
		var err error
		n, err = g.store.States().ResetStaleWaiting(ctx, repository.StaleQuery{
			Now:        now,
			JoinGrace:  g.cfg.JoinGrace,
			StaleAfter: g.cfg.StaleAfter,
			MaxWait:    g.cfg.MaxQueueWait,
		})
		return err
	})
	if err != nil {
		g.log.Error("stale-waiting sweep failed", zap.Error(err))
		return
	}
	g.report("stale waiting entries reset", n)
}

// resolveExpiredMatches settles active matches past their window through
// the same resolution path a timed-out vote takes.
func (g *Guardian) resolveExpiredMatches(ctx context.Context) {
	now := g.now().UTC()
	matches, err := g.store.Matches().ListExpiredActive(ctx, now, sweepBatch)
	if err != nil {
		g.log.Error("expired-match listing failed", zap.Error(err))
		return
	}
	var n int64
	for _, m := range matches {
		if err := g.lifecycle.ResolveExpired(ctx, m.ID); err != nil {
			g.log.Error("expired-match resolution failed", zap.Int64("match_id", m.ID), zap.Error(err))
			continue
		}
		n++
	}
	g.report("expired matches resolved", n)
}

// resetMatchedOrphans returns users claiming a match that no longer lives
// to idle.
func (g *Guardian) resetMatchedOrphans(ctx context.Context) {
	now := g.now().UTC()
	var n int64
	err := retry.Do(ctx, retry.Default, func(ctx context.Context) error {
		var err error
		n, err = g.store.States().ResetMatchedOrphans(ctx, now)
		return err
	})
	if err != nil {
		g.log.Error("matched-orphan sweep failed", zap.Error(err))
		return
	}
	g.report("matched orphans reset", n)
}

// cancelUnreferencedMatches is the reverse repair: a live match that some
// participant's state row no longer points at cannot proceed, so it is
// cancelled and whichever half still references it is released.
func (g *Guardian) cancelUnreferencedMatches(ctx context.Context) {
	now := g.now().UTC()
	matches, err := g.store.Matches().ListLiveUnreferenced(ctx, sweepBatch)
	if err != nil {
		g.log.Error("unreferenced-match listing failed", zap.Error(err))
		return
	}
	var n int64
	for _, m := range matches {
		match := m
		err := retry.Do(ctx, retry.Default, func(ctx context.Context) error {
			return g.store.InTx(ctx, func(tx repository.Store) error {
				ok, err := tx.Matches().Cancel(ctx, match.ID, now)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				for _, id := range []int64{match.User1ID, match.User2ID} {
					if _, err := tx.States().Release(ctx, id, match.ID, now); err != nil {
						return err
					}
				}
				_, err = tx.VideoDates().Complete(ctx, match.ID)
				return err
			})
		})
		if err != nil {
			g.log.Error("unreferenced-match repair failed", zap.Int64("match_id", match.ID), zap.Error(err))
			continue
		}
		n++
	}
	g.report("unreferenced matches cancelled", n)
}

// Repairs mean an invariant drifted, which is worth noticing; a sweep
// that found nothing is routine.
func (g *Guardian) report(msg string, n int64) {
	if n > 0 {
		g.log.Warn(msg, zap.Int64("count", n))
	} else {
		g.log.Debug(msg, zap.Int64("count", 0))
	}
}
