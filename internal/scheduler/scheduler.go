// Package scheduler runs the engine's background loops: the matching
// pass, the guardian sweep and the adaptive admission controller.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/infrastructure/admission"
	"github.com/glintdate/glint-backend/internal/usecase/guardian"
	"github.com/glintdate/glint-backend/internal/usecase/matchmaking"
	"go.uber.org/zap"
)

type Scheduler struct {
	matching   *matchmaking.MatchingUseCase
	guardian   *guardian.Guardian
	controller *admission.Controller
	joined     <-chan struct{}
	cfg        config.MatchingConfig
	adaptive   time.Duration
	log        *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(
	matching *matchmaking.MatchingUseCase,
	g *guardian.Guardian,
	controller *admission.Controller,
	joined <-chan struct{},
	matchingCfg config.MatchingConfig,
	admissionCfg config.AdmissionConfig,
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		matching:   matching,
		guardian:   g,
		controller: controller,
		joined:     joined,
		cfg:        matchingCfg,
		adaptive:   admissionCfg.AdaptiveInterval,
		log:        log,
	}
}

// Start launches the loops. Stop waits for them to drain.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(3)
	go s.matchingLoop(ctx)
	go s.guardianLoop(ctx)
	go s.adaptiveLoop(ctx)

	s.log.Info("scheduler started",
		zap.Duration("pass_interval", s.cfg.PassInterval),
		zap.Duration("guardian_interval", s.cfg.GuardianInterval),
		zap.Duration("adaptive_interval", s.adaptive))
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// matchingLoop ticks on the pass interval and is also poked by successful
// joins, so a fresh pair of joiners does not have to wait a full tick.
func (s *Scheduler) matchingLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(jitter(s.cfg.PassInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.joined:
		}
		if _, err := s.matching.RunPass(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("matching pass failed", zap.Error(err))
		}
		ticker.Reset(jitter(s.cfg.PassInterval))
	}
}

func (s *Scheduler) guardianLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(jitter(s.cfg.GuardianInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.guardian.Sweep(ctx)
			ticker.Reset(jitter(s.cfg.GuardianInterval))
		}
	}
}

func (s *Scheduler) adaptiveLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.adaptive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.controller.Tick(ctx)
		}
	}
}

// jitter spreads ticks ±10% so multiple instances do not sweep in
// lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	spread := int64(d) / 10
	if spread == 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(2*spread)-spread)
}
