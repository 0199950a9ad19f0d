package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/infrastructure/cache"
	"github.com/glintdate/glint-backend/internal/infrastructure/videosession"
	"github.com/glintdate/glint-backend/internal/repository"
	"github.com/glintdate/glint-backend/internal/retry"
	"go.uber.org/zap"
)

// LifecycleUseCase drives a match from activation through voting to its
// terminal state, and the video-date sub-lifecycle that runs alongside.
type LifecycleUseCase struct {
	store repository.Store
	cache *cache.Cache
	video *videosession.Service
	cfg   config.MatchingConfig
	log   *zap.Logger
	now   func() time.Time
}

func NewLifecycleUseCase(
	store repository.Store,
	c *cache.Cache,
	video *videosession.Service,
	cfg config.MatchingConfig,
	log *zap.Logger,
) *LifecycleUseCase {
	return &LifecycleUseCase{
		store: store,
		cache: c,
		video: video,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// PartnerSummary is what one participant may see about the other.
type PartnerSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
	City string `json:"city"`
}

type ActiveMatchResponse struct {
	MatchID                    int64              `json:"match_id"`
	Status                     domain.MatchStatus `json:"status"`
	Partner                    *PartnerSummary    `json:"partner"`
	YourVote                   *domain.Vote       `json:"your_vote,omitempty"`
	VoteWindowRemainingSeconds int                `json:"vote_window_remaining_seconds"`
	RoomID                     string             `json:"room_id"`
}

type VoteResponse struct {
	MatchID      int64                `json:"match_id"`
	YourVote     domain.Vote          `json:"your_vote"`
	PartnerVoted bool                 `json:"partner_voted"`
	Resolved     bool                 `json:"resolved"`
	Outcome      *domain.MatchOutcome `json:"outcome,omitempty"`
}

type DateResponse struct {
	MatchID                   int64                  `json:"match_id"`
	RoomID                    string                 `json:"room_id"`
	RoomToken                 string                 `json:"room_token,omitempty"`
	Phase                     domain.VideoDateStatus `json:"phase"`
	CountdownRemainingSeconds int                    `json:"countdown_remaining_seconds"`
	DateRemainingSeconds      int                    `json:"date_remaining_seconds"`
}

// CastVote records a yes/pass. The first vote per side wins; casting again
// is accepted and ignored. When the second vote lands, the same
// transaction resolves the match.
func (uc *LifecycleUseCase) CastVote(ctx context.Context, matchID, userID int64, vote domain.Vote) (*VoteResponse, error) {
	now := uc.now().UTC()

	match, err := uc.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(userID) {
		return nil, domain.ErrNotParticipant
	}
	if !match.Live() {
		return nil, domain.ErrMatchNotActive
	}
	if match.WindowExpired(now) {
		// Settle the expired match on the way out; the vote itself is too
		// late.
		if err := uc.ResolveExpired(ctx, matchID); err != nil {
			uc.log.Warn("lazy expiry resolution failed", zap.Int64("match_id", matchID), zap.Error(err))
		}
		return nil, domain.ErrVoteWindowClosed
	}

	var resp *VoteResponse
	err = retry.Do(ctx, retry.Default, func(ctx context.Context) error {
		return uc.store.InTx(ctx, func(tx repository.Store) error {
			ok, err := tx.Matches().CastVote(ctx, matchID, userID, vote, now)
			if err != nil {
				return err
			}
			if !ok {
				// The guard failed: the match resolved or expired between
				// our read and the write.
				return domain.ErrVoteWindowClosed
			}
			m, err := tx.Matches().GetByID(ctx, matchID)
			if err != nil {
				return err
			}
			resp = &VoteResponse{
				MatchID:      matchID,
				YourVote:     *m.VoteOf(userID),
				PartnerVoted: m.User1Vote != nil && m.User2Vote != nil,
			}
			if m.User1Vote != nil && m.User2Vote != nil {
				outcome := domain.ResolveOutcome(m.User1Vote, m.User2Vote)
				if err := uc.settle(ctx, tx, m, outcome, now); err != nil {
					return err
				}
				resp.Resolved = true
				resp.Outcome = &outcome
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if resp.Resolved {
		uc.cache.DropActiveMatch(ctx, match.User1ID, match.User2ID)
		uc.log.Info("match resolved by votes",
			zap.Int64("match_id", matchID), zap.String("outcome", string(*resp.Outcome)))
	}
	return resp, nil
}

// ResolveExpired settles an active match whose window has passed: missing
// votes count as pass. Idempotent; shared by the guardian, vote attempts
// and lazy reads.
func (uc *LifecycleUseCase) ResolveExpired(ctx context.Context, matchID int64) error {
	now := uc.now().UTC()
	var u1, u2 int64
	err := retry.Do(ctx, retry.Default, func(ctx context.Context) error {
		return uc.store.InTx(ctx, func(tx repository.Store) error {
			m, err := tx.Matches().GetByID(ctx, matchID)
			if err != nil {
				if errors.Is(err, domain.ErrMatchNotFound) {
					return nil
				}
				return err
			}
			if m.Status != domain.MatchStatusActive || !m.WindowExpired(now) {
				return nil
			}
			u1, u2 = m.User1ID, m.User2ID
			outcome := domain.ResolveOutcome(m.User1Vote, m.User2Vote)
			return uc.settle(ctx, tx, m, outcome, now)
		})
	})
	if err != nil {
		return err
	}
	if u1 != 0 {
		uc.cache.DropActiveMatch(ctx, u1, u2)
	}
	return nil
}

// settle completes a match and releases both participants. Runs inside
// the caller's transaction; every step is a guarded update, so settling a
// match another writer already settled is a no-op.
func (uc *LifecycleUseCase) settle(ctx context.Context, tx repository.Store, m *domain.Match, outcome domain.MatchOutcome, now time.Time) error {
	ok, err := tx.Matches().Resolve(ctx, m.ID, outcome, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, id := range []int64{m.User1ID, m.User2ID} {
		if _, err := tx.States().Release(ctx, id, m.ID, now); err != nil {
			return err
		}
	}
	_, err = tx.VideoDates().Complete(ctx, m.ID)
	return err
}

// EndEarly cancels a live match on behalf of one participant. The ender
// takes the cooldown penalty; the partner walks free.
func (uc *LifecycleUseCase) EndEarly(ctx context.Context, matchID, userID int64) error {
	now := uc.now().UTC()

	match, err := uc.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.HasUser(userID) {
		return domain.ErrNotParticipant
	}

	err = retry.Do(ctx, retry.Default, func(ctx context.Context) error {
		return uc.store.InTx(ctx, func(tx repository.Store) error {
			ok, err := tx.Matches().Cancel(ctx, matchID, now)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrMatchNotActive
			}
			if _, err := tx.VideoDates().EndEarly(ctx, matchID, userID); err != nil {
				return err
			}
			for _, id := range []int64{match.User1ID, match.User2ID} {
				if _, err := tx.States().Release(ctx, id, matchID, now); err != nil {
					return err
				}
			}
			return tx.Users().SetCooldown(ctx, userID, now.Add(uc.cfg.ExitCooldown))
		})
	})
	if err != nil {
		return err
	}

	uc.cache.DropActiveMatch(ctx, match.User1ID, match.User2ID)
	uc.log.Info("match ended early",
		zap.Int64("match_id", matchID), zap.Int64("ended_by", userID))
	return nil
}

// ActiveMatch is the client's view of its current match, with the
// remaining window computed server-side so both participants agree.
func (uc *LifecycleUseCase) ActiveMatch(ctx context.Context, userID int64) (*ActiveMatchResponse, error) {
	now := uc.now().UTC()

	matchID, ok := uc.cache.GetActiveMatchID(ctx, userID)
	if !ok {
		st, err := uc.store.States().Get(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrStateNotFound) {
				return nil, domain.ErrMatchNotFound
			}
			return nil, err
		}
		if st.MatchID == nil {
			return nil, domain.ErrMatchNotFound
		}
		matchID = *st.MatchID
	}

	match, err := uc.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(userID) {
		return nil, domain.ErrMatchNotFound
	}
	if match.Status == domain.MatchStatusActive && match.WindowExpired(now) {
		if err := uc.ResolveExpired(ctx, matchID); err != nil {
			uc.log.Warn("lazy expiry resolution failed", zap.Int64("match_id", matchID), zap.Error(err))
		}
		return nil, domain.ErrMatchNotFound
	}
	if !match.Live() {
		return nil, domain.ErrMatchNotFound
	}

	partnerID, _ := match.OtherUser(userID)
	partner, err := uc.partnerSummary(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	uc.cache.SetActiveMatchID(ctx, userID, matchID)
	return &ActiveMatchResponse{
		MatchID:                    matchID,
		Status:                     match.Status,
		Partner:                    partner,
		YourVote:                   match.VoteOf(userID),
		VoteWindowRemainingSeconds: int(match.WindowRemaining(now).Seconds()),
		RoomID:                     uc.video.RoomID(matchID),
	}, nil
}

// JoinDate is a participant's arrival in the date room. The first arrival
// creates the row and with it the authoritative countdown start; the
// second arrival loses the insert race and reads the winner's row.
func (uc *LifecycleUseCase) JoinDate(ctx context.Context, matchID, userID int64) (*DateResponse, error) {
	now := uc.now().UTC()

	match, err := uc.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(userID) {
		return nil, domain.ErrNotParticipant
	}
	if !match.Live() {
		return nil, domain.ErrMatchNotActive
	}
	if match.WindowExpired(now) {
		if err := uc.ResolveExpired(ctx, matchID); err != nil {
			uc.log.Warn("lazy expiry resolution failed", zap.Int64("match_id", matchID), zap.Error(err))
		}
		return nil, domain.ErrVoteWindowClosed
	}

	vd := &domain.VideoDate{
		MatchID:            matchID,
		Status:             domain.VideoDateCountdown,
		CountdownStartedAt: now,
	}
	if err := uc.store.VideoDates().Create(ctx, vd); err != nil {
		if !errors.Is(err, domain.ErrVideoDateExists) {
			return nil, err
		}
		vd, err = uc.store.VideoDates().Get(ctx, matchID)
		if err != nil {
			return nil, err
		}
	}

	// Write paths persist the countdown→active promotion; reads never
	// mutate and derive the phase from the stored timestamps instead.
	if vd.Status == domain.VideoDateCountdown && vd.EffectivePhase(now, uc.cfg.DateCountdown) == domain.VideoDateActive {
		startedAt := vd.DateStartsAt(uc.cfg.DateCountdown)
		if _, err := uc.store.VideoDates().Promote(ctx, matchID, startedAt); err != nil {
			return nil, err
		}
		vd.Status = domain.VideoDateActive
		vd.StartedAt = &startedAt
	}

	return uc.dateResponse(match, vd, userID, now, true)
}

// GetDate is the read-only polling endpoint for the date screen.
func (uc *LifecycleUseCase) GetDate(ctx context.Context, matchID, userID int64) (*DateResponse, error) {
	now := uc.now().UTC()

	match, err := uc.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(userID) {
		return nil, domain.ErrNotParticipant
	}
	vd, err := uc.store.VideoDates().Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return uc.dateResponse(match, vd, userID, now, false)
}

func (uc *LifecycleUseCase) dateResponse(match *domain.Match, vd *domain.VideoDate, userID int64, now time.Time, withToken bool) (*DateResponse, error) {
	resp := &DateResponse{
		MatchID:                   match.ID,
		RoomID:                    uc.video.RoomID(match.ID),
		Phase:                     vd.EffectivePhase(now, uc.cfg.DateCountdown),
		CountdownRemainingSeconds: int(vd.CountdownRemaining(now, uc.cfg.DateCountdown).Seconds()),
		DateRemainingSeconds:      int(match.WindowRemaining(now).Seconds()),
	}
	if withToken && match.VoteWindowExpiresAt != nil {
		token, err := uc.video.Token(match.ID, userID, *match.VoteWindowExpiresAt)
		if err != nil {
			return nil, err
		}
		resp.RoomToken = token
	}
	return resp, nil
}

func (uc *LifecycleUseCase) partnerSummary(ctx context.Context, partnerID int64) (*PartnerSummary, error) {
	var summary PartnerSummary
	if uc.cache.GetPartner(ctx, partnerID, &summary) {
		return &summary, nil
	}
	user, err := uc.store.Users().GetByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	summary = PartnerSummary{ID: user.ID, Name: user.Name, Age: user.Age, City: user.City}
	uc.cache.SetPartner(ctx, partnerID, &summary)
	return &summary, nil
}
