package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/infrastructure/videosession"
	"github.com/glintdate/glint-backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testCfg = config.MatchingConfig{
	VoteWindow:    60 * time.Second,
	DateCountdown: 5 * time.Second,
	ExitCooldown:  120 * time.Second,
	JoinGrace:     60 * time.Second,
	Liveness:      15 * time.Second,
}

func testVideo(t *testing.T) *videosession.Service {
	t.Helper()
	v, err := videosession.New(config.VideoSessionConfig{
		TokenSecret:   "0123456789abcdef0123456789abcdef",
		RoomNamespace: "6ba7b812-9dad-11d1-80b4-00c04fd430c8",
	})
	require.NoError(t, err)
	return v
}

func newTestUseCase(t *testing.T, s *memory.Store, now time.Time) *LifecycleUseCase {
	t.Helper()
	uc := NewLifecycleUseCase(s, nil, testVideo(t), testCfg, zap.NewNop())
	uc.now = func() time.Time { return now }
	return uc
}

// seedActiveMatch wires users 1 and 2 into an active match and returns
// its id.
func seedActiveMatch(t *testing.T, s *memory.Store, now time.Time) int64 {
	t.Helper()
	ctx := context.Background()

	for id, g := range map[int64]domain.Gender{1: domain.GenderMale, 2: domain.GenderFemale} {
		want := domain.GenderFemale
		if g == domain.GenderFemale {
			want = domain.GenderMale
		}
		s.PutUser(
			domain.User{ID: id, Name: "u", Gender: g, Age: 25, City: "Berlin", IsOnline: true},
			domain.Preferences{UserID: id, DesiredGender: want, MinAge: 18, MaxAge: 99},
		)
		since := now
		require.NoError(t, s.States().Create(ctx, &domain.UserState{
			UserID: id, State: domain.StateWaiting, WaitingSince: &since, LastActive: now, UpdatedAt: now,
		}))
	}

	m := &domain.Match{User1ID: 1, User2ID: 2, Status: domain.MatchStatusPaired}
	require.NoError(t, s.Matches().Create(ctx, m))
	ok, err := s.Matches().Activate(ctx, m.ID, now.Add(testCfg.VoteWindow))
	require.NoError(t, err)
	require.True(t, ok)
	for _, side := range [][2]int64{{1, 2}, {2, 1}} {
		ok, err := s.States().MarkMatched(ctx, side[0], m.ID, side[1], now)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, s.History().Record(ctx, 1, 2, now))
	return m.ID
}

func TestMutualYesCompletesAsMatched(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)
	uc := newTestUseCase(t, s, now)

	resp, err := uc.CastVote(ctx, matchID, 1, domain.VoteYes)
	require.NoError(t, err)
	assert.False(t, resp.Resolved)
	assert.False(t, resp.PartnerVoted)

	resp, err = uc.CastVote(ctx, matchID, 2, domain.VoteYes)
	require.NoError(t, err)
	require.True(t, resp.Resolved)
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, domain.OutcomeMatched, *resp.Outcome)

	m, _ := s.Matches().GetByID(ctx, matchID)
	assert.Equal(t, domain.MatchStatusCompleted, m.Status)
	require.NotNil(t, m.Outcome)
	assert.Equal(t, domain.OutcomeMatched, *m.Outcome)

	// Both participants are released back to idle.
	for _, id := range []int64{1, 2} {
		st, _ := s.States().Get(ctx, id)
		assert.Equal(t, domain.StateIdle, st.State)
		assert.Nil(t, st.MatchID)
	}
}

func TestAnyPassYieldsNoMatch(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)
	uc := newTestUseCase(t, s, now)

	_, err := uc.CastVote(ctx, matchID, 1, domain.VoteYes)
	require.NoError(t, err)
	resp, err := uc.CastVote(ctx, matchID, 2, domain.VotePass)
	require.NoError(t, err)
	require.True(t, resp.Resolved)
	assert.Equal(t, domain.OutcomeNoMatch, *resp.Outcome)
}

func TestRevoteIsIdempotentFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)
	uc := newTestUseCase(t, s, now)

	_, err := uc.CastVote(ctx, matchID, 1, domain.VoteYes)
	require.NoError(t, err)

	// Changing the answer is accepted but does not overwrite.
	resp, err := uc.CastVote(ctx, matchID, 1, domain.VotePass)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteYes, resp.YourVote)
	assert.False(t, resp.Resolved)
}

func TestVoteValidations(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)
	uc := newTestUseCase(t, s, now)

	_, err := uc.CastVote(ctx, matchID, 99, domain.VoteYes)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = uc.CastVote(ctx, matchID+100, 1, domain.VoteYes)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)
}

func TestVoteAfterExpiryClosesAndResolves(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)

	late := newTestUseCase(t, s, now.Add(testCfg.VoteWindow+time.Second))
	_, err := late.CastVote(ctx, matchID, 1, domain.VoteYes)
	assert.ErrorIs(t, err, domain.ErrVoteWindowClosed)

	// The doomed vote lazily settled the expired match: silence is a pass.
	m, _ := s.Matches().GetByID(ctx, matchID)
	assert.Equal(t, domain.MatchStatusCompleted, m.Status)
	assert.Equal(t, domain.OutcomeNoMatch, *m.Outcome)
	st, _ := s.States().Get(ctx, 1)
	assert.Equal(t, domain.StateIdle, st.State)
}

func TestResolveExpiredIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)
	uc := newTestUseCase(t, s, now.Add(2*testCfg.VoteWindow))

	require.NoError(t, uc.ResolveExpired(ctx, matchID))
	require.NoError(t, uc.ResolveExpired(ctx, matchID))

	m, _ := s.Matches().GetByID(ctx, matchID)
	assert.Equal(t, domain.MatchStatusCompleted, m.Status)
}

func TestEndEarlyCancelsAndPenalizes(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)
	uc := newTestUseCase(t, s, now)

	// A date was underway.
	_, err := uc.JoinDate(ctx, matchID, 1)
	require.NoError(t, err)

	require.NoError(t, uc.EndEarly(ctx, matchID, 2))

	m, _ := s.Matches().GetByID(ctx, matchID)
	assert.Equal(t, domain.MatchStatusCancelled, m.Status)
	assert.Nil(t, m.Outcome)

	vd, err := s.VideoDates().Get(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoDateEndedEarly, vd.Status)
	require.NotNil(t, vd.EndedByUserID)
	assert.Equal(t, int64(2), *vd.EndedByUserID)

	// The ender is in cooldown; the partner is not.
	u2, _ := s.Users().GetByID(ctx, 2)
	require.NotNil(t, u2.CooldownUntil)
	assert.Equal(t, now.Add(testCfg.ExitCooldown), *u2.CooldownUntil)
	u1, _ := s.Users().GetByID(ctx, 1)
	assert.Nil(t, u1.CooldownUntil)

	// Ending twice is a conflict, not a double penalty.
	err = uc.EndEarly(ctx, matchID, 1)
	assert.ErrorIs(t, err, domain.ErrMatchNotActive)
}

func TestActiveMatchView(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)
	uc := newTestUseCase(t, s, now.Add(10*time.Second))

	resp, err := uc.ActiveMatch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, matchID, resp.MatchID)
	assert.Equal(t, 50, resp.VoteWindowRemainingSeconds)
	require.NotNil(t, resp.Partner)
	assert.Equal(t, int64(2), resp.Partner.ID)
	assert.NotEmpty(t, resp.RoomID)

	// Both sides see the same room.
	resp2, err := uc.ActiveMatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, resp.RoomID, resp2.RoomID)

	_, err = uc.ActiveMatch(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)
}

func TestActiveMatchLazilyResolvesExpired(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)
	uc := newTestUseCase(t, s, now.Add(testCfg.VoteWindow+time.Second))

	_, err := uc.ActiveMatch(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	m, _ := s.Matches().GetByID(ctx, matchID)
	assert.Equal(t, domain.MatchStatusCompleted, m.Status)
}

func TestJoinDateCreationRace(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)
	uc := newTestUseCase(t, s, now)

	first, err := uc.JoinDate(ctx, matchID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoDateCountdown, first.Phase)
	assert.NotEmpty(t, first.RoomToken)

	// The second participant arrives "simultaneously": its insert loses
	// and it must land on the winner's row and countdown clock.
	second, err := uc.JoinDate(ctx, matchID, 2)
	require.NoError(t, err)
	assert.Equal(t, first.RoomID, second.RoomID)
	assert.Equal(t, first.CountdownRemainingSeconds, second.CountdownRemainingSeconds)

	vd, err := s.VideoDates().Get(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, now, vd.CountdownStartedAt)
}

func TestJoinDatePromotesAfterCountdown(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)

	early := newTestUseCase(t, s, now)
	_, err := early.JoinDate(ctx, matchID, 1)
	require.NoError(t, err)

	later := newTestUseCase(t, s, now.Add(10*time.Second))
	resp, err := later.JoinDate(ctx, matchID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoDateActive, resp.Phase)
	assert.Zero(t, resp.CountdownRemainingSeconds)
	assert.Equal(t, 50, resp.DateRemainingSeconds)

	vd, _ := s.VideoDates().Get(ctx, matchID)
	assert.Equal(t, domain.VideoDateActive, vd.Status)
	require.NotNil(t, vd.StartedAt)
	assert.Equal(t, now.Add(testCfg.DateCountdown), *vd.StartedAt)
}

func TestGetDateIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	matchID := seedActiveMatch(t, s, now)

	uc := newTestUseCase(t, s, now)
	_, err := uc.GetDate(ctx, matchID, 1)
	assert.ErrorIs(t, err, domain.ErrVideoDateNotFound)

	_, err = uc.JoinDate(ctx, matchID, 1)
	require.NoError(t, err)

	// Past the countdown a read reports active but never writes the
	// promotion itself.
	later := newTestUseCase(t, s, now.Add(10*time.Second))
	resp, err := later.GetDate(ctx, matchID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoDateActive, resp.Phase)
	assert.Empty(t, resp.RoomToken)

	vd, _ := s.VideoDates().Get(ctx, matchID)
	assert.Equal(t, domain.VideoDateCountdown, vd.Status)
}
