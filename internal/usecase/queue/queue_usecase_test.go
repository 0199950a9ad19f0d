package queue

import (
	"context"
	"testing"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testCfg = config.MatchingConfig{
	VoteWindow:            60 * time.Second,
	JoinGrace:             60 * time.Second,
	Liveness:              15 * time.Second,
	FairnessPassBump:      1,
	FairnessMinorityBonus: 2,
}

func putUser(s *memory.Store, id int64, gender domain.Gender, age int, online bool) {
	s.PutUser(
		domain.User{ID: id, Name: "u", Gender: gender, Age: age, City: "Berlin", IsOnline: online},
		domain.Preferences{UserID: id, DesiredGender: otherGender(gender), MinAge: 18, MaxAge: 99},
	)
}

func otherGender(g domain.Gender) domain.Gender {
	if g == domain.GenderMale {
		return domain.GenderFemale
	}
	return domain.GenderMale
}

func newTestUseCase(s *memory.Store, now time.Time) *QueueUseCase {
	uc := NewQueueUseCase(s, testCfg, zap.NewNop())
	uc.now = func() time.Time { return now }
	return uc
}

func TestJoinCreatesWaitingState(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	putUser(s, 1, domain.GenderMale, 25, true)
	uc := newTestUseCase(s, now)

	status, err := uc.Join(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaiting, status.State)
	assert.Equal(t, 0, status.PreferenceStage)

	st, err := s.States().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaiting, st.State)
	require.NotNil(t, st.WaitingSince)
	assert.Equal(t, now, *st.WaitingSince)
}

func TestJoinRejectsOffline(t *testing.T) {
	s := memory.NewStore()
	putUser(s, 1, domain.GenderMale, 25, false)
	uc := newTestUseCase(s, time.Now().UTC())

	_, err := uc.Join(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrUserOffline)
}

func TestJoinRejectsUnknownUser(t *testing.T) {
	s := memory.NewStore()
	uc := newTestUseCase(s, time.Now().UTC())

	_, err := uc.Join(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestJoinRejectsCooldown(t *testing.T) {
	s := memory.NewStore()
	now := time.Now().UTC()
	until := now.Add(90 * time.Second)
	s.PutUser(
		domain.User{ID: 1, Gender: domain.GenderMale, Age: 25, IsOnline: true, CooldownUntil: &until},
		domain.Preferences{UserID: 1, DesiredGender: domain.GenderFemale, MinAge: 18, MaxAge: 99},
	)
	uc := newTestUseCase(s, now)

	_, err := uc.Join(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrInCooldown)

	var cd *CooldownError
	require.ErrorAs(t, err, &cd)
	assert.InDelta(t, 90, cd.RetryAfter.Seconds(), 1)
}

func TestJoinTwiceIsRejectedNotDuplicated(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	putUser(s, 1, domain.GenderMale, 25, true)
	uc := newTestUseCase(s, now)

	_, err := uc.Join(ctx, 1)
	require.NoError(t, err)

	_, err = uc.Join(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrAlreadyQueued)

	// Still exactly one waiting entry with the original timestamps.
	st, err := s.States().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, now, *st.WaitingSince)
}

func TestMinorityBonusOnJoin(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	putUser(s, 1, domain.GenderMale, 25, true)
	putUser(s, 2, domain.GenderMale, 26, true)
	putUser(s, 3, domain.GenderFemale, 24, true)
	uc := newTestUseCase(s, now)

	_, err := uc.Join(ctx, 1)
	require.NoError(t, err)
	_, err = uc.Join(ctx, 2)
	require.NoError(t, err)

	// Two men waiting, no women: the female joiner is the minority.
	status, err := uc.Join(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, testCfg.FairnessMinorityBonus, status.FairnessScore)

	st, _ := s.States().Get(ctx, 1)
	assert.Zero(t, st.FairnessScore)
}

func TestLeaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	putUser(s, 1, domain.GenderMale, 25, true)
	uc := newTestUseCase(s, now)

	// Leaving without ever joining succeeds.
	require.NoError(t, uc.Leave(ctx, 1))

	_, err := uc.Join(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, uc.Leave(ctx, 1))
	require.NoError(t, uc.Leave(ctx, 1))

	st, err := s.States().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, st.State)
	assert.Nil(t, st.WaitingSince)
}

func TestLeaveKeepsFairnessScore(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	putUser(s, 1, domain.GenderMale, 25, true)
	uc := newTestUseCase(s, now)

	_, err := uc.Join(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.States().BumpFairness(ctx, 1, 3))
	require.NoError(t, uc.Leave(ctx, 1))

	st, _ := s.States().Get(ctx, 1)
	assert.Equal(t, float64(3), st.FairnessScore)
}

func TestHeartbeatRefreshesLiveness(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	putUser(s, 1, domain.GenderMale, 25, true)
	uc := newTestUseCase(s, now)

	_, err := uc.Join(ctx, 1)
	require.NoError(t, err)

	later := now.Add(2 * time.Minute)
	uc.now = func() time.Time { return later }
	require.NoError(t, uc.Heartbeat(ctx, 1))

	st, _ := s.States().Get(ctx, 1)
	assert.Equal(t, later, st.LastActive)
	assert.True(t, st.Live(later, testCfg.JoinGrace, testCfg.Liveness))
}

func TestStatusForUnknownUserIsIdle(t *testing.T) {
	s := memory.NewStore()
	uc := newTestUseCase(s, time.Now().UTC())

	status, err := uc.Status(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, status.State)
}

func TestStatusReportsWait(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.Now().UTC()
	putUser(s, 1, domain.GenderMale, 25, true)
	uc := newTestUseCase(s, now)

	_, err := uc.Join(ctx, 1)
	require.NoError(t, err)

	uc.now = func() time.Time { return now.Add(12 * time.Second) }
	status, err := uc.Status(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaiting, status.State)
	assert.Equal(t, 12, status.WaitingSeconds)
}
