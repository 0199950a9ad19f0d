package domain_test

import (
	"testing"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalPair(t *testing.T) {
	a, b := domain.CanonicalPair(7, 3)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(7), b)

	a, b = domain.CanonicalPair(3, 7)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(7), b)
}

func TestStageForWait(t *testing.T) {
	assert.Equal(t, domain.StageExact, domain.StageForWait(0))
	assert.Equal(t, domain.StageExact, domain.StageForWait(9*time.Second))
	assert.Equal(t, domain.StageWideAge, domain.StageForWait(10*time.Second))
	assert.Equal(t, domain.StageAnyLocation, domain.StageForWait(15*time.Second))
	assert.Equal(t, domain.StageAnyAgePlace, domain.StageForWait(20*time.Second))
	assert.Equal(t, domain.StageAnyAgePlace, domain.StageForWait(time.Hour))
}

func TestResolveOutcome(t *testing.T) {
	yes, pass := domain.VoteYes, domain.VotePass

	assert.Equal(t, domain.OutcomeMatched, domain.ResolveOutcome(&yes, &yes))
	assert.Equal(t, domain.OutcomeNoMatch, domain.ResolveOutcome(&yes, &pass))
	assert.Equal(t, domain.OutcomeNoMatch, domain.ResolveOutcome(&pass, &yes))
	assert.Equal(t, domain.OutcomeNoMatch, domain.ResolveOutcome(&yes, nil))
	assert.Equal(t, domain.OutcomeNoMatch, domain.ResolveOutcome(nil, nil))
}

func candidate(id int64, gender domain.Gender, age int, city string, wantGender domain.Gender, minAge, maxAge int, cities []string, stage int) *domain.Candidate {
	return &domain.Candidate{
		User: domain.User{ID: id, Gender: gender, Age: age, City: city, IsOnline: true},
		Preferences: domain.Preferences{
			UserID: id, DesiredGender: wantGender, MinAge: minAge, MaxAge: maxAge, Cities: cities,
		},
		State: domain.UserState{UserID: id, State: domain.StateWaiting, PreferenceStage: stage},
	}
}

func TestCompatibleExactPreferences(t *testing.T) {
	a := candidate(1, domain.GenderMale, 25, "Berlin", domain.GenderFemale, 20, 30, []string{"Berlin"}, 0)
	b := candidate(2, domain.GenderFemale, 24, "Berlin", domain.GenderMale, 22, 28, nil, 0)

	assert.True(t, domain.Compatible(a, b))
	assert.True(t, domain.Compatible(b, a))
}

func TestCompatibleGenderNeverRelaxed(t *testing.T) {
	a := candidate(1, domain.GenderMale, 25, "Berlin", domain.GenderFemale, 20, 30, nil, domain.StageAnyAgePlace)
	b := candidate(2, domain.GenderMale, 24, "Berlin", domain.GenderFemale, 20, 30, nil, domain.StageAnyAgePlace)

	// Both fully relaxed, but both want women and both are men.
	assert.False(t, domain.Compatible(a, b))
}

func TestCompatibleAgeWidening(t *testing.T) {
	// b is 33, outside a's exact range 20-30 but inside the widened one.
	a := candidate(1, domain.GenderMale, 25, "Berlin", domain.GenderFemale, 20, 30, nil, 0)
	b := candidate(2, domain.GenderFemale, 33, "Berlin", domain.GenderMale, 20, 40, nil, 0)

	assert.False(t, domain.Compatible(a, b))

	a.State.PreferenceStage = domain.StageWideAge
	assert.True(t, domain.Compatible(a, b))
}

func TestCompatibleRelaxationIsPerSide(t *testing.T) {
	// a relaxed its location filter; b did not, and b does not accept
	// a's city, so the pair still fails on b's side.
	a := candidate(1, domain.GenderMale, 25, "Hamburg", domain.GenderFemale, 20, 30, []string{"Berlin"}, domain.StageAnyLocation)
	b := candidate(2, domain.GenderFemale, 24, "Munich", domain.GenderMale, 22, 28, []string{"Berlin"}, 0)

	assert.False(t, domain.Compatible(a, b))

	b.State.PreferenceStage = domain.StageAnyLocation
	assert.True(t, domain.Compatible(a, b))
}

func TestCompatibleEmptyCitiesMeansNoPreference(t *testing.T) {
	a := candidate(1, domain.GenderMale, 25, "Hamburg", domain.GenderFemale, 20, 30, nil, 0)
	b := candidate(2, domain.GenderFemale, 24, "Munich", domain.GenderMale, 22, 28, nil, 0)

	assert.True(t, domain.Compatible(a, b))
}

func TestCompatibleSelfNever(t *testing.T) {
	a := candidate(1, domain.GenderMale, 25, "Berlin", domain.GenderFemale, 20, 30, nil, 0)
	assert.False(t, domain.Compatible(a, a))
}

func TestUserStateLive(t *testing.T) {
	now := time.Now().UTC()
	joined := now.Add(-30 * time.Second)

	st := &domain.UserState{
		State:        domain.StateWaiting,
		WaitingSince: &joined,
		LastActive:   now.Add(-5 * time.Second),
	}

	// Inside the join grace: live regardless of heartbeat.
	assert.True(t, st.Live(now, 60*time.Second, 15*time.Second))

	// Past the grace with a recent heartbeat: still live.
	old := now.Add(-2 * time.Minute)
	st.WaitingSince = &old
	assert.True(t, st.Live(now, 60*time.Second, 15*time.Second))

	// Past the grace and silent: not live.
	st.LastActive = now.Add(-time.Minute)
	assert.False(t, st.Live(now, 60*time.Second, 15*time.Second))

	st.State = domain.StateIdle
	assert.False(t, st.Live(now, 60*time.Second, 15*time.Second))
}

func TestMatchWindow(t *testing.T) {
	now := time.Now().UTC()
	exp := now.Add(45 * time.Second)
	m := &domain.Match{Status: domain.MatchStatusActive, VoteWindowExpiresAt: &exp}

	assert.False(t, m.WindowExpired(now))
	assert.Equal(t, 45*time.Second, m.WindowRemaining(now))
	assert.True(t, m.WindowExpired(now.Add(time.Minute)))
	assert.Equal(t, time.Duration(0), m.WindowRemaining(now.Add(time.Minute)))
}

func TestVideoDatePhase(t *testing.T) {
	now := time.Now().UTC()
	vd := &domain.VideoDate{
		Status:             domain.VideoDateCountdown,
		CountdownStartedAt: now,
	}
	countdown := 5 * time.Second

	assert.Equal(t, domain.VideoDateCountdown, vd.EffectivePhase(now.Add(2*time.Second), countdown))
	assert.Equal(t, domain.VideoDateActive, vd.EffectivePhase(now.Add(6*time.Second), countdown))
	assert.Equal(t, 3*time.Second, vd.CountdownRemaining(now.Add(2*time.Second), countdown))
	assert.Equal(t, time.Duration(0), vd.CountdownRemaining(now.Add(10*time.Second), countdown))

	// Terminal statuses are never recomputed.
	vd.Status = domain.VideoDateEndedEarly
	assert.Equal(t, domain.VideoDateEndedEarly, vd.EffectivePhase(now.Add(time.Minute), countdown))
}
