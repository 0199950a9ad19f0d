package domain

import "time"

type QueueState string

const (
	StateIdle    QueueState = "idle"
	StateWaiting QueueState = "waiting"
	StateMatched QueueState = "matched"
)

// UserState is the single queue/pairing row per user. Rows with
// state=waiting are the matchmaking pool; there is no separate queue table.
type UserState struct {
	UserID          int64      `json:"user_id" db:"user_id"`
	State           QueueState `json:"state" db:"state"`
	WaitingSince    *time.Time `json:"waiting_since,omitempty" db:"waiting_since"`
	FairnessScore   float64    `json:"fairness_score" db:"fairness_score"`
	PreferenceStage int        `json:"preference_stage" db:"preference_stage"`
	MatchID         *int64     `json:"match_id,omitempty" db:"match_id"`
	PartnerID       *int64     `json:"partner_id,omitempty" db:"partner_id"`
	LastActive      time.Time  `json:"last_active" db:"last_active"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Relaxation stages. A stage only ever increases within one queue entry;
// rejoining the queue starts over at StageExact.
const (
	StageExact         = 0 // exact preferences
	StageWideAge       = 1 // own age range widened
	StageAnyLocation   = 2 // own location preference dropped
	StageAnyAgePlace   = 3 // own age and location dropped entirely
	MaxPreferenceStage = StageAnyAgePlace
)

// AgeWiden is how many years each end of an age range stretches at
// StageWideAge and above.
const AgeWiden = 5

// StageForWait maps time spent waiting to the relaxation stage it earns.
func StageForWait(d time.Duration) int {
	switch {
	case d >= 20*time.Second:
		return StageAnyAgePlace
	case d >= 15*time.Second:
		return StageAnyLocation
	case d >= 10*time.Second:
		return StageWideAge
	default:
		return StageExact
	}
}

func (s *UserState) WaitDuration(now time.Time) time.Duration {
	if s.WaitingSince == nil {
		return 0
	}
	return now.Sub(*s.WaitingSince)
}

// Live reports queue-entry recency: a fresh join gets a grace period, after
// which the user must keep a heartbeat going to stay matchable.
func (s *UserState) Live(now time.Time, joinGrace, liveness time.Duration) bool {
	if s.State != StateWaiting || s.WaitingSince == nil {
		return false
	}
	if now.Sub(*s.WaitingSince) <= joinGrace {
		return true
	}
	return now.Sub(s.LastActive) <= liveness
}
