package domain

import "time"

type VideoDateStatus string

const (
	VideoDateCountdown  VideoDateStatus = "countdown"
	VideoDateActive     VideoDateStatus = "active"
	VideoDateCompleted  VideoDateStatus = "completed"
	VideoDateEndedEarly VideoDateStatus = "ended_early"
)

// VideoDate is created lazily when the first participant arrives in the
// room. match_id is the primary key, so concurrent arrivals race on the
// insert and the loser reads the winner's row.
type VideoDate struct {
	MatchID            int64           `json:"match_id" db:"match_id"`
	Status             VideoDateStatus `json:"status" db:"status"`
	CountdownStartedAt time.Time       `json:"countdown_started_at" db:"countdown_started_at"`
	StartedAt          *time.Time      `json:"started_at,omitempty" db:"started_at"`
	EndedByUserID      *int64          `json:"ended_by_user_id,omitempty" db:"ended_by_user_id"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// EffectivePhase derives the current phase from the stored timestamps, so a
// read never has to mutate the row. Both participants compute the same
// answer because countdown_started_at is server-assigned.
func (v *VideoDate) EffectivePhase(now time.Time, countdown time.Duration) VideoDateStatus {
	if v.Status == VideoDateCountdown && !now.Before(v.CountdownStartedAt.Add(countdown)) {
		return VideoDateActive
	}
	return v.Status
}

func (v *VideoDate) CountdownRemaining(now time.Time, countdown time.Duration) time.Duration {
	if rem := v.CountdownStartedAt.Add(countdown).Sub(now); rem > 0 {
		return rem
	}
	return 0
}

// DateStartsAt is the authoritative start of the active phase.
func (v *VideoDate) DateStartsAt(countdown time.Duration) time.Time {
	return v.CountdownStartedAt.Add(countdown)
}
