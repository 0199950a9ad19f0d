package domain

import "time"

// Candidate bundles the three rows the selector filters on. The postgres
// store applies the same rules in SQL; this predicate is the reference
// semantics and what the in-memory store runs.
type Candidate struct {
	User        User
	Preferences Preferences
	State       UserState
}

// Matchable combines user-level and queue-entry-level eligibility.
func (c *Candidate) Matchable(now time.Time, joinGrace, liveness time.Duration) bool {
	return c.User.Matchable(now) && c.State.Live(now, joinGrace, liveness)
}

// Compatible applies both users' filters, each side relaxed by that side's
// own preference stage. Gender is never relaxed. Block and rematch
// exclusions live in other tables and are the caller's job.
func Compatible(a, b *Candidate) bool {
	if a.User.ID == b.User.ID {
		return false
	}
	if !genderOK(a, b) || !genderOK(b, a) {
		return false
	}
	if !ageOK(a, b) || !ageOK(b, a) {
		return false
	}
	if !cityOK(a, b) || !cityOK(b, a) {
		return false
	}
	return true
}

func genderOK(side, other *Candidate) bool {
	return other.User.Gender == side.Preferences.DesiredGender
}

func ageOK(side, other *Candidate) bool {
	stage := side.State.PreferenceStage
	if stage >= StageAnyAgePlace {
		return true
	}
	lo, hi := side.Preferences.MinAge, side.Preferences.MaxAge
	if stage >= StageWideAge {
		lo -= AgeWiden
		hi += AgeWiden
	}
	return other.User.Age >= lo && other.User.Age <= hi
}

func cityOK(side, other *Candidate) bool {
	if side.State.PreferenceStage >= StageAnyLocation {
		return true
	}
	return side.Preferences.AcceptsCity(other.User.City)
}
