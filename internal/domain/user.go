package domain

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type User struct {
	ID            int64      `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Gender        Gender     `json:"gender" db:"gender"`
	Age           int        `json:"age" db:"age"`
	City          string     `json:"city" db:"city"`
	IsOnline      bool       `json:"is_online" db:"is_online"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty" db:"cooldown_until"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

func (u *User) InCooldown(now time.Time) bool {
	return u.CooldownUntil != nil && u.CooldownUntil.After(now)
}

// Matchable reports whether the user may participate in pairing at all.
// Queue-entry recency is checked separately on the state row.
func (u *User) Matchable(now time.Time) bool {
	return u.IsOnline && !u.InCooldown(now)
}

// Preferences is the user's stated filter set. An empty Cities slice means
// no location preference.
type Preferences struct {
	UserID        int64    `json:"user_id" db:"user_id"`
	DesiredGender Gender   `json:"desired_gender" db:"desired_gender"`
	MinAge        int      `json:"min_age" db:"min_age"`
	MaxAge        int      `json:"max_age" db:"max_age"`
	Cities        []string `json:"cities" db:"cities"`
}

func (p *Preferences) AcceptsCity(city string) bool {
	if len(p.Cities) == 0 {
		return true
	}
	for _, c := range p.Cities {
		if c == city {
			return true
		}
	}
	return false
}

// Block is written by the safety/report service; the engine only reads it.
// A block in either direction excludes the pair from matching forever.
type Block struct {
	BlockerID int64     `json:"blocker_id" db:"blocker_id"`
	BlockedID int64     `json:"blocked_id" db:"blocked_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
