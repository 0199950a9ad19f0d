package domain

import "time"

type MatchStatus string

const (
	MatchStatusPaired    MatchStatus = "paired"
	MatchStatusActive    MatchStatus = "active"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCancelled MatchStatus = "cancelled"
)

type Vote string

const (
	VoteYes  Vote = "yes"
	VotePass Vote = "pass"
)

func (v Vote) Valid() bool {
	return v == VoteYes || v == VotePass
}

type MatchOutcome string

const (
	OutcomeMatched MatchOutcome = "matched"
	OutcomeNoMatch MatchOutcome = "no_match"
)

type Match struct {
	ID                  int64         `json:"id" db:"id"`
	User1ID             int64         `json:"user1_id" db:"user1_id"`
	User2ID             int64         `json:"user2_id" db:"user2_id"`
	Status              MatchStatus   `json:"status" db:"status"`
	VoteWindowExpiresAt *time.Time    `json:"vote_window_expires_at,omitempty" db:"vote_window_expires_at"`
	User1Vote           *Vote         `json:"user1_vote,omitempty" db:"user1_vote"`
	User2Vote           *Vote         `json:"user2_vote,omitempty" db:"user2_vote"`
	Outcome             *MatchOutcome `json:"outcome,omitempty" db:"outcome"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}

// CanonicalPair orders two user ids to satisfy the user1_id < user2_id
// constraint on matches and match_history.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func (m *Match) HasUser(userID int64) bool {
	return m.User1ID == userID || m.User2ID == userID
}

func (m *Match) OtherUser(userID int64) (int64, bool) {
	if m.User1ID == userID {
		return m.User2ID, true
	}
	if m.User2ID == userID {
		return m.User1ID, true
	}
	return 0, false
}

func (m *Match) VoteOf(userID int64) *Vote {
	if m.User1ID == userID {
		return m.User1Vote
	}
	if m.User2ID == userID {
		return m.User2Vote
	}
	return nil
}

// Live means the match still binds both users (not yet resolved).
func (m *Match) Live() bool {
	return m.Status == MatchStatusPaired || m.Status == MatchStatusActive
}

func (m *Match) WindowExpired(now time.Time) bool {
	return m.VoteWindowExpiresAt != nil && !now.Before(*m.VoteWindowExpiresAt)
}

func (m *Match) WindowRemaining(now time.Time) time.Duration {
	if m.VoteWindowExpiresAt == nil {
		return 0
	}
	if rem := m.VoteWindowExpiresAt.Sub(now); rem > 0 {
		return rem
	}
	return 0
}

// ResolveOutcome treats a missing vote as a pass: only a mutual yes matches.
func ResolveOutcome(v1, v2 *Vote) MatchOutcome {
	if v1 != nil && *v1 == VoteYes && v2 != nil && *v2 == VoteYes {
		return OutcomeMatched
	}
	return OutcomeNoMatch
}

// MatchHistory is append-only: one row per pair that has ever been matched,
// regardless of outcome. The selector uses it to rule out rematches.
type MatchHistory struct {
	User1ID   int64     `json:"user1_id" db:"user1_id"`
	User2ID   int64     `json:"user2_id" db:"user2_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
