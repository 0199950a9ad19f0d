package memory

import (
	"context"
	"sort"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/repository"
)

type userRepo struct {
	s session
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.s.do(func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return domain.ErrUserNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (r *userRepo) GetPreferences(ctx context.Context, userID int64) (*domain.Preferences, error) {
	var out *domain.Preferences
	err := r.s.do(func(d *data) error {
		p, ok := d.prefs[userID]
		if !ok {
			return domain.ErrUserNotFound
		}
		cp := *p
		cp.Cities = append([]string(nil), p.Cities...)
		out = &cp
		return nil
	})
	return out, err
}

func (r *userRepo) SetCooldown(ctx context.Context, userID int64, until time.Time) error {
	return r.s.do(func(d *data) error {
		u, ok := d.users[userID]
		if !ok {
			return domain.ErrUserNotFound
		}
		t := until
		u.CooldownUntil = &t
		return nil
	})
}

type stateRepo struct {
	s   session
	rnd func(n int) int
}

func (r *stateRepo) Get(ctx context.Context, userID int64) (*domain.UserState, error) {
	var out *domain.UserState
	err := r.s.do(func(d *data) error {
		st, ok := d.states[userID]
		if !ok {
			return domain.ErrStateNotFound
		}
		cp := *st
		out = &cp
		return nil
	})
	return out, err
}

// GetForUpdate is the same as Get here: the store mutex already serializes
// the transaction this runs in.
func (r *stateRepo) GetForUpdate(ctx context.Context, userID int64) (*domain.UserState, error) {
	return r.Get(ctx, userID)
}

func (r *stateRepo) GetCandidate(ctx context.Context, userID int64) (*domain.Candidate, error) {
	var out *domain.Candidate
	err := r.s.do(func(d *data) error {
		c, err := candidateOf(d, userID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

func candidateOf(d *data, userID int64) (*domain.Candidate, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	p, ok := d.prefs[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	st, ok := d.states[userID]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	pc := *p
	pc.Cities = append([]string(nil), p.Cities...)
	return &domain.Candidate{User: *u, Preferences: pc, State: *st}, nil
}

func (r *stateRepo) Create(ctx context.Context, st *domain.UserState) error {
	return r.s.do(func(d *data) error {
		if _, ok := d.states[st.UserID]; ok {
			return domain.ErrAlreadyQueued
		}
		cp := *st
		d.states[st.UserID] = &cp
		return nil
	})
}

func (r *stateRepo) MarkWaiting(ctx context.Context, userID int64, now time.Time, fairnessBonus float64) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		st, found := d.states[userID]
		if !found || st.State != domain.StateIdle {
			return nil
		}
		t := now
		st.State = domain.StateWaiting
		st.WaitingSince = &t
		st.PreferenceStage = 0
		st.FairnessScore += fairnessBonus
		st.LastActive = now
		st.UpdatedAt = now
		ok = true
		return nil
	})
	return ok, err
}

func (r *stateRepo) MarkMatched(ctx context.Context, userID, matchID, partnerID int64, now time.Time) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		st, found := d.states[userID]
		if !found || st.State != domain.StateWaiting {
			return nil
		}
		st.State = domain.StateMatched
		st.MatchID = &matchID
		st.PartnerID = &partnerID
		st.WaitingSince = nil
		st.FairnessScore = 0
		st.PreferenceStage = 0
		st.LastActive = now
		st.UpdatedAt = now
		ok = true
		return nil
	})
	return ok, err
}

func (r *stateRepo) LeaveQueue(ctx context.Context, userID int64, now time.Time) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		st, found := d.states[userID]
		if !found || st.State != domain.StateWaiting {
			return nil
		}
		st.State = domain.StateIdle
		st.WaitingSince = nil
		st.PreferenceStage = 0
		st.UpdatedAt = now
		ok = true
		return nil
	})
	return ok, err
}

func (r *stateRepo) Release(ctx context.Context, userID, matchID int64, now time.Time) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		st, found := d.states[userID]
		if !found || st.State != domain.StateMatched || st.MatchID == nil || *st.MatchID != matchID {
			return nil
		}
		st.State = domain.StateIdle
		st.MatchID = nil
		st.PartnerID = nil
		st.UpdatedAt = now
		ok = true
		return nil
	})
	return ok, err
}

func (r *stateRepo) Heartbeat(ctx context.Context, userID int64, now time.Time) error {
	return r.s.do(func(d *data) error {
		if st, ok := d.states[userID]; ok {
			st.LastActive = now
			st.UpdatedAt = now
		}
		return nil
	})
}

func (r *stateRepo) AdvanceStage(ctx context.Context, userID int64, stage int) error {
	return r.s.do(func(d *data) error {
		st, ok := d.states[userID]
		if !ok || st.State != domain.StateWaiting {
			return nil
		}
		if stage > st.PreferenceStage {
			st.PreferenceStage = stage
		}
		return nil
	})
}

func (r *stateRepo) BumpFairness(ctx context.Context, userID int64, delta float64) error {
	return r.s.do(func(d *data) error {
		if st, ok := d.states[userID]; ok && st.State == domain.StateWaiting {
			st.FairnessScore += delta
		}
		return nil
	})
}

func (r *stateRepo) FindCandidate(ctx context.Context, q repository.CandidateQuery) (*domain.Candidate, error) {
	var out *domain.Candidate
	err := r.s.do(func(d *data) error {
		var pool []*domain.Candidate
		for id := range d.states {
			if id == q.Requester.User.ID {
				continue
			}
			c, err := candidateOf(d, id)
			if err != nil {
				continue
			}
			if !c.Matchable(q.Now, q.JoinGrace, q.Liveness) {
				continue
			}
			if !domain.Compatible(q.Requester, c) {
				continue
			}
			key := canonical(q.Requester.User.ID, id)
			if _, seen := d.history[key]; seen {
				continue
			}
			if _, blocked := d.blocks[pair{q.Requester.User.ID, id}]; blocked {
				continue
			}
			if _, blocked := d.blocks[pair{id, q.Requester.User.ID}]; blocked {
				continue
			}
			pool = append(pool, c)
		}
		if len(pool) == 0 {
			return nil
		}
		sort.Slice(pool, func(i, j int) bool {
			a, b := pool[i], pool[j]
			if a.State.FairnessScore != b.State.FairnessScore {
				return a.State.FairnessScore > b.State.FairnessScore
			}
			return a.State.WaitingSince.Before(*b.State.WaitingSince)
		})
		// random tie-break among the equal front-runners
		top := 1
		for top < len(pool) &&
			pool[top].State.FairnessScore == pool[0].State.FairnessScore &&
			pool[top].State.WaitingSince.Equal(*pool[0].State.WaitingSince) {
			top++
		}
		out = pool[r.rnd(top)]
		return nil
	})
	return out, err
}

func (r *stateRepo) ListWaitingIDs(ctx context.Context, q repository.PoolQuery) ([]int64, error) {
	var out []int64
	err := r.s.do(func(d *data) error {
		type entry struct {
			id    int64
			score float64
			since time.Time
		}
		var pool []entry
		for id, st := range d.states {
			u, ok := d.users[id]
			if !ok || !u.Matchable(q.Now) {
				continue
			}
			if !st.Live(q.Now, q.JoinGrace, q.Liveness) {
				continue
			}
			pool = append(pool, entry{id: id, score: st.FairnessScore, since: *st.WaitingSince})
		}
		sort.Slice(pool, func(i, j int) bool {
			if pool[i].score != pool[j].score {
				return pool[i].score > pool[j].score
			}
			return pool[i].since.Before(pool[j].since)
		})
		for i, e := range pool {
			if q.Limit > 0 && i >= q.Limit {
				break
			}
			out = append(out, e.id)
		}
		return nil
	})
	return out, err
}

func (r *stateRepo) CountWaitingByGender(ctx context.Context, q repository.PoolQuery) (map[domain.Gender]int, error) {
	counts := make(map[domain.Gender]int)
	err := r.s.do(func(d *data) error {
		for id, st := range d.states {
			u, ok := d.users[id]
			if !ok || !u.IsOnline {
				continue
			}
			if !st.Live(q.Now, q.JoinGrace, q.Liveness) {
				continue
			}
			counts[u.Gender]++
		}
		return nil
	})
	return counts, err
}

func (r *stateRepo) ResetStaleWaiting(ctx context.Context, q repository.StaleQuery) (int64, error) {
	var n int64
	err := r.s.do(func(d *data) error {
		for id, st := range d.states {
			if st.State != domain.StateWaiting || st.WaitingSince == nil {
				continue
			}
			u, ok := d.users[id]
			offline := !ok || !u.IsOnline
			silent := st.WaitingSince.Before(q.Now.Add(-q.JoinGrace)) &&
				st.LastActive.Before(q.Now.Add(-q.StaleAfter))
			overstayed := st.WaitingSince.Before(q.Now.Add(-q.MaxWait))
			if offline || silent || overstayed {
				st.State = domain.StateIdle
				st.WaitingSince = nil
				st.PreferenceStage = 0
				st.UpdatedAt = q.Now
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *stateRepo) ResetMatchedOrphans(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.s.do(func(d *data) error {
		for _, st := range d.states {
			if st.State != domain.StateMatched {
				continue
			}
			orphaned := st.MatchID == nil
			if !orphaned {
				m, ok := d.matches[*st.MatchID]
				orphaned = !ok || !m.Live()
			}
			if orphaned {
				st.State = domain.StateIdle
				st.MatchID = nil
				st.PartnerID = nil
				st.UpdatedAt = now
				n++
			}
		}
		return nil
	})
	return n, err
}

type matchRepo struct {
	s session
}

func (r *matchRepo) Create(ctx context.Context, match *domain.Match) error {
	return r.s.do(func(d *data) error {
		match.User1ID, match.User2ID = domain.CanonicalPair(match.User1ID, match.User2ID)
		match.ID = d.nextMatchID
		d.nextMatchID++
		if match.CreatedAt.IsZero() {
			match.CreatedAt = time.Now().UTC()
		}
		cp := *match
		d.matches[match.ID] = &cp
		return nil
	})
}

func (r *matchRepo) Activate(ctx context.Context, id int64, expiresAt time.Time) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		m, found := d.matches[id]
		if !found || m.Status != domain.MatchStatusPaired {
			return nil
		}
		t := expiresAt
		m.Status = domain.MatchStatusActive
		m.VoteWindowExpiresAt = &t
		ok = true
		return nil
	})
	return ok, err
}

func (r *matchRepo) GetByID(ctx context.Context, id int64) (*domain.Match, error) {
	var out *domain.Match
	err := r.s.do(func(d *data) error {
		m, ok := d.matches[id]
		if !ok {
			return domain.ErrMatchNotFound
		}
		cp := *m
		out = &cp
		return nil
	})
	return out, err
}

func (r *matchRepo) CastVote(ctx context.Context, id, voterID int64, vote domain.Vote, now time.Time) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		m, found := d.matches[id]
		if !found || m.Status != domain.MatchStatusActive || m.WindowExpired(now) {
			return nil
		}
		v := vote
		switch voterID {
		case m.User1ID:
			if m.User1Vote == nil {
				m.User1Vote = &v
			}
		case m.User2ID:
			if m.User2Vote == nil {
				m.User2Vote = &v
			}
		default:
			return nil
		}
		ok = true
		return nil
	})
	return ok, err
}

func (r *matchRepo) Resolve(ctx context.Context, id int64, outcome domain.MatchOutcome, now time.Time) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		m, found := d.matches[id]
		if !found || m.Status != domain.MatchStatusActive {
			return nil
		}
		o := outcome
		t := now
		m.Status = domain.MatchStatusCompleted
		m.Outcome = &o
		m.CompletedAt = &t
		ok = true
		return nil
	})
	return ok, err
}

func (r *matchRepo) Cancel(ctx context.Context, id int64, now time.Time) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		m, found := d.matches[id]
		if !found || !m.Live() {
			return nil
		}
		t := now
		m.Status = domain.MatchStatusCancelled
		m.CompletedAt = &t
		ok = true
		return nil
	})
	return ok, err
}

func (r *matchRepo) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*domain.Match, error) {
	var out []*domain.Match
	err := r.s.do(func(d *data) error {
		for _, m := range d.matches {
			if m.Status == domain.MatchStatusActive && m.WindowExpired(now) {
				cp := *m
				out = append(out, &cp)
				if limit > 0 && len(out) >= limit {
					break
				}
			}
		}
		return nil
	})
	return out, err
}

func (r *matchRepo) ListLiveUnreferenced(ctx context.Context, limit int) ([]*domain.Match, error) {
	var out []*domain.Match
	err := r.s.do(func(d *data) error {
		refers := func(userID, matchID int64) bool {
			st, ok := d.states[userID]
			return ok && st.State == domain.StateMatched && st.MatchID != nil && *st.MatchID == matchID
		}
		for _, m := range d.matches {
			if !m.Live() {
				continue
			}
			if refers(m.User1ID, m.ID) && refers(m.User2ID, m.ID) {
				continue
			}
			cp := *m
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

type historyRepo struct {
	s session
}

func (r *historyRepo) Exists(ctx context.Context, a, b int64) (bool, error) {
	var exists bool
	err := r.s.do(func(d *data) error {
		_, exists = d.history[canonical(a, b)]
		return nil
	})
	return exists, err
}

func (r *historyRepo) Record(ctx context.Context, a, b int64, now time.Time) error {
	return r.s.do(func(d *data) error {
		key := canonical(a, b)
		if _, ok := d.history[key]; !ok {
			d.history[key] = now
		}
		return nil
	})
}

type videoDateRepo struct {
	s session
}

func (r *videoDateRepo) Create(ctx context.Context, vd *domain.VideoDate) error {
	return r.s.do(func(d *data) error {
		if _, ok := d.dates[vd.MatchID]; ok {
			return domain.ErrVideoDateExists
		}
		if vd.CreatedAt.IsZero() {
			vd.CreatedAt = time.Now().UTC()
		}
		cp := *vd
		d.dates[vd.MatchID] = &cp
		return nil
	})
}

func (r *videoDateRepo) Get(ctx context.Context, matchID int64) (*domain.VideoDate, error) {
	var out *domain.VideoDate
	err := r.s.do(func(d *data) error {
		vd, ok := d.dates[matchID]
		if !ok {
			return domain.ErrVideoDateNotFound
		}
		cp := *vd
		out = &cp
		return nil
	})
	return out, err
}

func (r *videoDateRepo) Promote(ctx context.Context, matchID int64, startedAt time.Time) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		vd, found := d.dates[matchID]
		if !found || vd.Status != domain.VideoDateCountdown {
			return nil
		}
		t := startedAt
		vd.Status = domain.VideoDateActive
		vd.StartedAt = &t
		ok = true
		return nil
	})
	return ok, err
}

func (r *videoDateRepo) Complete(ctx context.Context, matchID int64) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		vd, found := d.dates[matchID]
		if !found || (vd.Status != domain.VideoDateCountdown && vd.Status != domain.VideoDateActive) {
			return nil
		}
		vd.Status = domain.VideoDateCompleted
		ok = true
		return nil
	})
	return ok, err
}

func (r *videoDateRepo) EndEarly(ctx context.Context, matchID, byUserID int64) (bool, error) {
	var ok bool
	err := r.s.do(func(d *data) error {
		vd, found := d.dates[matchID]
		if !found || (vd.Status != domain.VideoDateCountdown && vd.Status != domain.VideoDateActive) {
			return nil
		}
		by := byUserID
		vd.Status = domain.VideoDateEndedEarly
		vd.EndedByUserID = &by
		ok = true
		return nil
	})
	return ok, err
}

type blockRepo struct {
	s session
}

func (r *blockRepo) ExistsBetween(ctx context.Context, a, b int64) (bool, error) {
	var exists bool
	err := r.s.do(func(d *data) error {
		if _, ok := d.blocks[pair{a, b}]; ok {
			exists = true
		}
		if _, ok := d.blocks[pair{b, a}]; ok {
			exists = true
		}
		return nil
	})
	return exists, err
}

func (r *blockRepo) Create(ctx context.Context, blockerID, blockedID int64) error {
	return r.s.do(func(d *data) error {
		key := pair{blockerID, blockedID}
		if _, ok := d.blocks[key]; !ok {
			d.blocks[key] = time.Now().UTC()
		}
		return nil
	})
}
