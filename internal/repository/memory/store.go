// Package memory implements repository.Store on plain maps. It backs the
// usecase tests and local development; the semantics mirror the postgres
// implementation, with domain.Compatible as the shared selector predicate.
package memory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/glintdate/glint-backend/internal/repository"
)

type pair [2]int64

func canonical(a, b int64) pair {
	u1, u2 := domain.CanonicalPair(a, b)
	return pair{u1, u2}
}

// data is the whole database. Transactions clone it, mutate the clone and
// swap it back in on commit, so a failed transaction leaves no trace.
type data struct {
	users       map[int64]*domain.User
	prefs       map[int64]*domain.Preferences
	states      map[int64]*domain.UserState
	matches     map[int64]*domain.Match
	history     map[pair]time.Time
	dates       map[int64]*domain.VideoDate
	blocks      map[pair]time.Time
	nextMatchID int64
}

func newData() *data {
	return &data{
		users:       make(map[int64]*domain.User),
		prefs:       make(map[int64]*domain.Preferences),
		states:      make(map[int64]*domain.UserState),
		matches:     make(map[int64]*domain.Match),
		history:     make(map[pair]time.Time),
		dates:       make(map[int64]*domain.VideoDate),
		blocks:      make(map[pair]time.Time),
		nextMatchID: 1,
	}
}

func (d *data) clone() *data {
	c := newData()
	c.nextMatchID = d.nextMatchID
	for k, v := range d.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range d.prefs {
		p := *v
		p.Cities = append([]string(nil), v.Cities...)
		c.prefs[k] = &p
	}
	for k, v := range d.states {
		s := *v
		c.states[k] = &s
	}
	for k, v := range d.matches {
		m := *v
		c.matches[k] = &m
	}
	for k, v := range d.history {
		c.history[k] = v
	}
	for k, v := range d.dates {
		vd := *v
		c.dates[k] = &vd
	}
	for k, v := range d.blocks {
		c.blocks[k] = v
	}
	return c
}

// session abstracts "how do I get at the data": the root store locks its
// mutex per call, a transaction already holds it and works on the clone.
type session interface {
	do(fn func(d *data) error) error
}

// Store is the root, non-transactional view.
type Store struct {
	mu  sync.Mutex
	d   *data
	rnd *rand.Rand

	// LockFn, when set, decides TryLockUser outcomes inside transactions.
	// Tests use it to force the contention-abort path.
	LockFn func(userID int64) bool
}

func NewStore() *Store {
	return &Store{
		d:   newData(),
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Store) do(fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.d)
}

func (s *Store) Users() repository.UserRepository           { return &userRepo{s: s} }
func (s *Store) States() repository.StateRepository         { return &stateRepo{s: s, rnd: s.randIntn} }
func (s *Store) Matches() repository.MatchRepository        { return &matchRepo{s: s} }
func (s *Store) History() repository.HistoryRepository      { return &historyRepo{s: s} }
func (s *Store) VideoDates() repository.VideoDateRepository { return &videoDateRepo{s: s} }
func (s *Store) Blocks() repository.BlockRepository         { return &blockRepo{s: s} }

func (s *Store) randIntn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rnd.Intn(n)
}

// InTx serializes transactions on the store mutex and runs fn against a
// clone; only a nil error publishes the clone. That gives the same
// all-or-nothing visibility a database transaction would.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.d.clone()
	tx := &txStore{root: s, d: work}
	if err := fn(tx); err != nil {
		return err
	}
	s.d = work
	return nil
}

func (s *Store) TryLockUser(ctx context.Context, userID int64) (bool, error) {
	return false, errors.New("advisory locks require a transaction; use InTx")
}

// Seed-style helpers for tests and the local seeder.

func (s *Store) PutUser(u domain.User, p domain.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uc, pc := u, p
	pc.Cities = append([]string(nil), p.Cities...)
	s.d.users[u.ID] = &uc
	s.d.prefs[u.ID] = &pc
}

func (s *Store) SetOnline(userID int64, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.d.users[userID]; ok {
		u.IsOnline = online
	}
}

// txStore is the in-transaction view; the root mutex is held for its whole
// lifetime, so it reads and writes the clone without further locking.
type txStore struct {
	root *Store
	d    *data
}

func (t *txStore) do(fn func(d *data) error) error { return fn(t.d) }

func (t *txStore) Users() repository.UserRepository           { return &userRepo{s: t} }
func (t *txStore) States() repository.StateRepository         { return &stateRepo{s: t, rnd: t.root.randIntn} }
func (t *txStore) Matches() repository.MatchRepository        { return &matchRepo{s: t} }
func (t *txStore) History() repository.HistoryRepository      { return &historyRepo{s: t} }
func (t *txStore) VideoDates() repository.VideoDateRepository { return &videoDateRepo{s: t} }
func (t *txStore) Blocks() repository.BlockRepository         { return &blockRepo{s: t} }

func (t *txStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

func (t *txStore) TryLockUser(ctx context.Context, userID int64) (bool, error) {
	if t.root.LockFn != nil {
		return t.root.LockFn(userID), nil
	}
	// Transactions are serialized on the store mutex, so the lock is
	// always free here; guarded updates carry the race protection.
	return true, nil
}
