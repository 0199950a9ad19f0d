package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/glintdate/glint-backend/internal/repository"
	"github.com/jmoiron/sqlx"
)

// queryer is what every repository needs; both *sqlx.DB and *sqlx.Tx
// satisfy it, so the same repository code runs inside and outside a
// transaction.
type queryer interface {
	sqlx.ExtContext
}

// Store is the PostgreSQL implementation of repository.Store.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Users() repository.UserRepository           { return &userRepository{q: s.db} }
func (s *Store) States() repository.StateRepository         { return &stateRepository{q: s.db} }
func (s *Store) Matches() repository.MatchRepository        { return &matchRepository{q: s.db} }
func (s *Store) History() repository.HistoryRepository      { return &historyRepository{q: s.db} }
func (s *Store) VideoDates() repository.VideoDateRepository { return &videoDateRepository{q: s.db} }
func (s *Store) Blocks() repository.BlockRepository         { return &blockRepository{q: s.db} }

// InTx opens a transaction and hands fn a Store bound to it. Rollback on
// error also drops any advisory locks taken inside.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TryLockUser is only meaningful with a transaction to scope the lock to.
func (s *Store) TryLockUser(ctx context.Context, userID int64) (bool, error) {
	return false, errors.New("advisory locks require a transaction; use InTx")
}

// txStore is the Store view inside one transaction.
type txStore struct {
	tx *sqlx.Tx
}

func (t *txStore) Users() repository.UserRepository           { return &userRepository{q: t.tx} }
func (t *txStore) States() repository.StateRepository         { return &stateRepository{q: t.tx} }
func (t *txStore) Matches() repository.MatchRepository        { return &matchRepository{q: t.tx} }
func (t *txStore) History() repository.HistoryRepository      { return &historyRepository{q: t.tx} }
func (t *txStore) VideoDates() repository.VideoDateRepository { return &videoDateRepository{q: t.tx} }
func (t *txStore) Blocks() repository.BlockRepository         { return &blockRepository{q: t.tx} }

// InTx on a transactional store just joins the ongoing transaction.
func (t *txStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

// TryLockUser takes a transaction-scoped advisory lock without blocking.
// The lock is released by Postgres when the transaction commits or rolls
// back; there is no unlock call.
func (t *txStore) TryLockUser(ctx context.Context, userID int64) (bool, error) {
	var got bool
	row := t.tx.QueryRowxContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, repository.UserLockKey(userID))
	if err := row.Scan(&got); err != nil {
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	return got, nil
}

// rowsChanged reports whether an exec touched at least one row, which is
// how every guarded update communicates guard success.
func rowsChanged(res interface{ RowsAffected() (int64, error) }) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
