package repository

import (
	"context"
	"hash/fnv"
	"strconv"
)

// Store aggregates the repositories over one backing storage. InTx yields a
// Store whose repositories all run inside a single transaction; TryLockUser
// is only valid on that transactional Store.
type Store interface {
	Users() UserRepository
	States() StateRepository
	Matches() MatchRepository
	History() HistoryRepository
	VideoDates() VideoDateRepository
	Blocks() BlockRepository

	// InTx runs fn inside one transaction. A non-nil error from fn rolls
	// everything back, including advisory locks taken via TryLockUser.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// TryLockUser takes the user's advisory lock without blocking and holds
	// it until the surrounding transaction ends. It fails outside InTx.
	TryLockUser(ctx context.Context, userID int64) (bool, error)
}

// lockNamespace salts lock keys so other advisory-lock users of the same
// database cannot collide with the pairing protocol.
const lockNamespace = "glint:pair:"

// UserLockKey hashes a user id into the 64-bit advisory-lock keyspace. A
// hash collision between two users only causes a spurious contention abort,
// which the next matching pass absorbs.
func UserLockKey(userID int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(lockNamespace))
	h.Write([]byte(strconv.FormatInt(userID, 10)))
	return int64(h.Sum64())
}
