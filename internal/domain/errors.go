package domain

import "errors"

// Errors fall into four families with different handling rules:
// validation errors surface to the caller as-is; contention means two
// operations raced for the same rows and the loser should simply retry or
// give up (never logged as a failure); capacity errors carry a retry hint;
// everything else is unexpected and logged at error level.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrStateNotFound     = errors.New("user state not found")
	ErrMatchNotFound     = errors.New("match not found")
	ErrVideoDateNotFound = errors.New("video date not found")
	ErrAlreadyQueued     = errors.New("user is already in the queue")
	ErrAlreadyMatched    = errors.New("user already has a live match")
	ErrUserOffline       = errors.New("user is offline")
	ErrInCooldown        = errors.New("user is in cooldown")
	ErrNotParticipant    = errors.New("user is not a participant of this match")
	ErrMatchNotActive    = errors.New("match is not active")
	ErrVoteWindowClosed  = errors.New("vote window has closed")

	// ErrVideoDateExists signals the lost side of the creation race; callers
	// fall back to reading the existing row.
	ErrVideoDateExists = errors.New("video date already exists")

	ErrContention = errors.New("concurrent operation in progress")

	ErrRateLimited = errors.New("rate limit exceeded")
	ErrSaturated   = errors.New("server at capacity")
)

func IsValidation(err error) bool {
	for _, v := range []error{
		ErrUserNotFound, ErrStateNotFound, ErrMatchNotFound, ErrVideoDateNotFound,
		ErrAlreadyQueued, ErrAlreadyMatched, ErrUserOffline, ErrInCooldown,
		ErrNotParticipant, ErrMatchNotActive, ErrVoteWindowClosed,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

func IsContention(err error) bool {
	return errors.Is(err, ErrContention)
}

func IsCapacity(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrSaturated)
}
