package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed submissions and queries. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is the base for every missing-entity error.
	ErrNotFound = errors.New("not found")
	// ErrStorageUnavailable is returned when the backing store fails or times out.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCorruptData marks stored content that cannot be used, e.g. a quiz whose
	// answer index points past its options. It is a server fault, not a bad request.
	ErrCorruptData = errors.New("corrupt stored data")
	// ErrConcurrencyConflict is reported by a store whose optimistic update lost a race.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrResultNotFound indicates no result record exists for a (user, quiz) pair.
	ErrResultNotFound = fmt.Errorf("result %w", ErrNotFound)
)

// InvalidArgument builds an ErrInvalidArgument with a description of the offending input.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// StorageError wraps a driver error so callers can match ErrStorageUnavailable
// while the original cause stays reachable through errors.Is / errors.As.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
