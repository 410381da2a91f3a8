package pvector

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the operations in this package. Callers
// should use errors.Is to test for a specific failure; the wrapped
// message carries the operation and offending index for diagnostics.
var (
	// ErrOutOfMemory is returned when a node allocation fails. The
	// vector that was being built is discarded and the receiver is
	// left exactly as it was before the call.
	ErrOutOfMemory = errors.New("pvector: out of memory")

	// ErrOutOfBounds is returned when an index is outside [0, Len())
	// (or outside [0, Len()] for Insert).
	ErrOutOfBounds = errors.New("pvector: index out of bounds")

	// ErrEmpty is returned by Pop on a vector with Len() == 0.
	ErrEmpty = errors.New("pvector: pop of empty vector")

	// ErrMissing is returned when a descent encounters a nil child
	// where the trie's shape implied one exists. This indicates the
	// trie's invariants have been violated by something other than
	// this package and is not expected for a well-formed vector.
	ErrMissing = errors.New("pvector: missing node on descent path")

	// ErrMalformed is returned when an operation detects a violated
	// shape invariant mid-algorithm (for example, pop failing to find
	// a right-most subtree to promote). Same disposition as
	// ErrMissing: unrecoverable for the operation, not a process abort.
	ErrMalformed = errors.New("pvector: malformed trie shape")
)

func errOutOfBounds(op string, i, count int) error {
	return fmt.Errorf("pvector: %s: index %d out of bounds [0,%d): %w", op, i, count, ErrOutOfBounds)
}

func errOutOfMemory(op string) error {
	return fmt.Errorf("pvector: %s: %w", op, ErrOutOfMemory)
}

func errMissing(op string, level int) error {
	return fmt.Errorf("pvector: %s: nil child at level %d: %w", op, level, ErrMissing)
}

func errMalformed(op, reason string) error {
	return fmt.Errorf("pvector: %s: %s: %w", op, reason, ErrMalformed)
}
