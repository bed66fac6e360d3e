package crdt

import (
	"github.com/pkg/errors"
)

// Variables

// Failure conditions of operation application. All of them mean
// the operation was rejected without any partial mutation. Only
// ErrNotCausallyReady is retryable: the caller is expected to
// fetch or await the missing prerequisite operation and resubmit.
var (
	// ErrMissingSignature marks an incoming operation that
	// carries no signature at all.
	ErrMissingSignature = errors.New("operation carries no signature")

	// ErrWrongAddress marks an operation targeting a different
	// instance than the replica it was handed to.
	ErrWrongAddress = errors.New("operation targets a different address than this replica")

	// ErrNotCausallyReady marks an operation whose declared
	// causal predecessor is unknown at this replica.
	ErrNotCausallyReady = errors.New("operation depends on a predecessor unknown at this replica")

	// ErrNoPolicy marks a data mutation attempted before any
	// policy was ever set on a map instance.
	ErrNoPolicy = errors.New("no policy has been set on this instance yet")

	// ErrUnknownParent marks a register write naming a parent
	// hash that does not exist at this replica.
	ErrUnknownParent = errors.New("register write names an unknown parent entry")

	// ErrInconsistentState marks a violated internal invariant,
	// e.g. a policy whose branch is missing. This is a bug and
	// is surfaced rather than patched over.
	ErrInconsistentState = errors.New("replica data is in an inconsistent state")
)
