// Package twopc defines the wire-independent shape of the two-phase commit
// protocol: the participant contract, vote/operation vocabulary, and the
// coordinator's state machine (the per-account participant state lives in
// pkg/participant). The
// networked implementations live in pkg/coordinator and pkg/participant.
package twopc

import (
	"context"
	"time"

	"github.com/mnohosten/transferd/pkg/money"
)

// Operation is the signed adjustment a participant is asked to prepare.
type Operation string

const (
	// OpDebit decreases an account's balance by Amount.
	OpDebit Operation = "debit"
	// OpCredit increases an account's balance by Amount.
	OpCredit Operation = "credit"
)

// CoordinatorState is the lifecycle of a single transfer as seen by the
// coordinator.
type CoordinatorState int

const (
	CoordinatorStateInit CoordinatorState = iota
	CoordinatorStatePreparing
	CoordinatorStateCommitting
	CoordinatorStateAborting
	CoordinatorStateCommitted
	CoordinatorStateAborted
)

func (s CoordinatorState) String() string {
	switch s {
	case CoordinatorStateInit:
		return "init"
	case CoordinatorStatePreparing:
		return "preparing"
	case CoordinatorStateCommitting:
		return "committing"
	case CoordinatorStateAborting:
		return "aborting"
	case CoordinatorStateCommitted:
		return "committed"
	case CoordinatorStateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ParticipantID identifies one leg of a transfer, e.g. the account id it
// targets.
type ParticipantID string

// Participant is a resource the coordinator drives through prepare/commit/
// abort. The HTTP implementation (pkg/coordinator.participantClient) talks
// to a remote participant service; tests substitute in-process fakes.
type Participant interface {
	// Prepare asks the participant to lock the account and tentatively
	// apply txnID's adjustment. The bool is the participant's vote: true
	// to proceed to commit, false to abort.
	Prepare(ctx context.Context, txnID string, accountID string, op Operation, amount money.Amount) (bool, error)

	// Commit makes a previously prepared adjustment durable and releases
	// the lock. Must be idempotent: a replayed Commit for an already
	// committed txnID returns nil.
	Commit(ctx context.Context, txnID string) error

	// Abort discards a previously prepared adjustment and releases the
	// lock. Must be idempotent.
	Abort(ctx context.Context, txnID string) error

	// ID identifies the participant for logging and bookkeeping.
	ID() ParticipantID
}

// Timeouts bundles the per-phase deadlines and retry policy a Coordinator is
// configured with.
type Timeouts struct {
	Prepare    time.Duration
	Commit     time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultTimeouts matches the reference configuration in the wire protocol
// section: 5s per phase, 3 retries at 1s apart.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Prepare:    5 * time.Second,
		Commit:     5 * time.Second,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}
