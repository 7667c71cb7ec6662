// Package coordinator drives the transfer orchestration side of the 2PC
// protocol: it mints transaction identifiers, runs prepare/commit/abort
// against the two legs of a transfer concurrently, and persists the
// outcome to a transaction log. The networked participant leg is built by
// NewHTTPParticipantFactory; tests substitute fakes that satisfy
// twopc.Participant directly.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mnohosten/transferd/pkg/diagnostics"
	"github.com/mnohosten/transferd/pkg/metrics"
	"github.com/mnohosten/transferd/pkg/money"
	"github.com/mnohosten/transferd/pkg/twopc"
	"github.com/mnohosten/transferd/pkg/txlog"
)

// ParticipantFactory builds the twopc.Participant bound to one leg of a
// transfer (a single account at a single participant service). The
// coordinator calls it once per leg per attempt so a retry can rebind a
// fresh HTTP client/context without carrying state across attempts.
type ParticipantFactory func(role twopc.ParticipantID, accountID string) twopc.Participant

// Result is the client-visible outcome of a transfer attempt.
type Result struct {
	TransactionID        string
	Status               txlog.Status
	SourceAccountID      string
	DestinationAccountID string
	Amount               money.Amount
	RetryAttempt         int
	TotalAttempts        int
	Message              string
	Details              map[string]interface{}
}

// Coordinator orchestrates transfers per §4.1. The only process-wide
// mutable state it holds is the transaction log and the counters below;
// per-transfer state lives entirely on the stack of the goroutine running
// Transfer, which is what keeps concurrent transfers trivially safe to
// run in parallel.
type Coordinator struct {
	log        *txlog.Store
	newLeg     ParticipantFactory
	timeouts   twopc.Timeouts
	diag       *diagnostics.Emitter
	registry   *metrics.Registry
	started    counterHandle
	committed  counterHandle
	aborted    counterHandle
	critical   counterHandle
	retriesCnt counterHandle
}

type counterHandle interface {
	Inc() uint64
}

// New builds a Coordinator. diag may be nil to discard critical
// diagnostics (tests only — production always wires a real emitter).
func New(log *txlog.Store, newLeg ParticipantFactory, timeouts twopc.Timeouts, diag *diagnostics.Emitter, registry *metrics.Registry) *Coordinator {
	if diag == nil {
		diag = diagnostics.NewEmitter(nil)
	}
	if registry == nil {
		registry = metrics.NewRegistry("transferd_coordinator")
	}
	return &Coordinator{
		log:        log,
		newLeg:     newLeg,
		timeouts:   timeouts,
		diag:       diag,
		registry:   registry,
		started:    registry.Counter("transfers_started_total", "total transfers begun"),
		committed:  registry.Counter("transfers_committed_total", "total transfers committed"),
		aborted:    registry.Counter("transfers_aborted_total", "total transfers aborted"),
		critical:   registry.Counter("transfers_critical_total", "transfers left in a post-decision inconsistent state"),
		retriesCnt: registry.Counter("transfer_retries_total", "total retry attempts across all transfers"),
	}
}

// Registry exposes the coordinator's metrics registry for the /_metrics
// handler.
func (c *Coordinator) Registry() *metrics.Registry {
	return c.registry
}

// Transfer runs exactly one attempt of the protocol in §4.1. txnID, when
// non-empty, is reused verbatim (client-supplied idempotency key or a
// TransferWithRetry re-attempt); otherwise a fresh UUID is minted.
func (c *Coordinator) Transfer(ctx context.Context, sourceAccountID, destinationAccountID string, amount money.Amount, txnID string) (*Result, error) {
	if sourceAccountID == destinationAccountID {
		return nil, twopc.NewError(twopc.CodeInvalidArgument, "source and destination accounts must differ")
	}
	if amount.IsZero() || amount.IsNegative() {
		return nil, twopc.NewError(twopc.CodeInvalidArgument, "amount must be positive")
	}

	if txnID == "" {
		txnID = uuid.NewString()
	}

	c.started.Inc()

	txn, err := c.log.Begin(txnID, sourceAccountID, destinationAccountID, amount)
	if err != nil {
		return nil, err
	}
	switch txn.Status {
	case txlog.StatusCommitted:
		// A committed row is truly terminal: report the cached outcome
		// without repeating the network calls.
		return c.resultFromTransaction(txn, "transaction already finalized"), nil
	case txlog.StatusAborted:
		// An aborted outcome is retryable under the same transaction id
		// (lock contention, insufficient funds, and transient transport
		// failures can all resolve on a later attempt): reopen the row to
		// pending and fall through to a fresh prepare/commit attempt.
		txn, err = c.log.Reopen(txnID, txn.RetryAttempt+1)
		if err != nil {
			return nil, err
		}
	}

	src := c.newLeg("source", sourceAccountID)
	dst := c.newLeg("destination", destinationAccountID)

	c.logPhase(txnID, twopc.CoordinatorStatePreparing)
	commit := c.prepareBoth(ctx, src, dst, txnID, sourceAccountID, destinationAccountID, amount)

	if commit {
		c.logPhase(txnID, twopc.CoordinatorStateCommitting)
		if err := c.commitBoth(ctx, src, dst, txnID); err != nil {
			// §7: a transport failure during commit is reported committed
			// anyway, with a critical diagnostic, since both sides already
			// voted yes and holding the lock indefinitely is worse.
			c.critical.Inc()
			c.diag.Critical(txnID, sourceAccountID, destinationAccountID, err.Error())
			finalized, ferr := c.log.Finalize(txnID, txlog.StatusCommitted, 0)
			if ferr != nil {
				return nil, ferr
			}
			c.committed.Inc()
			return c.resultFromTransaction(finalized, "committed with a post-decision diagnostic recorded"), nil
		}

		finalized, err := c.log.Finalize(txnID, txlog.StatusCommitted, 0)
		if err != nil {
			return nil, err
		}
		c.committed.Inc()
		c.logPhase(txnID, twopc.CoordinatorStateCommitted)
		return c.resultFromTransaction(finalized, "transfer committed"), nil
	}

	c.logPhase(txnID, twopc.CoordinatorStateAborting)
	c.abortBoth(ctx, src, dst, txnID)
	finalized, err := c.log.Finalize(txnID, txlog.StatusAborted, 0)
	if err != nil {
		return nil, err
	}
	c.aborted.Inc()
	c.logPhase(txnID, twopc.CoordinatorStateAborted)
	return c.resultFromTransaction(finalized, "transfer aborted"), nil
}

// logPhase records a transfer's progress through the state machine in §4.1
// (INIT -> PREPARING -> COMMITTING/ABORTING -> COMMITTED/ABORTED). It is a
// log line, not a stored field: the transaction log already persists the
// terminal outcome, and in-flight phase is only ever interesting live.
func (c *Coordinator) logPhase(txnID string, phase twopc.CoordinatorState) {
	log.Printf("coordinator: transaction %s -> %s", txnID, phase)
}

// TransferWithRetry re-attempts Transfer with the same tx_id up to
// timeouts.MaxRetries times, stopping at the first committed outcome.
func (c *Coordinator) TransferWithRetry(ctx context.Context, sourceAccountID, destinationAccountID string, amount money.Amount, txnID string) (*Result, error) {
	if txnID == "" {
		txnID = uuid.NewString()
	}

	var last *Result
	var err error
	for attempt := 1; attempt <= c.timeouts.MaxRetries; attempt++ {
		last, err = c.Transfer(ctx, sourceAccountID, destinationAccountID, amount, txnID)
		if err != nil {
			return nil, err
		}
		last.RetryAttempt = attempt
		last.TotalAttempts = attempt

		if last.Status == txlog.StatusCommitted {
			return last, nil
		}
		if attempt < c.timeouts.MaxRetries {
			c.retriesCnt.Inc()
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(c.timeouts.RetryDelay):
			}
		}
	}
	return last, nil
}

// prepareBoth sends both prepare calls concurrently and reports the
// combined vote: commit only if both legs voted commit.
func (c *Coordinator) prepareBoth(ctx context.Context, src, dst twopc.Participant, txnID, sourceAccountID, destinationAccountID string, amount money.Amount) bool {
	prepareCtx, cancel := context.WithTimeout(ctx, c.timeouts.Prepare)
	defer cancel()

	var wg sync.WaitGroup
	var srcVote, dstVote bool
	wg.Add(2)

	go func() {
		defer wg.Done()
		v, err := src.Prepare(prepareCtx, txnID, sourceAccountID, twopc.OpDebit, amount)
		srcVote = err == nil && v
	}()
	go func() {
		defer wg.Done()
		v, err := dst.Prepare(prepareCtx, txnID, destinationAccountID, twopc.OpCredit, amount)
		dstVote = err == nil && v
	}()
	wg.Wait()

	return srcVote && dstVote
}

func (c *Coordinator) commitBoth(ctx context.Context, src, dst twopc.Participant, txnID string) error {
	commitCtx, cancel := context.WithTimeout(ctx, c.timeouts.Commit)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = src.Commit(commitCtx, txnID) }()
	go func() { defer wg.Done(); errs[1] = dst.Commit(commitCtx, txnID) }()
	wg.Wait()

	if errs[0] != nil {
		return fmt.Errorf("source commit: %w", errs[0])
	}
	if errs[1] != nil {
		return fmt.Errorf("destination commit: %w", errs[1])
	}
	return nil
}

// abortBoth best-effort aborts both legs; failures are not surfaced to
// the caller per §4.1 step 5 — the outcome is already decided.
func (c *Coordinator) abortBoth(ctx context.Context, src, dst twopc.Participant, txnID string) {
	abortCtx, cancel := context.WithTimeout(ctx, c.timeouts.Commit)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = src.Abort(abortCtx, txnID) }()
	go func() { defer wg.Done(); _ = dst.Abort(abortCtx, txnID) }()
	wg.Wait()
}

func (c *Coordinator) resultFromTransaction(txn *txlog.Transaction, message string) *Result {
	return &Result{
		TransactionID:        txn.TransactionID,
		Status:               txn.Status,
		SourceAccountID:      txn.SourceAccountID,
		DestinationAccountID: txn.DestinationAccountID,
		Amount:               txn.Amount,
		RetryAttempt:         txn.RetryAttempt,
		TotalAttempts:        txn.RetryAttempt + 1,
		Message:              message,
	}
}
