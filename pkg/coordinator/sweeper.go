package coordinator

import (
	"context"
	"log"
	"time"

	"github.com/mnohosten/transferd/pkg/txlog"
)

// Sweeper implements the reconciliation path from §9: a coordinator crash
// between writing a pending row and finalizing it can leave a dangling
// pending transaction and a lock held on one or both participants. The
// sweeper periodically finds pending rows older than the transaction
// timeout and sends a best-effort Abort to both legs — safe because Abort
// is idempotent and a no-op on an account that never locked for this
// transaction — then finalizes the row as aborted.
type Sweeper struct {
	coord    *Coordinator
	interval time.Duration
	maxAge   time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper builds a Sweeper that checks every interval for pending rows
// older than maxAge.
func NewSweeper(coord *Coordinator, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		coord:    coord,
		interval: interval,
		maxAge:   maxAge,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks, sweeping on interval until Stop is called.
func (s *Sweeper) Run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// Stop signals Run to exit and waits for it to do so.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweepOnce() {
	cutoff := time.Now().Add(-s.maxAge)
	pending := s.coord.log.PendingOlderThan(cutoff)

	for _, txn := range pending {
		s.reconcile(txn)
	}
}

func (s *Sweeper) reconcile(txn *txlog.Transaction) {
	log.Printf("coordinator: sweeping stale pending transaction %s (age exceeds timeout)", txn.TransactionID)

	ctx, cancel := context.WithTimeout(context.Background(), s.coord.timeouts.Commit)
	defer cancel()

	src := s.coord.newLeg("source", txn.SourceAccountID)
	dst := s.coord.newLeg("destination", txn.DestinationAccountID)
	s.coord.abortBoth(ctx, src, dst, txn.TransactionID)

	if _, err := s.coord.log.Finalize(txn.TransactionID, txlog.StatusAborted, txn.RetryAttempt); err != nil {
		log.Printf("coordinator: sweeper failed to finalize %s: %v", txn.TransactionID, err)
	}
}
