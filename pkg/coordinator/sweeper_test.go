package coordinator

import (
	"testing"
	"time"

	"github.com/mnohosten/transferd/pkg/money"
	"github.com/mnohosten/transferd/pkg/txlog"
)

func TestSweeperAbortsStalePendingTransaction(t *testing.T) {
	src := &fakeParticipant{id: "A", voteCommit: true}
	dst := &fakeParticipant{id: "B", voteCommit: true}
	c := newTestCoordinator(t, src, dst)

	if _, err := c.log.Begin("tx-stale", "A", "B", money.MustNew("10.0000")); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	sweeper := NewSweeper(c, time.Millisecond, -time.Second)
	sweeper.sweepOnce()

	txn, ok := c.log.Get("tx-stale")
	if !ok {
		t.Fatal("transaction disappeared")
	}
	if txn.Status != txlog.StatusAborted {
		t.Errorf("status = %v, want aborted", txn.Status)
	}
	if len(src.aborted) != 1 || len(dst.aborted) != 1 {
		t.Errorf("abort calls: src=%v dst=%v", src.aborted, dst.aborted)
	}
}

func TestSweeperIgnoresFreshPendingTransaction(t *testing.T) {
	src := &fakeParticipant{id: "A", voteCommit: true}
	dst := &fakeParticipant{id: "B", voteCommit: true}
	c := newTestCoordinator(t, src, dst)

	if _, err := c.log.Begin("tx-fresh", "A", "B", money.MustNew("10.0000")); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	sweeper := NewSweeper(c, time.Millisecond, time.Hour)
	sweeper.sweepOnce()

	txn, ok := c.log.Get("tx-fresh")
	if !ok {
		t.Fatal("transaction disappeared")
	}
	if txn.Status != txlog.StatusPending {
		t.Errorf("status = %v, want still pending", txn.Status)
	}
}

func TestSweeperRunStopsCleanly(t *testing.T) {
	src := &fakeParticipant{id: "A", voteCommit: true}
	dst := &fakeParticipant{id: "B", voteCommit: true}
	c := newTestCoordinator(t, src, dst)

	sweeper := NewSweeper(c, time.Millisecond, time.Hour)
	go sweeper.Run()
	time.Sleep(5 * time.Millisecond)
	sweeper.Stop()
}
