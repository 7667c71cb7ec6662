// Command reconcile is the operator tool described in §9: given a
// coordinator-side record already marked committed, it re-drives Commit
// against both participant legs and reports whether each leg agrees. Commit
// is idempotent on the participant side, so re-sending it is always safe —
// this tool never touches pending or aborted rows, and never flips a
// transaction's recorded status; it only verifies and, where a leg missed
// its commit, completes it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mnohosten/transferd/pkg/auth"
	"github.com/mnohosten/transferd/pkg/coordinator"
	"github.com/mnohosten/transferd/pkg/twopc"
	"github.com/mnohosten/transferd/pkg/txlog"
)

func main() {
	logPath := flag.String("log", "./transactions.log", "Path to the coordinator's transaction log")
	participantURL := flag.String("participant-url", "http://localhost:8081", "Base URL of the participant service")
	tokenSecret := flag.String("token-secret", "", "Shared secret used to mint service-role bearer tokens")
	txnID := flag.String("transaction-id", "", "Reconcile a single transaction (empty: scan every committed row)")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-leg commit timeout")
	verbose := flag.Bool("verbose", false, "Print a line for every row checked, not just mismatches")
	archiveDir := flag.String("archive-dir", "", "If set, write a timestamped compressed snapshot of every terminal row here after reconciling")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -token-secret SECRET [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Re-drives Commit against both legs of already-committed transactions.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *tokenSecret == "" {
		fmt.Fprintln(os.Stderr, "reconcile: -token-secret is required")
		os.Exit(1)
	}

	log, err := txlog.Open(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: failed to open transaction log: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	authMgr, err := auth.NewManager(*tokenSecret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(1)
	}
	factory := coordinator.NewHTTPParticipantFactory(*participantURL, authMgr, nil)

	var rows []*txlog.Transaction
	if *txnID != "" {
		txn, ok := log.Get(*txnID)
		if !ok {
			fmt.Fprintf(os.Stderr, "reconcile: no such transaction %s\n", *txnID)
			os.Exit(1)
		}
		rows = []*txlog.Transaction{txn}
	} else {
		rows = log.All()
	}

	checked, mismatched := 0, 0
	for _, txn := range rows {
		if txn.Status != txlog.StatusCommitted {
			continue
		}
		checked++
		if reconcileOne(txn, factory, *timeout, *verbose) {
			mismatched++
		}
	}

	fmt.Printf("reconcile: checked %d committed transaction(s), %d could not be confirmed on both legs\n", checked, mismatched)

	if *archiveDir != "" {
		path, written, err := log.ArchiveSnapshot(*archiveDir, "txlog")
		if err != nil {
			fmt.Fprintf(os.Stderr, "reconcile: archive snapshot failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("reconcile: wrote %d terminal transaction(s) to %s\n", written, path)
	}

	if mismatched > 0 {
		os.Exit(2)
	}
}

// reconcileOne re-sends Commit to both legs of txn. A leg that this call
// commits, or that already committed and is still in the participant's
// recent-commit cache, returns no error. It returns true if either leg
// returned an error, meaning the commit could not be confirmed on that leg;
// the MISMATCH line gives each leg's result.
func reconcileOne(txn *txlog.Transaction, factory coordinator.ParticipantFactory, timeout time.Duration, verbose bool) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	src := factory("source", txn.SourceAccountID)
	dst := factory("destination", txn.DestinationAccountID)

	srcErr := src.Commit(ctx, txn.TransactionID)
	dstErr := dst.Commit(ctx, txn.TransactionID)

	if srcErr == nil && dstErr == nil {
		if verbose {
			fmt.Printf("ok      %s (source=%s destination=%s amount=%s)\n", txn.TransactionID, txn.SourceAccountID, txn.DestinationAccountID, txn.Amount)
		}
		return false
	}

	fmt.Printf("MISMATCH %s: source_commit=%s destination_commit=%s\n", txn.TransactionID, errStatus(srcErr), errStatus(dstErr))
	return true
}

func errStatus(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := twopc.CodeOf(err); ok {
		return fmt.Sprintf("%s (%s)", code, err)
	}
	return err.Error()
}
