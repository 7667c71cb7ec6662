// Package txlog is the coordinator's transaction log store: a durable,
// append-only record of every transfer's lifecycle, replayed into an
// in-memory index on startup. The durability idiom is the classic
// write-ahead log: sequential append under a mutex, fsync per write, full
// replay to rebuild indexes on startup.
package txlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mnohosten/transferd/pkg/money"
)

// Status is the terminal (or pending) state of a transaction row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCommitted Status = "committed"
	StatusAborted   Status = "aborted"
)

// Transaction is one row of the coordinator's transaction log.
type Transaction struct {
	TransactionID        string       `json:"transaction_id"`
	SourceAccountID      string       `json:"source_account_id"`
	DestinationAccountID string       `json:"destination_account_id"`
	Amount               money.Amount `json:"amount"`
	Status               Status       `json:"status"`
	RetryAttempt         int          `json:"retry_attempt"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// record is the on-disk WAL entry. recordType distinguishes an initial
// insert from a later finalize so Replay can reconstruct history without
// storing every intermediate mutation separately.
type record struct {
	LSN    uint64      `json:"lsn"`
	Type   recordType  `json:"type"`
	Txn    Transaction `json:"txn"`
}

type recordType string

const (
	recordInsert   recordType = "insert"
	recordFinalize recordType = "finalize"
	recordReopen   recordType = "reopen"
)

// Store is the coordinator's durable transaction log plus the in-memory
// indexes built by replaying it.
type Store struct {
	mu         sync.RWMutex
	file       *os.File
	currentLSN uint64

	byID      map[string]*Transaction
	byAccount map[string][]string // accountID -> transaction ids, insertion order
}

// Open opens (creating if necessary) the log file at path and replays it to
// rebuild the in-memory indexes.
func Open(path string) (*Store, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("txlog: open %s: %w", path, err)
	}

	s := &Store{
		file:      file,
		byID:      make(map[string]*Transaction),
		byAccount: make(map[string][]string),
	}

	if err := s.replay(); err != nil {
		file.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) replay() error {
	if _, err := s.file.Seek(0, 0); err != nil {
		return fmt.Errorf("txlog: seek for replay: %w", err)
	}

	scanner := bufio.NewScanner(s.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("txlog: corrupt record during replay: %w", err)
		}
		s.applyReplay(rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("txlog: scan during replay: %w", err)
	}

	if _, err := s.file.Seek(0, 2); err != nil {
		return fmt.Errorf("txlog: seek to end after replay: %w", err)
	}
	return nil
}

func (s *Store) applyReplay(rec record) {
	if rec.LSN > s.currentLSN {
		s.currentLSN = rec.LSN
	}

	txn := rec.Txn
	switch rec.Type {
	case recordInsert:
		stored := txn
		s.byID[txn.TransactionID] = &stored
		s.indexAccounts(&stored)
	case recordFinalize, recordReopen:
		if existing, ok := s.byID[txn.TransactionID]; ok {
			existing.Status = txn.Status
			existing.RetryAttempt = txn.RetryAttempt
			existing.UpdatedAt = txn.UpdatedAt
		} else {
			// Log was truncated before the insert record; keep the
			// finalize/reopen so status queries still answer correctly.
			stored := txn
			s.byID[txn.TransactionID] = &stored
			s.indexAccounts(&stored)
		}
	}
}

func (s *Store) indexAccounts(txn *Transaction) {
	s.byAccount[txn.SourceAccountID] = append(s.byAccount[txn.SourceAccountID], txn.TransactionID)
	s.byAccount[txn.DestinationAccountID] = append(s.byAccount[txn.DestinationAccountID], txn.TransactionID)
}

func (s *Store) append(rec record) error {
	rec.LSN = s.currentLSN + 1

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("txlog: marshal record: %w", err)
	}
	data = append(data, '\n')

	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("txlog: write record: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("txlog: fsync: %w", err)
	}

	s.currentLSN = rec.LSN
	return nil
}

// Begin inserts a new pending transaction row. If txnID already exists (a
// client-supplied id being retried) the existing row is returned unchanged
// and no new record is written.
func (s *Store) Begin(txnID, sourceAccountID, destinationAccountID string, amount money.Amount) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[txnID]; ok {
		cp := *existing
		return &cp, nil
	}

	now := time.Now().UTC()
	txn := Transaction{
		TransactionID:        txnID,
		SourceAccountID:      sourceAccountID,
		DestinationAccountID: destinationAccountID,
		Amount:               amount,
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.append(record{Type: recordInsert, Txn: txn}); err != nil {
		return nil, err
	}

	stored := txn
	s.byID[txnID] = &stored
	s.indexAccounts(&stored)

	cp := txn
	return &cp, nil
}

// Finalize transitions a transaction to a terminal status. Calling it again
// with the same status is a no-op (terminal monotonicity); calling it with
// a different status than the one already recorded is a programming error
// and returns an error rather than silently rewriting history.
func (s *Store) Finalize(txnID string, status Status, retryAttempt int) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[txnID]
	if !ok {
		return nil, fmt.Errorf("txlog: finalize unknown transaction %s", txnID)
	}
	if existing.Status != StatusPending {
		if existing.Status == status {
			cp := *existing
			return &cp, nil
		}
		return nil, fmt.Errorf("txlog: transaction %s already terminal as %s, cannot set %s", txnID, existing.Status, status)
	}

	now := time.Now().UTC()
	txn := *existing
	txn.Status = status
	txn.RetryAttempt = retryAttempt
	txn.UpdatedAt = now

	if err := s.append(record{Type: recordFinalize, Txn: txn}); err != nil {
		return nil, err
	}

	existing.Status = status
	existing.RetryAttempt = retryAttempt
	existing.UpdatedAt = now

	cp := *existing
	return &cp, nil
}

// Reopen transitions an aborted transaction back to pending so the
// coordinator can drive a fresh prepare/commit attempt under the same
// transaction id. It is the internal-retry counterpart to Begin's
// idempotent-replay path: a committed row is truly terminal and Begin
// returns it as-is on any later call with the same id, but an aborted
// outcome (lock contention, insufficient funds, a transient transport
// failure) is retryable, and TransferWithRetry needs the row reopened
// before it can call Prepare again.
func (s *Store) Reopen(txnID string, retryAttempt int) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[txnID]
	if !ok {
		return nil, fmt.Errorf("txlog: reopen unknown transaction %s", txnID)
	}
	if existing.Status != StatusAborted {
		return nil, fmt.Errorf("txlog: cannot reopen transaction %s in status %s", txnID, existing.Status)
	}

	now := time.Now().UTC()
	txn := *existing
	txn.Status = StatusPending
	txn.RetryAttempt = retryAttempt
	txn.UpdatedAt = now

	if err := s.append(record{Type: recordReopen, Txn: txn}); err != nil {
		return nil, err
	}

	existing.Status = StatusPending
	existing.RetryAttempt = retryAttempt
	existing.UpdatedAt = now

	cp := *existing
	return &cp, nil
}

// Get returns the transaction row for txnID.
func (s *Store) Get(txnID string) (*Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.byID[txnID]
	if !ok {
		return nil, false
	}
	cp := *txn
	return &cp, true
}

// History returns transactions touching accountID (as either source or
// destination), newest first, paginated by limit/offset. The open question
// of de-duplicating a self-transfer's double match is resolved here by not
// de-duplicating: source and destination are always distinct per the
// InvalidArgument check, so an account's history list never contains the
// same transaction id twice.
func (s *Store) History(accountID string, limit, offset int) []*Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAccount[accountID]
	txns := make([]*Transaction, 0, len(ids))
	for _, id := range ids {
		if txn, ok := s.byID[id]; ok {
			cp := *txn
			txns = append(txns, &cp)
		}
	}

	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})

	if offset >= len(txns) {
		return []*Transaction{}
	}
	end := offset + limit
	if limit <= 0 || end > len(txns) {
		end = len(txns)
	}
	return txns[offset:end]
}

// PendingOlderThan returns pending transactions created before the cutoff,
// for the background sweeper to investigate.
func (s *Store) PendingOlderThan(cutoff time.Time) []*Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Transaction
	for _, txn := range s.byID {
		if txn.Status == StatusPending && txn.CreatedAt.Before(cutoff) {
			cp := *txn
			out = append(out, &cp)
		}
	}
	return out
}

// All returns every transaction row in the log, in no particular order.
// Used by the reconciliation tool to scan for committed rows to verify.
func (s *Store) All() []*Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Transaction, 0, len(s.byID))
	for _, txn := range s.byID {
		cp := *txn
		out = append(out, &cp)
	}
	return out
}

// Close flushes and closes the underlying log file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
