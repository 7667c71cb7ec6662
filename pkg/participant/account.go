// Package participant implements the account-ledger side of the 2PC
// protocol: it owns per-account balances and lock slots and answers the
// three 2PC verbs against them.
package participant

import (
	"fmt"
	"sync"
	"time"

	"github.com/mnohosten/transferd/pkg/concurrent"
	"github.com/mnohosten/transferd/pkg/lockstripe"
	"github.com/mnohosten/transferd/pkg/money"
	"github.com/mnohosten/transferd/pkg/twopc"
)

// AccountState is the per-account state machine position.
type AccountState string

const (
	AccountAvailable AccountState = "available"
	AccountLocked    AccountState = "locked"
)

// Account is the participant's view of one ledger row.
type Account struct {
	AccountID    string       `json:"account_id"`
	OwnerID      string       `json:"owner_id"`
	Balance      money.Amount `json:"balance"`
	LockHolder   string       `json:"lock_holder,omitempty"`
	PendingDelta money.Amount `json:"pending_delta,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// State reports the account's current position in the per-account state
// machine from §4.2.
func (a Account) State() AccountState {
	if a.LockHolder == "" {
		return AccountAvailable
	}
	return AccountLocked
}

type accountRecord struct {
	mu      sync.RWMutex
	account Account
}

// recentCommit is what Store.recent caches so a replayed Commit after the
// lock has already been released can be answered idempotently instead of
// with Conflict, per §4.2's "implementations SHOULD prefer the table".
type recentCommit struct {
	accountID  string
	newBalance money.Amount
}

const recentCommitCapacity = 256
const recentCommitTTL = 24 * time.Hour

// recentCommitShards keeps lock contention low; 256 accounts rarely
// collide at this width even under one hot account.
const recentCommitShards = 32

// Store is the in-memory account ledger. Every mutation is applied via a
// single predicate-based critical section per account (accountRecord.mu),
// and cross-account exclusivity of the business lock itself is provided by
// lockTable so that a second Prepare on an already-locked account fails
// fast rather than blocking.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*accountRecord

	lockTable *lockstripe.Table
	recent    *concurrent.ShardedLRUCache

	prepares  *concurrent.Counter
	commits   *concurrent.Counter
	aborts    *concurrent.Counter
	conflicts *concurrent.Counter
}

// NewStore creates an empty account ledger.
func NewStore() *Store {
	return &Store{
		accounts:  make(map[string]*accountRecord),
		lockTable: lockstripe.New(0),
		recent:    concurrent.NewShardedLRUCache(recentCommitCapacity, recentCommitTTL, recentCommitShards),
		prepares:  concurrent.NewCounter(),
		commits:   concurrent.NewCounter(),
		aborts:    concurrent.NewCounter(),
		conflicts: concurrent.NewCounter(),
	}
}

// CreateAccount opens a new account with an initial balance. It is the
// admin-gated bootstrap operation; account CRUD is otherwise out of scope.
func (s *Store) CreateAccount(accountID, ownerID string, initialBalance money.Amount) (*Account, error) {
	if initialBalance.IsNegative() {
		return nil, twopc.NewError(twopc.CodeInvalidArgument, "initial balance must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[accountID]; exists {
		return nil, twopc.NewError(twopc.CodeInvalidArgument, fmt.Sprintf("account %s already exists", accountID))
	}

	now := time.Now().UTC()
	rec := &accountRecord{account: Account{
		AccountID: accountID,
		OwnerID:   ownerID,
		Balance:   initialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.accounts[accountID] = rec

	cp := rec.account
	return &cp, nil
}

// Get returns a snapshot of accountID's current state.
func (s *Store) Get(accountID string) (*Account, error) {
	rec, err := s.lookup(accountID)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	cp := rec.account
	return &cp, nil
}

func (s *Store) lookup(accountID string) (*accountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.accounts[accountID]
	if !ok {
		return nil, twopc.NewError(twopc.CodeNotFound, fmt.Sprintf("account %s not found", accountID))
	}
	return rec, nil
}

// signedAmount returns the delta to apply to balance for op/amount: negative
// for a debit, positive for a credit.
func signedAmount(op twopc.Operation, amount money.Amount) money.Amount {
	if op == twopc.OpDebit {
		return amount.Neg()
	}
	return amount
}

// Prepare implements the participant's half of twopc.Participant.Prepare
// for a single account. It returns the vote (true=commit); a replayed
// Prepare by the lock holder with the same delta votes commit again
// without changing the stored pending delta.
func (s *Store) Prepare(txnID, accountID string, op twopc.Operation, amount money.Amount) (vote bool, err error) {
	s.prepares.Inc()

	rec, err := s.lookup(accountID)
	if err != nil {
		return false, err
	}

	delta := signedAmount(op, amount)

	if !s.lockTable.TryAcquire(accountID) {
		// Someone already holds the business lock on this account. If
		// it's the same transaction retrying, this is the idempotent
		// re-prepare path; otherwise it's genuine contention.
		rec.mu.RLock()
		holder := rec.account.LockHolder
		pending := rec.account.PendingDelta
		rec.mu.RUnlock()

		if holder == txnID {
			if pending.Cmp(delta) != 0 {
				s.conflicts.Inc()
				return false, twopc.NewError(twopc.CodeConflict, "re-prepare amount does not match the held lock")
			}
			return true, nil
		}

		s.conflicts.Inc()
		return false, twopc.NewError(twopc.CodeConflict, fmt.Sprintf("account %s is locked by another transaction", accountID))
	}

	// We now hold the exclusive business lock. Any failure from here
	// must release it before returning an abort vote.
	rec.mu.Lock()
	if op == twopc.OpDebit && rec.account.Balance.Cmp(amount) < 0 {
		rec.mu.Unlock()
		s.lockTable.Release(accountID)
		return false, twopc.NewError(twopc.CodeInsufficientFunds, fmt.Sprintf("balance %s is less than requested %s", rec.account.Balance, amount))
	}

	rec.account.LockHolder = txnID
	rec.account.PendingDelta = delta
	rec.account.UpdatedAt = time.Now().UTC()
	rec.mu.Unlock()

	return true, nil
}

// Commit applies a previously prepared delta and releases the lock.
// Idempotent: a replayed Commit for a txnID whose lock has already been
// released is answered from the recent-commits cache when available.
func (s *Store) Commit(txnID, accountID string) error {
	rec, err := s.lookup(accountID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	if rec.account.LockHolder != txnID {
		rec.mu.Unlock()

		if cached, ok := s.recent.Get(txnID + "/" + accountID); ok {
			if rc, ok := cached.(recentCommit); ok && rc.accountID == accountID {
				s.commits.Inc()
				return nil
			}
		}
		return twopc.NewError(twopc.CodeConflict, fmt.Sprintf("account %s is not locked by transaction %s", accountID, txnID))
	}

	rec.account.Balance = rec.account.Balance.Add(rec.account.PendingDelta)
	rec.account.LockHolder = ""
	rec.account.PendingDelta = money.Zero
	rec.account.UpdatedAt = time.Now().UTC()
	newBalance := rec.account.Balance
	rec.mu.Unlock()

	s.lockTable.Release(accountID)
	s.recent.Put(txnID+"/"+accountID, recentCommit{accountID: accountID, newBalance: newBalance})
	s.commits.Inc()
	return nil
}

// Abort discards a previously prepared delta and releases the lock.
// Idempotent: aborting an account not locked by txnID silently succeeds.
func (s *Store) Abort(txnID, accountID string) error {
	rec, err := s.lookup(accountID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	if rec.account.LockHolder != txnID {
		rec.mu.Unlock()
		s.aborts.Inc()
		return nil
	}

	rec.account.LockHolder = ""
	rec.account.PendingDelta = money.Zero
	rec.account.UpdatedAt = time.Now().UTC()
	rec.mu.Unlock()

	s.lockTable.Release(accountID)
	s.aborts.Inc()
	return nil
}

// Counters exposes the operation counters for the metrics exporter.
func (s *Store) Counters() (prepares, commits, aborts, conflicts uint64) {
	return s.prepares.Load(), s.commits.Load(), s.aborts.Load(), s.conflicts.Load()
}
