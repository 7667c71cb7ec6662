// Package lockstripe provides the participant's per-account exclusivity
// lock: a compare-and-set "is this account already prepared for some other
// transaction" gate, implemented as a striped table of no-wait mutexes
// rather than a single global lock.
package lockstripe

import (
	"hash/fnv"
	"sync"

	"github.com/viney-shih/go-lock"
)

const defaultStripes = 256

// Table is a striped table of per-account no-wait locks. A lock acquisition
// never blocks: it either succeeds immediately (the account had no
// conflicting holder) or fails immediately (CodeConflict upstream), which is
// the CAS semantics the participant account's lock_holder field models.
type Table struct {
	numStripes int
	stripes    []*stripe
}

type stripe struct {
	mu    sync.Mutex
	locks map[string]lock.Mutex
}

// New creates a Table. numStripes should be a power of two; 0 selects the
// default of 256.
func New(numStripes int) *Table {
	if numStripes <= 0 {
		numStripes = defaultStripes
	}

	t := &Table{
		numStripes: numStripes,
		stripes:    make([]*stripe, numStripes),
	}
	for i := range t.stripes {
		t.stripes[i] = &stripe{locks: make(map[string]lock.Mutex)}
	}
	return t
}

func (t *Table) getStripe(accountID string) *stripe {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return t.stripes[int(h.Sum32())%t.numStripes]
}

func (s *stripe) getLock(accountID string) lock.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[accountID]
	if !ok {
		m = lock.NewCASMutex()
		s.locks[accountID] = m
	}
	return m
}

// TryAcquire attempts to take the exclusive lock for accountID without
// blocking. It reports whether the lock was acquired.
func (t *Table) TryAcquire(accountID string) bool {
	return t.getStripe(accountID).getLock(accountID).TryLock()
}

// Release releases the exclusive lock for accountID. Calling Release
// without a held lock is a caller bug, matching sync.Mutex.Unlock.
func (t *Table) Release(accountID string) {
	t.getStripe(accountID).getLock(accountID).Unlock()
}
