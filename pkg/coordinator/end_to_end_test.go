package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/mnohosten/transferd/pkg/auth"
	"github.com/mnohosten/transferd/pkg/money"
	"github.com/mnohosten/transferd/pkg/twopc"
	"github.com/mnohosten/transferd/pkg/txlog"
)

// These exercise §8's end-to-end scenarios against a real HTTP participant
// server (not fakeParticipant), so lock contention and balance arithmetic
// run through the actual account store rather than a stand-in.

func getBalance(t *testing.T, baseURL, token, accountID string) money.Amount {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/accounts/"+accountID, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get account status = %d", resp.StatusCode)
	}

	var env struct {
		Data struct {
			Balance money.Amount `json:"balance"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data.Balance
}

func newEndToEndCoordinator(t *testing.T) (*Coordinator, string, *auth.Manager) {
	t.Helper()

	ts, authMgr := newTestParticipantServer(t)
	t.Cleanup(ts.Close)

	factory := NewHTTPParticipantFactory(ts.URL, authMgr, nil)

	log, err := txlog.Open(t.TempDir() + "/tx.log")
	if err != nil {
		t.Fatalf("txlog.Open: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })

	timeouts := twopc.Timeouts{Prepare: time.Second, Commit: time.Second, MaxRetries: 3, RetryDelay: time.Millisecond}
	c := New(log, factory, timeouts, nil, nil)
	return c, ts.URL, authMgr
}

func TestScenarioLockContentionSerializes(t *testing.T) {
	c, baseURL, authMgr := newEndToEndCoordinator(t)
	adminToken := authMgr.Mint(auth.RoleService, time.Minute)
	createAccount(t, baseURL, adminToken, "A", "alice", "150.0000")
	createAccount(t, baseURL, adminToken, "B", "bob", "0.0000")
	createAccount(t, baseURL, adminToken, "C", "carol", "0.0000")

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		r, err := c.Transfer(context.Background(), "A", "B", money.MustNew("100.0000"), "")
		if err != nil {
			t.Errorf("Transfer A->B: %v", err)
			return
		}
		results[0] = r
	}()
	go func() {
		defer wg.Done()
		r, err := c.Transfer(context.Background(), "A", "C", money.MustNew("100.0000"), "")
		if err != nil {
			t.Errorf("Transfer A->C: %v", err)
			return
		}
		results[1] = r
	}()
	wg.Wait()

	committed := 0
	for _, r := range results {
		if r.Status == txlog.StatusCommitted {
			committed++
		}
	}
	if committed != 1 {
		t.Fatalf("committed count = %d, want exactly 1", committed)
	}

	balA := getBalance(t, baseURL, adminToken, "A")
	balB := getBalance(t, baseURL, adminToken, "B")
	balC := getBalance(t, baseURL, adminToken, "C")

	if balA.String() != "50.0000" {
		t.Errorf("balance(A) = %s, want 50.0000", balA)
	}
	sum := balA.Add(balB).Add(balC)
	if sum.String() != "150.0000" {
		t.Errorf("sum(A,B,C) = %s, want 150.0000", sum)
	}
}

func TestScenarioStressConservation(t *testing.T) {
	c, baseURL, authMgr := newEndToEndCoordinator(t)
	adminToken := authMgr.Mint(auth.RoleService, time.Minute)
	createAccount(t, baseURL, adminToken, "A", "alice", "1000.0000")
	createAccount(t, baseURL, adminToken, "B", "bob", "750.0000")

	const attempts = 10
	results := make([]*Result, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			r, err := c.TransferWithRetry(context.Background(), "A", "B", money.MustNew("10.0000"), "")
			if err != nil {
				t.Errorf("transfer %d: %v", i, err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	k := 0
	for _, r := range results {
		if r != nil && r.Status == txlog.StatusCommitted {
			k++
		}
	}

	moved := money.MustNew("0.0000")
	for i := 0; i < k; i++ {
		moved = moved.Add(money.MustNew("10.0000"))
	}
	wantA := money.MustNew("1000.0000").Sub(moved)
	wantB := money.MustNew("750.0000").Add(moved)

	balA := getBalance(t, baseURL, adminToken, "A")
	balB := getBalance(t, baseURL, adminToken, "B")
	if balA.String() != wantA.String() {
		t.Errorf("balance(A) = %s, want %s (k=%d)", balA, wantA, k)
	}
	if balB.String() != wantB.String() {
		t.Errorf("balance(B) = %s, want %s (k=%d)", balB, wantB, k)
	}

	for _, txn := range c.log.All() {
		if txn.Status == txlog.StatusPending {
			t.Errorf("transaction %s left pending", txn.TransactionID)
		}
	}
}
