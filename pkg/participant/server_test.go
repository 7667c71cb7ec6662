package participant

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mnohosten/transferd/pkg/auth"
	"github.com/mnohosten/transferd/pkg/money"
)

func setupTestServer(t *testing.T) (*Server, *auth.Manager) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.TokenSecret = "test-secret"
	cfg.EnableLogging = false

	srv, err := NewServer(cfg, NewStore())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	authMgr, err := auth.NewManager(cfg.TokenSecret)
	if err != nil {
		t.Fatalf("auth.NewManager: %v", err)
	}
	return srv, authMgr
}

func makeRequest(t *testing.T, srv *Server, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func TestHealthEndpointRequiresNoAuth(t *testing.T) {
	srv, _ := setupTestServer(t)
	rec, body := makeRequest(t, srv, http.MethodGet, "/_health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["success"] != true {
		t.Errorf("body = %+v", body)
	}
}

func TestCreateAccountRequiresAdminToken(t *testing.T) {
	srv, authMgr := setupTestServer(t)

	rec, _ := makeRequest(t, srv, http.MethodPost, "/accounts", "", map[string]interface{}{
		"account_id": "A", "owner_id": "alice", "initial_balance": "100.0000",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	clientToken := authMgr.Mint(auth.RoleClient, time.Minute)
	rec, _ = makeRequest(t, srv, http.MethodPost, "/accounts", clientToken, map[string]interface{}{
		"account_id": "A", "owner_id": "alice", "initial_balance": "100.0000",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status with client token = %d, want 403", rec.Code)
	}

	serviceToken := authMgr.Mint(auth.RoleService, time.Minute)
	rec, body := makeRequest(t, srv, http.MethodPost, "/accounts", serviceToken, map[string]interface{}{
		"account_id": "A", "owner_id": "alice", "initial_balance": "100.0000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status with service token = %d, want 201, body=%v", rec.Code, body)
	}
}

func TestPrepareCommitFlowOverHTTP(t *testing.T) {
	srv, authMgr := setupTestServer(t)
	serviceToken := authMgr.Mint(auth.RoleService, time.Minute)

	makeRequest(t, srv, http.MethodPost, "/accounts", serviceToken, map[string]interface{}{
		"account_id": "A", "owner_id": "alice", "initial_balance": "100.0000",
	})

	rec, body := makeRequest(t, srv, http.MethodPost, "/2pc/prepare", serviceToken, map[string]interface{}{
		"transaction_id": "tx-1", "account_id": "A", "amount": "50.0000", "operation": "debit",
	})
	if rec.Code != http.StatusOK || body["vote"] != "commit" {
		t.Fatalf("prepare: status=%d body=%+v", rec.Code, body)
	}

	rec, body = makeRequest(t, srv, http.MethodPost, "/2pc/commit", serviceToken, map[string]interface{}{
		"transaction_id": "tx-1", "account_id": "A",
	})
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("commit: status=%d body=%+v", rec.Code, body)
	}

	rec, body = makeRequest(t, srv, http.MethodGet, "/accounts/A", serviceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get account: status=%d body=%+v", rec.Code, body)
	}
	data := body["data"].(map[string]interface{})
	got, err := money.New(data["balance"].(string))
	if err != nil {
		t.Fatalf("parse balance: %v", err)
	}
	if want := money.MustNew("50.0000"); got.Cmp(want) != 0 {
		t.Errorf("balance = %s, want %s", got, want)
	}
}

func TestPrepareInsufficientFundsReturns409(t *testing.T) {
	srv, authMgr := setupTestServer(t)
	serviceToken := authMgr.Mint(auth.RoleService, time.Minute)

	makeRequest(t, srv, http.MethodPost, "/accounts", serviceToken, map[string]interface{}{
		"account_id": "A", "owner_id": "alice", "initial_balance": "10.0000",
	})

	rec, body := makeRequest(t, srv, http.MethodPost, "/2pc/prepare", serviceToken, map[string]interface{}{
		"transaction_id": "tx-1", "account_id": "A", "amount": "50.0000", "operation": "debit",
	})
	if rec.Code != http.StatusConflict || body["vote"] != "abort" {
		t.Fatalf("status=%d body=%+v", rec.Code, body)
	}
}

func TestPrepareUnknownAccountReturns404(t *testing.T) {
	srv, authMgr := setupTestServer(t)
	serviceToken := authMgr.Mint(auth.RoleService, time.Minute)

	rec, body := makeRequest(t, srv, http.MethodPost, "/2pc/prepare", serviceToken, map[string]interface{}{
		"transaction_id": "tx-1", "account_id": "ghost", "amount": "50.0000", "operation": "debit",
	})
	if rec.Code != http.StatusNotFound || body["vote"] != "abort" {
		t.Fatalf("status=%d body=%+v", rec.Code, body)
	}
}

func TestMetricsEndpointReportsCounters(t *testing.T) {
	srv, authMgr := setupTestServer(t)
	serviceToken := authMgr.Mint(auth.RoleService, time.Minute)

	makeRequest(t, srv, http.MethodPost, "/accounts", serviceToken, map[string]interface{}{
		"account_id": "A", "owner_id": "alice", "initial_balance": "100.0000",
	})
	makeRequest(t, srv, http.MethodPost, "/2pc/prepare", serviceToken, map[string]interface{}{
		"transaction_id": "tx-1", "account_id": "A", "amount": "50.0000", "operation": "debit",
	})

	req := httptest.NewRequest(http.MethodGet, "/_metrics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("transferd_participant_prepares_total 1")) {
		t.Errorf("metrics body missing prepares counter:\n%s", rec.Body.String())
	}
}
