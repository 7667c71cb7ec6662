package participant

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mnohosten/transferd/pkg/httpapi"
	"github.com/mnohosten/transferd/pkg/metrics"
	"github.com/mnohosten/transferd/pkg/money"
	"github.com/mnohosten/transferd/pkg/twopc"
)

type prepareRequest struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Amount        money.Amount    `json:"amount"`
	Operation     twopc.Operation `json:"operation"`
}

type txAccountRequest struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
}

type createAccountRequest struct {
	AccountID      string       `json:"account_id"`
	OwnerID        string       `json:"owner_id"`
	InitialBalance money.Amount `json:"initial_balance"`
}

// handlePrepare implements POST /2pc/prepare from §6.1.
func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, twopc.CodeInvalidArgument, "malformed request body")
		return
	}
	if req.TransactionID == "" || req.AccountID == "" {
		httpapi.WriteError(w, http.StatusBadRequest, twopc.CodeInvalidArgument, "transaction_id and account_id are required")
		return
	}
	if req.Operation != twopc.OpDebit && req.Operation != twopc.OpCredit {
		httpapi.WriteError(w, http.StatusBadRequest, twopc.CodeInvalidArgument, "operation must be debit or credit")
		return
	}

	magnitude := req.Amount
	if magnitude.IsNegative() {
		magnitude = magnitude.Neg()
	}

	vote, err := s.store.Prepare(req.TransactionID, req.AccountID, req.Operation, magnitude)
	if err != nil {
		status := httpapi.StatusForCode(mustCode(err))
		code, _ := twopc.CodeOf(err)
		httpapi.WriteJSON(w, status, httpapi.Envelope{
			Success: false,
			Vote:    "abort",
			Error:   &httpapi.ErrorBody{Code: code, Message: err.Error()},
		})
		return
	}
	if !vote {
		httpapi.WriteJSON(w, http.StatusConflict, httpapi.Envelope{Success: false, Vote: "abort"})
		return
	}

	acct, _ := s.store.Get(req.AccountID)
	httpapi.WriteVote(w, http.StatusOK, "commit", map[string]interface{}{
		"account_id":      req.AccountID,
		"current_balance": acct.Balance,
		"pending_change":  acct.PendingDelta,
		"operation":       req.Operation,
	})
}

// handleCommit implements POST /2pc/commit from §6.1.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req txAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, twopc.CodeInvalidArgument, "malformed request body")
		return
	}

	if err := s.store.Commit(req.TransactionID, req.AccountID); err != nil {
		httpapi.WriteTaxonomyError(w, err)
		return
	}

	acct, _ := s.store.Get(req.AccountID)
	httpapi.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"details": map[string]interface{}{
			"account_id":  req.AccountID,
			"new_balance": acct.Balance,
		},
	})
}

// handleAbort implements POST /2pc/abort from §6.1. Always idempotent.
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	var req txAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, twopc.CodeInvalidArgument, "malformed request body")
		return
	}

	if err := s.store.Abort(req.TransactionID, req.AccountID); err != nil {
		httpapi.WriteTaxonomyError(w, err)
		return
	}
	httpapi.WriteSuccess(w, http.StatusOK, nil)
}

// handleCreateAccount implements POST /accounts, the admin-gated bootstrap
// operation account CRUD otherwise excludes (§1 Non-goals).
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, twopc.CodeInvalidArgument, "malformed request body")
		return
	}
	if req.AccountID == "" {
		httpapi.WriteError(w, http.StatusBadRequest, twopc.CodeInvalidArgument, "account_id is required")
		return
	}

	acct, err := s.store.CreateAccount(req.AccountID, req.OwnerID, req.InitialBalance)
	if err != nil {
		httpapi.WriteTaxonomyError(w, err)
		return
	}
	httpapi.WriteSuccess(w, http.StatusCreated, acct)
}

// handleGetAccount implements GET /accounts/{id}.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	acct, err := s.store.Get(accountID)
	if err != nil {
		httpapi.WriteTaxonomyError(w, err)
		return
	}
	httpapi.WriteSuccess(w, http.StatusOK, acct)
}

// handleHealth implements GET /_health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "participant",
	})
}

// handleMetrics implements GET /_metrics in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	prepares, commits, aborts, conflicts := s.store.Counters()
	if err := metrics.WriteUptime(w, "transferd_participant", s.startTime); err != nil {
		return
	}
	if err := metrics.WriteCounter(w, "transferd_participant", "prepares_total", "total Prepare calls", prepares); err != nil {
		return
	}
	if err := metrics.WriteCounter(w, "transferd_participant", "commits_total", "total Commit calls", commits); err != nil {
		return
	}
	if err := metrics.WriteCounter(w, "transferd_participant", "aborts_total", "total Abort calls", aborts); err != nil {
		return
	}
	_ = metrics.WriteCounter(w, "transferd_participant", "lock_conflicts_total", "prepares that lost the account lock race", conflicts)
}

func mustCode(err error) twopc.Code {
	code, ok := twopc.CodeOf(err)
	if !ok {
		return twopc.CodeCritical
	}
	return code
}
