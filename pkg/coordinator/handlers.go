package coordinator

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mnohosten/transferd/pkg/httpapi"
	"github.com/mnohosten/transferd/pkg/money"
	"github.com/mnohosten/transferd/pkg/twopc"
	"github.com/mnohosten/transferd/pkg/txlog"
)

type transferRequest struct {
	SourceAccountID      string       `json:"source_account_id"`
	DestinationAccountID string       `json:"destination_account_id"`
	Amount               money.Amount `json:"amount"`
	TransactionID        string       `json:"transaction_id,omitempty"`
}

// handleTransfer implements POST /transfers from §6.2.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, twopc.CodeInvalidArgument, "malformed request body")
		return
	}
	if req.SourceAccountID == "" || req.DestinationAccountID == "" {
		httpapi.WriteError(w, http.StatusBadRequest, twopc.CodeInvalidArgument, "source_account_id and destination_account_id are required")
		return
	}

	res, err := s.coord.TransferWithRetry(r.Context(), req.SourceAccountID, req.DestinationAccountID, req.Amount, req.TransactionID)
	if err != nil {
		httpapi.WriteTaxonomyError(w, err)
		return
	}

	s.feedHub.broadcast(feedEvent{
		TransactionID:        res.TransactionID,
		Status:               string(res.Status),
		SourceAccountID:      res.SourceAccountID,
		DestinationAccountID: res.DestinationAccountID,
		Message:              res.Message,
	})

	status := http.StatusOK
	if res.Status != txlog.StatusCommitted {
		status = http.StatusConflict
	}
	httpapi.WriteJSON(w, status, httpapi.Envelope{
		Success: res.Status == txlog.StatusCommitted,
		Data: map[string]interface{}{
			"transaction_id":         res.TransactionID,
			"status":                 res.Status,
			"source_account_id":      res.SourceAccountID,
			"destination_account_id": res.DestinationAccountID,
			"amount":                 res.Amount,
			"retry_attempt":          res.RetryAttempt,
			"total_attempts":         res.TotalAttempts,
		},
		Message: res.Message,
	})
}

// handleStatus implements GET /transfers/status/{tx_id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	txnID := chi.URLParam(r, "tx_id")
	txn, ok := s.log.Get(txnID)
	if !ok {
		httpapi.WriteError(w, http.StatusNotFound, twopc.CodeNotFound, "unknown transaction")
		return
	}
	httpapi.WriteSuccess(w, http.StatusOK, txn)
}

// handleHistory implements GET /transfers/history/{account_id}?limit&offset.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	txns := s.log.History(accountID, limit, offset)
	httpapi.WriteSuccess(w, http.StatusOK, txns)
}

// handleGraphQL implements POST /graphql, the read-only alternative to
// the status/history REST endpoints.
func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	s.gql.ServeHTTP(w, r)
}

// handleHealth implements GET /_health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "coordinator",
	})
}

// handleMetrics implements GET /_metrics in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_ = s.coord.Registry().WriteMetrics(w)
}
