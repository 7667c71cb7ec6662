// Package httpapi holds the JSON response envelope shared by the
// coordinator and participant HTTP APIs, and the small middleware stack
// (CORS, request size limit) both servers are built from.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/mnohosten/transferd/pkg/twopc"
)

// Envelope is the wire shape every endpoint responds with: success plus
// either data/vote/message, or error.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Vote    string      `json:"vote,omitempty"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the taxonomy-tagged error shape carried in Envelope.Error.
type ErrorBody struct {
	Code    twopc.Code  `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: error encoding response: %v", err)
	}
}

// WriteSuccess writes a success envelope carrying data.
func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteVote writes a success envelope carrying a 2PC vote plus details,
// per §6.1's prepare/commit response shape.
func WriteVote(w http.ResponseWriter, status int, vote string, details interface{}) {
	WriteJSON(w, status, Envelope{Success: vote == "commit", Vote: vote, Details: details})
}

// WriteError writes a failure envelope with a taxonomy code and HTTP
// status chosen by the caller per §7's propagation policy.
func WriteError(w http.ResponseWriter, status int, code twopc.Code, message string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// StatusForCode maps a taxonomy code to the HTTP status §6.1/§7 specify.
func StatusForCode(code twopc.Code) int {
	switch code {
	case twopc.CodeInvalidArgument:
		return http.StatusBadRequest
	case twopc.CodeNotFound:
		return http.StatusNotFound
	case twopc.CodeInsufficientFunds, twopc.CodeConflict:
		return http.StatusConflict
	case twopc.CodeTransport:
		return http.StatusBadGateway
	case twopc.CodeCritical:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// WriteTaxonomyError inspects err for a *twopc.Error and writes the
// matching envelope; unrecognized errors become a 500 with CodeCritical
// since an un-taxonomized failure this deep is itself the diagnostic.
func WriteTaxonomyError(w http.ResponseWriter, err error) {
	code, ok := twopc.CodeOf(err)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, Envelope{
			Success: false,
			Error:   &ErrorBody{Code: twopc.CodeCritical, Message: err.Error()},
		})
		return
	}
	WriteError(w, StatusForCode(code), code, err.Error())
}
