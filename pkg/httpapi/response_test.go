package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnohosten/transferd/pkg/twopc"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusOK, map[string]string{"account_id": "A"})

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success {
		t.Error("expected success=true")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestWriteVote(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteVote(rec, http.StatusOK, "commit", map[string]string{"account_id": "A"})

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Vote != "commit" || !env.Success {
		t.Errorf("env = %+v, want vote=commit success=true", env)
	}
}

func TestWriteTaxonomyErrorKnownCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteTaxonomyError(rec, twopc.NewError(twopc.CodeInsufficientFunds, "balance too low"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error == nil || env.Error.Code != twopc.CodeInsufficientFunds {
		t.Errorf("env = %+v", env)
	}
}

func TestWriteTaxonomyErrorUntaxonomized(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteTaxonomyError(rec, errPlain("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

func TestStatusForCode(t *testing.T) {
	cases := map[twopc.Code]int{
		twopc.CodeInvalidArgument:    http.StatusBadRequest,
		twopc.CodeNotFound:           http.StatusNotFound,
		twopc.CodeInsufficientFunds:  http.StatusConflict,
		twopc.CodeConflict:           http.StatusConflict,
		twopc.CodeTransport:          http.StatusBadGateway,
		twopc.CodeCritical:           http.StatusOK,
	}
	for code, want := range cases {
		if got := StatusForCode(code); got != want {
			t.Errorf("StatusForCode(%s) = %d, want %d", code, got, want)
		}
	}
}
