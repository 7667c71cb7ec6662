package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mnohosten/transferd/pkg/auth"
	"github.com/mnohosten/transferd/pkg/httpapi"
	"github.com/mnohosten/transferd/pkg/money"
	"github.com/mnohosten/transferd/pkg/twopc"
)

// participantClient is the networked twopc.Participant: it carries a
// coordinator-minted service token to a single participant service's
// /2pc endpoints for one account. A fresh client is bound per leg per
// attempt by NewHTTPParticipantFactory, so nothing about a retry is
// shared with the attempt before it except the txnID.
type participantClient struct {
	baseURL   string
	accountID string
	token     string
	http      *http.Client
}

// NewHTTPParticipantFactory builds a ParticipantFactory whose clients all
// talk to the single participant service at baseURL, minting a fresh
// short-lived service token per leg from authMgr.
func NewHTTPParticipantFactory(baseURL string, authMgr *auth.Manager, httpClient *http.Client) ParticipantFactory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return func(role twopc.ParticipantID, accountID string) twopc.Participant {
		return &participantClient{
			baseURL:   baseURL,
			accountID: accountID,
			token:     authMgr.Mint(auth.RoleService, time.Minute),
			http:      httpClient,
		}
	}
}

func (p *participantClient) ID() twopc.ParticipantID {
	return twopc.ParticipantID(p.accountID)
}

func (p *participantClient) Prepare(ctx context.Context, txnID, accountID string, op twopc.Operation, amount money.Amount) (bool, error) {
	body := map[string]interface{}{
		"transaction_id": txnID,
		"account_id":     accountID,
		"amount":         amount,
		"operation":      op,
	}

	var env httpapi.Envelope
	status, err := p.do(ctx, "/2pc/prepare", body, &env)
	if err != nil {
		return false, twopc.Wrap(twopc.CodeTransport, "prepare request failed", err)
	}
	if env.Error != nil {
		return false, twopc.Wrap(env.Error.Code, env.Error.Message, fmt.Errorf("participant status %d", status))
	}
	return env.Vote == "commit", nil
}

func (p *participantClient) Commit(ctx context.Context, txnID string) error {
	body := map[string]interface{}{
		"transaction_id": txnID,
		"account_id":     p.accountID,
	}

	var env httpapi.Envelope
	_, err := p.do(ctx, "/2pc/commit", body, &env)
	if err != nil {
		return twopc.Wrap(twopc.CodeTransport, "commit request failed", err)
	}
	if env.Error != nil {
		return twopc.Wrap(env.Error.Code, env.Error.Message, nil)
	}
	return nil
}

func (p *participantClient) Abort(ctx context.Context, txnID string) error {
	body := map[string]interface{}{
		"transaction_id": txnID,
		"account_id":     p.accountID,
	}

	var env httpapi.Envelope
	_, err := p.do(ctx, "/2pc/abort", body, &env)
	if err != nil {
		return twopc.Wrap(twopc.CodeTransport, "abort request failed", err)
	}
	if env.Error != nil {
		return twopc.Wrap(env.Error.Code, env.Error.Message, nil)
	}
	return nil
}

func (p *participantClient) do(ctx context.Context, path string, body interface{}, out *httpapi.Envelope) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
