// Package contractgateway talks to the registry contract's HTTP frontend:
// fetching the current epoch/role state and submitting slash-proposal
// votes.
package contractgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bundlr-network/validator/pkg/httpclient"
)

// ErrVoteRejected is returned when the contract's vote response status is
// anything other than "OK".
var ErrVoteRejected = fmt.Errorf("contractgateway: vote was rejected")

// Gateway talks to a single registry contract endpoint.
type Gateway struct {
	baseURL string
	doer    httpclient.Doer
}

// New builds a Gateway against baseURL (e.g. "https://contract.bundlr.network/").
func New(baseURL string, doer httpclient.Doer) *Gateway {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Gateway{baseURL: strings.TrimSuffix(baseURL, "/") + "/", doer: doer}
}

// GetCurrentState fetches the contract's current epoch/role/proposal state.
func (g *Gateway) GetCurrentState(ctx context.Context) (*ContractState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"validators/state", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build state request: %w", err)
	}

	resp, err := g.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contract state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("contract state request returned status %d", resp.StatusCode)
	}

	var state ContractState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode contract state: %w", err)
	}
	return &state, nil
}

// VoteForProposal casts this validator's vote on a slash proposal.
func (g *Gateway) VoteForProposal(ctx context.Context, proposal SlashProposal, vote Vote) error {
	body, err := json.Marshal(voteRequest{Tx: proposal.ID, Vote: vote})
	if err != nil {
		return fmt.Errorf("failed to encode vote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"validators/vote", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build vote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.doer.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit vote for proposal %s: %w", proposal.ID, err)
	}
	defer resp.Body.Close()

	var vr voteResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return fmt.Errorf("failed to decode vote response for proposal %s: %w", proposal.ID, err)
	}
	if vr.Status != "OK" {
		return fmt.Errorf("%w: proposal %s, status %s", ErrVoteRejected, proposal.ID, vr.Status)
	}
	return nil
}
