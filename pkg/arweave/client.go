// Package arweave is the gateway client: network/block/transaction
// metadata, chunk-by-chunk data download via explicit offset arithmetic,
// and a bounded-concurrency peer-graph crawl.
package arweave

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/bundlr-network/validator/pkg/httpclient"
)

const defaultRetries = 3

// Client talks to a single Arweave gateway.
type Client struct {
	baseURL string
	doer    httpclient.Doer
	logger  *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger overrides the client's logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithDoer overrides the HTTP executor, used by tests to substitute a mock.
func WithDoer(doer httpclient.Doer) ClientOption {
	return func(c *Client) { c.doer = doer }
}

// NewClient builds a Client against baseURL (e.g. "https://arweave.net").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		doer:    http.DefaultClient,
		logger:  log.New(log.Writer(), "[Arweave] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	result := httpclient.Run(ctx, nil, defaultRetries, httpclient.DefaultBackoff, func(ctx context.Context, attempt int) httpclient.Attempt[error] {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return httpclient.Attempt[error]{Value: err, Verdict: httpclient.Fail}
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			c.logger.Printf("GET %s attempt %d failed: %v", path, attempt, err)
			return httpclient.Attempt[error]{Value: err, Verdict: httpclient.RetryAttempt}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
			return httpclient.Attempt[error]{Value: err, Verdict: httpclient.RetryAttempt}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			err = fmt.Errorf("failed to decode response from %s: %w", path, err)
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return httpclient.Attempt[error]{Value: err, Verdict: httpclient.RetryAttempt}
			}
			return httpclient.Attempt[error]{Value: err, Verdict: httpclient.Fail}
		}
		return httpclient.Attempt[error]{Verdict: httpclient.Success}
	})
	return result
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	return httpclient.Run(ctx, nil, defaultRetries, httpclient.DefaultBackoff, func(ctx context.Context, attempt int) httpclient.Attempt[error] {
		payload, err := json.Marshal(body)
		if err != nil {
			return httpclient.Attempt[error]{Value: err, Verdict: httpclient.Fail}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(payload)))
		if err != nil {
			return httpclient.Attempt[error]{Value: err, Verdict: httpclient.Fail}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.doer.Do(req)
		if err != nil {
			c.logger.Printf("POST %s attempt %d failed: %v", path, attempt, err)
			return httpclient.Attempt[error]{Value: err, Verdict: httpclient.RetryAttempt}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := fmt.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
			return httpclient.Attempt[error]{Value: err, Verdict: httpclient.RetryAttempt}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return httpclient.Attempt[error]{Value: fmt.Errorf("failed to decode response from %s: %w", path, err), Verdict: httpclient.Fail}
		}
		return httpclient.Attempt[error]{Verdict: httpclient.Success}
	})
}

// GetRecentTransactions fetches the limit most recent transactions owned
// by owner via the gateway's GraphQL endpoint, newest first, each with
// its tags and (if mined) block height.
func (c *Client) GetRecentTransactions(ctx context.Context, owner string, limit int) ([]RecentTransaction, error) {
	var resp gqlResponse
	body := gqlRequest{
		Query:     recentTransactionsQuery,
		Variables: map[string]any{"owners": []string{owner}, "first": limit},
	}
	if err := c.postJSON(ctx, "/graphql", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to list recent transactions for %s: %w", owner, err)
	}

	out := make([]RecentTransaction, 0, len(resp.Data.Transactions.Edges))
	for _, edge := range resp.Data.Transactions.Edges {
		tags := make([]TransactionTag, len(edge.Node.Tags))
		for i, t := range edge.Node.Tags {
			tags[i] = TransactionTag{Name: t.Name, Value: t.Value}
		}

		rt := RecentTransaction{ID: edge.Node.ID, Tags: tags}
		if edge.Node.Block != nil {
			rt.Confirmed = true
			rt.BlockHeight = edge.Node.Block.Height
		}
		out = append(out, rt)
	}
	return out, nil
}

// GetNetworkInfo fetches the gateway's current network state.
func (c *Client) GetNetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	var info NetworkInfo
	if err := c.getJSON(ctx, "/info", &info); err != nil {
		return nil, fmt.Errorf("failed to get network info: %w", err)
	}
	return &info, nil
}

// GetBlockInfo fetches a block by its independent hash.
func (c *Client) GetBlockInfo(ctx context.Context, hash string) (*BlockInfo, error) {
	var info BlockInfo
	if err := c.getJSON(ctx, "/block/hash/"+hash, &info); err != nil {
		return nil, fmt.Errorf("failed to get block info for %s: %w", hash, err)
	}
	return &info, nil
}

// GetTransactionInfo fetches transaction metadata and tags.
func (c *Client) GetTransactionInfo(ctx context.Context, txID string) (*TransactionInfo, error) {
	var info TransactionInfo
	if err := c.getJSON(ctx, "/tx/"+txID, &info); err != nil {
		return nil, fmt.Errorf("failed to get transaction info for %s: %w", txID, err)
	}
	return &info, nil
}

// GetTransactionStatus fetches a transaction's confirmation count from a
// specific peer node (host:port, no scheme), mirroring the gateway's own
// /tx/{id}/status endpoint. Used to probe how far a transaction has
// propagated across the peer graph, independent of the client's own
// gateway's view.
func (c *Client) GetTransactionStatus(ctx context.Context, peer, txID string) (*TransactionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+peer+"/tx/"+txID+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s for tx status: %w", peer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s/tx/%s/status: unexpected status %d", peer, txID, resp.StatusCode)
	}

	var status TransactionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode tx status from %s: %w", peer, err)
	}
	return &status, nil
}

// DownloadTransactionData streams a transaction's data into sink,
// chunk-by-chunk, using the gateway's offset/chunk endpoints. A partial
// read of one chunk is retried for that chunk only, never for the whole
// transaction.
func (c *Client) DownloadTransactionData(ctx context.Context, txID string, sink io.WriterAt) error {
	var off offsetResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/tx/%s/offset", txID), &off); err != nil {
		return fmt.Errorf("failed to get offset for %s: %w", txID, err)
	}

	end := uint64(off.Offset)
	size := uint64(off.Size)
	if size == 0 {
		return nil
	}
	start := end - size + 1

	cursor := start
	for cursor <= end {
		var chunk chunkResponse
		if err := c.getJSON(ctx, fmt.Sprintf("/chunk/%d", cursor), &chunk); err != nil {
			return fmt.Errorf("failed to get chunk at offset %d for %s: %w", cursor, txID, err)
		}

		decoded, err := base64.RawURLEncoding.DecodeString(chunk.Chunk)
		if err != nil {
			return fmt.Errorf("failed to decode chunk at offset %d for %s: %w", cursor, txID, err)
		}
		if len(decoded) == 0 {
			return fmt.Errorf("empty chunk at offset %d for %s", cursor, txID)
		}

		if _, err := sink.WriteAt(decoded, int64(cursor-start)); err != nil {
			return fmt.Errorf("failed to write chunk at offset %d for %s: %w", cursor, txID, err)
		}

		cursor += uint64(len(decoded))
	}

	return nil
}
