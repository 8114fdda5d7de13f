package arweave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// PeerStatus is the crawl's view of a single peer's last fetch.
type PeerStatus int

const (
	// PeerPending has been enqueued but not yet fetched.
	PeerPending PeerStatus = iota
	// PeerOK was fetched successfully.
	PeerOK
	// PeerFailed could not be fetched.
	PeerFailed
)

type peerJob struct {
	node  string
	depth int
}

// PeerResult is one discovered peer and its own advertised peer list.
type PeerResult struct {
	Node  string
	Peers []string
}

// FindNodes BFS-crawls the gateway's /peers graph starting from the
// client's own gateway (treated as depth 0 and excluded from the result).
// A dynamic work queue feeds a bounded-concurrency worker pool; each
// successfully fetched peer expands the queue with its own /peers at
// depth+1 until maxDepth. At most maxCount results are returned; ordering
// is not guaranteed.
func (c *Client) FindNodes(ctx context.Context, concurrency, maxDepth, maxCount int) ([]PeerResult, error) {
	gateway, err := gatewayNode(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to determine gateway node: %w", err)
	}

	var (
		mu      sync.Mutex
		status  = map[string]PeerStatus{gateway: PeerOK}
		results []PeerResult
	)

	queue := newWorkQueue[peerJob]()
	queue.Add(peerJob{node: gateway, depth: 0})

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := queue.Next()
				if !ok {
					return
				}

				mu.Lock()
				done := len(results) >= maxCount
				mu.Unlock()
				if done {
					queue.Done()
					continue
				}

				peers, err := c.getPeers(ctx, job.node)
				mu.Lock()
				if err != nil {
					status[job.node] = PeerFailed
					mu.Unlock()
					queue.Done()
					continue
				}
				status[job.node] = PeerOK
				if job.node != gateway {
					results = append(results, PeerResult{Node: job.node, Peers: peers})
				}
				mu.Unlock()

				if job.depth < maxDepth {
					var fresh []peerJob
					mu.Lock()
					for _, p := range peers {
						if _, seen := status[p]; !seen {
							status[p] = PeerPending
							fresh = append(fresh, peerJob{node: p, depth: job.depth + 1})
						}
					}
					mu.Unlock()
					if len(fresh) > 0 {
						queue.Add(fresh...)
					}
				}

				queue.Done()
			}
		}()
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(results) > maxCount {
		results = results[:maxCount]
	}
	return results, nil
}

func (c *Client) getPeers(ctx context.Context, node string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+node+"/peers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s/peers: unexpected status %d", node, resp.StatusCode)
	}

	var peers []string
	if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
		return nil, fmt.Errorf("failed to decode peers from %s: %w", node, err)
	}
	return peers, nil
}

func gatewayNode(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}
