package arweave

import (
	"context"
	"sync"
)

// SeedStatus summarizes how far a transaction has propagated across the
// gateway's peer graph.
type SeedStatus struct {
	PeersChecked   int
	PeersConfirmed int
}

// Seeded reports whether at least one checked peer has recorded a
// confirmation for txID.
func (s SeedStatus) Seeded() bool { return s.PeersConfirmed > 0 }

// CheckSeeded crawls the peer graph (see FindNodes) and asks each
// discovered peer for its own confirmation count on txID. Grounded on the
// gateway's own seeding check, which polls a handful of peers directly
// rather than trusting a single node's view of the chain.
func (c *Client) CheckSeeded(ctx context.Context, txID string, concurrency, maxDepth, maxCount int) (SeedStatus, error) {
	peers, err := c.FindNodes(ctx, concurrency, maxDepth, maxCount)
	if err != nil {
		return SeedStatus{}, err
	}

	var (
		mu     sync.Mutex
		status SeedStatus
		wg     sync.WaitGroup
	)
	for _, peer := range peers {
		wg.Add(1)
		go func(node string) {
			defer wg.Done()
			result, err := c.GetTransactionStatus(ctx, node, txID)
			mu.Lock()
			defer mu.Unlock()
			status.PeersChecked++
			if err == nil && result.Confirmations > 0 {
				status.PeersConfirmed++
			}
		}(peer.Node)
	}
	wg.Wait()

	return status, nil
}
