// Command check_seeded probes a transaction's propagation across the
// gateway's peer graph: a handful of independently-queried peers are
// asked for their own confirmation count, rather than trusting a single
// node's view.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/bundlr-network/validator/pkg/arweave"
)

func main() {
	var (
		gateway     = flag.String("arweave-gateway", "https://arweave.net", "Arweave gateway base URL")
		tx          = flag.String("tx", "", "transaction id to check (required)")
		concurrency = flag.Int("max-concurrency", 10, "number of peers to fetch concurrently")
		maxDepth    = flag.Int("max-depth", 2, "maximum BFS depth from the gateway when discovering peers")
		maxCount    = flag.Int("max-count", 50, "maximum number of peers to probe")
	)
	flag.Parse()

	if *tx == "" {
		fmt.Fprintln(os.Stderr, "Error: -tx is required")
		os.Exit(1)
	}

	client := arweave.NewClient(*gateway)

	status, err := client.CheckSeeded(context.Background(), *tx, *concurrency, *maxDepth, *maxCount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to check seeding status: %v\n", err)
		os.Exit(1)
	}

	json.NewEncoder(os.Stdout).Encode(map[string]any{
		"seeded":          status.Seeded(),
		"peers_checked":   status.PeersChecked,
		"peers_confirmed": status.PeersConfirmed,
	})
}
