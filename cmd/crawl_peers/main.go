// Command crawl_peers BFS-crawls a gateway's peer graph and prints the
// discovered nodes as JSON.
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
		gateway     = flag.String("gateway", "https://arweave.net", "Arweave gateway base URL to start the crawl from")
		concurrency = flag.Int("max-concurrency", 10, "number of peers to fetch concurrently")
		maxDepth    = flag.Int("max-depth", 2, "maximum BFS depth from the starting gateway")
		maxCount    = flag.Int("max-count", 50, "maximum number of peers to return")
	)
	flag.Parse()

	client := arweave.NewClient(*gateway)

	peers, err := client.FindNodes(context.Background(), *concurrency, *maxDepth, *maxCount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to find nodes: %v\n", err)
		os.Exit(1)
	}

	json.NewEncoder(os.Stdout).Encode(peers)
}
