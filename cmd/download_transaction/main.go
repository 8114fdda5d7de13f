// Command download_transaction fetches a single transaction's metadata
// and data payload from an Arweave gateway into a local cache directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bundlr-network/validator/pkg/arweave"
)

func main() {
	var (
		gateway = flag.String("arweave-gateway", envOr("ARWEAVE_GATEWAY_URL", "https://arweave.net"), "Arweave gateway base URL")
		txCache = flag.String("tx-cache", envOr("TX_CACHE", "./tx-cache/"), "directory to write the transaction's metadata and data to")
		tx      = flag.String("tx", "", "transaction id (required)")
	)
	flag.Parse()

	if *tx == "" {
		fmt.Fprintln(os.Stderr, "Error: -tx is required")
		os.Exit(1)
	}

	client := arweave.NewClient(*gateway)
	ctx := context.Background()

	info, err := client.GetTransactionInfo(ctx, *tx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to fetch transaction info: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*txCache, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create tx cache dir: %v\n", err)
		os.Exit(1)
	}

	dataPath := filepath.Join(*txCache, *tx+".data")
	dataFile, err := os.Create(dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open data file: %v\n", err)
		os.Exit(1)
	}
	defer dataFile.Close()

	if err := client.DownloadTransactionData(ctx, *tx, dataFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to download transaction data: %v\n", err)
		os.Exit(1)
	}

	metadataPath := filepath.Join(*txCache, *tx+".json")
	metadataFile, err := os.Create(metadataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open metadata file: %v\n", err)
		os.Exit(1)
	}
	defer metadataFile.Close()
	if err := json.NewEncoder(metadataFile).Encode(info); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write metadata file: %v\n", err)
		os.Exit(1)
	}

	absData, _ := filepath.Abs(dataPath)
	absMeta, _ := filepath.Abs(metadataPath)
	fmt.Printf("wrote tx data to %s and metadata to %s\n", absData, absMeta)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
