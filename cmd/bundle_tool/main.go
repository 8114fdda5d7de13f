// Command bundle_tool inspects a downloaded ANS-104 bundle file: listing
// the data items it contains, or extracting one item's metadata and
// payload to a local cache directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bundlr-network/validator/pkg/bundle"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list-transactions":
		runListTransactions(os.Args[2:])
	case "extract-transaction":
		runExtractTransaction(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bundle_tool list-transactions -bundle path [-range start..end]")
	fmt.Fprintln(os.Stderr, "       bundle_tool extract-transaction -bundle path -tx id [-tx-cache dir]")
}

func runListTransactions(args []string) {
	fs := flag.NewFlagSet("list-transactions", flag.ExitOnError)
	bundlePath := fs.String("bundle", "", "path to bundle file (required)")
	rng := fs.String("range", "", `index range to list, e.g. "2..5", "..5", "2.."`)
	fs.Parse(args)

	if *bundlePath == "" {
		fmt.Fprintln(os.Stderr, "Error: -bundle is required")
		os.Exit(1)
	}

	f, err := os.Open(*bundlePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open bundle: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	items, err := bundle.ListItems(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list bundle items: %v\n", err)
		os.Exit(1)
	}

	if *rng != "" {
		start, end, err := parseRange(*rng, len(items))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		items = items[start:end]
	}

	json.NewEncoder(os.Stdout).Encode(items)
}

// parseRange parses a "(start..end)" or "start..end" range, where either
// bound may be omitted to mean "from the start"/"to the end".
func parseRange(s string, length int) (start, end int, err error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	parts := strings.SplitN(s, "..", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid range %q: expected \"start..end\"", s)
	}

	start = 0
	if parts[0] != "" {
		start, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range start %q: %w", parts[0], err)
		}
	}
	end = length
	if parts[1] != "" {
		end, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range end %q: %w", parts[1], err)
		}
	}
	if start < 0 || end > length || start > end {
		return 0, 0, fmt.Errorf("range %q out of bounds for %d items", s, length)
	}
	return start, end, nil
}

func runExtractTransaction(args []string) {
	fs := flag.NewFlagSet("extract-transaction", flag.ExitOnError)
	bundlePath := fs.String("bundle", "", "path to bundle file (required)")
	txID := fs.String("tx", "", "transaction id to extract (required)")
	txCache := fs.String("tx-cache", "./tx-cache/", "directory to write extracted transaction files to")
	fs.Parse(args)

	if *bundlePath == "" || *txID == "" {
		fmt.Fprintln(os.Stderr, "Error: -bundle and -tx are required")
		os.Exit(1)
	}

	f, err := os.Open(*bundlePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open bundle: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	items, err := bundle.ListItems(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list bundle items: %v\n", err)
		os.Exit(1)
	}

	var item *bundle.ItemOffset
	for i := range items {
		if items[i].ID == *txID {
			item = &items[i]
			break
		}
	}
	if item == nil {
		fmt.Fprintf(os.Stderr, "Error: transaction %s is not contained in the bundle\n", *txID)
		os.Exit(1)
	}

	details, err := bundle.ExtractItemWithSize(f, *item)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to extract transaction: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*txCache, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create tx cache dir: %v\n", err)
		os.Exit(1)
	}

	metadataPath := filepath.Join(*txCache, details.ID+".json")
	metadataFile, err := os.Create(metadataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open metadata file: %v\n", err)
		os.Exit(1)
	}
	defer metadataFile.Close()
	if err := json.NewEncoder(metadataFile).Encode(details); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write metadata file: %v\n", err)
		os.Exit(1)
	}

	if details.DataSize > 0 {
		dataPath := filepath.Join(*txCache, details.ID+".data")
		dataFile, err := os.Create(dataPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open data file: %v\n", err)
			os.Exit(1)
		}
		defer dataFile.Close()
		if err := bundle.CopyItemData(f, dataFile, details.DataOffset, details.DataSize); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to copy transaction data: %v\n", err)
			os.Exit(1)
		}
	}
}
