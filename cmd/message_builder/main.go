// Command message_builder signs a would-be receipt with the bundler-domain
// deep hash, as a bundler would, and prints it in the shape of a
// /cosigner/sign request body, for testing a cosigner's verification path
// without running a bundler.
package main

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/bundlr-network/validator/pkg/deephash"
	"github.com/bundlr-network/validator/pkg/keymanager"
)

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}

func main() {
	var (
		walletPath = flag.String("wallet", "", "path to the signing wallet's PEM private key (required)")
		tx         = flag.String("tx", "", "bundler transaction id (required)")
		size       = flag.Uint64("size", 0, "item size in bytes")
		fee        = flag.String("fee", "0", "fee amount, as a decimal string")
		currency   = flag.String("currency", "", "fee currency")
		block      = flag.Uint64("block", 0, "promised block height")
		validator  = flag.String("validator", "", "validator address to embed in the signed receipt")
	)
	flag.Parse()

	if *walletPath == "" || *tx == "" {
		fmt.Fprintln(os.Stderr, "Error: -wallet and -tx are required")
		os.Exit(1)
	}

	key, err := keymanager.Load(*walletPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sizeStr := strconv.FormatUint(*size, 10)
	blockStr := strconv.FormatUint(*block, 10)
	validatorAddr := *validator
	if validatorAddr == "" {
		validatorAddr = keymanager.AddressFromPublicKey(&key.PublicKey)
	}

	chunks := deephash.ReceiptChunks("Bundlr", *tx, sizeStr, *fee, *currency, blockStr, validatorAddr)
	h := deephash.Hash(chunks)
	digest := sha256.Sum256(h[:])

	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to sign receipt: %v\n", err)
		os.Exit(1)
	}

	json.NewEncoder(os.Stdout).Encode(map[string]string{
		"id":        *tx,
		"size":      sizeStr,
		"fee":       *fee,
		"currency":  *currency,
		"block":     blockStr,
		"validator": validatorAddr,
		"signature": base64.RawURLEncoding.EncodeToString(sig),
	})
}
