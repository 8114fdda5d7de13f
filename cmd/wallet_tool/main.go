// Command wallet_tool creates validator wallets and prints the address a
// given wallet file derives to.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bundlr-network/validator/pkg/keymanager"
)

const walletKeyBits = 4096

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		runCreate(os.Args[2:])
	case "show-address":
		runShowAddress(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wallet_tool create | wallet_tool show-address [-wallet path]")
}

func runCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	out := fs.String("out", "", "file to write the new wallet to (default: stdout)")
	fs.Parse(args)

	key, err := keymanager.GenerateKey(walletKeyBits)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	pemBytes := keymanager.EncodePrivateKeyPEM(key)

	if *out == "" {
		os.Stdout.Write(pemBytes)
		return
	}
	if err := os.WriteFile(*out, pemBytes, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write wallet file: %v\n", err)
		os.Exit(1)
	}
}

func runShowAddress(args []string) {
	fs := flag.NewFlagSet("show-address", flag.ExitOnError)
	wallet := fs.String("wallet", "", "path to wallet PEM file; reads stdin when omitted")
	fs.Parse(args)

	var data []byte
	var err error
	if *wallet != "" {
		data, err = os.ReadFile(*wallet)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read wallet: %v\n", err)
		os.Exit(1)
	}

	key, err := keymanager.ParsePrivateKeyPEM(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	address := keymanager.AddressFromPublicKey(&key.PublicKey)
	json.NewEncoder(os.Stdout).Encode(map[string]string{"address": address})
}
