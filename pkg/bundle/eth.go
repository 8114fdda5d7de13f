package bundle

import (
	"encoding/base64"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// secp256k1SignatureType is the ANS-104 signature_type value for the
// Secp256k1/Ethereum signer scheme.
const secp256k1SignatureType = 3

// RecoverEthereumAddress recovers the Ethereum-style address from an
// item's raw Secp256k1 public key bytes. It is a diagnostic helper — the
// validator never needs an Ethereum address to cosign a receipt, but
// surfacing it lets operators cross-reference Ethereum-signed items
// against an external explorer.
func RecoverEthereumAddress(details *TransactionDetails) (string, error) {
	if details.SignatureType != secp256k1SignatureType {
		return "", fmt.Errorf("bundle: item signature type %d is not Secp256k1", details.SignatureType)
	}

	pubBytes, err := base64.RawURLEncoding.DecodeString(details.Owner)
	if err != nil {
		return "", fmt.Errorf("bundle: failed to decode public key: %w", err)
	}

	pub, err := crypto.UnmarshalPubkey(pubBytes)
	if err != nil {
		return "", fmt.Errorf("bundle: failed to parse Secp256k1 public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
