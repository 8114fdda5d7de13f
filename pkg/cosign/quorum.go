package cosign

import (
	"encoding/base64"
	"fmt"

	"github.com/bundlr-network/validator/pkg/deephash"
	"github.com/bundlr-network/validator/pkg/keymanager"
)

// RequiredQuorum is the minimum number of independently-verified validator
// signatures a witnessed receipt must carry before the Leader role accepts
// it for anchoring.
const RequiredQuorum = 3

// ValidatorSignature is one cosigner's countersignature over a receipt, as
// collected by the Leader from each Cosigner's /cosigner/sign response.
type ValidatorSignature struct {
	Address      string
	PublicKeyPEM string
	Signature    string
}

// LeaderRequest is a witnessed receipt forwarded to the Leader role,
// carrying one signature per cosigning validator.
type LeaderRequest struct {
	ID             string
	Size           string
	Fee            string
	Currency       string
	Block          string
	BundlerAddress string
	Signatures     []ValidatorSignature
}

// VerifyQuorum independently verifies each signature in req against its own
// declared public key and returns how many verified. A malformed key or
// signature simply does not count toward the quorum; it is not a hard
// error, since one bad cosigner should not block the others.
func (s *Service) VerifyQuorum(req LeaderRequest) (int, error) {
	if len(req.Signatures) == 0 {
		return 0, fmt.Errorf("no signatures supplied")
	}

	verified := 0
	for _, sig := range req.Signatures {
		pub, err := keymanager.ParsePublicKeyPEM([]byte(sig.PublicKeyPEM))
		if err != nil {
			s.logger.Printf("quorum: skipping signature from %s, bad public key: %v", sig.Address, err)
			continue
		}
		if keymanager.AddressFromPublicKey(pub) != sig.Address {
			s.logger.Printf("quorum: skipping signature, declared address %s does not match its public key", sig.Address)
			continue
		}

		chunks := deephash.ValidatorReceiptChunks(req.ID, req.Size, req.Fee, req.Currency, req.Block, sig.Address, req.BundlerAddress)
		h := deephash.Hash(chunks)

		decoded, err := base64.RawURLEncoding.DecodeString(sig.Signature)
		if err != nil {
			s.logger.Printf("quorum: skipping signature from %s, bad encoding: %v", sig.Address, err)
			continue
		}

		if s.keys.VerifyValidatorSignature(pub, h[:], decoded) {
			verified++
		}
	}

	return verified, nil
}
