// Package leaderelect picks the current epoch's Leader out of the
// registry contract's nominated validator set, using CometBFT's own
// weighted round-robin proposer-selection algorithm — the same algorithm
// a CometBFT chain uses to rotate block proposers among its validator
// set. Grounded on the validator-set handling in
// pkg/consensus/bft_integration.go, scoped down to just proposer
// selection: this validator runs no CometBFT chain of its own, so only
// the deterministic election primitive is reused.
package leaderelect

import (
	"crypto/sha256"
	"fmt"
	"sort"

	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cmttypes "github.com/cometbft/cometbft/types"
)

// ElectLeader deterministically selects one address from nominated as the
// Leader for epoch. Every nominated validator is given equal voting
// power, since the registry contract carries no stake-weighting concept;
// the result is still deterministic and agreed upon by every validator
// evaluating the same epoch and nominated set, which is all the Leader
// role requires.
func ElectLeader(epoch uint64, nominated []string) (string, error) {
	if len(nominated) == 0 {
		return "", fmt.Errorf("leaderelect: no nominated validators")
	}

	// Sort so every validator builds the identical CometBFT validator set
	// regardless of the order the contract gateway happened to return it in.
	sorted := append([]string(nil), nominated...)
	sort.Strings(sorted)

	validators := make([]*cmttypes.Validator, len(sorted))
	for i, addr := range sorted {
		validators[i] = cmttypes.NewValidator(addressPubKey(addr), 1)
	}

	set := cmttypes.NewValidatorSet(validators)
	set.IncrementProposerPriority(int(epoch%uint64(len(sorted))) + 1)

	proposer := set.GetProposer()
	for i, v := range validators {
		if v.PubKey.Equals(proposer.PubKey) {
			return sorted[i], nil
		}
	}
	return "", fmt.Errorf("leaderelect: failed to resolve proposer for epoch %d", epoch)
}

// addressPubKey derives a stand-in ed25519 public key from a validator's
// address, giving CometBFT's validator set a stable identity to order and
// elect over. It is never used for signing or verification.
func addressPubKey(address string) cmted25519.PubKey {
	digest := sha256.Sum256([]byte(address))
	return cmted25519.PubKey(digest[:])
}
