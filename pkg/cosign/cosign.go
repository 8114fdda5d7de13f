// Package cosign implements the validator's core duty: verifying a
// bundler's receipt promise and countersigning it. A Service wraps the
// KeyManager, the in-memory ValidatorState, and the transaction store.
package cosign

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/bundlr-network/validator/pkg/database"
	"github.com/bundlr-network/validator/pkg/deephash"
	"github.com/bundlr-network/validator/pkg/keymanager"
	"github.com/bundlr-network/validator/pkg/metrics"
	"github.com/bundlr-network/validator/pkg/validatorstate"
)

// blockTolerance is how many blocks a promised block height may differ
// from the validator's current synced block before the request is rejected.
const blockTolerance = 5

// Errors returned by Cosign, distinguished so callers (the HTTP route) can
// map them to the right status code.
var (
	// ErrNotCosigner is returned when the validator does not currently hold
	// the Cosigner role.
	ErrNotCosigner = errors.New("cosign: validator is not currently a cosigner")
	// ErrAlreadyCosigned is returned when this transaction id was already
	// recorded; callers should treat this as an idempotent success.
	ErrAlreadyCosigned = errors.New("cosign: transaction already cosigned")
	// ErrWrongValidator is returned when the request names a different
	// validator address than this node's own.
	ErrWrongValidator = errors.New("cosign: request names a different validator")
	// ErrBlockOutOfRange is returned when the promised block is too far
	// from the validator's current synced block.
	ErrBlockOutOfRange = errors.New("cosign: promised block is out of range")
	// ErrInvalidSignature is returned when the bundler's signature over the
	// receipt does not verify.
	ErrInvalidSignature = errors.New("cosign: invalid bundler signature")
)

// Request is an incoming co-sign request, one row of the transaction the
// bundler is asking this validator to vouch for.
type Request struct {
	ID        string
	Size      string
	Fee       string
	Currency  string
	Block     string
	BlockNum  int64
	Validator string
	Signature string
}

// Service verifies and countersigns receipt promises.
type Service struct {
	keys   keymanager.KeyManager
	state  *validatorstate.State
	txs    *database.TransactionRepository
	logger *log.Logger
}

// New returns a Service bound to keys, state, and the transaction store.
func New(keys keymanager.KeyManager, state *validatorstate.State, txs *database.TransactionRepository) *Service {
	return &Service{
		keys:   keys,
		state:  state,
		txs:    txs,
		logger: log.New(log.Writer(), "[Cosign] ", log.LstdFlags),
	}
}

// Cosign verifies req's bundler signature and, if valid, signs and persists
// the validator's own counter-signature. The returned string is the
// base64url-nopad validator signature to send back to the bundler.
func (s *Service) Cosign(ctx context.Context, req Request) (string, error) {
	sig, err := s.cosign(ctx, req)
	metrics.CosignRequests.WithLabelValues(outcomeLabel(err)).Inc()
	return sig, err
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotCosigner):
		return "not_cosigner"
	case errors.Is(err, ErrAlreadyCosigned):
		return "already_cosigned"
	case errors.Is(err, ErrWrongValidator):
		return "wrong_validator"
	case errors.Is(err, ErrBlockOutOfRange):
		return "block_out_of_range"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "error"
	}
}

func (s *Service) cosign(ctx context.Context, req Request) (string, error) {
	if s.state.Role() != validatorstate.RoleCosigner {
		return "", ErrNotCosigner
	}

	if _, err := s.txs.Get(ctx, req.ID); err == nil {
		return "", ErrAlreadyCosigned
	} else if !errors.Is(err, database.ErrTransactionNotFound) {
		return "", fmt.Errorf("failed to check existing transaction %s: %w", req.ID, err)
	}

	if req.Validator != s.keys.ValidatorAddress() {
		return "", ErrWrongValidator
	}

	currentBlock := int64(s.state.Block())
	if diff := currentBlock - req.BlockNum; diff > blockTolerance || diff < -blockTolerance {
		return "", ErrBlockOutOfRange
	}

	bundlerChunks := deephash.ReceiptChunks(deephash.DomainBundlr, req.ID, req.Size, req.Fee, req.Currency, req.Block, req.Validator)
	h1 := deephash.Hash(bundlerChunks)

	decodedSig, err := base64.RawURLEncoding.DecodeString(req.Signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode bundler signature: %w", err)
	}

	if !s.keys.VerifyBundlerSignature(h1[:], decodedSig) {
		return "", ErrInvalidSignature
	}

	bundlerAddress := s.keys.BundlerAddress()
	validatorChunks := deephash.ValidatorReceiptChunks(req.ID, req.Size, req.Fee, req.Currency, req.Block, req.Validator, bundlerAddress)
	h2 := deephash.Hash(validatorChunks)

	sig, err := s.keys.ValidatorSign(h2[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt %s: %w", req.ID, err)
	}
	encodedSig := base64.RawURLEncoding.EncodeToString(sig)

	_, err = s.txs.Create(ctx, database.NewTransaction{
		ID:            req.ID,
		Epoch:         int64(s.state.Epoch()),
		BlockPromised: req.BlockNum,
		Signature:     encodedSig,
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist cosigned transaction %s: %w", req.ID, err)
	}

	s.logger.Printf("cosigned transaction %s at block %d", req.ID, req.BlockNum)
	return encodedSig, nil
}
