package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bundlr-network/validator/pkg/arweave"
	"github.com/bundlr-network/validator/pkg/bundle"
	"github.com/bundlr-network/validator/pkg/contractgateway"
	"github.com/bundlr-network/validator/pkg/database"
	"github.com/bundlr-network/validator/pkg/leaderelect"
	"github.com/bundlr-network/validator/pkg/metrics"
	"github.com/bundlr-network/validator/pkg/statusmirror"
	"github.com/bundlr-network/validator/pkg/validatorstate"
)

// pruneEpochWindow is how many epochs back a receipt may lag before it is
// eligible for deletion by the prune job.
const pruneEpochWindow = 40

// recentTransactionsBatchSize bounds how many of the bundler's most recent
// transactions the bundler-activity job inspects per tick.
const recentTransactionsBatchSize = 50

// ContractSyncJob fetches the registry contract's current state, advances
// epoch/role when the new epoch has activated, and votes on any slash
// proposal this validator has not yet voted on.
func ContractSyncJob(gateway *contractgateway.Gateway, state *validatorstate.State, validatorAddress string) JobFunc {
	logger := log.New(log.Writer(), "[ContractSync] ", log.LstdFlags)

	return func(ctx context.Context) error {
		contractState, err := gateway.GetCurrentState(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch contract state: %w", err)
		}

		if contractState.Epoch.Seq > int64(state.Epoch()) && contractState.Epoch.Height <= int64(state.Block()) {
			state.SetEpoch(uint64(contractState.Epoch.Seq))
			switch {
			case !contractState.IsNominated(validatorAddress):
				state.SetRole(validatorstate.RoleIdle)
			default:
				leader, err := leaderelect.ElectLeader(uint64(contractState.Epoch.Seq), contractState.NominatedValidators)
				if err != nil {
					logger.Printf("failed to elect epoch %d leader, defaulting to cosigner: %v", contractState.Epoch.Seq, err)
					state.SetRole(validatorstate.RoleCosigner)
				} else if leader == validatorAddress {
					state.SetRole(validatorstate.RoleLeader)
				} else {
					state.SetRole(validatorstate.RoleCosigner)
				}
			}
			metrics.Role.Set(float64(state.Role()))
			logger.Printf("advanced to epoch %d, role=%s", contractState.Epoch.Seq, state.Role())
		}

		for _, proposal := range contractState.SlashProposals {
			if proposal.Owner == validatorAddress || proposal.HasVoted(validatorAddress) {
				continue
			}
			if proposal.Status != contractgateway.VotingOpen {
				continue
			}

			// Validity checking beyond "this proposal names a target other
			// than us and is still open" is not yet implemented; vote For
			// until a concrete validity check is specified.
			vote := contractgateway.VoteFor
			if err := gateway.VoteForProposal(ctx, proposal, vote); err != nil {
				return fmt.Errorf("failed to vote on proposal %s: %w", proposal.ID, err)
			}
			logger.Printf("voted %s on proposal %s", vote, proposal.ID)
		}

		return nil
	}
}

// BundlerValidationJob cross-checks the bundler's own recent activity
// against this validator's local receipt store: for each of the
// bundler's recent transactions tagged as an ANS-104 bundle, it downloads
// and decodes the bundle, records it on first encounter, and marks every
// contained item this validator is still tracking as validated at the
// bundle's containing block height.
func BundlerValidationJob(client *arweave.Client, txs *database.TransactionRepository, bundles *database.BundleRepository, state *validatorstate.State, bundlerAddress string) JobFunc {
	logger := log.New(log.Writer(), "[BundlerValidation] ", log.LstdFlags)

	return func(ctx context.Context) error {
		recent, err := client.GetRecentTransactions(ctx, bundlerAddress, recentTransactionsBatchSize)
		if err != nil {
			return fmt.Errorf("failed to list bundler's recent transactions: %w", err)
		}

		validated := 0
		bundlesSeen := 0
		for _, tx := range recent {
			if !tx.Confirmed {
				// Not yet mined; the bundle's contents aren't final yet.
				continue
			}
			if !bundle.IsBundle(toBundleTags(tx.Tags)) {
				continue
			}

			if _, err := bundles.Get(ctx, tx.ID); err == nil {
				// Already processed on a prior tick.
				continue
			} else if !errors.Is(err, database.ErrBundleNotFound) {
				logger.Printf("failed to look up bundle %s: %v", tx.ID, err)
				continue
			}

			n, err := validateBundleContents(ctx, client, txs, tx.ID, tx.BlockHeight)
			if err != nil {
				logger.Printf("failed to process bundle %s: %v", tx.ID, err)
				continue
			}
			validated += n
			bundlesSeen++

			if _, err := bundles.Create(ctx, database.NewBundle{
				ID:           tx.ID,
				OwnerAddress: bundlerAddress,
				BlockHeight:  tx.BlockHeight,
				ItemCount:    int64(n),
			}); err != nil {
				logger.Printf("failed to record bundle %s: %v", tx.ID, err)
			}
		}

		logger.Printf("inspected %d recent transactions, processed %d bundles, validated %d items", len(recent), bundlesSeen, validated)
		return nil
	}
}

// validateBundleContents downloads and decodes the bundle at txID and
// marks every item this validator is tracking, but has not yet validated,
// as validated at blockHeight. It returns the number of items decoded so
// the caller can populate the new Bundle row's item count.
func validateBundleContents(ctx context.Context, client *arweave.Client, txs *database.TransactionRepository, txID string, blockHeight int64) (int, error) {
	var sink memSink
	if err := client.DownloadTransactionData(ctx, txID, &sink); err != nil {
		return 0, fmt.Errorf("failed to download bundle data: %w", err)
	}

	items, err := bundle.ListItems(bytes.NewReader(sink.buf))
	if err != nil {
		return 0, fmt.Errorf("failed to decode bundle header: %w", err)
	}

	for _, item := range items {
		existing, err := txs.Get(ctx, item.ID)
		if errors.Is(err, database.ErrTransactionNotFound) {
			continue
		}
		if err != nil {
			return len(items), fmt.Errorf("failed to look up item %s: %w", item.ID, err)
		}
		if existing.Validated {
			continue
		}
		if err := txs.MarkValidated(ctx, item.ID, blockHeight); err != nil && !errors.Is(err, database.ErrAlreadyValidated) {
			return len(items), fmt.Errorf("failed to mark item %s validated: %w", item.ID, err)
		}
	}

	return len(items), nil
}

func toBundleTags(tags []arweave.TransactionTag) []bundle.Tag {
	out := make([]bundle.Tag, len(tags))
	for i, t := range tags {
		out[i] = bundle.Tag{Name: t.Name, Value: t.Value}
	}
	return out
}

// memSink is an in-memory io.WriterAt, growing as needed, used to buffer a
// downloaded bundle's bytes before decoding.
type memSink struct {
	buf []byte
}

func (s *memSink) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(s.buf)) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[off:end], p)
	return len(p), nil
}

// PruneJob deletes receipts recorded under an epoch older than the current
// epoch minus pruneEpochWindow.
func PruneJob(txs *database.TransactionRepository, state *validatorstate.State) JobFunc {
	logger := log.New(log.Writer(), "[Prune] ", log.LstdFlags)

	return func(ctx context.Context) error {
		epoch := int64(state.Epoch())
		cutoff := epoch - pruneEpochWindow
		if cutoff < 0 {
			cutoff = 0
		}

		n, err := txs.DeleteOlderThanEpoch(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune transactions: %w", err)
		}

		logger.Printf("deleted %d transactions older than epoch %d", n, cutoff)
		return nil
	}
}

// StatusMirrorJob pushes the validator's current epoch/block/role to the
// optional Firestore status mirror, so operator dashboards can observe a
// fleet of validators without polling each one's HTTP API. A no-op when
// the mirror is disabled.
func StatusMirrorJob(mirror *statusmirror.Client, state *validatorstate.State, validatorID, address string) JobFunc {
	logger := log.New(log.Writer(), "[StatusMirror] ", log.LstdFlags)

	return func(ctx context.Context) error {
		status := statusmirror.Status{
			Epoch:     int64(state.Epoch()),
			Block:     int64(state.Block()),
			Role:      state.Role().String(),
			Address:   address,
			UpdatedAt: time.Now(),
		}
		if err := mirror.Push(ctx, validatorID, status); err != nil {
			return fmt.Errorf("failed to push status mirror: %w", err)
		}
		logger.Printf("pushed status for %s: epoch=%d block=%d role=%s", validatorID, status.Epoch, status.Block, status.Role)
		return nil
	}
}
