package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TransactionRepository persists and queries receipt transactions.
type TransactionRepository struct {
	client *Client
}

// NewTransactionRepository returns a repository bound to client.
func NewTransactionRepository(client *Client) *TransactionRepository {
	return &TransactionRepository{client: client}
}

// Create inserts a new transaction row and returns the stored record.
func (r *TransactionRepository) Create(ctx context.Context, input NewTransaction) (*Transaction, error) {
	var bundleID sql.NullString
	if input.BundleID != nil {
		bundleID = sql.NullString{String: *input.BundleID, Valid: true}
	}

	query := `
		INSERT INTO transactions (id, bundle_id, epoch, block_promised, signature)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
		RETURNING id, bundle_id, epoch, block_promised, block_actual, signature, validated, sent_to_leader, created_at, updated_at
	`

	row := r.client.QueryRowContext(ctx, query, input.ID, bundleID, input.Epoch, input.BlockPromised, input.Signature)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		// already exists; fetch the current row instead
		return r.Get(ctx, input.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

// Get fetches a transaction by id.
func (r *TransactionRepository) Get(ctx context.Context, id string) (*Transaction, error) {
	query := `
		SELECT id, bundle_id, epoch, block_promised, block_actual, signature, validated, sent_to_leader, created_at, updated_at
		FROM transactions WHERE id = $1
	`
	row := r.client.QueryRowContext(ctx, query, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return tx, nil
}

// MarkValidated sets block_actual and validated=true for a promised transaction.
func (r *TransactionRepository) MarkValidated(ctx context.Context, id string, blockActual int64) error {
	res, err := r.client.ExecContext(ctx, `
		UPDATE transactions
		SET block_actual = $2, validated = true, updated_at = now()
		WHERE id = $1 AND validated = false
	`, id, blockActual)
	if err != nil {
		return fmt.Errorf("failed to mark transaction %s validated: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return ErrAlreadyValidated
	}
	return nil
}

// MarkSentToLeader flags a transaction as having been forwarded to the
// current Leader validator.
func (r *TransactionRepository) MarkSentToLeader(ctx context.Context, id string) error {
	_, err := r.client.ExecContext(ctx, `
		UPDATE transactions SET sent_to_leader = true, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark sent_to_leader for %s: %w", id, err)
	}
	return nil
}

// Unvalidated returns transactions whose promised block has passed without
// a recorded block_actual, for the epoch/contract cron to re-check.
func (r *TransactionRepository) Unvalidated(ctx context.Context, maxBlockPromised int64, limit int) ([]*Transaction, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT id, bundle_id, epoch, block_promised, block_actual, signature, validated, sent_to_leader, created_at, updated_at
		FROM transactions
		WHERE validated = false AND block_promised <= $1
		ORDER BY created_at ASC
		LIMIT $2
	`, maxBlockPromised, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unvalidated transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		tx, err := scanTransactionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// DeleteOlderThanBlock removes validated transactions promised before
// cutoffBlock. Returns the row count deleted. The periodic pruning job uses
// DeleteOlderThanEpoch instead.
func (r *TransactionRepository) DeleteOlderThanBlock(ctx context.Context, cutoffBlock int64) (int64, error) {
	res, err := r.client.ExecContext(ctx, `
		DELETE FROM transactions WHERE validated = true AND block_promised < $1
	`, cutoffBlock)
	if err != nil {
		return 0, fmt.Errorf("failed to prune transactions: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOlderThanEpoch removes transactions recorded under an epoch older
// than cutoffEpoch, used by the periodic pruning job to bound table growth
// by epoch age rather than block height.
func (r *TransactionRepository) DeleteOlderThanEpoch(ctx context.Context, cutoffEpoch int64) (int64, error) {
	res, err := r.client.ExecContext(ctx, `
		DELETE FROM transactions WHERE epoch < $1
	`, cutoffEpoch)
	if err != nil {
		return 0, fmt.Errorf("failed to prune transactions older than epoch %d: %w", cutoffEpoch, err)
	}
	return res.RowsAffected()
}

// Count returns the total number of stored transactions, used by the status route.
func (r *TransactionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.client.QueryRowContext(ctx, `SELECT count(id) FROM transactions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scannable) (*Transaction, error) {
	return scanTransactionRows(row)
}

func scanTransactionRows(row scannable) (*Transaction, error) {
	var tx Transaction
	var bundleID sql.NullString
	var blockActual sql.NullInt64

	if err := row.Scan(
		&tx.ID, &bundleID, &tx.Epoch, &tx.BlockPromised, &blockActual,
		&tx.Signature, &tx.Validated, &tx.SentToLeader, &tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if bundleID.Valid {
		tx.BundleID = &bundleID.String
	}
	if blockActual.Valid {
		tx.BlockActual = &blockActual.Int64
	}
	return &tx, nil
}
