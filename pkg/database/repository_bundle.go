package database

import (
	"context"
	"database/sql"
	"fmt"
)

// BundleRepository persists bundle headers decoded from ANS-104 data items.
type BundleRepository struct {
	client *Client
}

// NewBundleRepository returns a repository bound to client.
func NewBundleRepository(client *Client) *BundleRepository {
	return &BundleRepository{client: client}
}

// Create inserts a bundle row, returning the existing row if already present.
func (r *BundleRepository) Create(ctx context.Context, input NewBundle) (*Bundle, error) {
	row := r.client.QueryRowContext(ctx, `
		INSERT INTO bundle (id, owner_address, block_height, item_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
		RETURNING id, owner_address, block_height, item_count, created_at
	`, input.ID, input.OwnerAddress, input.BlockHeight, input.ItemCount)

	b, err := scanBundle(row)
	if err == sql.ErrNoRows {
		return r.Get(ctx, input.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle: %w", err)
	}
	return b, nil
}

// Get fetches a bundle by id.
func (r *BundleRepository) Get(ctx context.Context, id string) (*Bundle, error) {
	row := r.client.QueryRowContext(ctx, `
		SELECT id, owner_address, block_height, item_count, created_at FROM bundle WHERE id = $1
	`, id)
	b, err := scanBundle(row)
	if err == sql.ErrNoRows {
		return nil, ErrBundleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bundle %s: %w", id, err)
	}
	return b, nil
}

func scanBundle(row scannable) (*Bundle, error) {
	var b Bundle
	if err := row.Scan(&b.ID, &b.OwnerAddress, &b.BlockHeight, &b.ItemCount, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
