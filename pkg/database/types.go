package database

import "time"

// Transaction is a receipt record the validator has promised, cosigned, or
// is still tracking towards its promised block.
type Transaction struct {
	ID           string
	BundleID     *string
	Epoch        int64
	BlockPromised int64
	BlockActual  *int64
	Signature    string
	Validated    bool
	SentToLeader bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTransaction carries the fields needed to insert a Transaction.
type NewTransaction struct {
	ID            string
	BundleID      *string
	Epoch         int64
	BlockPromised int64
	Signature     string
}

// Bundle groups the transactions extracted from a single ANS-104 bundle
// belonging to the monitored bundler.
type Bundle struct {
	ID           string
	OwnerAddress string
	BlockHeight  int64
	ItemCount    int64
	CreatedAt    time.Time
}

// NewBundle carries the fields needed to insert a Bundle.
type NewBundle struct {
	ID           string
	OwnerAddress string
	BlockHeight  int64
	ItemCount    int64
}
