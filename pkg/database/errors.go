// Package database sentinel errors for repository operations.
package database

import "errors"

var (
	// ErrNotFound is returned when a requested entity is not found in the database.
	ErrNotFound = errors.New("entity not found")

	// ErrTransactionNotFound is returned when a transaction record is not found.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrBundleNotFound is returned when a bundle record is not found.
	ErrBundleNotFound = errors.New("bundle not found")

	// ErrAlreadyValidated is returned when a transaction has already been
	// marked validated and a caller attempts to validate it again.
	ErrAlreadyValidated = errors.New("transaction already validated")
)
