package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLedgerOverdraw is returned when an IncreaseClaimed would push
	// total_claimed past total_earned. The entry is left untouched.
	ErrLedgerOverdraw = errors.New("claimed amount exceeds available balance")
)
