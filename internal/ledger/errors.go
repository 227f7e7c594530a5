package ledger

import "errors"

// Ledger error sentinels.
var (
	// ErrEmptyTarget is returned when a target identifier is blank after normalization.
	ErrEmptyTarget = errors.New("empty target id")

	// ErrMalformed is returned by Open when the persisted store cannot be decoded.
	ErrMalformed = errors.New("malformed ledger store")

	// ErrPersist wraps any failure to write a record through to the store.
	ErrPersist = errors.New("failed to persist ledger record")
)
