package store

import "context"

// StoreState represents the initialization state of the datastore.
type StoreState int

const (
	StateMissing         StoreState = iota // File doesn't exist
	StateUninitialized                     // File exists but no ledger
	StateVersionMismatch                   // Ledger exists but not at the expected version
	StateReady                             // Initialized and at the expected version
)

func (s StoreState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateUninitialized:
		return "uninitialized"
	case StateVersionMismatch:
		return "version-mismatch"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Store defines the docvault datastore contract.
type Store interface {
	// Open opens the datastore connection, creating the file if needed
	Open() error

	// Close closes the datastore connection
	Close() error

	// CheckState returns the current state of the datastore
	CheckState(ctx context.Context) (StoreState, error)

	// SchemaVersion returns the highest applied migration version, 0 if none
	SchemaVersion(ctx context.Context) (int64, error)

	// CountDocuments returns the number of stored documents
	CountDocuments(ctx context.Context) (int64, error)

	// FirstDocument returns the payload of the lowest-id document
	FirstDocument(ctx context.Context) ([]byte, error)
}
