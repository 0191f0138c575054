package persistence

import (
	"context"
)

// Provider is an interface for opening the backends that store process
// instances.
type Provider interface {
	// Open returns the backend for the process definition with the given ID.
	//
	// The caller is responsible for closing the backend.
	Open(ctx context.Context, processID string) (Backend, error)
}

// Backend stores the records of the instances of a single process definition.
//
// Every method accepts an optional session. If s is nil the operation is
// performed independently of any other operation. Implementations must be safe
// for concurrent use.
type Backend interface {
	// Insert adds a new record.
	//
	// It returns false if a record with the same ID already exists.
	Insert(ctx context.Context, s Session, r Record) (bool, error)

	// Update replaces an existing record.
	//
	// r.Version must be the version of the record as currently persisted. The
	// stored version becomes r.Version + 1. It returns false if the record does
	// not exist or has a different version.
	Update(ctx context.Context, s Session, r Record) (bool, error)

	// Save inserts or replaces a record unconditionally, persisting r.Version
	// as given.
	Save(ctx context.Context, s Session, r Record) error

	// Delete removes the record with the given ID.
	//
	// It returns false if the record does not exist.
	Delete(ctx context.Context, s Session, id string) (bool, error)

	// Load returns the record with the given ID.
	Load(ctx context.Context, s Session, id string) (Record, bool, error)

	// Range calls fn for each record, in no particular order, until fn returns
	// false or an error.
	Range(ctx context.Context, s Session, fn func(Record) (bool, error)) error

	// Close closes the backend.
	//
	// Any subsequent operation returns ErrStoreClosed.
	Close() error
}
