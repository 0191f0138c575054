package boltpersistence

import (
	"go.etcd.io/bbolt"
)

// BackendName is the name of the BoltDB backend.
const BackendName = "boltdb"

// Session is a persistence.Session that wraps a BoltDB read/write
// transaction.
type Session struct {
	Tx *bbolt.Tx
}

// Backend returns BackendName.
func (s *Session) Backend() string {
	return BackendName
}

// Commit commits the session's transaction.
func (s *Session) Commit() error {
	return s.Tx.Commit()
}

// Rollback aborts the session's transaction.
func (s *Session) Rollback() error {
	return s.Tx.Rollback()
}
