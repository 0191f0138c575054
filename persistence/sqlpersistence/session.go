package sqlpersistence

import (
	"database/sql"

	"github.com/dogmatiq/procyon/internal/x/sqlx"
	"github.com/dogmatiq/procyon/persistence"
)

// BackendName is the name of the SQL backend.
const BackendName = "sql"

// Session is a persistence.Session that wraps an SQL transaction.
type Session struct {
	Tx *sql.Tx
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

// dbFor returns the database handle to use for an operation performed within
// the session s, which may be nil.
func dbFor(db *sql.DB, s persistence.Session) (sqlx.DB, error) {
	if s == nil {
		return db, nil
	}

	sess, ok := s.(*Session)
	if !ok {
		return nil, persistence.SessionMismatchError{
			Backend: BackendName,
			Session: s,
		}
	}

	return sess.Tx, nil
}
