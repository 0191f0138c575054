package sqlpersistence

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dogmatiq/procyon/internal/x/sqlx"
	"github.com/dogmatiq/procyon/persistence"
)

// backend is an implementation of persistence.Backend for SQL databases.
type backend struct {
	db        *sql.DB
	driver    Driver
	processID string

	m       sync.RWMutex
	release func() error
}

func (b *backend) Insert(
	ctx context.Context,
	s persistence.Session,
	r persistence.Record,
) (ok bool, err error) {
	err = b.withDB(s, func(db sqlx.DB) error {
		ok, err = b.driver.InsertProcessInstance(ctx, db, b.processID, r)
		return err
	})

	return ok, err
}

func (b *backend) Update(
	ctx context.Context,
	s persistence.Session,
	r persistence.Record,
) (ok bool, err error) {
	err = b.withDB(s, func(db sqlx.DB) error {
		ok, err = b.driver.UpdateProcessInstance(ctx, db, b.processID, r)
		return err
	})

	return ok, err
}

func (b *backend) Save(
	ctx context.Context,
	s persistence.Session,
	r persistence.Record,
) error {
	return b.withDB(s, func(db sqlx.DB) error {
		return b.driver.SaveProcessInstance(ctx, db, b.processID, r)
	})
}

func (b *backend) Delete(
	ctx context.Context,
	s persistence.Session,
	id string,
) (ok bool, err error) {
	err = b.withDB(s, func(db sqlx.DB) error {
		ok, err = b.driver.DeleteProcessInstance(ctx, db, b.processID, id)
		return err
	})

	return ok, err
}

func (b *backend) Load(
	ctx context.Context,
	s persistence.Session,
	id string,
) (r persistence.Record, ok bool, err error) {
	err = b.withDB(s, func(db sqlx.DB) error {
		r, ok, err = b.driver.SelectProcessInstance(ctx, db, b.processID, id)
		return err
	})

	return r, ok, err
}

func (b *backend) Range(
	ctx context.Context,
	s persistence.Session,
	fn func(persistence.Record) (bool, error),
) error {
	var records []persistence.Record

	if err := b.withDB(s, func(db sqlx.DB) error {
		rows, err := b.driver.SelectProcessInstances(ctx, db, b.processID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r persistence.Record
			if err := b.driver.ScanProcessInstance(rows, &r); err != nil {
				return err
			}

			records = append(records, r)
		}

		return rows.Err()
	}); err != nil {
		return err
	}

	// The rows are buffered so that fn may query the database, which would
	// otherwise deadlock when the session's transaction holds the only
	// connection.
	for _, r := range records {
		ok, err := fn(r)
		if !ok || err != nil {
			return err
		}
	}

	return nil
}

// Close closes the backend.
//
// The underlying database is closed once all backends opened by the same
// provider are closed.
func (b *backend) Close() error {
	b.m.Lock()
	defer b.m.Unlock()

	if b.release == nil {
		return persistence.ErrStoreClosed
	}

	r := b.release
	b.db = nil
	b.release = nil

	return r()
}

// withDB calls fn with the database handle to use within the session s.
func (b *backend) withDB(s persistence.Session, fn func(sqlx.DB) error) error {
	b.m.RLock()
	defer b.m.RUnlock()

	if b.release == nil {
		return persistence.ErrStoreClosed
	}

	db, err := dbFor(b.db, s)
	if err != nil {
		return err
	}

	return fn(db)
}
