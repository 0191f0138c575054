package sqlpersistence

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dogmatiq/procyon/correlation"
	"github.com/dogmatiq/procyon/internal/x/sqlx"
	"github.com/dogmatiq/procyon/persistence"
)

// CorrelationRepository is an implementation of correlation.Repository that
// stores correlations in the correlation_instances table.
type CorrelationRepository struct {
	// DB is the SQL database to use.
	DB *sql.DB

	// Driver is the SQL driver to use with this database. If it is nil, it is
	// chosen automatically from one of the built-in drivers.
	Driver Driver

	// Transactions determines the session used by each operation. If it is nil
	// no sessions are used.
	Transactions persistence.TransactionManager

	m      sync.Mutex
	driver Driver
}

// Insert stores a new correlation instance.
func (r *CorrelationRepository) Insert(ctx context.Context, inst correlation.Instance) (ok bool, err error) {
	err = r.withDB(ctx, func(d Driver, db sqlx.DB) error {
		ok, err = d.InsertCorrelation(ctx, db, inst)
		return err
	})

	return ok, err
}

// Delete removes the instance with the given encoded ID.
func (r *CorrelationRepository) Delete(ctx context.Context, encodedID string) (ok bool, err error) {
	err = r.withDB(ctx, func(d Driver, db sqlx.DB) error {
		ok, err = d.DeleteCorrelation(ctx, db, encodedID)
		return err
	})

	return ok, err
}

// FindByEncodedID returns the instance with the given encoded ID.
func (r *CorrelationRepository) FindByEncodedID(
	ctx context.Context,
	encodedID string,
) (inst correlation.Instance, ok bool, err error) {
	err = r.withDB(ctx, func(d Driver, db sqlx.DB) error {
		inst, ok, err = d.SelectCorrelationByEncodedID(ctx, db, encodedID)
		return err
	})

	return inst, ok, err
}

// FindByCorrelatedID returns the instance associated with the given process
// instance ID.
func (r *CorrelationRepository) FindByCorrelatedID(
	ctx context.Context,
	correlatedID string,
) (inst correlation.Instance, ok bool, err error) {
	err = r.withDB(ctx, func(d Driver, db sqlx.DB) error {
		inst, ok, err = d.SelectCorrelationByCorrelatedID(ctx, db, correlatedID)
		return err
	})

	return inst, ok, err
}

// withDB calls fn with the driver and the database handle to use for ctx.
func (r *CorrelationRepository) withDB(
	ctx context.Context,
	fn func(Driver, sqlx.DB) error,
) error {
	d, err := r.resolveDriver(ctx)
	if err != nil {
		return err
	}

	var s persistence.Session
	if r.Transactions != nil && r.Transactions.Enabled() {
		s, _ = r.Transactions.Session(ctx)
	}

	db, err := dbFor(r.DB, s)
	if err != nil {
		return err
	}

	return fn(d, db)
}

// resolveDriver returns the driver to use with r.DB.
//
// A failure to select a driver is not remembered, so a later call with a
// usable context tries again.
func (r *CorrelationRepository) resolveDriver(ctx context.Context) (Driver, error) {
	r.m.Lock()
	defer r.m.Unlock()

	if r.driver != nil {
		return r.driver, nil
	}

	if r.Driver != nil {
		r.driver = r.Driver
		return r.driver, nil
	}

	d, err := selectDriver(ctx, r.DB)
	if err != nil {
		return nil, err
	}

	r.driver = d
	return d, nil
}
