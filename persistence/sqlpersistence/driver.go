package sqlpersistence

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/procyon/correlation"
	"github.com/dogmatiq/procyon/internal/x/sqlx"
	"github.com/dogmatiq/procyon/persistence"
)

// Driver is used to interface with the underlying SQL database.
type Driver interface {
	ProcessDriver
	CorrelationDriver

	// IsCompatibleWith returns nil if this driver can be used with db.
	IsCompatibleWith(ctx context.Context, db *sql.DB) error

	// Begin starts a transaction for use in a Session.
	Begin(ctx context.Context, db *sql.DB) (*sql.Tx, error)

	// CreateSchema creates any SQL schema elements required by the driver.
	CreateSchema(ctx context.Context, db *sql.DB) error

	// DropSchema removes any SQL schema elements created by CreateSchema().
	DropSchema(ctx context.Context, db *sql.DB) error
}

// ProcessDriver is the subset of the Driver interface that is concerned with
// process instances.
type ProcessDriver interface {
	// InsertProcessInstance inserts a process instance.
	//
	// It returns false if the row already exists.
	InsertProcessInstance(
		ctx context.Context,
		db sqlx.DB,
		processID string,
		r persistence.Record,
	) (bool, error)

	// UpdateProcessInstance updates a process instance, incrementing its
	// version.
	//
	// It returns false if the row does not exist or r.Version is not current.
	UpdateProcessInstance(
		ctx context.Context,
		db sqlx.DB,
		processID string,
		r persistence.Record,
	) (bool, error)

	// SaveProcessInstance inserts or replaces a process instance.
	SaveProcessInstance(
		ctx context.Context,
		db sqlx.DB,
		processID string,
		r persistence.Record,
	) error

	// DeleteProcessInstance deletes a process instance.
	//
	// It returns false if the row does not exist.
	DeleteProcessInstance(
		ctx context.Context,
		db sqlx.DB,
		processID, id string,
	) (bool, error)

	// SelectProcessInstance selects a process instance.
	SelectProcessInstance(
		ctx context.Context,
		db sqlx.DB,
		processID, id string,
	) (persistence.Record, bool, error)

	// SelectProcessInstances selects all instances of a process.
	//
	// Each row is scanned with ScanProcessInstance().
	SelectProcessInstances(
		ctx context.Context,
		db sqlx.DB,
		processID string,
	) (*sql.Rows, error)

	// ScanProcessInstance scans the next process instance from a row-set
	// returned by SelectProcessInstances().
	ScanProcessInstance(
		rows *sql.Rows,
		r *persistence.Record,
	) error
}

// CorrelationDriver is the subset of the Driver interface that is concerned
// with correlations.
type CorrelationDriver interface {
	// InsertCorrelation inserts a correlation.
	//
	// It returns false if a row with the same encoded ID already exists.
	InsertCorrelation(
		ctx context.Context,
		db sqlx.DB,
		inst correlation.Instance,
	) (bool, error)

	// DeleteCorrelation deletes the correlation with the given encoded ID.
	//
	// It returns false if the row does not exist.
	DeleteCorrelation(
		ctx context.Context,
		db sqlx.DB,
		encodedID string,
	) (bool, error)

	// SelectCorrelationByEncodedID selects the correlation with the given
	// encoded ID.
	SelectCorrelationByEncodedID(
		ctx context.Context,
		db sqlx.DB,
		encodedID string,
	) (correlation.Instance, bool, error)

	// SelectCorrelationByCorrelatedID selects the correlation associated with
	// the given correlated ID.
	SelectCorrelationByCorrelatedID(
		ctx context.Context,
		db sqlx.DB,
		correlatedID string,
	) (correlation.Instance, bool, error)
}
