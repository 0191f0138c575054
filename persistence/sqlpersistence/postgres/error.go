package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dogmatiq/procyon/correlation"
	"github.com/dogmatiq/procyon/internal/x/sqlx"
	"github.com/dogmatiq/procyon/persistence"
)

// convertContextErrors converts PostgreSQL "query_canceled" errors into a
// context.Canceled or DeadlineExceeeded error.
//
// Some drivers prefer returning their own error if the context is canceled
// after a query is already started.
func convertContextErrors(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		if strings.Contains(err.Error(), "canceling statement due to user request") {
			return ctx.Err()
		}
	}

	return err
}

// errorConverter is an implementation of sqlpersistence.Driver that decorates
// the PostgreSQL driver in order to convert native "query_canceled" errors
// into regular context.Canceled / DeadlineExceeded errors.
//
// The error conversion is implemented this way so that conversions don't get
// missed when new methods are added to the sqlpersistence.Driver interface.
type errorConverter struct {
	d driver
}

func (d errorConverter) IsCompatibleWith(ctx context.Context, db *sql.DB) error {
	err := d.d.IsCompatibleWith(ctx, db)
	return convertContextErrors(ctx, err)
}

func (d errorConverter) Begin(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	tx, err := d.d.Begin(ctx, db)
	return tx, convertContextErrors(ctx, err)
}

func (d errorConverter) CreateSchema(ctx context.Context, db *sql.DB) error {
	err := d.d.CreateSchema(ctx, db)
	return convertContextErrors(ctx, err)
}

func (d errorConverter) DropSchema(ctx context.Context, db *sql.DB) error {
	err := d.d.DropSchema(ctx, db)
	return convertContextErrors(ctx, err)
}

//
// process
//

func (d errorConverter) InsertProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID string,
	r persistence.Record,
) (bool, error) {
	ok, err := d.d.InsertProcessInstance(ctx, db, processID, r)
	return ok, convertContextErrors(ctx, err)
}

func (d errorConverter) UpdateProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID string,
	r persistence.Record,
) (bool, error) {
	ok, err := d.d.UpdateProcessInstance(ctx, db, processID, r)
	return ok, convertContextErrors(ctx, err)
}

func (d errorConverter) SaveProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID string,
	r persistence.Record,
) error {
	err := d.d.SaveProcessInstance(ctx, db, processID, r)
	return convertContextErrors(ctx, err)
}

func (d errorConverter) DeleteProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID, id string,
) (bool, error) {
	ok, err := d.d.DeleteProcessInstance(ctx, db, processID, id)
	return ok, convertContextErrors(ctx, err)
}

func (d errorConverter) SelectProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID, id string,
) (persistence.Record, bool, error) {
	r, ok, err := d.d.SelectProcessInstance(ctx, db, processID, id)
	return r, ok, convertContextErrors(ctx, err)
}

func (d errorConverter) SelectProcessInstances(
	ctx context.Context,
	db sqlx.DB,
	processID string,
) (*sql.Rows, error) {
	rows, err := d.d.SelectProcessInstances(ctx, db, processID)
	return rows, convertContextErrors(ctx, err)
}

func (d errorConverter) ScanProcessInstance(
	rows *sql.Rows,
	r *persistence.Record,
) error {
	return d.d.ScanProcessInstance(rows, r)
}

//
// correlation
//

func (d errorConverter) InsertCorrelation(
	ctx context.Context,
	db sqlx.DB,
	inst correlation.Instance,
) (bool, error) {
	ok, err := d.d.InsertCorrelation(ctx, db, inst)
	return ok, convertContextErrors(ctx, err)
}

func (d errorConverter) DeleteCorrelation(
	ctx context.Context,
	db sqlx.DB,
	encodedID string,
) (bool, error) {
	ok, err := d.d.DeleteCorrelation(ctx, db, encodedID)
	return ok, convertContextErrors(ctx, err)
}

func (d errorConverter) SelectCorrelationByEncodedID(
	ctx context.Context,
	db sqlx.DB,
	encodedID string,
) (correlation.Instance, bool, error) {
	inst, ok, err := d.d.SelectCorrelationByEncodedID(ctx, db, encodedID)
	return inst, ok, convertContextErrors(ctx, err)
}

func (d errorConverter) SelectCorrelationByCorrelatedID(
	ctx context.Context,
	db sqlx.DB,
	correlatedID string,
) (correlation.Instance, bool, error) {
	inst, ok, err := d.d.SelectCorrelationByCorrelatedID(ctx, db, correlatedID)
	return inst, ok, convertContextErrors(ctx, err)
}
