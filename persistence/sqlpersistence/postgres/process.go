package postgres

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/procyon/internal/x/sqlx"
	"github.com/dogmatiq/procyon/persistence"
)

// InsertProcessInstance inserts a process instance.
//
// It returns false if the row already exists.
func (driver) InsertProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID string,
	r persistence.Record,
) (_ bool, err error) {
	defer sqlx.Recover(&err)

	return sqlx.TryExecRow(
		ctx,
		db,
		`INSERT INTO procyon.process_instances (
			process_id,
			instance_id,
			version,
			media_type,
			state
		) VALUES (
			$1, $2, $3, $4, $5
		) ON CONFLICT (process_id, instance_id) DO NOTHING`,
		processID,
		r.ID,
		r.Version,
		r.Packet.MediaType,
		r.Packet.Data,
	), nil
}

// UpdateProcessInstance updates a process instance.
//
// It returns false if the row does not exist or r.Version is not current.
func (driver) UpdateProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID string,
	r persistence.Record,
) (_ bool, err error) {
	defer sqlx.Recover(&err)

	return sqlx.TryExecRow(
		ctx,
		db,
		`UPDATE procyon.process_instances SET
			version = version + 1,
			media_type = $1,
			state = $2
		WHERE process_id = $3
		AND instance_id = $4
		AND version = $5`,
		r.Packet.MediaType,
		r.Packet.Data,
		processID,
		r.ID,
		r.Version,
	), nil
}

// SaveProcessInstance inserts or replaces a process instance.
func (driver) SaveProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID string,
	r persistence.Record,
) (err error) {
	defer sqlx.Recover(&err)

	sqlx.Exec(
		ctx,
		db,
		`INSERT INTO procyon.process_instances (
			process_id,
			instance_id,
			version,
			media_type,
			state
		) VALUES (
			$1, $2, $3, $4, $5
		) ON CONFLICT (process_id, instance_id) DO UPDATE SET
			version = excluded.version,
			media_type = excluded.media_type,
			state = excluded.state`,
		processID,
		r.ID,
		r.Version,
		r.Packet.MediaType,
		r.Packet.Data,
	)

	return nil
}

// DeleteProcessInstance deletes a process instance.
//
// It returns false if the row does not exist.
func (driver) DeleteProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID, id string,
) (_ bool, err error) {
	defer sqlx.Recover(&err)

	return sqlx.TryExecRow(
		ctx,
		db,
		`DELETE FROM procyon.process_instances
		WHERE process_id = $1
		AND instance_id = $2`,
		processID,
		id,
	), nil
}

// SelectProcessInstance selects a process instance.
func (driver) SelectProcessInstance(
	ctx context.Context,
	db sqlx.DB,
	processID, id string,
) (r persistence.Record, ok bool, err error) {
	defer sqlx.Recover(&err)

	r.ID = id

	ok = sqlx.TryScanRow(
		ctx,
		db,
		[]any{
			&r.Version,
			&r.Packet.MediaType,
			&r.Packet.Data,
		},
		`SELECT
			version,
			media_type,
			state
		FROM procyon.process_instances
		WHERE process_id = $1
		AND instance_id = $2`,
		processID,
		id,
	)

	return r, ok, nil
}

// SelectProcessInstances selects all instances of a process.
func (driver) SelectProcessInstances(
	ctx context.Context,
	db sqlx.DB,
	processID string,
) (*sql.Rows, error) {
	return db.QueryContext(
		ctx,
		`SELECT
			instance_id,
			version,
			media_type,
			state
		FROM procyon.process_instances
		WHERE process_id = $1
		ORDER BY instance_id`,
		processID,
	)
}

// ScanProcessInstance scans the next process instance from a row-set
// returned by SelectProcessInstances().
func (driver) ScanProcessInstance(
	rows *sql.Rows,
	r *persistence.Record,
) error {
	return rows.Scan(
		&r.ID,
		&r.Version,
		&r.Packet.MediaType,
		&r.Packet.Data,
	)
}

// createProcessSchema creates the schema elements for process instances.
func createProcessSchema(ctx context.Context, db sqlx.DB) {
	sqlx.Exec(
		ctx,
		db,
		`CREATE TABLE IF NOT EXISTS procyon.process_instances (
			process_id  TEXT NOT NULL,
			instance_id TEXT NOT NULL,
			version     BIGINT NOT NULL,
			media_type  TEXT NOT NULL,
			state       BYTEA,

			PRIMARY KEY (process_id, instance_id)
		)`,
	)
}
