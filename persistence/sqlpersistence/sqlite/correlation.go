package sqlite

import (
	"context"
	"encoding/json"

	"github.com/dogmatiq/procyon/correlation"
	"github.com/dogmatiq/procyon/internal/x/sqlx"
	"github.com/google/uuid"
)

// InsertCorrelation inserts a correlation.
//
// It returns false if a row with the same encoded ID already exists.
func (driver) InsertCorrelation(
	ctx context.Context,
	db sqlx.DB,
	inst correlation.Instance,
) (_ bool, err error) {
	defer sqlx.Recover(&err)

	data, err := json.Marshal(inst.Correlation)
	sqlx.Must(err)

	return sqlx.TryExecRow(
		ctx,
		db,
		`INSERT INTO correlation_instances (
			id,
			encoded_correlation_id,
			correlated_id,
			correlation
		) VALUES (
			$1, $2, $3, $4
		) ON CONFLICT (encoded_correlation_id) DO NOTHING`,
		uuid.NewString(),
		inst.EncodedID,
		inst.CorrelatedID,
		string(data),
	), nil
}

// DeleteCorrelation deletes the correlation with the given encoded ID.
//
// It returns false if the row does not exist.
func (driver) DeleteCorrelation(
	ctx context.Context,
	db sqlx.DB,
	encodedID string,
) (_ bool, err error) {
	defer sqlx.Recover(&err)

	return sqlx.TryExecRow(
		ctx,
		db,
		`DELETE FROM correlation_instances
		WHERE encoded_correlation_id = $1`,
		encodedID,
	), nil
}

// SelectCorrelationByEncodedID selects the correlation with the given encoded
// ID.
func (driver) SelectCorrelationByEncodedID(
	ctx context.Context,
	db sqlx.DB,
	encodedID string,
) (correlation.Instance, bool, error) {
	return selectCorrelation(
		ctx,
		db,
		`SELECT
			encoded_correlation_id,
			correlated_id,
			correlation
		FROM correlation_instances
		WHERE encoded_correlation_id = $1`,
		encodedID,
	)
}

// SelectCorrelationByCorrelatedID selects the correlation associated with the
// given correlated ID.
func (driver) SelectCorrelationByCorrelatedID(
	ctx context.Context,
	db sqlx.DB,
	correlatedID string,
) (correlation.Instance, bool, error) {
	return selectCorrelation(
		ctx,
		db,
		`SELECT
			encoded_correlation_id,
			correlated_id,
			correlation
		FROM correlation_instances
		WHERE correlated_id = $1
		ORDER BY rowid
		LIMIT 1`,
		correlatedID,
	)
}

// selectCorrelation selects a single correlation using the given query.
func selectCorrelation(
	ctx context.Context,
	db sqlx.DB,
	query string,
	args ...any,
) (inst correlation.Instance, ok bool, err error) {
	defer sqlx.Recover(&err)

	var data string

	if !sqlx.TryScanRow(
		ctx,
		db,
		[]any{
			&inst.EncodedID,
			&inst.CorrelatedID,
			&data,
		},
		query,
		args...,
	) {
		return correlation.Instance{}, false, nil
	}

	sqlx.Must(json.Unmarshal([]byte(data), &inst.Correlation))

	return inst, true, nil
}

// createCorrelationSchema creates the schema elements for correlations.
func createCorrelationSchema(ctx context.Context, db sqlx.DB) {
	sqlx.Exec(
		ctx,
		db,
		`CREATE TABLE IF NOT EXISTS correlation_instances (
			id                     TEXT NOT NULL PRIMARY KEY,
			encoded_correlation_id TEXT NOT NULL UNIQUE,
			correlated_id          TEXT NOT NULL,
			correlation            TEXT NOT NULL
		)`,
	)

	sqlx.Exec(
		ctx,
		db,
		`CREATE INDEX IF NOT EXISTS idx_correlation_instances_correlated_id
		ON correlation_instances (correlated_id)`,
	)
}

// dropCorrelationSchema drops the schema elements for correlations.
func dropCorrelationSchema(ctx context.Context, db sqlx.DB) {
	sqlx.Exec(ctx, db, `DROP TABLE IF EXISTS correlation_instances`)
}
