package sqlx

import (
	"context"
	"database/sql"
	"errors"
)

// TryScanRow executes a single-row query and scans the result into dest.
//
// It returns false if the query produced no rows.
func TryScanRow(
	ctx context.Context,
	db DB,
	dest []any,
	query string,
	args ...any,
) bool {
	row := db.QueryRowContext(ctx, query, args...)

	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}

	Must(err)
	return true
}
