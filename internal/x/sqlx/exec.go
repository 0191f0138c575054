package sqlx

import (
	"context"
	"database/sql"
)

// Exec executes a statement on the given DB.
func Exec(
	ctx context.Context,
	db DB,
	query string,
	args ...any,
) sql.Result {
	res, err := db.ExecContext(ctx, query, args...)
	Must(err)
	return res
}

// TryExecRow executes a statement on the given DB and returns true if exactly
// one row was affected.
func TryExecRow(
	ctx context.Context,
	db DB,
	query string,
	args ...any,
) bool {
	return RowsAffected(Exec(ctx, db, query, args...)) == 1
}

// RowsAffected returns the number of rows affected by a statement.
func RowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	Must(err)
	return n
}
