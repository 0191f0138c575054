package sqlpersistence

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates the tables that hold process instances and
// correlations in db.
//
// The dialect is detected from db. It does not return an error if the schema
// already exists.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	return withSchemaDriver(ctx, db, "create", Driver.CreateSchema)
}

// DropSchema removes the tables created by CreateSchema(), along with any
// records they contain.
//
// It does not return an error if the schema does not exist.
func DropSchema(ctx context.Context, db *sql.DB) error {
	return withSchemaDriver(ctx, db, "drop", Driver.DropSchema)
}

// withSchemaDriver calls fn with the driver selected for db.
func withSchemaDriver(
	ctx context.Context,
	db *sql.DB,
	op string,
	fn func(Driver, context.Context, *sql.DB) error,
) error {
	d, err := selectDriver(ctx, db)
	if err != nil {
		return err
	}

	if err := fn(d, ctx, db); err != nil {
		return fmt.Errorf("unable to %s schema: %w", op, err)
	}

	return nil
}
