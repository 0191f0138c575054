package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon"
	"github.com/dogmatiq/procyon/correlation"
	"github.com/dogmatiq/procyon/internal/x/bboltx"
	"github.com/dogmatiq/procyon/migration"
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/persistence/boltpersistence"
	"github.com/dogmatiq/procyon/persistence/logpersistence"
	"github.com/dogmatiq/procyon/persistence/sqlpersistence"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// env is the environment shared by all commands.
type env struct {
	Config  config
	Logger  logging.Logger
	Runtime *procyon.Runtime

	// DB is the SQL database, if a SQL backend is in use.
	DB *sql.DB

	// Log is the provider used by the log backend, if it is in use.
	Log *logpersistence.Provider

	closers []func() error
}

// newEnv loads the configuration and opens the runtime that it describes.
//
// extra is applied after the options derived from the configuration.
func newEnv(
	cmd *cobra.Command,
	v *viper.Viper,
	extra ...procyon.RuntimeOption,
) (_ *env, err error) {
	cfg, err := loadConfig(cmd, v)
	if err != nil {
		return nil, err
	}

	logger, closeLog := newLogger(cfg.Log, cmd.ErrOrStderr())

	e := &env{
		Config:  cfg,
		Logger:  logger,
		closers: []func() error{closeLog},
	}

	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	ctx := cmd.Context()

	p, err := e.openPersistence(ctx)
	if err != nil {
		return nil, err
	}

	options := []procyon.RuntimeOption{
		procyon.WithPersistence(p),
		procyon.WithLogger(logger),
	}

	if e.DB != nil {
		options = append(
			options,
			procyon.WithCorrelationRepository(
				&sqlpersistence.CorrelationRepository{
					DB:           e.DB,
					Transactions: procyon.DefaultTransactionManager,
				},
			),
		)
	}

	if cfg.Plans.Dir != "" {
		options = append(
			options,
			procyon.WithMigrationPlans(
				migration.FileReader{Dir: cfg.Plans.Dir},
			),
		)
	}

	options = append(options, extra...)

	e.Runtime, err = procyon.New(ctx, options...)
	if err != nil {
		return nil, err
	}

	e.closers = append(e.closers, e.Runtime.Close)

	return e, nil
}

// openPersistence returns the persistence provider for the configured
// backend.
func (e *env) openPersistence(ctx context.Context) (persistence.Provider, error) {
	switch e.Config.Backend {
	case backendBolt:
		return &boltpersistence.FileProvider{
			Path: e.Config.Bolt.Path,
		}, nil

	case backendLog:
		db, err := bboltx.Open(ctx, e.Config.Bolt.Path, 0, nil)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, db.Close)

		e.Log = &logpersistence.Provider{
			Topics: &logpersistence.BoltTopics{DB: db},
			Logger: e.Logger,
		}

		return e.Log, nil

	case backendSQLite:
		return e.openSQL(
			ctx,
			"sqlite",
			fmt.Sprintf(
				"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
				e.Config.SQLite.Path,
			),
		)

	default:
		return e.openSQL(ctx, "pgx", e.Config.Postgres.DSN)
	}
}

// openSQL opens a SQL database pool and returns a provider that uses it.
func (e *env) openSQL(ctx context.Context, driverName, dsn string) (persistence.Provider, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	e.DB = db

	return &sqlpersistence.Provider{
		DB: db,
	}, nil
}

// Correlations returns the correlation service, which is only available with
// the SQL backends.
func (e *env) Correlations() (*correlation.Service, error) {
	if e.DB == nil {
		return nil, errors.New("correlations are only stored by the sqlite and postgres backends")
	}

	return e.Runtime.Correlations(), nil
}

// Close releases the resources held by the environment, in the reverse of
// the order they were acquired.
func (e *env) Close() error {
	var err error

	for i := len(e.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, e.closers[i]())
	}

	e.closers = nil

	return err
}
