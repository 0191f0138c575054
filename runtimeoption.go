package procyon

import (
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon/correlation"
	"github.com/dogmatiq/procyon/migration"
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/persistence/boltpersistence"
	"github.com/dogmatiq/procyon/process"
	"github.com/dogmatiq/procyon/signal"
)

var (
	// DefaultPersistenceProvider is the default persistence provider.
	//
	// It is overridden by the WithPersistence() option.
	DefaultPersistenceProvider persistence.Provider = &boltpersistence.FileProvider{
		Path: "/var/run/procyon.boltdb",
	}

	// DefaultLocking is the default setting for optimistic concurrency
	// control.
	//
	// It is overridden by the WithLocking() option.
	DefaultLocking = true

	// DefaultTransactionManager is the default transaction manager. It uses
	// the session attached to the context, if any.
	//
	// It is overridden by the WithTransactionManager() option.
	DefaultTransactionManager persistence.TransactionManager = persistence.ContextTransactionManager{}

	// DefaultLogger is the default target for log messages produced by the
	// runtime.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// RuntimeOption configures the behavior of a runtime.
type RuntimeOption func(*runtimeOptions)

// WithPersistence returns a runtime option that sets the persistence provider
// used to store process instances.
//
// If this option is omitted or p is nil, DefaultPersistenceProvider is used.
func WithPersistence(p persistence.Provider) RuntimeOption {
	return func(opts *runtimeOptions) {
		opts.PersistenceProvider = p
	}
}

// WithMarshaler returns a runtime option that sets the marshaler used to
// marshal and unmarshal process instances.
//
// If this option is omitted or m is nil, process.NewMarshaler(nil) is called
// to obtain the default marshaler.
func WithMarshaler(m process.Marshaler) RuntimeOption {
	return func(opts *runtimeOptions) {
		opts.Marshaler = m
	}
}

// WithLocking returns a runtime option that enables or disables optimistic
// concurrency control when updating process instances.
//
// If this option is omitted DefaultLocking is used.
func WithLocking(enabled bool) RuntimeOption {
	return func(opts *runtimeOptions) {
		opts.Locking = &enabled
	}
}

// WithTransactionManager returns a runtime option that sets the transaction
// manager that determines the session used by each store operation.
//
// If this option is omitted or tm is nil, DefaultTransactionManager is used.
func WithTransactionManager(tm persistence.TransactionManager) RuntimeOption {
	return func(opts *runtimeOptions) {
		opts.TransactionManager = tm
	}
}

// WithCorrelationRepository returns a runtime option that sets the repository
// used to store correlations.
//
// If this option is omitted or r is nil, each runtime stores correlations in
// its own correlation.MemoryRepository.
func WithCorrelationRepository(r correlation.Repository) RuntimeOption {
	return func(opts *runtimeOptions) {
		opts.CorrelationRepository = r
	}
}

// WithMigrationPlans returns a runtime option that adds sources of migration
// plans.
//
// Plans from later providers replace plans with the same key from earlier
// providers. If this option is omitted no instances are migrated.
func WithMigrationPlans(providers ...migration.Provider) RuntimeOption {
	return func(opts *runtimeOptions) {
		opts.MigrationPlans = append(opts.MigrationPlans, providers...)
	}
}

// WithResolver returns a runtime option that adds a resolver used to locate
// process instances that are waiting for signals.
//
// A resolver for each store opened by the runtime is always added.
func WithResolver(r signal.Resolver) RuntimeOption {
	if r == nil {
		panic("resolver must not be nil")
	}

	return func(opts *runtimeOptions) {
		opts.Resolvers = append(opts.Resolvers, r)
	}
}

// WithSignalHandler returns a runtime option that sets the handler that
// applies signals to process instances.
//
// If this option is omitted or h is nil, signals are accepted and discarded.
func WithSignalHandler(h process.SignalHandler) RuntimeOption {
	return func(opts *runtimeOptions) {
		opts.SignalHandler = h
	}
}

// WithLogger returns a runtime option that sets the target for log messages
// produced by the runtime.
//
// If this option is omitted or l is nil, DefaultLogger is used.
func WithLogger(l logging.Logger) RuntimeOption {
	return func(opts *runtimeOptions) {
		opts.Logger = l
	}
}

// runtimeOptions is a container for a fully-resolved set of runtime options.
type runtimeOptions struct {
	PersistenceProvider   persistence.Provider
	Marshaler             process.Marshaler
	Locking               *bool
	TransactionManager    persistence.TransactionManager
	CorrelationRepository correlation.Repository
	MigrationPlans        []migration.Provider
	Resolvers             []signal.Resolver
	SignalHandler         process.SignalHandler
	Logger                logging.Logger
}

// resolveRuntimeOptions returns a fully-populated set of runtime options built
// from the given set of option functions.
func resolveRuntimeOptions(options ...RuntimeOption) *runtimeOptions {
	opts := &runtimeOptions{}

	for _, o := range options {
		o(opts)
	}

	if opts.PersistenceProvider == nil {
		opts.PersistenceProvider = DefaultPersistenceProvider
	}

	if opts.Marshaler == nil {
		opts.Marshaler = process.NewMarshaler(nil)
	}

	if opts.Locking == nil {
		enabled := DefaultLocking
		opts.Locking = &enabled
	}

	if opts.TransactionManager == nil {
		opts.TransactionManager = DefaultTransactionManager
	}

	if opts.CorrelationRepository == nil {
		opts.CorrelationRepository = &correlation.MemoryRepository{}
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	return opts
}
