package procyon

import (
	"context"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon/correlation"
	"github.com/dogmatiq/procyon/internal/x/loggingx"
	"github.com/dogmatiq/procyon/migration"
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/process"
	"github.com/dogmatiq/procyon/signal"
)

// Runtime persists, signals, correlates and migrates process instances.
//
// A single runtime is constructed when the process engine starts and is shared
// by all of its components.
type Runtime struct {
	opts         *runtimeOptions
	arena        *process.Arena
	stores       *persistence.StoreSet
	hub          *signal.Hub
	correlations *correlation.Service
	migrations   *migration.Service

	m        sync.Mutex
	resolved map[*persistence.Store]struct{}
}

// New returns a new runtime.
//
// Migration plans are loaded from their providers before New() returns.
func New(ctx context.Context, options ...RuntimeOption) (*Runtime, error) {
	opts := resolveRuntimeOptions(options...)

	migrations, err := migration.NewService(
		ctx,
		loggingx.WithPrefix(opts.Logger, "[migration] "),
		opts.MigrationPlans...,
	)
	if err != nil {
		return nil, err
	}

	arena := &process.Arena{
		Handler: opts.SignalHandler,
	}

	hub := &signal.Hub{
		Migrator: migrations,
		Logger:   loggingx.WithPrefix(opts.Logger, "[signal] "),
	}

	for _, r := range opts.Resolvers {
		hub.AddResolver(r)
	}

	return &Runtime{
		opts:  opts,
		arena: arena,
		stores: &persistence.StoreSet{
			Provider:     opts.PersistenceProvider,
			Marshaler:    opts.Marshaler,
			Lock:         *opts.Locking,
			Transactions: opts.TransactionManager,
			Migrator:     migrations,
			Arena:        arena,
			Logger:       loggingx.WithPrefix(opts.Logger, "[persistence] "),
		},
		hub: hub,
		correlations: &correlation.Service{
			Repository: opts.CorrelationRepository,
			Logger:     loggingx.WithPrefix(opts.Logger, "[correlation] "),
		},
		migrations: migrations,
	}, nil
}

// Store returns the store for the given process definition.
//
// The store is opened the first time it is requested and is registered with
// the runtime's signal hub so that its instances can receive events. The
// caller is NOT responsible for closing the store.
func (r *Runtime) Store(ctx context.Context, processID string) (*persistence.Store, error) {
	s, err := r.stores.Get(ctx, processID)
	if err != nil {
		return nil, err
	}

	r.m.Lock()
	defer r.m.Unlock()

	if _, ok := r.resolved[s]; !ok {
		if r.resolved == nil {
			r.resolved = map[*persistence.Store]struct{}{}
		}

		r.resolved[s] = struct{}{}
		r.hub.AddResolver(persistence.Resolver{Store: s})

		logging.Debug(
			r.opts.Logger,
			"opened store for process '%s'",
			processID,
		)
	}

	return s, nil
}

// ProcessIDs returns the IDs of the process definitions with open stores.
func (r *Runtime) ProcessIDs() []string {
	return r.stores.ProcessIDs()
}

// Arena returns the arena that holds the instances loaded by the runtime.
func (r *Runtime) Arena() *process.Arena {
	return r.arena
}

// Hub returns the runtime's signal hub.
func (r *Runtime) Hub() *signal.Hub {
	return r.hub
}

// Correlations returns the runtime's correlation service.
func (r *Runtime) Correlations() *correlation.Service {
	return r.correlations
}

// Migrations returns the runtime's migration service.
func (r *Runtime) Migrations() *migration.Service {
	return r.migrations
}

// Close closes all of the stores opened by the runtime.
//
// The runtime must not be used after it is closed.
func (r *Runtime) Close() error {
	return r.stores.Close()
}
