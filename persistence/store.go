package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon/process"
)

// Store persists the instances of a single process definition.
type Store struct {
	// ProcessID is the ID of the process definition.
	ProcessID string

	// Backend is the backend that stores the instance records.
	Backend Backend

	// Marshaler converts instances to and from their binary representation.
	// If it is nil, process.NewMarshaler(nil) is used.
	Marshaler process.Marshaler

	// Lock enables optimistic concurrency control. When it is false updates
	// overwrite the persisted record unconditionally and instance versions are
	// not maintained.
	Lock bool

	// Transactions determines the session used by each operation. If it is nil
	// no sessions are used.
	Transactions TransactionManager

	// Migrator, if non-nil, is applied to every instance loaded from the
	// backend.
	Migrator process.Migrator

	// Arena is the arena that loaded instances are allocated in. If it is nil
	// the store allocates its own arena.
	Arena *process.Arena

	// Logger is the target for log messages produced by the store.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	once      sync.Once
	arena     *process.Arena
	marshaler process.Marshaler
}

// Create persists a new instance at version 0.
//
// It returns a DuplicateInstanceError if an instance with the same ID already
// exists.
func (s *Store) Create(ctx context.Context, inst *process.Instance) error {
	s.init()

	r, err := s.record(inst, 0)
	if err != nil {
		return err
	}

	ok, err := s.Backend.Insert(ctx, s.session(ctx), r)
	if err != nil {
		return err
	}

	if !ok {
		return DuplicateInstanceError{s.ProcessID, r.ID}
	}

	inst.SetVersion(0)
	inst.BindReload(s.reload)

	logging.Debug(
		s.Logger,
		"%s: created process instance %s",
		s.ProcessID,
		r.ID,
	)

	return nil
}

// Update persists changes to an existing instance.
//
// If the instance is no longer active nothing is written. If locking is
// enabled and the instance has been modified since it was last read, a
// ConflictError is returned.
func (s *Store) Update(ctx context.Context, inst *process.Instance) error {
	s.init()

	if inst.IsReadOnly() {
		return process.ErrReadOnly
	}

	if !inst.IsActive() {
		inst.BindReload(s.reload)
		return nil
	}

	r, err := s.record(inst, inst.Version())
	if err != nil {
		return err
	}

	if !s.Lock {
		if err := s.Backend.Save(ctx, s.session(ctx), r); err != nil {
			return err
		}

		inst.BindReload(s.reload)
		return nil
	}

	ok, err := s.Backend.Update(ctx, s.session(ctx), r)
	if err != nil {
		return err
	}

	if !ok {
		logging.Debug(
			s.Logger,
			"%s: optimistic concurrency conflict updating process instance %s at version %d",
			s.ProcessID,
			r.ID,
			r.Version,
		)

		return ConflictError{s.ProcessID, r.ID}
	}

	inst.SetVersion(r.Version + 1)
	inst.BindReload(s.reload)

	return nil
}

// Remove removes the instance with the given ID.
//
// Removing an instance that does not exist is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.init()

	ok, err := s.Backend.Delete(ctx, s.session(ctx), id)
	if err != nil {
		return err
	}

	if ok {
		logging.Debug(
			s.Logger,
			"%s: removed process instance %s",
			s.ProcessID,
			id,
		)
	}

	return nil
}

// Exists returns true if an instance with the given ID exists.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	s.init()

	_, ok, err := s.Backend.Load(ctx, s.session(ctx), id)
	return ok, err
}

// FindByID loads the instance with the given ID.
//
// m determines whether the returned instance can be modified.
func (s *Store) FindByID(
	ctx context.Context,
	id string,
	m process.ReadMode,
) (*process.Instance, bool, error) {
	s.init()

	r, ok, err := s.Backend.Load(ctx, s.session(ctx), id)
	if !ok || err != nil {
		return nil, false, err
	}

	inst, err := s.materialize(r, m)
	if err != nil {
		return nil, false, err
	}

	return inst, true, nil
}

// Values loads all instances.
//
// m determines whether the returned instances can be modified.
func (s *Store) Values(ctx context.Context, m process.ReadMode) ([]*process.Instance, error) {
	s.init()

	var instances []*process.Instance

	err := s.Backend.Range(
		ctx,
		s.session(ctx),
		func(r Record) (bool, error) {
			inst, err := s.materialize(r, m)
			if err != nil {
				return false, err
			}

			instances = append(instances, inst)
			return true, nil
		},
	)
	if err != nil {
		for _, inst := range instances {
			s.arena.Release(inst)
		}

		return nil, err
	}

	return instances, nil
}

// Close closes the store's backend.
func (s *Store) Close() error {
	return s.Backend.Close()
}

// init populates the store's defaults.
func (s *Store) init() {
	s.once.Do(func() {
		s.arena = s.Arena
		if s.arena == nil {
			s.arena = &process.Arena{}
		}

		s.marshaler = s.Marshaler
		if s.marshaler == nil {
			s.marshaler = process.NewMarshaler(nil)
		}
	})
}

// session returns the session to use for operations within ctx.
func (s *Store) session(ctx context.Context) Session {
	if s.Transactions == nil || !s.Transactions.Enabled() {
		return nil
	}

	if sess, ok := s.Transactions.Session(ctx); ok {
		return sess
	}

	return nil
}

// record returns the persisted form of inst at version v.
func (s *Store) record(inst *process.Instance, v int64) (Record, error) {
	p, err := s.marshaler.MarshalInstance(inst)
	if err != nil {
		return Record{}, fmt.Errorf(
			"unable to marshal process instance %s: %w",
			inst.ID(),
			err,
		)
	}

	return Record{
		ID:      inst.ID(),
		Version: v,
		Packet:  p,
	}, nil
}

// materialize allocates a new instance from its persisted form.
func (s *Store) materialize(r Record, m process.ReadMode) (*process.Instance, error) {
	inst := s.arena.NewInstance(r.ID, s.ProcessID, "")

	if err := s.apply(r, inst); err != nil {
		s.arena.Release(inst)
		return nil, err
	}

	inst.SetMode(m)
	inst.BindReload(s.reload)

	return inst, nil
}

// apply replaces the content of inst with the record r.
func (s *Store) apply(r Record, inst *process.Instance) error {
	if err := s.marshaler.UnmarshalInstance(r.Packet, inst); err != nil {
		return fmt.Errorf(
			"unable to unmarshal process instance %s: %w",
			r.ID,
			err,
		)
	}

	inst.SetVersion(r.Version)

	if s.Migrator != nil && s.Migrator.Migrate(inst) {
		logging.Debug(
			s.Logger,
			"%s: migrated process instance %s to %s@%s",
			s.ProcessID,
			r.ID,
			inst.ProcessID(),
			inst.ProcessVersion(),
		)
	}

	return nil
}

// reload is the process.ReloadFunc bound to instances written or read by the
// store.
func (s *Store) reload(ctx context.Context, inst *process.Instance) error {
	id := inst.ID()

	r, ok, err := s.Backend.Load(ctx, s.session(ctx), id)
	if err != nil {
		return err
	}

	if !ok {
		return NotFoundError{s.ProcessID, id}
	}

	return s.apply(r, inst)
}
