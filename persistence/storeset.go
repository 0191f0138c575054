package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon/process"
	"go.uber.org/multierr"
)

// StoreSet is a collection of stores for several process definitions.
//
// The fields other than Provider are copied to each store when it is opened.
type StoreSet struct {
	Provider     Provider
	Marshaler    process.Marshaler
	Lock         bool
	Transactions TransactionManager
	Migrator     process.Migrator
	Arena        *process.Arena
	Logger       logging.Logger

	m      sync.Mutex
	stores map[string]*Store
}

// Get returns the store for a given process definition.
//
// If the set already contains a store for the given process it is returned.
// Otherwise it is opened and added to the set. The caller is NOT responsible
// for closing the store.
func (s *StoreSet) Get(ctx context.Context, processID string) (*Store, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if st, ok := s.stores[processID]; ok {
		return st, nil
	}

	b, err := s.Provider.Open(ctx, processID)
	if err != nil {
		return nil, err
	}

	if s.stores == nil {
		s.stores = map[string]*Store{}
	}

	st := &Store{
		ProcessID:    processID,
		Backend:      b,
		Marshaler:    s.Marshaler,
		Lock:         s.Lock,
		Transactions: s.Transactions,
		Migrator:     s.Migrator,
		Arena:        s.Arena,
		Logger:       s.Logger,
	}

	s.stores[processID] = st

	return st, nil
}

// ProcessIDs returns the IDs of the process definitions with open stores, in
// lexical order.
func (s *StoreSet) ProcessIDs() []string {
	s.m.Lock()
	defer s.m.Unlock()

	ids := make([]string, 0, len(s.stores))
	for id := range s.stores {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Close closes all stores in the set.
func (s *StoreSet) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	stores := s.stores
	s.stores = nil

	var err error
	for _, st := range stores {
		err = multierr.Append(
			err,
			st.Close(),
		)
	}

	return err
}
