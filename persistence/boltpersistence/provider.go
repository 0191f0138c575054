package boltpersistence

import (
	"context"
	"os"
	"sync"

	"github.com/dogmatiq/procyon/internal/x/bboltx"
	"github.com/dogmatiq/procyon/persistence"
	"go.etcd.io/bbolt"
)

// Provider is an implementation of persistence.Provider for BoltDB that uses
// an existing open database.
type Provider struct {
	provider

	// DB is the BoltDB database to use.
	DB *bbolt.DB
}

// Open returns the backend for the process definition with the given ID.
func (p *Provider) Open(ctx context.Context, processID string) (persistence.Backend, error) {
	return p.open(
		ctx,
		processID,
		func() (*bbolt.DB, error) {
			return p.DB, nil
		},
		func(*bbolt.DB) error {
			// Don't actually close the database, since we didn't open it.
			return nil
		},
	)
}

// FileProvider is an implementation of persistence.Provider for BoltDB that
// opens a BoltDB database file.
//
// The file is opened when the first backend is opened and closed when the last
// backend is closed.
type FileProvider struct {
	provider

	// Path is the path to the BoltDB database to open or create.
	Path string

	// Mode is the file mode for the created file.
	// If it is zero, 0600 (owner read/write only) is used.
	Mode os.FileMode

	// Options is the BoltDB options for the database.
	// If it is nil, bbolt.DefaultOptions is used.
	Options *bbolt.Options
}

// Open returns the backend for the process definition with the given ID.
func (p *FileProvider) Open(ctx context.Context, processID string) (persistence.Backend, error) {
	return p.open(
		ctx,
		processID,
		func() (*bbolt.DB, error) {
			return bboltx.Open(ctx, p.Path, p.Mode, p.Options)
		},
		func(db *bbolt.DB) error {
			return db.Close()
		},
	)
}

// provider is the common implementation of Provider and FileProvider.
type provider struct {
	m     sync.Mutex
	db    *bbolt.DB
	close func(db *bbolt.DB) error
	refs  int
}

// Begin starts a new session.
//
// The session may span operations on the backends of any process definition
// opened by the provider. It returns persistence.ErrStoreClosed if no backends
// are open.
func (p *provider) Begin(_ context.Context) (*Session, error) {
	p.m.Lock()
	db := p.db
	p.m.Unlock()

	if db == nil {
		return nil, persistence.ErrStoreClosed
	}

	tx, err := db.Begin(true)
	if err != nil {
		return nil, err
	}

	return &Session{tx}, nil
}

// open returns the backend for a specific process definition.
func (p *provider) open(
	_ context.Context,
	processID string,
	open func() (*bbolt.DB, error),
	close func(db *bbolt.DB) error,
) (persistence.Backend, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.db == nil {
		db, err := open()
		if err != nil {
			return nil, err
		}

		p.db = db
		p.close = close
	}

	p.refs++

	return &backend{
		db:        p.db,
		processID: []byte(processID),
		release:   p.release,
	}, nil
}

// release marks a previously-opened backend as closed, closing the database
// once no backends remain open.
func (p *provider) release() error {
	p.m.Lock()
	defer p.m.Unlock()

	p.refs--
	if p.refs > 0 {
		return nil
	}

	db := p.db
	close := p.close

	p.db = nil
	p.close = nil

	return close(db)
}
