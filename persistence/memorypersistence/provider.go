package memorypersistence

import (
	"context"
	"sync"

	"github.com/dogmatiq/procyon/persistence"
)

// Provider is an implementation of persistence.Provider that stores process
// instances in memory.
//
// Backends opened for the same process definition share the same data.
type Provider struct {
	m      sync.Mutex
	tables map[string]*table
}

// Open returns the backend for the process definition with the given ID.
func (p *Provider) Open(_ context.Context, processID string) (persistence.Backend, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.tables == nil {
		p.tables = map[string]*table{}
	}

	t, ok := p.tables[processID]
	if !ok {
		t = &table{}
		p.tables[processID] = t
	}

	return &backend{table: t}, nil
}
