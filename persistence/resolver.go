package persistence

import (
	"context"

	"github.com/dogmatiq/procyon/process"
)

// Resolver locates the persisted instances of a single store that are not
// necessarily loaded in memory.
//
// It satisfies the signal.Resolver interface.
type Resolver struct {
	Store *Store
}

// WaitingForEvents returns the active instances that are subscribed to events
// of the given type.
func (r Resolver) WaitingForEvents(ctx context.Context, eventType string) ([]*process.Instance, error) {
	all, err := r.Store.Values(ctx, process.Mutable)
	if err != nil {
		return nil, err
	}

	var matches []*process.Instance

	for _, inst := range all {
		if inst.IsActive() && inst.IsWaitingFor(eventType) {
			matches = append(matches, inst)
		} else {
			inst.Arena().Release(inst)
		}
	}

	return matches, nil
}

// FindByID returns the instance with the given ID.
func (r Resolver) FindByID(ctx context.Context, id string) (*process.Instance, bool, error) {
	return r.Store.FindByID(ctx, id, process.Mutable)
}
