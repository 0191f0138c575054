package correlation

import (
	"context"
	"sync"
)

// Repository stores correlation instances.
type Repository interface {
	// Insert stores a new correlation instance.
	//
	// It returns false if an instance with the same encoded ID already
	// exists.
	Insert(ctx context.Context, inst Instance) (bool, error)

	// Delete removes the instance with the given encoded ID.
	//
	// It returns false if no such instance exists.
	Delete(ctx context.Context, encodedID string) (bool, error)

	// FindByEncodedID returns the instance with the given encoded ID.
	FindByEncodedID(ctx context.Context, encodedID string) (Instance, bool, error)

	// FindByCorrelatedID returns the instance associated with the given
	// process instance ID.
	FindByCorrelatedID(ctx context.Context, correlatedID string) (Instance, bool, error)
}

// MemoryRepository is an in-memory implementation of Repository.
type MemoryRepository struct {
	m         sync.RWMutex
	instances map[string]Instance
	order     []string
}

// Insert stores a new correlation instance.
func (r *MemoryRepository) Insert(ctx context.Context, inst Instance) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.m.Lock()
	defer r.m.Unlock()

	if _, ok := r.instances[inst.EncodedID]; ok {
		return false, nil
	}

	if r.instances == nil {
		r.instances = map[string]Instance{}
	}

	r.instances[inst.EncodedID] = inst
	r.order = append(r.order, inst.EncodedID)

	return true, nil
}

// Delete removes the instance with the given encoded ID.
func (r *MemoryRepository) Delete(ctx context.Context, encodedID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.m.Lock()
	defer r.m.Unlock()

	if _, ok := r.instances[encodedID]; !ok {
		return false, nil
	}

	delete(r.instances, encodedID)

	for i, id := range r.order {
		if id == encodedID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return true, nil
}

// FindByEncodedID returns the instance with the given encoded ID.
func (r *MemoryRepository) FindByEncodedID(ctx context.Context, encodedID string) (Instance, bool, error) {
	if err := ctx.Err(); err != nil {
		return Instance{}, false, err
	}

	r.m.RLock()
	defer r.m.RUnlock()

	inst, ok := r.instances[encodedID]
	return inst, ok, nil
}

// FindByCorrelatedID returns the first instance, in insertion order, that is
// associated with the given process instance ID.
func (r *MemoryRepository) FindByCorrelatedID(ctx context.Context, correlatedID string) (Instance, bool, error) {
	if err := ctx.Err(); err != nil {
		return Instance{}, false, err
	}

	r.m.RLock()
	defer r.m.RUnlock()

	for _, id := range r.order {
		if inst := r.instances[id]; inst.CorrelatedID == correlatedID {
			return inst, true, nil
		}
	}

	return Instance{}, false, nil
}
