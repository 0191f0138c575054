package memorypersistence

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dogmatiq/procyon/persistence"
)

// table holds the records of a single process definition.
type table struct {
	m       sync.RWMutex
	records map[string]persistence.Record
}

// backend is an implementation of persistence.Backend that stores records in
// a table.
//
// Sessions are accepted and ignored; each operation is applied immediately.
type backend struct {
	table  *table
	closed atomic.Bool
}

func (b *backend) Insert(
	ctx context.Context,
	_ persistence.Session,
	r persistence.Record,
) (bool, error) {
	if err := b.check(ctx); err != nil {
		return false, err
	}

	b.table.m.Lock()
	defer b.table.m.Unlock()

	if _, ok := b.table.records[r.ID]; ok {
		return false, nil
	}

	b.put(r)

	return true, nil
}

func (b *backend) Update(
	ctx context.Context,
	_ persistence.Session,
	r persistence.Record,
) (bool, error) {
	if err := b.check(ctx); err != nil {
		return false, err
	}

	b.table.m.Lock()
	defer b.table.m.Unlock()

	x, ok := b.table.records[r.ID]
	if !ok || x.Version != r.Version {
		return false, nil
	}

	r.Version++
	b.put(r)

	return true, nil
}

func (b *backend) Save(
	ctx context.Context,
	_ persistence.Session,
	r persistence.Record,
) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	b.table.m.Lock()
	defer b.table.m.Unlock()

	b.put(r)

	return nil
}

func (b *backend) Delete(
	ctx context.Context,
	_ persistence.Session,
	id string,
) (bool, error) {
	if err := b.check(ctx); err != nil {
		return false, err
	}

	b.table.m.Lock()
	defer b.table.m.Unlock()

	if _, ok := b.table.records[id]; !ok {
		return false, nil
	}

	delete(b.table.records, id)

	return true, nil
}

func (b *backend) Load(
	ctx context.Context,
	_ persistence.Session,
	id string,
) (persistence.Record, bool, error) {
	if err := b.check(ctx); err != nil {
		return persistence.Record{}, false, err
	}

	b.table.m.RLock()
	defer b.table.m.RUnlock()

	r, ok := b.table.records[id]
	return clone(r), ok, nil
}

func (b *backend) Range(
	ctx context.Context,
	_ persistence.Session,
	fn func(persistence.Record) (bool, error),
) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	b.table.m.RLock()
	records := make([]persistence.Record, 0, len(b.table.records))
	for _, r := range b.table.records {
		records = append(records, clone(r))
	}
	b.table.m.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	for _, r := range records {
		ok, err := fn(r)
		if !ok || err != nil {
			return err
		}
	}

	return nil
}

func (b *backend) Close() error {
	if b.closed.Swap(true) {
		return persistence.ErrStoreClosed
	}

	return nil
}

// check returns an error if the backend is closed or ctx is done.
func (b *backend) check(ctx context.Context) error {
	if b.closed.Load() {
		return persistence.ErrStoreClosed
	}

	return ctx.Err()
}

// put stores a copy of r. b.table.m must be held for writing.
func (b *backend) put(r persistence.Record) {
	if b.table.records == nil {
		b.table.records = map[string]persistence.Record{}
	}

	b.table.records[r.ID] = clone(r)
}

// clone returns a deep copy of r.
func clone(r persistence.Record) persistence.Record {
	r.Packet.Data = append([]byte(nil), r.Packet.Data...)
	return r
}
