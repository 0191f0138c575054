package logpersistence

import (
	"context"
	"sort"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/procyon/internal/x/syncx"
	"github.com/dogmatiq/procyon/persistence"
	"golang.org/x/sync/errgroup"
)

// view is a materialization of the records on a topic, built by consuming the
// topic from the beginning.
type view struct {
	topic           Topic
	backoffStrategy backoff.Strategy
	logger          logging.Logger

	// locks serializes writes to each instance ID.
	locks syncx.KeyMutex

	m       sync.Mutex
	offset  uint64
	records map[string]persistence.Record
	ready   chan struct{}

	cancel context.CancelFunc
	group  *errgroup.Group
	done   chan struct{}
	refs   int // guarded by Provider.m
}

// start begins consuming the topic in the background.
func (v *view) start() {
	ctx, cancel := context.WithCancel(context.Background())

	v.cancel = cancel
	v.done = make(chan struct{})
	v.group, ctx = errgroup.WithContext(ctx)

	v.group.Go(func() error {
		defer close(v.done)
		return v.run(ctx)
	})
}

// stop stops consuming the topic and waits for the consumer to finish.
func (v *view) stop() {
	v.cancel()
	_ = v.group.Wait() // the only possible error is context.Canceled
}

// run consumes the topic until ctx is canceled, restarting after any failure.
func (v *view) run(ctx context.Context) error {
	counter := backoff.Counter{
		Strategy: v.backoffStrategy,
	}

	for {
		err := v.consume(ctx, &counter)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logging.Log(
			v.logger,
			"materialization failed: %s",
			err,
		)

		if err := counter.Sleep(ctx, err); err != nil {
			return err
		}
	}
}

// consume opens a cursor at the view's current offset and applies each entry
// to the view.
func (v *view) consume(ctx context.Context, counter *backoff.Counter) error {
	offset := v.Offset()

	cur, err := v.topic.Open(ctx, offset)
	if err != nil {
		return err
	}
	defer cur.Close()

	logging.Debug(
		v.logger,
		"materializing topic, beginning at offset %d",
		offset,
	)

	for {
		e, err := cur.Next(ctx)
		if err != nil {
			return err
		}

		counter.Reset()
		v.apply(e)
	}
}

// apply updates the view to reflect the entry e.
func (v *view) apply(e Entry) {
	var (
		r   persistence.Record
		err error
	)

	if !e.IsTombstone() {
		r, err = unmarshalRecord(e)
		if err != nil {
			logging.Log(
				v.logger,
				"skipping malformed entry: %s",
				err,
			)
		}
	}

	v.m.Lock()
	defer v.m.Unlock()

	if e.Offset < v.offset {
		return
	}

	if err == nil {
		if e.IsTombstone() {
			delete(v.records, e.Key)
		} else {
			if v.records == nil {
				v.records = map[string]persistence.Record{}
			}
			v.records[e.Key] = r
		}
	}

	v.offset = e.Offset + 1

	if v.ready != nil {
		close(v.ready)
		v.ready = nil
	}
}

// Offset returns the offset of the next entry to be applied to the view.
func (v *view) Offset() uint64 {
	v.m.Lock()
	defer v.m.Unlock()

	return v.offset
}

// WaitFor blocks until every entry before the given offset has been applied
// to the view.
func (v *view) WaitFor(ctx context.Context, offset uint64) error {
	for {
		ready := v.readyBefore(offset)
		if ready == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-v.done:
			return persistence.ErrStoreClosed
		case <-ready:
		}
	}
}

// readyBefore returns nil if the view has applied every entry before offset;
// otherwise, it returns a channel that is closed when the next entry is
// applied.
func (v *view) readyBefore(offset uint64) <-chan struct{} {
	v.m.Lock()
	defer v.m.Unlock()

	if v.offset >= offset {
		return nil
	}

	if v.ready == nil {
		v.ready = make(chan struct{})
	}

	return v.ready
}

// Get returns the record with the given ID.
func (v *view) Get(id string) (persistence.Record, bool) {
	v.m.Lock()
	defer v.m.Unlock()

	r, ok := v.records[id]
	return clone(r), ok
}

// Records returns all of the records in the view, sorted by ID.
func (v *view) Records() []persistence.Record {
	v.m.Lock()
	records := make([]persistence.Record, 0, len(v.records))
	for _, r := range v.records {
		records = append(records, clone(r))
	}
	v.m.Unlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records
}

// clone returns a deep copy of r.
func clone(r persistence.Record) persistence.Record {
	r.Packet.Data = append([]byte(nil), r.Packet.Data...)
	return r
}
