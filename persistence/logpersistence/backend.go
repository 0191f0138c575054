package logpersistence

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/procyon/persistence"
)

// backend is an implementation of persistence.Backend that serves reads from
// a view and writes by appending to the view's topic.
//
// Sessions are accepted and ignored; the log backend is not transactional.
type backend struct {
	view    *view
	timeout time.Duration
	closed  atomic.Bool
	release func()
}

func (b *backend) Insert(
	ctx context.Context,
	_ persistence.Session,
	r persistence.Record,
) (ok bool, err error) {
	err = b.write(ctx, r.ID, func(ctx context.Context) error {
		if _, exists := b.view.Get(r.ID); exists {
			return nil
		}

		ok = true
		return b.append(ctx, r)
	})

	return ok, err
}

func (b *backend) Update(
	ctx context.Context,
	_ persistence.Session,
	r persistence.Record,
) (ok bool, err error) {
	err = b.write(ctx, r.ID, func(ctx context.Context) error {
		x, exists := b.view.Get(r.ID)
		if !exists || x.Version != r.Version {
			return nil
		}

		r.Version++
		ok = true
		return b.append(ctx, r)
	})

	return ok, err
}

func (b *backend) Save(
	ctx context.Context,
	_ persistence.Session,
	r persistence.Record,
) error {
	return b.write(ctx, r.ID, func(ctx context.Context) error {
		return b.append(ctx, r)
	})
}

func (b *backend) Delete(
	ctx context.Context,
	_ persistence.Session,
	id string,
) (ok bool, err error) {
	err = b.write(ctx, id, func(ctx context.Context) error {
		if _, exists := b.view.Get(id); !exists {
			return nil
		}

		offset, err := b.view.topic.Append(ctx, id, nil)
		if err != nil {
			return err
		}

		ok = true
		return b.view.WaitFor(ctx, offset+1)
	})

	return ok, err
}

func (b *backend) Load(
	ctx context.Context,
	_ persistence.Session,
	id string,
) (r persistence.Record, ok bool, err error) {
	err = b.read(ctx, func() {
		r, ok = b.view.Get(id)
	})

	return r, ok, err
}

func (b *backend) Range(
	ctx context.Context,
	_ persistence.Session,
	fn func(persistence.Record) (bool, error),
) error {
	var records []persistence.Record

	if err := b.read(ctx, func() {
		records = b.view.Records()
	}); err != nil {
		return err
	}

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

	b.release()

	return nil
}

// read calls fn once the view has caught up with the topic.
func (b *backend) read(ctx context.Context, fn func()) error {
	return b.within(ctx, func(ctx context.Context) error {
		if err := b.catchUp(ctx); err != nil {
			return err
		}

		fn()
		return nil
	})
}

// write calls fn while holding the write lock for the given instance ID, once
// the view has caught up with the topic.
func (b *backend) write(
	ctx context.Context,
	id string,
	fn func(context.Context) error,
) error {
	return b.within(ctx, func(ctx context.Context) error {
		unlock, err := b.view.locks.Lock(ctx, id)
		if err != nil {
			return err
		}
		defer unlock()

		if err := b.catchUp(ctx); err != nil {
			return err
		}

		return fn(ctx)
	})
}

// append appends r to the topic and waits for it to be applied to the view.
func (b *backend) append(ctx context.Context, r persistence.Record) error {
	data, err := marshalRecord(r)
	if err != nil {
		return err
	}

	offset, err := b.view.topic.Append(ctx, r.ID, data)
	if err != nil {
		return err
	}

	return b.view.WaitFor(ctx, offset+1)
}

// catchUp waits for the view to apply every entry that is currently on the
// topic.
func (b *backend) catchUp(ctx context.Context) error {
	head, err := b.view.topic.Head(ctx)
	if err != nil {
		return err
	}

	return b.view.WaitFor(ctx, head)
}

// within calls fn with a context bounded by the backend's timeout.
//
// If the timeout elapses before the operation completes the backend is
// reported as unavailable.
func (b *backend) within(ctx context.Context, fn func(context.Context) error) error {
	if b.closed.Load() {
		return persistence.ErrStoreClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	tctx, cancel := linger.ContextWithTimeout(ctx, b.timeout)
	defer cancel()

	err := fn(tctx)

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return persistence.UnavailableError{
			Backend: BackendName,
			Cause:   err,
		}
	}

	return err
}
