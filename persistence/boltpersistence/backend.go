package boltpersistence

import (
	"context"
	"sync"

	"github.com/dogmatiq/procyon/internal/x/bboltx"
	"github.com/dogmatiq/procyon/persistence"
	"go.etcd.io/bbolt"
)

// instancesBucketKey is the key for the root bucket for process instances.
//
// The keys are process definition IDs. The values are buckets containing the
// instances of that process, keyed by instance ID. The values within those
// buckets are documents marshaled as JSON.
var instancesBucketKey = []byte("instances")

// backend is an implementation of persistence.Backend for BoltDB.
type backend struct {
	db        *bbolt.DB
	processID []byte

	m       sync.RWMutex
	release func() error
}

func (b *backend) Insert(
	ctx context.Context,
	s persistence.Session,
	r persistence.Record,
) (ok bool, err error) {
	defer bboltx.Recover(&err)

	b.update(ctx, s, func(tx *bbolt.Tx) {
		bucket := bboltx.CreateBucketIfNotExists(tx, instancesBucketKey, b.processID)
		k := []byte(r.ID)

		if bucket.Get(k) != nil {
			return
		}

		bboltx.Put(bucket, k, marshalRecord(r))
		ok = true
	})

	return ok, nil
}

func (b *backend) Update(
	ctx context.Context,
	s persistence.Session,
	r persistence.Record,
) (ok bool, err error) {
	defer bboltx.Recover(&err)

	b.update(ctx, s, func(tx *bbolt.Tx) {
		bucket := bboltx.Bucket(tx, instancesBucketKey, b.processID)
		k := []byte(r.ID)

		data := bboltx.Get(bucket, k)
		if data == nil {
			return
		}

		if unmarshalRecord(data).Version != r.Version {
			return
		}

		r.Version++
		bboltx.Put(bucket, k, marshalRecord(r))
		ok = true
	})

	return ok, nil
}

func (b *backend) Save(
	ctx context.Context,
	s persistence.Session,
	r persistence.Record,
) (err error) {
	defer bboltx.Recover(&err)

	b.update(ctx, s, func(tx *bbolt.Tx) {
		bucket := bboltx.CreateBucketIfNotExists(tx, instancesBucketKey, b.processID)
		bboltx.Put(bucket, []byte(r.ID), marshalRecord(r))
	})

	return nil
}

func (b *backend) Delete(
	ctx context.Context,
	s persistence.Session,
	id string,
) (ok bool, err error) {
	defer bboltx.Recover(&err)

	b.update(ctx, s, func(tx *bbolt.Tx) {
		bucket := bboltx.Bucket(tx, instancesBucketKey, b.processID)
		k := []byte(id)

		if bucket == nil || bucket.Get(k) == nil {
			return
		}

		bboltx.Delete(bucket, k)
		ok = true
	})

	return ok, nil
}

func (b *backend) Load(
	ctx context.Context,
	s persistence.Session,
	id string,
) (r persistence.Record, ok bool, err error) {
	defer bboltx.Recover(&err)

	b.view(ctx, s, func(tx *bbolt.Tx) {
		bucket := bboltx.Bucket(tx, instancesBucketKey, b.processID)

		if data := bboltx.Get(bucket, []byte(id)); data != nil {
			r = unmarshalRecord(data)
			ok = true
		}
	})

	return r, ok, nil
}

func (b *backend) Range(
	ctx context.Context,
	s persistence.Session,
	fn func(persistence.Record) (bool, error),
) (err error) {
	defer bboltx.Recover(&err)

	var records []persistence.Record

	b.view(ctx, s, func(tx *bbolt.Tx) {
		bucket := bboltx.Bucket(tx, instancesBucketKey, b.processID)
		if bucket == nil {
			return
		}

		bboltx.Must(bucket.ForEach(func(_, v []byte) error {
			records = append(records, unmarshalRecord(v))
			return nil
		}))
	})

	// fn is called outside of the transaction so that it may perform its own
	// operations on the database.
	for _, r := range records {
		ok, err := fn(r)
		if !ok || err != nil {
			return err
		}
	}

	return nil
}

// Close closes the backend.
//
// The underlying database is closed once all backends opened by the same
// provider are closed.
func (b *backend) Close() error {
	b.m.Lock()
	defer b.m.Unlock()

	if b.release == nil {
		return persistence.ErrStoreClosed
	}

	r := b.release
	b.db = nil
	b.release = nil

	return r()
}

// view calls fn within a read-only transaction, or within the session's
// transaction if s is a BoltDB session.
func (b *backend) view(ctx context.Context, s persistence.Session, fn func(*bbolt.Tx)) {
	b.run(ctx, s, fn, bboltx.View)
}

// update calls fn within a read/write transaction, or within the session's
// transaction if s is a BoltDB session.
func (b *backend) update(ctx context.Context, s persistence.Session, fn func(*bbolt.Tx)) {
	b.run(ctx, s, fn, bboltx.Update)
}

func (b *backend) run(
	ctx context.Context,
	s persistence.Session,
	fn func(*bbolt.Tx),
	begin func(*bbolt.DB, func(*bbolt.Tx)),
) {
	bboltx.Must(ctx.Err())

	b.m.RLock()
	defer b.m.RUnlock()

	if b.release == nil {
		bboltx.Must(persistence.ErrStoreClosed)
	}

	if s == nil {
		begin(b.db, fn)
		return
	}

	sess, ok := s.(*Session)
	if !ok {
		bboltx.Must(persistence.SessionMismatchError{
			Backend: BackendName,
			Session: s,
		})
	}

	fn(sess.Tx)
}
