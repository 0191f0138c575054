package logpersistence

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/dogmatiq/procyon/internal/x/bboltx"
	"go.etcd.io/bbolt"
)

var (
	// topicsBucketKey is the key for the root bucket for topics.
	//
	// The keys are topic names. The values are buckets containing the topic's
	// head offset and its entries.
	topicsBucketKey = []byte("topics")

	// headKey is the key within a topic bucket that holds the offset of the
	// next entry.
	headKey = []byte("head")

	// entriesBucketKey is the key for the bucket within a topic bucket that
	// holds the topic's entries, keyed by big-endian offset.
	entriesBucketKey = []byte("entries")
)

// BoltTopic is an implementation of Topic that stores entries in a BoltDB
// database.
type BoltTopic struct {
	// DB is the database that contains the topic.
	DB *bbolt.DB

	// Name is the name of the topic. Topics with different names in the same
	// database are independent.
	Name string

	m     sync.Mutex
	ready chan struct{}
}

// entryDocument is the representation of an entry within BoltDB.
type entryDocument struct {
	Key       string `json:"key"`
	Value     []byte `json:"value,omitempty"`
	Tombstone bool   `json:"tombstone,omitempty"`
}

// Append adds an entry to the end of the topic and returns its offset.
func (t *BoltTopic) Append(ctx context.Context, key string, value []byte) (offset uint64, err error) {
	defer bboltx.Recover(&err)

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	bboltx.Update(t.DB, func(tx *bbolt.Tx) {
		b := bboltx.CreateBucketIfNotExists(tx, topicsBucketKey, []byte(t.Name))
		entries := bboltx.CreateBucketIfNotExists(b, entriesBucketKey)

		offset = loadHead(b)

		doc := entryDocument{
			Key:       key,
			Value:     value,
			Tombstone: value == nil,
		}

		data, err := json.Marshal(doc)
		bboltx.Must(err)

		bboltx.Put(entries, marshalOffset(offset), data)
		bboltx.Put(b, headKey, marshalOffset(offset+1))

		tx.OnCommit(t.notify)
	})

	return offset, nil
}

// Head returns the offset that will be assigned to the next entry.
func (t *BoltTopic) Head(ctx context.Context) (head uint64, err error) {
	defer bboltx.Recover(&err)

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	bboltx.View(t.DB, func(tx *bbolt.Tx) {
		if b := bboltx.Bucket(tx, topicsBucketKey, []byte(t.Name)); b != nil {
			head = loadHead(b)
		}
	})

	return head, nil
}

// Open returns a cursor that reads entries beginning at the given offset.
func (t *BoltTopic) Open(ctx context.Context, offset uint64) (Cursor, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return &boltCursor{
		topic:  t,
		offset: offset,
		closed: make(chan struct{}),
	}, nil
}

// Compact removes the entries before the given offset that no longer
// contribute to the state of the topic.
func (t *BoltTopic) Compact(ctx context.Context, before uint64) (err error) {
	defer bboltx.Recover(&err)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	bboltx.Update(t.DB, func(tx *bbolt.Tx) {
		b := bboltx.Bucket(tx, topicsBucketKey, []byte(t.Name))
		if b == nil {
			return
		}

		entries := bboltx.Bucket(b, entriesBucketKey)
		if entries == nil {
			return
		}

		head := loadHead(b)

		type position struct {
			offset    uint64
			tombstone bool
		}

		latest := map[string]position{}
		bboltx.Must(entries.ForEach(func(k, v []byte) error {
			doc := unmarshalEntry(v)
			latest[doc.Key] = position{unmarshalOffset(k), doc.Tombstone}
			return nil
		}))

		var garbage [][]byte
		bboltx.Must(entries.ForEach(func(k, v []byte) error {
			offset := unmarshalOffset(k)
			if offset >= before || offset+1 == head {
				return nil
			}

			p := latest[unmarshalEntry(v).Key]
			if p.offset != offset || p.tombstone {
				garbage = append(garbage, append([]byte(nil), k...))
			}

			return nil
		}))

		for _, k := range garbage {
			bboltx.Delete(entries, k)
		}
	})

	return nil
}

// notify wakes any cursors that are waiting for new entries.
func (t *BoltTopic) notify() {
	t.m.Lock()
	defer t.m.Unlock()

	if t.ready != nil {
		close(t.ready)
		t.ready = nil
	}
}

// boltCursor is an implementation of Cursor that reads entries from a
// BoltTopic.
type boltCursor struct {
	topic  *BoltTopic
	offset uint64
	once   sync.Once
	closed chan struct{}
}

func (c *boltCursor) Next(ctx context.Context) (Entry, error) {
	for {
		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-c.closed:
			return Entry{}, ErrCursorClosed
		default:
		}

		e, ready, err := c.get()

		if err != nil || ready == nil {
			return e, err
		}

		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-c.closed:
			return Entry{}, ErrCursorClosed
		case <-ready:
		}
	}
}

func (c *boltCursor) Close() error {
	err := ErrCursorClosed

	c.once.Do(func() {
		err = nil
		close(c.closed)
	})

	return err
}

// get returns the next entry, or if the end of the topic is reached, it
// returns a "ready" channel that is closed when an entry is appended.
func (c *boltCursor) get() (e Entry, ready <-chan struct{}, err error) {
	defer bboltx.Recover(&err)

	// The ready channel is obtained before reading so that an append that
	// commits after the read is never missed.
	c.topic.m.Lock()
	if c.topic.ready == nil {
		c.topic.ready = make(chan struct{})
	}
	ready = c.topic.ready
	c.topic.m.Unlock()

	found := false

	bboltx.View(c.topic.DB, func(tx *bbolt.Tx) {
		entries := bboltx.Bucket(tx, topicsBucketKey, []byte(c.topic.Name), entriesBucketKey)
		if entries == nil {
			return
		}

		k, v := entries.Cursor().Seek(marshalOffset(c.offset))
		if k == nil {
			return
		}

		doc := unmarshalEntry(v)
		e = Entry{
			Offset: unmarshalOffset(k),
			Key:    doc.Key,
		}

		if !doc.Tombstone {
			e.Value = doc.Value
			if e.Value == nil {
				e.Value = []byte{}
			}
		}

		found = true
	})

	if found {
		c.offset = e.Offset + 1
		return e, nil, nil
	}

	return Entry{}, ready, nil
}

// loadHead returns the head offset stored in the topic bucket b.
func loadHead(b *bbolt.Bucket) uint64 {
	if data := b.Get(headKey); data != nil {
		return unmarshalOffset(data)
	}

	return 0
}

// marshalOffset returns the big-endian representation of an offset.
func marshalOffset(offset uint64) []byte {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], offset)
	return data[:]
}

// unmarshalOffset decodes an offset produced by marshalOffset().
func unmarshalOffset(data []byte) uint64 {
	return binary.BigEndian.Uint64(data)
}

// unmarshalEntry decodes an entry document.
func unmarshalEntry(data []byte) entryDocument {
	var doc entryDocument
	bboltx.Must(json.Unmarshal(data, &doc))
	return doc
}
