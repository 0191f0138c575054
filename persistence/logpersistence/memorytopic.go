package logpersistence

import (
	"context"
	"sort"
	"sync"
)

// MemoryTopic is an implementation of Topic that stores entries in memory.
type MemoryTopic struct {
	m       sync.Mutex
	ready   chan struct{}
	head    uint64
	entries []Entry
}

// Append adds an entry to the end of the topic and returns its offset.
func (t *MemoryTopic) Append(ctx context.Context, key string, value []byte) (uint64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	t.m.Lock()
	defer t.m.Unlock()

	e := Entry{
		Offset: t.head,
		Key:    key,
	}

	if value != nil {
		e.Value = append([]byte{}, value...)
	}

	t.entries = append(t.entries, e)
	t.head++

	if t.ready != nil {
		close(t.ready)
		t.ready = nil
	}

	return e.Offset, nil
}

// Head returns the offset that will be assigned to the next entry.
func (t *MemoryTopic) Head(ctx context.Context) (uint64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	t.m.Lock()
	defer t.m.Unlock()

	return t.head, nil
}

// Open returns a cursor that reads entries beginning at the given offset.
func (t *MemoryTopic) Open(ctx context.Context, offset uint64) (Cursor, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return &memoryCursor{
		topic:  t,
		offset: offset,
		closed: make(chan struct{}),
	}, nil
}

// Compact removes the entries before the given offset that no longer
// contribute to the state of the topic.
func (t *MemoryTopic) Compact(ctx context.Context, before uint64) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	t.m.Lock()
	defer t.m.Unlock()

	latest := map[string]uint64{}
	for _, e := range t.entries {
		latest[e.Key] = e.Offset
	}

	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.Offset < before && e.Offset+1 != t.head {
			if latest[e.Key] != e.Offset || e.IsTombstone() {
				continue
			}
		}

		kept = append(kept, e)
	}

	// Clear the tail so that the dropped values can be collected.
	for i := len(kept); i < len(t.entries); i++ {
		t.entries[i] = Entry{}
	}

	t.entries = kept

	return nil
}

// memoryCursor is an implementation of Cursor that reads entries from a
// MemoryTopic.
type memoryCursor struct {
	topic  *MemoryTopic
	offset uint64
	once   sync.Once
	closed chan struct{}
}

func (c *memoryCursor) Next(ctx context.Context) (Entry, error) {
	for {
		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-c.closed:
			return Entry{}, ErrCursorClosed
		default:
		}

		e, ready := c.get()

		if ready == nil {
			return e, nil
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

func (c *memoryCursor) Close() error {
	err := ErrCursorClosed

	c.once.Do(func() {
		err = nil
		close(c.closed)
	})

	return err
}

// get returns the next entry, or if the end of the topic is reached, it
// returns a "ready" channel that is closed when an entry is appended.
func (c *memoryCursor) get() (Entry, <-chan struct{}) {
	c.topic.m.Lock()
	defer c.topic.m.Unlock()

	entries := c.topic.entries
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Offset >= c.offset
	})

	if i < len(entries) {
		e := entries[i]
		c.offset = e.Offset + 1
		return e, nil
	}

	if c.topic.ready == nil {
		c.topic.ready = make(chan struct{})
	}

	return Entry{}, c.topic.ready
}
