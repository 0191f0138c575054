package logpersistence

import (
	"context"
	"errors"
)

// ErrCursorClosed is returned by Cursor.Next() when the cursor has been
// closed.
var ErrCursorClosed = errors.New("cursor is closed")

// Entry is a single entry on a topic.
type Entry struct {
	// Offset is the position of the entry on the topic. Offsets are assigned
	// sequentially beginning at 0 and are never reused, even after
	// compaction.
	Offset uint64

	// Key is the entry's key, the process instance ID.
	Key string

	// Value is the serialized record. A nil value is a tombstone that marks
	// the removal of the key.
	Value []byte
}

// IsTombstone returns true if the entry marks the removal of its key.
func (e Entry) IsTombstone() bool {
	return e.Value == nil
}

// Topic is an append-only, keyed log of entries.
type Topic interface {
	// Append adds an entry to the end of the topic and returns its offset.
	//
	// A nil value appends a tombstone.
	Append(ctx context.Context, key string, value []byte) (uint64, error)

	// Head returns the offset that will be assigned to the next entry.
	Head(ctx context.Context) (uint64, error)

	// Open returns a cursor that reads entries beginning at the given offset.
	//
	// Entries removed by compaction are skipped.
	Open(ctx context.Context, offset uint64) (Cursor, error)

	// Compact removes the entries before the given offset that no longer
	// contribute to the state of the topic.
	//
	// An entry is removed if a later entry has the same key. A tombstone is
	// removed if it is the latest entry for its key. The last entry on the
	// topic is never removed, so a reader that consumes every remaining entry
	// always reaches the head offset.
	Compact(ctx context.Context, before uint64) error
}

// Cursor reads entries from a topic.
type Cursor interface {
	// Next returns the next entry on the topic.
	//
	// If the end of the topic is reached it blocks until an entry is appended
	// or ctx is canceled.
	Next(ctx context.Context) (Entry, error)

	// Close stops the cursor.
	//
	// Any current or future calls to Next() return ErrCursorClosed.
	Close() error
}
