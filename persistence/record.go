package persistence

import (
	"github.com/dogmatiq/marshalkit"
)

// Record is the persisted form of a process instance.
type Record struct {
	// ID is the process instance ID.
	ID string

	// Version is the instance's current version, used to enforce optimistic
	// concurrency control.
	Version int64

	// Packet contains the binary representation of the instance.
	Packet marshalkit.Packet
}
