package process

import "fmt"

// State is the lifecycle state of a process instance.
type State int

const (
	StatePending State = iota
	StateActive
	StateCompleted
	StateAborted
	StateSuspended
	StateError
)

// IsActive returns true if an instance in this state may still make progress.
//
// Completed and aborted instances are inactive.
func (s State) IsActive() bool {
	return s != StateCompleted && s != StateAborted
}

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateSuspended:
		return "suspended"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReadMode selects how a persisted instance is materialized.
type ReadMode int

const (
	// Mutable materializes an instance that may be modified and saved.
	Mutable ReadMode = iota

	// ReadOnly materializes an instance that rejects all modifications.
	ReadOnly
)

func (m ReadMode) String() string {
	if m == ReadOnly {
		return "read-only"
	}

	return "mutable"
}
