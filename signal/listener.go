package signal

import (
	"context"

	"github.com/dogmatiq/procyon/process"
)

// Listener is a recipient of events registered with a Hub.
//
// It is one of InstanceListener or CallbackListener.
type Listener interface {
	// key returns a value that identifies the listener within the list of
	// listeners for a single event type.
	key() string
}

// InstanceListener is a Listener that delivers events to a process instance
// that is loaded in memory.
type InstanceListener struct {
	Instance *process.Instance
}

func (l InstanceListener) key() string {
	return "instance:" + l.Instance.ID()
}

// Callback is a function that receives events.
type Callback func(ctx context.Context, eventType string, payload any) error

// CallbackListener is a Listener that delivers events to an arbitrary
// function.
type CallbackListener struct {
	// Name identifies the listener. Registering a second callback listener
	// with the same name for the same event type has no effect.
	Name string

	// Callback is the function that receives the events.
	Callback Callback
}

func (l CallbackListener) key() string {
	return "callback:" + l.Name
}

// Resolver locates durable process instances that are not necessarily loaded
// in memory.
//
// Ownership of each returned instance passes to the caller, which releases it
// from its arena when it is no longer needed. A resolver must therefore return
// newly materialized instances, never an instance that is in use elsewhere,
// such as one registered with an InstanceListener.
type Resolver interface {
	// WaitingForEvents returns the instances that are waiting for events of
	// the given type.
	//
	// The caller releases every returned instance, including those that it
	// does not deliver to.
	WaitingForEvents(ctx context.Context, eventType string) ([]*process.Instance, error)

	// FindByID returns the instance with the given ID.
	//
	// The caller releases the returned instance.
	FindByID(ctx context.Context, id string) (*process.Instance, bool, error)
}
