package signal

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon/process"
	"go.uber.org/multierr"
)

// registry maps event types to the listeners registered for them.
//
// A registry is never modified once it is published. The list for any event
// type is never empty.
type registry map[string][]Listener

// Hub delivers events to the listeners registered for them and to durable
// instances located by its resolvers.
//
// The zero value is ready to use. Listeners may be added and removed while
// events are being delivered.
type Hub struct {
	// Migrator, if non-nil, migrates instances obtained from resolvers before
	// events are delivered to them.
	Migrator process.Migrator

	// Logger is the target for log messages about event delivery.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m         sync.Mutex // serializes writers
	listeners atomic.Pointer[registry]
	resolvers atomic.Pointer[[]Resolver]
}

// AddEventListener registers l to receive events of the given type.
//
// It has no effect if an equivalent listener is already registered for that
// type.
func (h *Hub) AddEventListener(eventType string, l Listener) {
	h.m.Lock()
	defer h.m.Unlock()

	prev := h.registry()
	existing := prev[eventType]

	k := l.key()
	for _, x := range existing {
		if x.key() == k {
			return
		}
	}

	next := prev.clone()
	next[eventType] = append(
		append([]Listener(nil), existing...),
		l,
	)

	h.listeners.Store(&next)
}

// RemoveEventListener stops l from receiving events of the given type.
func (h *Hub) RemoveEventListener(eventType string, l Listener) {
	h.m.Lock()
	defer h.m.Unlock()

	prev := h.registry()
	existing, ok := prev[eventType]
	if !ok {
		return
	}

	k := l.key()
	remaining := make([]Listener, 0, len(existing))
	for _, x := range existing {
		if x.key() != k {
			remaining = append(remaining, x)
		}
	}

	if len(remaining) == len(existing) {
		return
	}

	next := prev.clone()
	if len(remaining) == 0 {
		delete(next, eventType)
	} else {
		next[eventType] = remaining
	}

	h.listeners.Store(&next)
}

// Listeners returns the listeners registered for the given event type.
func (h *Hub) Listeners(eventType string) []Listener {
	return append([]Listener(nil), h.registry()[eventType]...)
}

// AddResolver adds a resolver that is consulted for durable instances.
func (h *Hub) AddResolver(r Resolver) {
	h.m.Lock()
	defer h.m.Unlock()

	var next []Resolver
	if prev := h.resolvers.Load(); prev != nil {
		next = append(next, *prev...)
	}
	next = append(next, r)

	h.resolvers.Store(&next)
}

// Accept returns true if an event of the given type would be delivered to at
// least one listener or instance.
func (h *Hub) Accept(ctx context.Context, eventType string) (bool, error) {
	if len(h.registry()[eventType]) != 0 {
		return true, nil
	}

	for _, r := range h.resolverList() {
		instances, err := r.WaitingForEvents(ctx, eventType)
		if err != nil {
			return false, err
		}

		release(instances)

		if len(instances) != 0 {
			return true, nil
		}
	}

	return false, nil
}

// SignalEvent delivers an event to every listener registered for its type,
// then to each instance reported as waiting for it by the hub's resolvers.
//
// Each instance receives the event at most once, even if it is reachable both
// through a listener and a resolver. Delivery continues after a failure; all
// failures are returned together.
func (h *Hub) SignalEvent(ctx context.Context, eventType string, payload any) error {
	var (
		err       error
		delivered = map[string]struct{}{}
		listeners = h.registry()[eventType]
	)

	for _, l := range listeners {
		switch l := l.(type) {
		case InstanceListener:
			delivered[l.Instance.ID()] = struct{}{}
			err = multierr.Append(
				err,
				l.Instance.SignalEvent(ctx, eventType, payload),
			)
		case CallbackListener:
			err = multierr.Append(
				err,
				l.Callback(ctx, eventType, payload),
			)
		}
	}

	resolved := 0

	for _, r := range h.resolverList() {
		instances, rerr := r.WaitingForEvents(ctx, eventType)
		if rerr != nil {
			err = multierr.Append(err, rerr)
			continue
		}

		for _, inst := range instances {
			id := inst.ID()

			if _, ok := delivered[id]; !ok {
				delivered[id] = struct{}{}
				resolved++
				err = multierr.Append(
					err,
					h.deliver(ctx, inst, eventType, payload),
				)
			}

			inst.Arena().Release(inst)
		}
	}

	logging.Debug(
		h.Logger,
		"delivered '%s' event to %d listener(s) and %d resolved instance(s)",
		eventType,
		len(listeners),
		resolved,
	)

	return err
}

// SignalInstance delivers an event directly to the instance with the given
// ID, as located by the hub's resolvers.
//
// Registered listeners are not notified. It returns an UnknownInstanceError if
// no resolver can find the instance.
func (h *Hub) SignalInstance(
	ctx context.Context,
	instanceID, eventType string,
	payload any,
) error {
	var err error

	for _, r := range h.resolverList() {
		inst, ok, rerr := r.FindByID(ctx, instanceID)
		if rerr != nil {
			err = multierr.Append(err, rerr)
			continue
		}

		if !ok {
			continue
		}

		defer inst.Arena().Release(inst)

		logging.Debug(
			h.Logger,
			"delivering '%s' event to process instance '%s'",
			eventType,
			instanceID,
		)

		return h.deliver(ctx, inst, eventType, payload)
	}

	if err != nil {
		return err
	}

	return UnknownInstanceError{InstanceID: instanceID}
}

// deliver migrates an instance obtained from a resolver, if necessary, then
// delivers an event to it.
func (h *Hub) deliver(
	ctx context.Context,
	inst *process.Instance,
	eventType string,
	payload any,
) error {
	if h.Migrator != nil && h.Migrator.Migrate(inst) {
		logging.Debug(
			h.Logger,
			"migrated process instance '%s' to %s@%s",
			inst.ID(),
			inst.ProcessID(),
			inst.ProcessVersion(),
		)
	}

	return inst.SignalEvent(ctx, eventType, payload)
}

// registry returns the current listener registry.
func (h *Hub) registry() registry {
	if r := h.listeners.Load(); r != nil {
		return *r
	}

	return nil
}

// resolverList returns the current resolvers.
func (h *Hub) resolverList() []Resolver {
	if r := h.resolvers.Load(); r != nil {
		return *r
	}

	return nil
}

// clone returns a shallow copy of r.
func (r registry) clone() registry {
	c := make(registry, len(r)+1)
	for k, v := range r {
		c[k] = v
	}
	return c
}

// release returns the given instances to their arenas.
func release(instances []*process.Instance) {
	for _, inst := range instances {
		inst.Arena().Release(inst)
	}
}
