package process

import (
	"context"
	"sort"
	"sync"

	"github.com/dogmatiq/procyon/variable"
)

// ReloadFunc replaces the content of inst with its latest persisted state.
type ReloadFunc func(ctx context.Context, inst *Instance) error

// Instance is a process instance.
//
// Instances are created with Arena.NewInstance(). All methods are safe for
// concurrent use.
type Instance struct {
	arena *Arena
	ref   InstanceRef
	vars  variable.Scope

	m              sync.RWMutex
	id             string
	processID      string
	processVersion string
	parentID       string
	businessKey    string
	state          State
	version        int64
	nodes          []NodeRef
	events         map[string]struct{}
	readOnly       bool
	reload         ReloadFunc
}

// Ref returns the instance's index within its arena.
func (i *Instance) Ref() InstanceRef {
	return i.ref
}

// Arena returns the arena that contains the instance.
func (i *Instance) Arena() *Arena {
	return i.arena
}

// ID returns the instance's ID.
func (i *Instance) ID() string {
	i.m.RLock()
	defer i.m.RUnlock()

	return i.id
}

// ProcessID returns the ID of the process definition.
func (i *Instance) ProcessID() string {
	i.m.RLock()
	defer i.m.RUnlock()

	return i.processID
}

// ProcessVersion returns the version of the process definition.
func (i *Instance) ProcessVersion() string {
	i.m.RLock()
	defer i.m.RUnlock()

	return i.processVersion
}

// SetProcess changes the process definition that the instance belongs to.
//
// It is used when migrating an instance to a new definition and does not
// count as a modification of a read-only instance.
func (i *Instance) SetProcess(processID, processVersion string) {
	i.m.Lock()
	defer i.m.Unlock()

	i.processID = processID
	i.processVersion = processVersion
}

// ParentID returns the ID of the parent process instance, if any.
func (i *Instance) ParentID() string {
	i.m.RLock()
	defer i.m.RUnlock()

	return i.parentID
}

// SetParentID sets the ID of the parent process instance.
func (i *Instance) SetParentID(id string) error {
	return i.mutate(func() {
		i.parentID = id
	})
}

// BusinessKey returns the instance's business key, if any.
func (i *Instance) BusinessKey() string {
	i.m.RLock()
	defer i.m.RUnlock()

	return i.businessKey
}

// SetBusinessKey sets the instance's business key.
func (i *Instance) SetBusinessKey(k string) error {
	return i.mutate(func() {
		i.businessKey = k
	})
}

// State returns the instance's lifecycle state.
func (i *Instance) State() State {
	i.m.RLock()
	defer i.m.RUnlock()

	return i.state
}

// SetState sets the instance's lifecycle state.
func (i *Instance) SetState(s State) error {
	return i.mutate(func() {
		i.state = s
	})
}

// IsActive returns true if the instance has neither completed nor aborted.
func (i *Instance) IsActive() bool {
	return i.State().IsActive()
}

// Version returns the persisted version of the instance as last observed.
func (i *Instance) Version() int64 {
	i.m.RLock()
	defer i.m.RUnlock()

	return i.version
}

// SetVersion sets the persisted version of the instance.
//
// It is called by stores after reading or writing the instance.
func (i *Instance) SetVersion(v int64) {
	i.m.Lock()
	defer i.m.Unlock()

	i.version = v
}

// IsReadOnly returns true if the instance rejects modifications.
func (i *Instance) IsReadOnly() bool {
	i.m.RLock()
	defer i.m.RUnlock()

	return i.readOnly
}

// SetMode sets whether the instance accepts modifications.
func (i *Instance) SetMode(m ReadMode) {
	i.m.Lock()
	defer i.m.Unlock()

	i.readOnly = m == ReadOnly
}

// Variable returns the value of a variable visible to the instance.
func (i *Instance) Variable(name string) (any, bool) {
	return i.vars.Get(name)
}

// SetVariable assigns a value to one of the instance's variables.
func (i *Instance) SetVariable(name string, value any) error {
	if i.IsReadOnly() {
		return ErrReadOnly
	}

	return i.vars.Set(name, value)
}

// DeclareVariable declares the tags of one of the instance's variables.
func (i *Instance) DeclareVariable(name string, tags ...string) error {
	if i.IsReadOnly() {
		return ErrReadOnly
	}

	i.vars.Declare(name, tags...)
	return nil
}

// AddNode adds a new node instance to the process instance.
func (i *Instance) AddNode(id, nodeID string) (*NodeInstance, error) {
	if i.IsReadOnly() {
		return nil, ErrReadOnly
	}

	n := i.arena.newNode(i.ref, id, nodeID)

	i.m.Lock()
	i.nodes = append(i.nodes, n.ref)
	i.m.Unlock()

	return n, nil
}

// RemoveNode removes a node instance from the process instance.
func (i *Instance) RemoveNode(n *NodeInstance) error {
	if i.IsReadOnly() {
		return ErrReadOnly
	}

	i.m.Lock()
	for x, r := range i.nodes {
		if r == n.ref {
			i.nodes = append(i.nodes[:x], i.nodes[x+1:]...)
			break
		}
	}
	i.m.Unlock()

	i.arena.m.Lock()
	i.arena.releaseNodes([]NodeRef{n.ref})
	i.arena.m.Unlock()

	return nil
}

// Nodes returns the instance's node instances in the order they were added.
func (i *Instance) Nodes() []*NodeInstance {
	i.m.RLock()
	refs := append([]NodeRef(nil), i.nodes...)
	i.m.RUnlock()

	nodes := make([]*NodeInstance, 0, len(refs))
	for _, r := range refs {
		if n, ok := i.arena.Node(r); ok {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

// Subscribe registers the instance as waiting for events of the given type.
func (i *Instance) Subscribe(eventType string) error {
	return i.mutate(func() {
		if i.events == nil {
			i.events = map[string]struct{}{}
		}
		i.events[eventType] = struct{}{}
	})
}

// Unsubscribe removes the instance's interest in events of the given type.
func (i *Instance) Unsubscribe(eventType string) error {
	return i.mutate(func() {
		delete(i.events, eventType)
	})
}

// IsWaitingFor returns true if the instance is waiting for events of the given
// type.
func (i *Instance) IsWaitingFor(eventType string) bool {
	i.m.RLock()
	defer i.m.RUnlock()

	_, ok := i.events[eventType]
	return ok
}

// EventTypes returns the event types that the instance is waiting for, in
// lexical order.
func (i *Instance) EventTypes() []string {
	i.m.RLock()
	defer i.m.RUnlock()

	types := make([]string, 0, len(i.events))
	for t := range i.events {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}

// SignalEvent delivers an event to the instance.
//
// Events delivered to inactive instances are discarded.
func (i *Instance) SignalEvent(ctx context.Context, eventType string, payload any) error {
	if i.IsReadOnly() {
		return ErrReadOnly
	}

	if !i.IsActive() {
		return nil
	}

	if h := i.arena.Handler; h != nil {
		return h.HandleSignal(ctx, i, eventType, payload)
	}

	return nil
}

// BindReload binds the instance to a function that reloads its persisted state.
func (i *Instance) BindReload(fn ReloadFunc) {
	i.m.Lock()
	defer i.m.Unlock()

	i.reload = fn
}

// Reload replaces the instance's content with its latest persisted state.
func (i *Instance) Reload(ctx context.Context) error {
	i.m.RLock()
	fn := i.reload
	i.m.RUnlock()

	if fn == nil {
		return ErrNotBound
	}

	return fn(ctx, i)
}

// mutate calls fn with the instance's lock held, unless it is read-only.
func (i *Instance) mutate(fn func()) error {
	i.m.Lock()
	defer i.m.Unlock()

	if i.readOnly {
		return ErrReadOnly
	}

	fn()

	return nil
}
