package process

import (
	"sync"

	"github.com/google/uuid"
)

// InstanceRef is the index of a process instance within an Arena.
type InstanceRef int

// NodeRef is the index of a node instance within an Arena.
type NodeRef int

// Arena holds process instances and node instances in index-addressed tables.
//
// Slots are reused once an instance is released. The zero value is ready to
// use.
type Arena struct {
	// Handler handles signals delivered to instances in the arena. If it is
	// nil, signals are accepted and discarded.
	Handler SignalHandler

	m         sync.RWMutex
	instances []*Instance
	nodes     []*NodeInstance
	freeInst  []InstanceRef
	freeNodes []NodeRef
}

// NewID returns a new random instance ID.
func NewID() string {
	return uuid.NewString()
}

// NewInstance allocates a new pending process instance in the arena.
func (a *Arena) NewInstance(id, processID, processVersion string) *Instance {
	inst := &Instance{
		arena:          a,
		id:             id,
		processID:      processID,
		processVersion: processVersion,
	}
	inst.vars.Owner = inst

	a.m.Lock()
	defer a.m.Unlock()

	if n := len(a.freeInst); n > 0 {
		inst.ref = a.freeInst[n-1]
		a.freeInst = a.freeInst[:n-1]
		a.instances[inst.ref] = inst
	} else {
		inst.ref = InstanceRef(len(a.instances))
		a.instances = append(a.instances, inst)
	}

	return inst
}

// Instance returns the instance at index r.
func (a *Arena) Instance(r InstanceRef) (*Instance, bool) {
	a.m.RLock()
	defer a.m.RUnlock()

	if r < 0 || int(r) >= len(a.instances) {
		return nil, false
	}

	inst := a.instances[r]
	return inst, inst != nil
}

// Node returns the node instance at index r.
func (a *Arena) Node(r NodeRef) (*NodeInstance, bool) {
	a.m.RLock()
	defer a.m.RUnlock()

	if r < 0 || int(r) >= len(a.nodes) {
		return nil, false
	}

	n := a.nodes[r]
	return n, n != nil
}

// Len returns the number of live instances in the arena.
func (a *Arena) Len() int {
	a.m.RLock()
	defer a.m.RUnlock()

	return len(a.instances) - len(a.freeInst)
}

// Release removes inst and its node instances from the arena.
//
// inst must not be used after it is released.
func (a *Arena) Release(inst *Instance) {
	inst.m.Lock()
	nodes := inst.nodes
	inst.nodes = nil
	inst.m.Unlock()

	a.m.Lock()
	defer a.m.Unlock()

	a.releaseNodes(nodes)

	if a.instances[inst.ref] == inst {
		a.instances[inst.ref] = nil
		a.freeInst = append(a.freeInst, inst.ref)
	}
}

// newNode allocates a node instance owned by the instance at index owner.
func (a *Arena) newNode(owner InstanceRef, id, nodeID string) *NodeInstance {
	n := &NodeInstance{
		arena:  a,
		owner:  owner,
		id:     id,
		nodeID: nodeID,
	}

	a.m.Lock()
	defer a.m.Unlock()

	if k := len(a.freeNodes); k > 0 {
		n.ref = a.freeNodes[k-1]
		a.freeNodes = a.freeNodes[:k-1]
		a.nodes[n.ref] = n
	} else {
		n.ref = NodeRef(len(a.nodes))
		a.nodes = append(a.nodes, n)
	}

	return n
}

// releaseNodes frees the slots of the given nodes. a.m must be held.
func (a *Arena) releaseNodes(refs []NodeRef) {
	for _, r := range refs {
		if a.nodes[r] != nil {
			a.nodes[r] = nil
			a.freeNodes = append(a.freeNodes, r)
		}
	}
}
