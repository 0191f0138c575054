package process

import "sync"

// NodeInstance is an instance of a node within a process instance.
type NodeInstance struct {
	arena *Arena
	ref   NodeRef
	owner InstanceRef
	id    string

	m      sync.RWMutex
	nodeID string
}

// Ref returns the node instance's index within its arena.
func (n *NodeInstance) Ref() NodeRef {
	return n.ref
}

// ID returns the node instance's ID.
func (n *NodeInstance) ID() string {
	return n.id
}

// NodeID returns the ID of the node definition that this is an instance of.
func (n *NodeInstance) NodeID() string {
	n.m.RLock()
	defer n.m.RUnlock()

	return n.nodeID
}

// SetNodeID changes the node definition that this is an instance of.
func (n *NodeInstance) SetNodeID(id string) {
	n.m.Lock()
	defer n.m.Unlock()

	n.nodeID = id
}

// Owner returns the process instance that owns the node instance.
func (n *NodeInstance) Owner() (*Instance, bool) {
	return n.arena.Instance(n.owner)
}
