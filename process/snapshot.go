package process

import (
	"github.com/dogmatiq/procyon/variable"
)

// Snapshot is the serializable representation of a process instance.
type Snapshot struct {
	ID             string              `json:"id"`
	ProcessID      string              `json:"processId"`
	ProcessVersion string              `json:"processVersion"`
	ParentID       string              `json:"parentId,omitempty"`
	BusinessKey    string              `json:"businessKey,omitempty"`
	State          State               `json:"state"`
	Nodes          []NodeSnapshot      `json:"nodes,omitempty"`
	Events         []string            `json:"events,omitempty"`
	Variables      []variable.Variable `json:"variables,omitempty"`
}

// NodeSnapshot is the serializable representation of a node instance.
type NodeSnapshot struct {
	ID     string `json:"id"`
	NodeID string `json:"nodeId"`
}

// Snapshot returns the serializable representation of the instance.
func (i *Instance) Snapshot() Snapshot {
	i.m.RLock()
	s := Snapshot{
		ID:             i.id,
		ProcessID:      i.processID,
		ProcessVersion: i.processVersion,
		ParentID:       i.parentID,
		BusinessKey:    i.businessKey,
		State:          i.state,
	}
	i.m.RUnlock()

	for _, n := range i.Nodes() {
		s.Nodes = append(s.Nodes, NodeSnapshot{
			ID:     n.ID(),
			NodeID: n.NodeID(),
		})
	}

	s.Events = i.EventTypes()
	s.Variables = i.vars.Variables()

	return s
}

// Restore replaces the content of the instance with s.
//
// The instance's version, mode and reload binding are unchanged. Existing node
// instances are released from the arena.
func (i *Instance) Restore(s Snapshot) {
	i.m.Lock()
	old := i.nodes
	i.nodes = nil
	i.id = s.ID
	i.processID = s.ProcessID
	i.processVersion = s.ProcessVersion
	i.parentID = s.ParentID
	i.businessKey = s.BusinessKey
	i.state = s.State
	i.events = nil
	for _, t := range s.Events {
		if i.events == nil {
			i.events = map[string]struct{}{}
		}
		i.events[t] = struct{}{}
	}
	i.m.Unlock()

	i.arena.m.Lock()
	i.arena.releaseNodes(old)
	i.arena.m.Unlock()

	refs := make([]NodeRef, 0, len(s.Nodes))
	for _, ns := range s.Nodes {
		n := i.arena.newNode(i.ref, ns.ID, ns.NodeID)
		refs = append(refs, n.ref)
	}

	i.m.Lock()
	i.nodes = refs
	i.m.Unlock()

	i.vars.Restore(s.Variables)
}
