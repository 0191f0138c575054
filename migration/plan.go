package migration

import (
	"errors"
	"fmt"
)

// Key identifies the process definition that a plan migrates from.
type Key struct {
	ProcessID string
	Version   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.ProcessID, k.Version)
}

// Definition refers to a specific version of a process definition.
type Definition struct {
	ProcessID string `yaml:"processId" json:"processId"`
	Version   string `yaml:"version" json:"version"`
}

// Key returns the migration key for d.
func (d Definition) Key() Key {
	return Key{d.ProcessID, d.Version}
}

// Plan describes how to migrate instances of one process definition to
// another.
type Plan struct {
	// Name is a human-readable name for the plan.
	Name string `yaml:"name" json:"name"`

	// Source is the definition that instances are migrated from.
	Source Definition `yaml:"source" json:"source"`

	// Target is the definition that instances are migrated to.
	Target Definition `yaml:"target" json:"target"`

	// Nodes maps the IDs of nodes in the source definition to the IDs of the
	// equivalent nodes in the target definition. Nodes that are not listed
	// keep their ID.
	Nodes map[string]string `yaml:"nodes,omitempty" json:"nodes,omitempty"`
}

// Key returns the key of the definition that p migrates from.
func (p Plan) Key() Key {
	return p.Source.Key()
}

// Validate returns an error if p is not a usable plan.
func (p Plan) Validate() error {
	if p.Source.ProcessID == "" {
		return errors.New("source process ID must not be empty")
	}

	if p.Target.ProcessID == "" {
		return errors.New("target process ID must not be empty")
	}

	if p.Source == p.Target {
		return fmt.Errorf("source and target are both %s", p.Key())
	}

	return nil
}
