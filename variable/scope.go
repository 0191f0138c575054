package variable

import (
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// Names of the virtual variables that are resolved from the scope's owner.
const (
	ProcessInstanceID       = "processInstanceId"
	ParentProcessInstanceID = "parentProcessInstanceId"
)

// Owner is the process instance that owns a scope.
type Owner interface {
	ID() string
	ParentID() string
}

// Globals is a source of variables that are visible to every scope.
type Globals interface {
	// Global returns the value of the global variable with the given name.
	Global(name string) (any, bool)
}

// Change describes a change to the value of a variable.
type Change struct {
	InstanceID string
	Name       string
	Old        any
	New        any
	Tags       []string
}

// Listener is notified of changes to the variables in a scope.
type Listener interface {
	BeforeVariableChanged(Change)
	AfterVariableChanged(Change)
}

// Variable is a single variable within a scope.
type Variable struct {
	Name     string   `json:"name"`
	Value    any      `json:"value,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	ReadOnly bool     `json:"readOnly,omitempty"`
	Required bool     `json:"required,omitempty"`
}

// Scope is the set of variables belonging to a single process instance.
//
// The zero value is an empty scope with no owner. Scope is safe for concurrent
// use; calls to Set() are serialized, including the listener notifications
// they produce, so a Listener must not call Set() on the same scope.
type Scope struct {
	// Owner is the process instance that owns the scope. It is used to resolve
	// the virtual processInstanceId and parentProcessInstanceId variables.
	Owner Owner

	// Globals is the source of variables that are not defined locally. It may
	// be nil.
	Globals Globals

	// Listener is notified of each change. It may be nil.
	Listener Listener

	wm     sync.Mutex
	m      sync.RWMutex
	tags   map[string][]string
	values map[string]any
}

// Declare declares the tags for the variable with the given name.
//
// Declaring a variable does not assign it a value.
func (s *Scope) Declare(name string, tags ...string) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.tags == nil {
		s.tags = map[string][]string{}
	}

	s.tags[name] = append([]string(nil), tags...)
}

// Get returns the value of the variable with the given name.
//
// Local variables take precedence, followed by the virtual variables derived
// from the scope's owner, and finally the global variables.
func (s *Scope) Get(name string) (any, bool) {
	s.m.RLock()
	v, ok := s.values[name]
	s.m.RUnlock()

	if ok {
		return v, true
	}

	if s.Owner != nil {
		switch name {
		case ProcessInstanceID:
			return s.Owner.ID(), true
		case ParentProcessInstanceID:
			return s.Owner.ParentID(), true
		}
	}

	if s.Globals != nil {
		return s.Globals.Global(name)
	}

	return nil, false
}

// Set assigns a value to the variable with the given name.
//
// Setting a variable that has no value to nil does nothing. It returns a
// ViolationError if the variable is read-only and already has a value.
func (s *Scope) Set(name string, value any) error {
	s.wm.Lock()
	defer s.wm.Unlock()

	s.m.RLock()
	old := s.values[name]
	tags := s.tags[name]
	s.m.RUnlock()

	if old == nil && value == nil {
		return nil
	}

	if old != nil && hasTag(tags, TagReadOnly) {
		return ViolationError{
			InstanceID: s.instanceID(),
			Name:       name,
			Message:    "already set and read only",
		}
	}

	c := Change{
		InstanceID: s.instanceID(),
		Name:       name,
		Old:        old,
		New:        value,
		Tags:       tags,
	}

	if s.Listener != nil {
		s.Listener.BeforeVariableChanged(c)
	}

	s.m.Lock()
	if s.values == nil {
		s.values = map[string]any{}
	}
	s.values[name] = value
	s.m.Unlock()

	if s.Listener != nil {
		s.Listener.AfterVariableChanged(c)
	}

	return nil
}

// EnforceRequired returns a ViolationError for each required variable that
// does not have a value.
func (s *Scope) EnforceRequired() error {
	s.m.RLock()
	defer s.m.RUnlock()

	var err error

	for _, name := range sortedKeys(s.tags) {
		if !hasTag(s.tags[name], TagRequired) {
			continue
		}

		if s.values[name] == nil {
			err = multierr.Append(err, ViolationError{
				InstanceID: s.instanceID(),
				Name:       name,
				Message:    "required variable has not been set",
			})
		}
	}

	return err
}

// Variables returns all declared or assigned variables, ordered by name.
func (s *Scope) Variables() []Variable {
	s.m.RLock()
	defer s.m.RUnlock()

	names := map[string]struct{}{}
	for n := range s.tags {
		names[n] = struct{}{}
	}
	for n := range s.values {
		names[n] = struct{}{}
	}

	vars := make([]Variable, 0, len(names))
	for _, n := range sortedKeys(names) {
		tags := s.tags[n]

		vars = append(vars, Variable{
			Name:     n,
			Value:    s.values[n],
			Tags:     tags,
			ReadOnly: hasTag(tags, TagReadOnly),
			Required: hasTag(tags, TagRequired),
		})
	}

	return vars
}

// Restore replaces the content of the scope with vars.
//
// It does not enforce any constraints or notify the listener. It is intended
// for rebuilding a scope from its persisted form.
func (s *Scope) Restore(vars []Variable) {
	s.m.Lock()
	defer s.m.Unlock()

	s.tags = map[string][]string{}
	s.values = map[string]any{}

	for _, v := range vars {
		tags := append([]string(nil), v.Tags...)
		if v.ReadOnly && !hasTag(tags, TagReadOnly) {
			tags = append(tags, TagReadOnly)
		}
		if v.Required && !hasTag(tags, TagRequired) {
			tags = append(tags, TagRequired)
		}

		if len(tags) > 0 {
			s.tags[v.Name] = tags
		}

		if v.Value != nil {
			s.values[v.Name] = v.Value
		}
	}
}

func (s *Scope) instanceID() string {
	if s.Owner == nil {
		return ""
	}

	return s.Owner.ID()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
