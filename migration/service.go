package migration

import (
	"context"
	"fmt"
	"sort"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon/process"
)

// Service applies migration plans to process instances.
//
// It implements process.Migrator. Plans are loaded once, when the service is
// created, and do not change thereafter.
type Service struct {
	logger logging.Logger
	plans  map[Key]Plan
}

var _ process.Migrator = (*Service)(nil)

// NewService returns a service that applies the plans from the given
// providers.
//
// If more than one plan has the same key, the plan from the latest provider
// wins. It returns an error if any plan fails validation, regardless of its
// provider. If logger is nil, logging.DefaultLogger is used.
func NewService(
	ctx context.Context,
	logger logging.Logger,
	providers ...Provider,
) (*Service, error) {
	s := &Service{
		logger: logger,
		plans:  map[Key]Plan{},
	}

	for _, p := range providers {
		plans, err := p.Plans(ctx)
		if err != nil {
			return nil, err
		}

		for _, plan := range plans {
			if err := plan.Validate(); err != nil {
				return nil, fmt.Errorf("invalid migration plan %q: %w", plan.Name, err)
			}

			k := plan.Key()

			if prev, ok := s.plans[k]; ok {
				logging.Log(
					s.logger,
					"migration plan %q for %s replaces plan %q",
					plan.Name,
					k,
					prev.Name,
				)
			}

			s.plans[k] = plan
		}
	}

	logging.Debug(
		s.logger,
		"loaded %d migration plan(s)",
		len(s.plans),
	)

	return s, nil
}

// Plans returns the service's plans, ordered by key.
func (s *Service) Plans() []Plan {
	plans := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		plans = append(plans, p)
	}

	sort.Slice(plans, func(i, j int) bool {
		a, b := plans[i].Key(), plans[j].Key()
		if a.ProcessID != b.ProcessID {
			return a.ProcessID < b.ProcessID
		}
		return a.Version < b.Version
	})

	return plans
}

// Plan returns the plan with the given key.
func (s *Service) Plan(k Key) (Plan, bool) {
	p, ok := s.plans[k]
	return p, ok
}

// ShouldMigrate returns true if there is a plan for the instance's current
// process definition.
func (s *Service) ShouldMigrate(inst *process.Instance) bool {
	_, ok := s.planFor(inst)
	return ok
}

// MigrateProcessElement changes the process definition of inst to the target
// of its plan.
//
// It returns false if there is no plan for the instance.
func (s *Service) MigrateProcessElement(inst *process.Instance) bool {
	p, ok := s.planFor(inst)
	if !ok {
		return false
	}

	s.migrateProcess(inst, p)

	return true
}

// MigrateNodeElement changes the node definition of n according to the plan
// for its owning instance.
//
// It returns false if there is no plan for the owning instance, or the plan
// does not remap the node.
func (s *Service) MigrateNodeElement(n *process.NodeInstance) bool {
	inst, ok := n.Owner()
	if !ok {
		return false
	}

	p, ok := s.planFor(inst)
	if !ok {
		return false
	}

	return migrateNode(n, p)
}

// Migrate migrates inst and all of its node instances.
//
// It returns false if there is no plan for the instance. Migrating an
// instance that has already been migrated has no effect.
func (s *Service) Migrate(inst *process.Instance) bool {
	p, ok := s.planFor(inst)
	if !ok {
		return false
	}

	// Nodes are remapped first, while the instance still refers to the source
	// definition.
	for _, n := range inst.Nodes() {
		migrateNode(n, p)
	}

	s.migrateProcess(inst, p)

	return true
}

// planFor returns the plan for the instance's current process definition.
func (s *Service) planFor(inst *process.Instance) (Plan, bool) {
	p, ok := s.plans[Key{inst.ProcessID(), inst.ProcessVersion()}]
	return p, ok
}

// migrateProcess changes the process definition of inst to p's target.
func (s *Service) migrateProcess(inst *process.Instance, p Plan) {
	inst.SetProcess(p.Target.ProcessID, p.Target.Version)

	logging.Debug(
		s.logger,
		"migrated process instance '%s' from %s to %s using plan %q",
		inst.ID(),
		p.Key(),
		p.Target.Key(),
		p.Name,
	)
}

// migrateNode changes the node definition of n according to p.
func migrateNode(n *process.NodeInstance, p Plan) bool {
	target, ok := p.Nodes[n.NodeID()]
	if !ok {
		return false
	}

	n.SetNodeID(target)

	return true
}
