package correlation

import (
	"context"
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
)

// Service maps correlations to the IDs of process instances.
type Service struct {
	// Repository stores the correlation instances.
	Repository Repository

	// Logger is the target for log messages produced by the service.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger
}

// Create associates c with the process instance with the given ID.
//
// It returns ErrNotCreated if c is already associated with an instance.
func (s *Service) Create(ctx context.Context, c Correlation, correlatedID string) (Instance, error) {
	id, err := Encode(c)
	if err != nil {
		return Instance{}, err
	}

	inst := Instance{
		EncodedID:    id,
		CorrelatedID: correlatedID,
		Correlation:  c,
	}

	ok, err := s.Repository.Insert(ctx, inst)
	if err != nil {
		return Instance{}, fmt.Errorf("unable to create correlation %s: %w", c, err)
	}

	if !ok {
		logging.Log(
			s.Logger,
			"correlation %s (%s) was not created for process instance %s",
			c,
			id,
			correlatedID,
		)

		return Instance{}, ErrNotCreated
	}

	logging.Debug(
		s.Logger,
		"correlation %s (%s) created for process instance %s",
		c,
		id,
		correlatedID,
	)

	return inst, nil
}

// Find returns the instance associated with c.
func (s *Service) Find(ctx context.Context, c Correlation) (Instance, bool, error) {
	id, err := Encode(c)
	if err != nil {
		return Instance{}, false, err
	}

	return s.Repository.FindByEncodedID(ctx, id)
}

// FindByCorrelatedID returns the correlation associated with the process
// instance with the given ID.
func (s *Service) FindByCorrelatedID(ctx context.Context, correlatedID string) (Instance, bool, error) {
	return s.Repository.FindByCorrelatedID(ctx, correlatedID)
}

// Delete removes the association of c with a process instance.
//
// It returns ErrNotDeleted if c is not associated with any instance.
func (s *Service) Delete(ctx context.Context, c Correlation) error {
	id, err := Encode(c)
	if err != nil {
		return err
	}

	ok, err := s.Repository.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("unable to delete correlation %s: %w", c, err)
	}

	if !ok {
		return ErrNotDeleted
	}

	return nil
}
