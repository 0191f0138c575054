package process

import "context"

// SignalHandler applies events to process instances.
//
// It is implemented by the process execution engine.
type SignalHandler interface {
	HandleSignal(ctx context.Context, inst *Instance, eventType string, payload any) error
}

// SignalHandlerFunc is an adaptor that allows an ordinary function to be used
// as a SignalHandler.
type SignalHandlerFunc func(ctx context.Context, inst *Instance, eventType string, payload any) error

// HandleSignal calls fn(ctx, inst, eventType, payload).
func (fn SignalHandlerFunc) HandleSignal(
	ctx context.Context,
	inst *Instance,
	eventType string,
	payload any,
) error {
	return fn(ctx, inst, eventType, payload)
}

// Migrator rewrites the identifiers of instances that belong to an outdated
// process definition.
type Migrator interface {
	// Migrate migrates inst and its node instances, if a migration applies.
	//
	// It returns true if the instance was changed.
	Migrate(inst *Instance) bool
}
