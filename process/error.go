package process

import "errors"

// ErrReadOnly is returned when attempting to modify an instance that was
// loaded in ReadOnly mode.
var ErrReadOnly = errors.New("process instance is read-only")

// ErrNotBound is returned by Instance.Reload() if the instance has never been
// written to or loaded from a store.
var ErrNotBound = errors.New("process instance is not bound to a store")
