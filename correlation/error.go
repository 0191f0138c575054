package correlation

import "errors"

var (
	// ErrNotCreated is returned by Service.Create() if the correlation could
	// not be stored, typically because an identical correlation already
	// exists.
	ErrNotCreated = errors.New("correlation was not created")

	// ErrNotDeleted is returned by Service.Delete() if there is no stored
	// correlation to delete.
	ErrNotDeleted = errors.New("correlation was not deleted")
)
