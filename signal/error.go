package signal

import "fmt"

// UnknownInstanceError is returned when an event is targeted at a process
// instance that can not be found by any resolver.
type UnknownInstanceError struct {
	InstanceID string
}

func (e UnknownInstanceError) Error() string {
	return fmt.Sprintf(
		"can not signal process instance '%s', no resolver knows about it",
		e.InstanceID,
	)
}
