package variable

import "fmt"

// ViolationError is returned when a change to a variable would break one of
// the constraints declared for it.
type ViolationError struct {
	InstanceID string
	Name       string
	Message    string
}

func (e ViolationError) Error() string {
	return fmt.Sprintf(
		"variable '%s' of process instance '%s' violates its declaration: %s",
		e.Name,
		e.InstanceID,
		e.Message,
	)
}
