package pidstore

import "fmt"

var (
	// ErrPIDNotFound is returned when no PID matches the requested key or id
	ErrPIDNotFound = fmt.Errorf("pid not found")
	// ErrPIDExists is returned when minting a PID whose natural key is taken
	ErrPIDExists = fmt.Errorf("pid already exists")
	// ErrInvalidTransition is returned for illegal status changes
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	// ErrInvalidStatus is returned when an unknown status code is supplied
	ErrInvalidStatus = fmt.Errorf("invalid status")
	// ErrRedirectTarget is returned when a redirect target is unusable
	ErrRedirectTarget = fmt.Errorf("invalid redirect target")
	// ErrEmptyKey is returned when pid_type or pid_value is empty
	ErrEmptyKey = fmt.Errorf("pid_type and pid_value must not be empty")
)
