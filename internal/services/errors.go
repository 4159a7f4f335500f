package services

import "fmt"

// ValidationError rejects a malformed inbound event. It never reaches
// other subscribers; the sender alone is notified.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// PersistenceError means the message store refused a write. The event is
// not broadcast: nothing goes out that was not durably recorded.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
