package relay

import (
	"errors"
	"fmt"
)

// ValidationError reports a structurally invalid payload: a missing required
// field or one exceeding its declared length limit.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// StateError reports an operation that needs room membership, or an existing
// room, that is absent.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string { return e.Reason }

// CapacityError reports a join rejected because the room is full.
type CapacityError struct {
	RoomID string
	Limit  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("room is full (max %d users)", e.Limit)
}

func errMissingField(name string) *ValidationError {
	return &ValidationError{Reason: "missing required field: " + name}
}

func errTooLong(max int) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf("message too long (max %d characters)", max)}
}

// errorKind labels an error for logs and metrics.
func errorKind(err error) string {
	var (
		ve *ValidationError
		se *StateError
		ce *CapacityError
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &se):
		return "state"
	case errors.As(err, &ce):
		return "capacity"
	}
	return "unknown"
}
