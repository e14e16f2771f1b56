package routing

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes routing errors.
type ErrorCode string

const (
	// ErrCodeDuplicateID indicates a call id that already names an active call.
	ErrCodeDuplicateID ErrorCode = "DUPLICATE_ID"

	// ErrCodeInvalidID indicates a subject id unknown to active calls,
	// operators, and the wait queue.
	ErrCodeInvalidID ErrorCode = "INVALID_ID"

	// ErrCodeMalformed indicates a command shape the engine cannot act on.
	ErrCodeMalformed ErrorCode = "MALFORMED_COMMAND"
)

// RoutingError is the failure outcome of one routing event. The engine
// never terminates a session over a bad event; callers map the code to a
// response message and carry on.
type RoutingError struct {
	Code ErrorCode
	ID   string
}

func (e *RoutingError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.ID)
	}
	return string(e.Code)
}

// Message returns the wire-level response text for this error.
func (e *RoutingError) Message() string {
	switch e.Code {
	case ErrCodeDuplicateID:
		return fmt.Sprintf("Call %s already active", e.ID)
	case ErrCodeInvalidID:
		return fmt.Sprintf("Invalid id: %s", e.ID)
	default:
		return "Error processing command"
	}
}

func newDuplicateIDError(id string) *RoutingError {
	return &RoutingError{Code: ErrCodeDuplicateID, ID: id}
}

func newInvalidIDError(id string) *RoutingError {
	return &RoutingError{Code: ErrCodeInvalidID, ID: id}
}

func newMalformedError() *RoutingError {
	return &RoutingError{Code: ErrCodeMalformed}
}

// IsDuplicateID reports whether err is a duplicate call id error.
func IsDuplicateID(err error) bool {
	var re *RoutingError
	return errors.As(err, &re) && re.Code == ErrCodeDuplicateID
}

// IsInvalidID reports whether err is an unknown subject id error.
func IsInvalidID(err error) bool {
	var re *RoutingError
	return errors.As(err, &re) && re.Code == ErrCodeInvalidID
}

// IsMalformed reports whether err is a malformed command error.
func IsMalformed(err error) bool {
	var re *RoutingError
	return errors.As(err, &re) && re.Code == ErrCodeMalformed
}
