// Package domain holds the canonical types shared by the agent loop, the tool
// executor, storage and the HTTP frontdoors.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorType is the category of a failure, used for log fields and metric labels.
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeRoundLimit     ErrorType = "round_limit"
	ErrorTypeCanceled       ErrorType = "canceled"
	ErrorTypeUpstream       ErrorType = "upstream"
)

var (
	// ErrNotFound is returned by stores when a row or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by stores on a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrRoundLimit is returned when the orchestration loop exceeds its configured round cap.
	ErrRoundLimit = errors.New("round limit exceeded")

	// ErrTimeout matches any *TimeoutError.
	ErrTimeout = errors.New("timeout")

	// ErrNoSource is returned when no attachment or URL can be resolved for a tool reference.
	ErrNoSource = errors.New("no resolvable source")

	// ErrNotAuthenticated is returned when an operation requires a caller identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidRequest wraps request body and parameter problems.
	ErrInvalidRequest = errors.New("invalid request")
)

// TimeoutError reports an upstream call that did not finish within its budget.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// Is lets errors.Is(err, ErrTimeout) match.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// RoundLimitError reports how many rounds ran before the loop gave up.
type RoundLimitError struct {
	Rounds int
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("round limit exceeded after %d rounds", e.Rounds)
}

func (e *RoundLimitError) Is(target error) bool {
	return target == ErrRoundLimit
}

// TypeOf classifies err. Unknown errors are reported as upstream failures.
func TypeOf(err error) ErrorType {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoundLimit):
		return ErrorTypeRoundLimit
	case errors.Is(err, ErrTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoSource):
		return ErrorTypeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return ErrorTypeConflict
	case errors.Is(err, ErrNotAuthenticated):
		return ErrorTypeAuthentication
	case errors.Is(err, ErrInvalidRequest):
		return ErrorTypeValidation
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	default:
		return ErrorTypeUpstream
	}
}
