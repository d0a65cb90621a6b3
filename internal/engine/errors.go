package engine

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes errors returned by the engine's control
// surface. Evaluation itself never fails: missing tags read as 0 and
// division by zero yields 0.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidMode indicates an unknown or unsupported mode request.
	ErrCodeInvalidMode RuntimeErrorCode = "INVALID_MODE"

	// ErrCodeNotRunning indicates a scan was requested outside RUN.
	ErrCodeNotRunning RuntimeErrorCode = "NOT_RUNNING"

	// ErrCodeUnknownTag indicates a force or write named a missing tag.
	ErrCodeUnknownTag RuntimeErrorCode = "UNKNOWN_TAG"

	// ErrCodeTagForced indicates a write to a forced tag.
	ErrCodeTagForced RuntimeErrorCode = "TAG_FORCED"

	// ErrCodeInvalidProject indicates the project failed to link.
	ErrCodeInvalidProject RuntimeErrorCode = "INVALID_PROJECT"
)

// RuntimeError is returned by engine control operations.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// TagID identifies the tag for ErrCodeUnknownTag.
	TagID string

	// Err is the underlying cause, if any (the link error for
	// ErrCodeInvalidProject).
	Err error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.TagID != "":
		return fmt.Sprintf("%s: %s (tag=%s)", e.Code, e.Message, e.TagID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsNotRunning returns true if err reports a scan requested outside RUN.
func IsNotRunning(err error) bool {
	return hasCode(err, ErrCodeNotRunning)
}

// IsInvalidMode returns true if err reports a rejected mode request.
func IsInvalidMode(err error) bool {
	return hasCode(err, ErrCodeInvalidMode)
}

// IsUnknownTag returns true if err reports a missing tag.
func IsUnknownTag(err error) bool {
	return hasCode(err, ErrCodeUnknownTag)
}

// IsTagForced returns true if err reports a write to a forced tag.
func IsTagForced(err error) bool {
	return hasCode(err, ErrCodeTagForced)
}

// IsInvalidProject returns true if err reports a project that failed to
// link. The wrapped *compiler.LinkError is reachable with errors.As.
func IsInvalidProject(err error) bool {
	return hasCode(err, ErrCodeInvalidProject)
}
