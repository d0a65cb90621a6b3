package compiler

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"
)

// LinkErrorCode categorizes structural errors that make a project
// impossible to evaluate.
type LinkErrorCode string

const (
	// ErrCodeCycleDetected indicates a branch group contains itself.
	ErrCodeCycleDetected LinkErrorCode = "CYCLE_DETECTED"

	// ErrCodeDuplicateElement indicates two elements share an id.
	ErrCodeDuplicateElement LinkErrorCode = "DUPLICATE_ELEMENT"

	// ErrCodeDuplicateTag indicates two tags share an id.
	ErrCodeDuplicateTag LinkErrorCode = "DUPLICATE_TAG"

	// ErrCodeInvalidTag indicates a tag without id or with an unknown data type.
	ErrCodeInvalidTag LinkErrorCode = "INVALID_TAG"

	// ErrCodeMalformedElement indicates an element that is neither or both
	// an instruction and a branch group, or has no id.
	ErrCodeMalformedElement LinkErrorCode = "MALFORMED_ELEMENT"

	// ErrCodeUnknownKind indicates an instruction kind the engine cannot run.
	ErrCodeUnknownKind LinkErrorCode = "UNKNOWN_KIND"
)

// LinkError reports a structurally invalid project. The engine refuses
// to evaluate a project that fails to link.
type LinkError struct {
	Code LinkErrorCode

	// Message is a human-readable description.
	Message string

	// ElementID identifies the offending element or tag, if any.
	ElementID string

	// Path is the containment cycle for ErrCodeCycleDetected.
	Path []string
}

// Error implements the error interface.
func (e *LinkError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(e.Path, " → "))
	}
	if e.ElementID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Message, e.ElementID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLinkError returns true if err is or wraps a LinkError.
func IsLinkError(err error) bool {
	var le *LinkError
	return errors.As(err, &le)
}

// IsCycleError returns true if err is a containment cycle error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Code == ErrCodeCycleDetected
	}
	return false
}

// LoadError is a project file that could not be read or decoded.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}
