package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/plcscan/internal/compiler"
	"github.com/roach88/plcscan/internal/ir"
)

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No scenario files found
	ErrCodeLoadFailed  = "E004" // Project could not be read or decoded
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeDatabase    = "E006" // Database open/read error
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeRunFailed   = "E008" // Engine failure while running

	// Link errors: the project cannot be evaluated
	ErrCodeCycle            = "E101" // Branch group contains itself
	ErrCodeDuplicateElement = "E102" // Element id used more than once
	ErrCodeDuplicateTag     = "E103" // Tag id used more than once
	ErrCodeInvalidTag       = "E104" // Tag without id or with unknown data type
	ErrCodeMalformed        = "E105" // Element neither/both instruction and branch
	ErrCodeUnknownKind      = "E106" // Unknown instruction kind

	ErrCodeWarnings   = "E201" // Warnings present with --strict
	ErrCodeTestFailed = "E301" // One or more scenarios failed
)

// LoadError is a project that could not be loaded or linked.
type LoadError struct {
	Code    string
	Message string

	// Link is set when the file decoded but failed to link.
	Link *compiler.LinkError
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ExitCode maps the error to a CLI exit code: a project that does not
// link is a validation failure, anything else a command error.
func (e *LoadError) ExitCode() int {
	if e.Link != nil {
		return ExitFailure
	}
	return ExitCommandError
}

// LoadedProject is a decoded project together with its linked program.
type LoadedProject struct {
	Path    string
	Project ir.Project
	Program *compiler.Program
}

// LoadProject reads and links the project at path. Errors are always
// *LoadError.
func LoadProject(path string) (*LoadedProject, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("project file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing project file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	project, err := compiler.LoadProject(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}

	prog, err := compiler.Link(project)
	if err != nil {
		var le *compiler.LinkError
		if errors.As(err, &le) {
			return nil, &LoadError{Code: MapLinkErrorCode(le.Code), Message: le.Error(), Link: le}
		}
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	return &LoadedProject{Path: path, Project: project, Program: prog}, nil
}

// MapLinkErrorCode maps a link error code to a CLI error code.
func MapLinkErrorCode(code compiler.LinkErrorCode) string {
	switch code {
	case compiler.ErrCodeCycleDetected:
		return ErrCodeCycle
	case compiler.ErrCodeDuplicateElement:
		return ErrCodeDuplicateElement
	case compiler.ErrCodeDuplicateTag:
		return ErrCodeDuplicateTag
	case compiler.ErrCodeInvalidTag:
		return ErrCodeInvalidTag
	case compiler.ErrCodeMalformedElement:
		return ErrCodeMalformed
	case compiler.ErrCodeUnknownKind:
		return ErrCodeUnknownKind
	default:
		return ErrCodeGeneric
	}
}

// failLoad reports a load error through f and returns its ExitError.
func failLoad(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return f.fail(le.ExitCode(), le.Code, le.Message)
	}
	return f.fail(ExitCommandError, ErrCodeGeneric, err.Error())
}

// countElements returns the number of instructions and branch groups in
// a linked program.
func countElements(prog *compiler.Program) (instructions, branches int) {
	for _, n := range prog.Nodes {
		if n.Kind == compiler.NodeBranch {
			branches++
		} else {
			instructions++
		}
	}
	return instructions, branches
}
