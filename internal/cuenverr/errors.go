// Package cuenverr defines the error taxonomy shared across cuenv's
// packages, per the kinds enumerated in the specification's error
// handling design: each kind is a sentinel, wrapped with operation and
// path context at the point the error first crosses an IO or
// resolution boundary.
package cuenverr

import (
	"errors"
	"fmt"
)

// Kind is a sentinel error representing one taxonomy entry. Callers
// use errors.Is(err, cuenverr.TaskNotFound) etc. to classify a wrapped
// error.
type Kind error

var (
	ConfigEvaluation       Kind = errors.New("config evaluation error")
	InvalidTaskName        Kind = errors.New("invalid task name")
	TaskNotFound           Kind = errors.New("task not found")
	DuplicateFQDN          Kind = errors.New("duplicate fqdn")
	CycleDetected          Kind = errors.New("dependency cycle detected")
	PathSafety             Kind = errors.New("path safety violation")
	OutputMappingUndeclared Kind = errors.New("cross-project output mapping references an undeclared output")
	OutputMappingCollision Kind = errors.New("cross-project output mapping destination collision")
	MissingInput           Kind = errors.New("missing input file")
	MissingSalt            Kind = errors.New("missing secret salt")
	SecretTooShort         Kind = errors.New("secret too short to register")
	CacheIO                Kind = errors.New("cache io error")
	ProcessFailed          Kind = errors.New("process failed")
	Timeout                Kind = errors.New("operation timed out")
	Cancelled              Kind = errors.New("operation cancelled")
	ApprovalRequired       Kind = errors.New("approval required")
	CoordinatorUnavailable Kind = errors.New("coordinator unavailable")
	WireProtocolError      Kind = errors.New("wire protocol error")
)

// ExitCode maps a Kind to the CLI exit code from the specification's
// external interfaces section. Kinds not explicitly listed there
// default to 1 (generic task failure).
func ExitCode(err error) int {
	switch {
	case errors.Is(err, ConfigEvaluation):
		return 3
	case errors.Is(err, InvalidTaskName), errors.Is(err, TaskNotFound),
		errors.Is(err, DuplicateFQDN), errors.Is(err, MissingSalt):
		return 2
	case err == nil:
		return 0
	default:
		return 1
	}
}

// Wrap attaches operation/path context to an underlying error while
// keeping it inspectable with errors.Is against the given kind.
func Wrap(kind Kind, op, path string, cause error) error {
	if path == "" {
		return fmt.Errorf("%s: %w: %w", op, kind, cause)
	}
	return fmt.Errorf("%s %s: %w: %w", op, path, kind, cause)
}

// New constructs a bare contextualized error of the given kind without
// an additional underlying cause.
func New(kind Kind, op, path string) error {
	if path == "" {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s %s: %w", op, path, kind)
}
