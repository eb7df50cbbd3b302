package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRules is returned when a project root has no usable rule definitions.
	ErrNoRules = errors.New("no rules available for project root")
	// ErrWorkerUnavailable is returned when the analysis worker cannot be reached.
	ErrWorkerUnavailable = errors.New("analysis worker is unavailable")
	// ErrSessionClosed is returned when a proxy is requested from a closed session.
	ErrSessionClosed = errors.New("isolation session is closed")
	// ErrUnknownToken is returned by the worker for cancellation tokens it never issued.
	ErrUnknownToken = errors.New("unknown cancellation token")
)

// IsolationError describes a failure while crossing the isolation boundary.
type IsolationError struct {
	Stage string
	Err   error
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("isolation failure at %s stage: %v", e.Stage, e.Err)
}

func (e *IsolationError) Unwrap() error {
	return e.Err
}

// NewIsolationError wraps err with the stage of the boundary it happened in.
func NewIsolationError(stage string, err error) error {
	return &IsolationError{Stage: stage, Err: err}
}

// RuleLoadError reports a rule definition file that could not be read or compiled.
type RuleLoadError struct {
	Path string
	Err  error
}

func (e *RuleLoadError) Error() string {
	return fmt.Sprintf("failed to load rules from %q: %v", e.Path, e.Err)
}

func (e *RuleLoadError) Unwrap() error {
	return e.Err
}

// CommandError carries the exit code a CLI command wants the process to end with.
type CommandError struct {
	ExitCode    int
	CommonError string
}

// Error implements the error interface, returning the message from the common error.
func (e *CommandError) Error() string {
	return e.CommonError
}

// NewCommandError creates a new CommandError from err and an exit code.
func NewCommandError(err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
	}
}
