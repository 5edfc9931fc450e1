package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrResolution is the category of every tree construction failure.
	ErrResolution = errors.New("resolution failed")

	// ErrUnknownSkill is returned when a skill type is not in the library.
	ErrUnknownSkill = errors.New("unknown skill type")

	// ErrUnknownParam is returned when an override names a parameter the
	// skill does not declare.
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrDuplicateLabel is returned when two nodes of a tree share a label.
	ErrDuplicateLabel = errors.New("duplicate label")

	// ErrMissingBinding is returned when a "$label.key" reference does not
	// resolve in the current tree.
	ErrMissingBinding = errors.New("missing parameter binding")

	// ErrExecution is the category of failures raised by skill behaviors.
	ErrExecution = errors.New("execution failed")

	// ErrOptimization is the category of optimizer failures.
	ErrOptimization = errors.New("optimization failed")

	// ErrTaskNotFound is returned when a task id is not registered.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUnknownAction is returned for a command the manager does not handle.
	ErrUnknownAction = errors.New("unknown action")

	// ErrKeyNotFound is returned by a Backend for a missing key.
	ErrKeyNotFound = errors.New("key not found")
)

// ResolutionError describes why a skill sequence could not become a tree.
type ResolutionError struct {
	Skill string
	Label string
	Param string
	Err   error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolve %q", e.Skill)
	if e.Label != "" {
		msg += fmt.Sprintf(" (%s)", e.Label)
	}
	if e.Param != "" {
		msg += fmt.Sprintf(" param %q", e.Param)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *ResolutionError) Unwrap() []error {
	return []error{ErrResolution, e.Err}
}

// ExecutionError is recorded when a behavior fails during a tick.
// The node ends in StateError.
type ExecutionError struct {
	Label string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %q: %v", e.Label, e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

// OptimizationError is returned when the optimizer cannot rewrite a tree.
// It is recoverable: the last valid root stays available.
type OptimizationError struct {
	TaskID int
	Err    error
}

func (e *OptimizationError) Error() string {
	return fmt.Sprintf("optimize task %d: %v", e.TaskID, e.Err)
}

func (e *OptimizationError) Unwrap() []error {
	return []error{ErrOptimization, e.Err}
}
