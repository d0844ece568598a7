package agent

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCancelled reports an operation abandoned on operator request
	ErrCancelled = errors.New("operation cancelled")

	// ErrNoActiveAgent is returned when a chat is attempted with an empty stack
	ErrNoActiveAgent = errors.New("no active agent")
)

// LoadError records why a single agent could not be loaded
type LoadError struct {
	Agent string
	Phase string // launch, initialize, register
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("agent %s: %s failed: %v", e.Agent, e.Phase, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// OrchestratorError wraps a non-cancellation failure of SelectAgent
type OrchestratorError struct {
	Agent string
	Err   error
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("agent %s failed to select an agent: %v", e.Agent, e.Err)
}

func (e *OrchestratorError) Unwrap() error {
	return e.Err
}

// SessionFatalError is the only error kind allowed to end a session loop, and only
// when Terminate is set
type SessionFatalError struct {
	Terminate bool
	Err       error
}

func (e *SessionFatalError) Error() string {
	if e.Err == nil {
		return "fatal session error"
	}
	return e.Err.Error()
}

func (e *SessionFatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a SessionFatalError
func Fatal(err error, terminate bool) error {
	return &SessionFatalError{Terminate: terminate, Err: err}
}

// IsCancellation reports whether err stems from cooperative cancellation
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled)
}

// ShouldTerminate reports whether err requests the session loop to stop
func ShouldTerminate(err error) bool {
	var fatal *SessionFatalError
	return errors.As(err, &fatal) && fatal.Terminate
}
