package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolNotFound is matched by ToolNotFoundError.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidArguments is matched by InvalidArgumentsError.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrNoPendingBatch is returned when resolving a session without outstanding calls.
	ErrNoPendingBatch = errors.New("no pending tool calls")
	// ErrUnresolvedDelegate is matched by UnresolvedDelegateError.
	ErrUnresolvedDelegate = errors.New("unresolved delegated tool call")
	// ErrUpstream is matched by UpstreamError.
	ErrUpstream = errors.New("upstream failure")
	// ErrConfiguration is matched by ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrEmptyTurn is returned for turns without parts.
	ErrEmptyTurn = errors.New("turn has no parts")
	// ErrMixedTurn is returned when function responses are mixed with other parts.
	ErrMixedTurn = errors.New("function responses cannot be mixed with other parts")
)

// ToolNotFoundError reports a dispatch for an unregistered tool.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string { return fmt.Sprintf("tool %q not found", e.Name) }

// Is reports ErrToolNotFound equivalence.
func (e *ToolNotFoundError) Is(target error) bool { return target == ErrToolNotFound }

// InvalidArgumentsError reports arguments that fail the declared schema.
type InvalidArgumentsError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("invalid arguments: %s", e.Reason)
	}

	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// Is reports ErrInvalidArguments equivalence.
func (e *InvalidArgumentsError) Is(target error) bool { return target == ErrInvalidArguments }

// UnresolvedDelegateError lists delegated calls that were approved without a
// delegate supplied result.
type UnresolvedDelegateError struct {
	Names []string
}

func (e *UnresolvedDelegateError) Error() string {
	return fmt.Sprintf("no delegate result for %s", strings.Join(e.Names, ", "))
}

// Is reports ErrUnresolvedDelegate equivalence.
func (e *UnresolvedDelegateError) Is(target error) bool { return target == ErrUnresolvedDelegate }

// UpstreamError wraps a model backend or transport failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream %s: %v", e.Op, e.Err) }

// Unwrap returns the transport error.
func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports ErrUpstream equivalence.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ConfigurationError reports missing or invalid process configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Is reports ErrConfiguration equivalence.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
