// Package tool implements the tool calling subsystem: declarations exposed to
// the model, schema validated dispatch of local tools and routing of calls
// that must be executed by a remote delegate.
package tool

import (
	"fmt"

	"github.com/hupe1980/toolgate/core"
)

// Locality says where a tool runs.
type Locality string

const (
	// Local tools execute inside this process.
	Local Locality = "local"
	// Delegated tools execute on a remote delegate (e.g. the client UI).
	Delegated Locality = "delegated"
)

// Visibility says whether a tool's target is bound to the session scope.
type Visibility string

const (
	// Global tools take all their arguments from the model.
	Global Visibility = "global"
	// ScopeRestricted tools receive the scope parameter from the session.
	ScopeRestricted Visibility = "scope-restricted"
)

// Declaration describes a tool to the model and to the router.
type Declaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON schema (object)
	Locality    Locality       `json:"locality"`
	Visibility  Visibility     `json:"visibility"`
}

// Tool defines the interface for capabilities the model may call.
//
// Implementations should:
//   - Provide clear, descriptive names (snake_case)
//   - Declare a JSON schema for their parameters
//   - Be safe for concurrent use
type Tool interface {
	// Declaration returns the static description of the tool.
	Declaration() Declaration

	// Call executes the tool with schema validated arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// DelegatedSentinel is the placeholder result returned when a delegated tool
// is dispatched in process.
func DelegatedSentinel(name string) map[string]any {
	return map[string]any{"error": name + " must be executed by the delegate"}
}
