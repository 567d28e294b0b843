package tool

import (
	"errors"
	"time"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/internal/util"
)

// Option customizes a tool declaration at construction time.
type Option func(d *Declaration)

// WithScopeRestricted marks the tool as scope-restricted.
func WithScopeRestricted() Option {
	return func(d *Declaration) { d.Visibility = ScopeRestricted }
}

// WithParameters overrides the parameter schema.
func WithParameters(schema map[string]any) Option {
	return func(d *Declaration) { d.Parameters = schema }
}

// FunctionTool is a generic adapter that exposes a plain Go function as a
// local tool.
//
// Error Semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
//
// Argument validation happens in the Registry before Call is reached.
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type FunctionTool struct {
	decl Declaration
	fn   func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a local FunctionTool from explicit schema and function.
//
// Example:
//
//	repoGet := NewFunctionTool(
//	  "repo_get",
//	  "Get a repository by ID",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "id": map[string]any{"type": "integer"},
//	    },
//	    "required": []any{"id"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return catalog.GetRepo(tc.Context(), int64(args["id"].(float64)))
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
	opts ...Option,
) *FunctionTool {
	decl := Declaration{
		Name:        name,
		Description: description,
		Parameters:  parameters,
		Locality:    Local,
		Visibility:  Global,
	}

	for _, o := range opts {
		o(&decl)
	}

	return &FunctionTool{decl: decl, fn: fn}
}

// NewTypedTool builds a local tool whose arguments are decoded into A. The
// parameter schema is derived from A unless WithParameters is supplied.
//
// Example:
//
//	type repoGetArgs struct {
//	  ID int64 `json:"id" description:"Repository ID"`
//	}
//
//	NewTypedTool("repo_get", "Get a repository by ID",
//	  func(tc *core.ToolContext, a repoGetArgs) (any, error) { ... })
func NewTypedTool[A any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args A) (any, error),
	opts ...Option,
) *FunctionTool {
	var zero A

	opts = append([]Option{WithParameters(util.CreateSchema(zero))}, opts...)

	return NewFunctionTool(name, description, nil, func(tc *core.ToolContext, raw map[string]any) (any, error) {
		var args A
		if err := util.DecodeArgs(raw, &args); err != nil {
			return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation}
		}

		return fn(tc, args)
	}, opts...)
}

// Declaration returns the tool declaration.
func (t *FunctionTool) Declaration() Declaration { return t.decl }

// Call invokes the underlying function.
//
// Logging Fields:
//
//	tool: tool name
//	fc_id: function call identifier (correlates model request & tool execution)
//	duration_ms: execution time in milliseconds
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.decl.Name, "fc_id", toolCtx.FunctionCallID())

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) { // Already a ToolError -> just log and forward
			logger.Error("tool.call.error", "tool", t.decl.Name, "error", toolErr.Message)

			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.decl.Name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.decl.Name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	logger.Info("tool.call.success", "tool", t.decl.Name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// DelegatedTool declares a tool that the remote delegate executes. Calling it
// in process only yields DelegatedSentinel.
type DelegatedTool struct {
	decl Declaration
}

// NewDelegatedTool constructs a delegated tool declaration.
func NewDelegatedTool(name, description string, parameters map[string]any, opts ...Option) *DelegatedTool {
	decl := Declaration{
		Name:        name,
		Description: description,
		Parameters:  parameters,
		Locality:    Delegated,
		Visibility:  Global,
	}

	for _, o := range opts {
		o(&decl)
	}

	return &DelegatedTool{decl: decl}
}

// Declaration returns the tool declaration.
func (t *DelegatedTool) Declaration() Declaration { return t.decl }

// Call returns the delegate sentinel without doing any work.
func (t *DelegatedTool) Call(_ *core.ToolContext, _ map[string]any) (any, error) {
	return DelegatedSentinel(t.decl.Name), nil
}
