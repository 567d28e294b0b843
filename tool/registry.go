package tool

import (
	"fmt"
	"sync"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
)

// DefaultScopeParam is the argument name carrying the session scope.
const DefaultScopeParam = "repoId"

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// ScopeParam is stripped from scope-restricted schemas and injected on dispatch.
	ScopeParam string
	Logger     logging.Logger
}

// Registry is the static catalog of tools. Registration normally happens at
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	order      []string
	scopeParam string
	logger     logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		ScopeParam: DefaultScopeParam,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		tools:      make(map[string]Tool),
		scopeParam: opts.ScopeParam,
		logger:     opts.Logger,
	}
}

// ScopeParam returns the name of the scope argument.
func (r *Registry) ScopeParam() string { return r.scopeParam }

// Register adds tools in order. Duplicate or empty names are rejected and
// nothing from the failing call is registered.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[string]bool{}

	for _, t := range tools {
		d := t.Declaration()
		if d.Name == "" {
			return fmt.Errorf("register tool: empty name")
		}

		if _, exists := r.tools[d.Name]; exists || seen[d.Name] {
			return fmt.Errorf("register tool: %q already registered", d.Name)
		}

		if d.Locality != Local && d.Locality != Delegated {
			return fmt.Errorf("register tool %q: unknown locality %q", d.Name, d.Locality)
		}

		if _, err := compileSchema(d.Name, d.Parameters); err != nil {
			return fmt.Errorf("register tool %q: %w", d.Name, err)
		}

		seen[d.Name] = true
	}

	for _, t := range tools {
		name := t.Declaration().Name
		r.tools[name] = t
		r.order = append(r.order, name)
	}

	return nil
}

// Lookup returns a registered tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// ListDeclarations returns declarations in registration order. When scope is
// non-nil, scope-restricted tools are returned with the scope parameter
// removed from their schema because it will be injected on dispatch.
func (r *Registry) ListDeclarations(scope *int64) []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]Declaration, 0, len(r.order))

	for _, name := range r.order {
		d := r.tools[name].Declaration()
		if scope != nil && d.Visibility == ScopeRestricted {
			d.Parameters = stripParam(d.Parameters, r.scopeParam)
		}
		decls = append(decls, d)
	}

	return decls
}

// Route returns the locality of a tool. It is the single routing decision
// between local dispatch and the delegate.
func (r *Registry) Route(name string) (Locality, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", &core.ToolNotFoundError{Name: name}
	}

	return t.Declaration().Locality, nil
}

// Dispatch validates and executes a tool call.
//
//   - unknown name              -> *core.ToolNotFoundError
//   - schema mismatch           -> *core.InvalidArgumentsError
//   - delegated tool            -> DelegatedSentinel, nothing runs
//   - local tool failure        -> *ToolError
//
// For scope-restricted tools the session scope is injected when the caller
// omitted the scope parameter.
func (r *Registry) Dispatch(tc *core.ToolContext, name string, args map[string]any) (any, error) {
	t, ok := r.Lookup(name)
	if !ok {
		r.logger.Warn("tool.dispatch.not_found", "tool", name)
		return nil, &core.ToolNotFoundError{Name: name}
	}

	decl := t.Declaration()

	if decl.Locality == Delegated {
		return DelegatedSentinel(name), nil
	}

	args = r.injectScope(tc, decl, args)

	normalized, err := validateArgs(decl, args)
	if err != nil {
		r.logger.Warn("tool.dispatch.invalid_arguments", "tool", name, "error", err.Error())
		return nil, &core.InvalidArgumentsError{Tool: name, Reason: err.Error()}
	}

	return t.Call(tc, normalized)
}

func (r *Registry) injectScope(tc *core.ToolContext, decl Declaration, args map[string]any) map[string]any {
	if decl.Visibility != ScopeRestricted || tc == nil {
		return args
	}

	scope, ok := tc.Scope()
	if !ok {
		return args
	}

	if _, present := args[r.scopeParam]; present {
		return args
	}

	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out[r.scopeParam] = scope

	return out
}

// stripParam returns a copy of schema without the named property.
func stripParam(schema map[string]any, param string) map[string]any {
	if schema == nil {
		return nil
	}

	out := deepCopyMap(schema)

	if props, ok := out["properties"].(map[string]any); ok {
		delete(props, param)
	}

	switch req := out["required"].(type) {
	case []any:
		kept := make([]any, 0, len(req))
		for _, v := range req {
			if v != param {
				kept = append(kept, v)
			}
		}
		out["required"] = kept
	case []string:
		kept := make([]string, 0, len(req))
		for _, v := range req {
			if v != param {
				kept = append(kept, v)
			}
		}
		out["required"] = kept
	}

	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		cp := make([]any, len(x))
		for i := range x {
			cp[i] = deepCopyValue(x[i])
		}
		return cp
	case []string:
		return append([]string(nil), x...)
	default:
		return x
	}
}
