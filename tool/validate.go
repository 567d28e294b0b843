package tool

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaCache sync.Map

// compileSchema compiles a parameter schema once per distinct document.
func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	if len(params) == 0 {
		params = map[string]any{"type": "object"}
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString(name+".schema.json", key)
	if err != nil {
		return nil, err
	}

	schemaCache.Store(key, compiled)

	return compiled, nil
}

// validateArgs checks args against the declared schema and returns them
// normalized through JSON, so numeric types match what a decoder would yield.
func validateArgs(decl Declaration, args map[string]any) (map[string]any, error) {
	schema, err := compileSchema(decl.Name, decl.Parameters)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	if args == nil {
		args = map[string]any{}
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}

	if err := schema.Validate(any(decoded)); err != nil {
		return nil, flattenValidationError(err)
	}

	return decoded, nil
}

// flattenValidationError turns the nested schema error into a single line
// suitable for an in-band tool result.
func flattenValidationError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}

	var msgs []string

	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
