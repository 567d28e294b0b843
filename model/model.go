package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/tool"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// DefinitionsFromDeclarations converts registry declarations into provider
// neutral tool definitions, preserving order.
func DefinitionsFromDeclarations(decls []tool.Declaration) []ToolDefinition {
	out := make([]ToolDefinition, 0, len(decls))

	for _, d := range decls {
		out = append(out, ToolDefinition{
			Type: "function",
			Function: FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}

	return out
}

// Request captures the normalized model input: the full conversation so far.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the model turn produced for a Request. Content.Role is always
// core.RoleModel.
type Response struct {
	ID           string       `json:"id"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// FunctionCalls returns the calls requested by the response in order.
func (r *Response) FunctionCalls() []core.FunctionCall {
	if r == nil {
		return nil
	}

	return core.FunctionCalls(r.Content.Parts)
}

// Text returns the concatenated text of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}

	return core.Text(r.Content.Parts)
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "gemini", "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is a stateless provider adapter. Generate emits exactly one Response
// or one error and then closes both channels.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoResponse is returned by Collect when the model closed without output.
var ErrNoResponse = errors.New("model returned no response")

// Collect drains the channels of a Generate call and returns the final response.
func Collect(ctx context.Context, respCh <-chan Response, errCh <-chan error) (*Response, error) {
	var (
		final *Response
		err   error
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			final = &r
		case e, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if e != nil && err == nil {
				err = e
			}
		}
	}

	if err != nil {
		return nil, err
	}

	if final == nil {
		return nil, ErrNoResponse
	}

	return final, nil
}

// Generate runs m and waits for its result.
func Generate(ctx context.Context, m Model, req Request) (*Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	resp, err := Collect(ctx, respCh, errCh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Info().Provider, err)
	}

	return resp, nil
}
