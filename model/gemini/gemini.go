// Package gemini provides a model wrapper for the Google Gemini API using
// the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/model"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.5-pro"

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	APIKey      string
	Temperature *float32
}

// Model wraps the Gemini GenerateContent API behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a Gemini model with its own client. An API key is required.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{Model: DefaultModel}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, &core.ConfigurationError{Field: "gemini.api_key", Reason: "required"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Model: DefaultModel}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := ToContents(req.Contents)

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, m.buildConfig(req))
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		out <- FromResponse(resp)
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.Instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.Instructions}},
		}
	}

	if m.opts.Temperature != nil {
		t := *m.opts.Temperature
		config.Temperature = &t
	}

	if tools := ToTools(req.Tools); len(tools) > 0 {
		config.Tools = tools
	}

	return config
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}

// ToContents converts turns into Gemini contents. Function call ids are not
// sent; Gemini pairs calls and responses by position and name.
func ToContents(contents []core.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))

	for _, c := range contents {
		gc := &genai.Content{Role: genai.RoleUser}
		if c.Role == core.RoleModel {
			gc.Role = genai.RoleModel
		}

		for _, p := range c.Parts {
			switch v := p.(type) {
			case core.TextPart:
				gc.Parts = append(gc.Parts, &genai.Part{Text: v.Text})
			case core.BlobPart:
				gc.Parts = append(gc.Parts, &genai.Part{InlineData: &genai.Blob{MIMEType: v.MIMEType, Data: v.Data}})
			case core.FunctionCallPart:
				gc.Parts = append(gc.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					Name: v.FunctionCall.Name,
					Args: v.FunctionCall.Args,
				}})
			case core.FunctionResponsePart:
				gc.Parts = append(gc.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					Name:     v.FunctionResponse.Name,
					Response: v.FunctionResponse.Response,
				}})
			}
		}

		if len(gc.Parts) > 0 {
			out = append(out, gc)
		}
	}

	return out
}

// FromResponse converts the first candidate of a Gemini response.
func FromResponse(resp *genai.GenerateContentResponse) model.Response {
	out := model.Response{Content: core.Content{Role: core.RoleModel}}

	if resp == nil {
		return out
	}

	out.ID = resp.ResponseID

	if resp.UsageMetadata != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}

	cand := resp.Candidates[0]
	out.FinishReason = string(cand.FinishReason)

	if cand.Content == nil {
		return out
	}

	for _, p := range cand.Content.Parts {
		if p == nil {
			continue
		}

		switch {
		case p.FunctionCall != nil:
			out.Content.Parts = append(out.Content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:   p.FunctionCall.ID,
				Name: p.FunctionCall.Name,
				Args: p.FunctionCall.Args,
			}})
		case p.InlineData != nil:
			out.Content.Parts = append(out.Content.Parts, core.BlobPart{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data})
		case p.Text != "" && !p.Thought:
			out.Content.Parts = append(out.Content.Parts, core.TextPart{Text: p.Text})
		}
	}

	return out
}

// ToTools converts tool definitions to a single Gemini tool.
func ToTools(defs []model.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Function.Name,
			Description: d.Function.Description,
			Parameters:  ToSchema(d.Function.Parameters),
		})
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// ToSchema converts a JSON Schema map to Gemini's Schema type.
func ToSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = ToSchema(propMap)
			}
		}
	}

	switch required := schemaMap["required"].(type) {
	case []any:
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	case []string:
		schema.Required = append(schema.Required, required...)
	}

	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = ToSchema(items)
	}

	return schema
}
