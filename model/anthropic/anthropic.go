// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate adapts the Anthropic Messages API (with tool calling) into a
// single model.Response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    BuildMessages(req.Contents),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}

		if req.Instructions != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
		}

		if len(req.Tools) > 0 {
			params.Tools = BuildTools(req.Tools)
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var parts []core.Part

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textBlock := block.AsText()
				if textBlock.Text != "" {
					parts = append(parts, core.TextPart{Text: textBlock.Text})
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				parts = append(parts, core.FunctionCallPart{
					FunctionCall: core.FunctionCall{
						ID:   toolBlock.ID,
						Name: toolBlock.Name,
						Args: decodeInput(toolBlock.Input),
					},
				})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Content:      core.Content{Role: core.RoleModel, Parts: parts},
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

func decodeInput(input any) map[string]any {
	if input == nil {
		return nil
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return nil
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil
	}

	return args
}

// BuildMessages converts turns to Anthropic messages. Consecutive turns of
// the same role are merged since the API requires strict alternation.
func BuildMessages(contents []core.Content) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, c := range model.MergeRoles(contents) {
		blocks := buildBlocks(c.Parts)
		if len(blocks) == 0 {
			continue
		}

		if c.Role == core.RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	return messages
}

func buildBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion

	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.BlobPart:
			if strings.HasPrefix(part.MIMEType, "image/") {
				blocks = append(blocks, anthropic.NewImageBlockBase64(part.MIMEType, base64.StdEncoding.EncodeToString(part.Data)))
			} else {
				blocks = append(blocks, anthropic.NewTextBlock(fmt.Sprintf("[attachment %s, %d bytes]", part.MIMEType, len(part.Data))))
			}
		case core.FunctionCallPart:
			input := part.FunctionCall.Args
			if input == nil {
				input = map[string]any{}
			}

			blocks = append(blocks, anthropic.NewToolUseBlock(part.FunctionCall.ID, input, part.FunctionCall.Name))
		case core.FunctionResponsePart:
			payload, err := json.Marshal(part.FunctionResponse.Response)
			if err != nil {
				payload = []byte(`{}`)
			}

			blocks = append(blocks, anthropic.NewToolResultBlock(part.FunctionResponse.ID, string(payload), false))
		}
	}

	return blocks
}

// BuildTools converts tool definitions to Anthropic tool format.
func BuildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}

			switch required := params["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if tool.Function.Description != "" && anthropicTools[i].OfTool != nil {
			anthropicTools[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
