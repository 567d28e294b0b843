// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API with function/tool calling. It adapts toolgate's
// normalized Request/Response structures into the SDK's message format and
// back.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/model"
)

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	probe := Options{}
	for _, fn := range optFns {
		fn(&probe)
	}

	var clientOpts []option.RequestOption
	if probe.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(probe.APIKey))
	}

	client := openai.NewClient(clientOpts...)

	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate adapts an OpenAI chat completion into a single model.Response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req, BuildMessages(req))

		resp, err := m.client.Chat.Completions.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("openai api error: %w", err)
			return
		}

		if len(resp.Choices) == 0 {
			errCh <- fmt.Errorf("no choices returned")
			return
		}

		out <- model.Response{
			ID:           resp.ID,
			Content:      core.Content{Role: core.RoleModel, Parts: FromMessage(resp.Choices[0].Message)},
			FinishReason: resp.Choices[0].FinishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			},
		}
	}()

	return out, errCh
}

// BuildMessages converts normalized contents into OpenAI chat messages.
// Function responses become tool messages that follow the assistant message
// carrying the matching tool calls.
func BuildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	for _, c := range req.Contents {
		if c.Role == core.RoleModel {
			if msg, ok := assistantMessage(c.Parts); ok {
				messages = append(messages, msg)
			}

			continue
		}

		var userParts []openai.ChatCompletionContentPartUnionParam

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.FunctionResponsePart:
				messages = append(messages, openai.ToolMessage(encodeJSON(part.FunctionResponse.Response), part.FunctionResponse.ID))
			case core.TextPart:
				userParts = append(userParts, openai.TextContentPart(part.Text))
			case core.BlobPart:
				userParts = append(userParts, blobContentPart(part))
			}
		}

		switch {
		case len(userParts) == 1 && userParts[0].OfText != nil:
			messages = append(messages, openai.UserMessage(userParts[0].OfText.Text))
		case len(userParts) > 0:
			messages = append(messages, openai.UserMessage(userParts))
		}
	}

	return messages
}

func assistantMessage(parts []core.Part) (openai.ChatCompletionMessageParamUnion, bool) {
	var (
		text      strings.Builder
		toolCalls []openai.ChatCompletionMessageToolCallParam
	)

	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			text.WriteString(part.Text)
		case core.FunctionCallPart:
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   part.FunctionCall.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      part.FunctionCall.Name,
					Arguments: encodeJSON(part.FunctionCall.Args),
				},
			})
		}
	}

	if len(toolCalls) == 0 {
		if text.Len() == 0 {
			return openai.ChatCompletionMessageParamUnion{}, false
		}

		return openai.AssistantMessage(text.String()), true
	}

	msg := &openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
	if text.Len() > 0 {
		msg.Content.OfString = openai.String(text.String())
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: msg}, true
}

func blobContentPart(b core.BlobPart) openai.ChatCompletionContentPartUnionParam {
	if strings.HasPrefix(b.MIMEType, "image/") {
		return openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:" + b.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(b.Data),
		})
	}

	return openai.TextContentPart(fmt.Sprintf("[attachment %s, %d bytes]", b.MIMEType, len(b.Data)))
}

func encodeJSON(v map[string]any) string {
	if v == nil {
		return "{}"
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}

	return string(data)
}

// FromMessage converts a completion message into parts. Arguments that are
// not a JSON object are kept under the "raw" key.
func FromMessage(msg openai.ChatCompletionMessage) []core.Part {
	parts := make([]core.Part, 0, len(msg.ToolCalls)+1)

	if msg.Content != "" {
		parts = append(parts, core.TextPart{Text: msg.Content})
	}

	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{"raw": tc.Function.Arguments}
			}
		}

		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		}})
	}

	return parts
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	if len(req.Tools) == 0 {
		return params
	}

	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}

	params.Tools = tools

	return params
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
