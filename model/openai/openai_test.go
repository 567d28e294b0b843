package openai

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/model"
)

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages(model.Request{
		Instructions: "sys",
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "list files"),
			{Role: core.RoleModel, Parts: []core.Part{
				core.TextPart{Text: "Listing."},
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "ls", Args: map[string]any{"path": "/"}}},
			}},
			{Role: core.RoleUser, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
				ID: "c1", Name: "ls", Response: map[string]any{"entries": []any{}},
			}}}},
		},
	})

	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)

	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.JSONEq(t, `{"path":"/"}`, msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)

	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
}

func TestBuildMessages_ImageBlob(t *testing.T) {
	msgs := BuildMessages(model.Request{Contents: []core.Content{{Role: core.RoleUser, Parts: []core.Part{
		core.TextPart{Text: "what is this"},
		core.BlobPart{MIMEType: "image/png", Data: []byte{0x89}},
	}}}})

	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].OfUser)
	assert.Len(t, msgs[0].OfUser.Content.OfArrayOfContentParts, 2)
}

func TestFromMessage(t *testing.T) {
	parts := FromMessage(openai.ChatCompletionMessage{
		Content: "ok",
		ToolCalls: []openai.ChatCompletionMessageToolCall{
			{ID: "c1", Function: openai.ChatCompletionMessageToolCallFunction{Name: "cat", Arguments: `{"path":"a.txt"}`}},
			{ID: "c2", Function: openai.ChatCompletionMessageToolCallFunction{Name: "ls", Arguments: `not json`}},
		},
	})

	require.Len(t, parts, 3)
	assert.Equal(t, core.TextPart{Text: "ok"}, parts[0])

	calls := core.FunctionCalls(parts)
	assert.Equal(t, "a.txt", calls[0].Args["path"])
	assert.Equal(t, "not json", calls[1].Args["raw"])
}
