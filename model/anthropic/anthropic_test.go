package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/model"
)

func TestBuildMessages_MergesRolesAndPairsToolResults(t *testing.T) {
	msgs := BuildMessages([]core.Content{
		core.NewTextContent(core.RoleUser, "earlier"),
		core.NewTextContent(core.RoleUser, "list files"),
		{Role: core.RoleModel, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID: "c1", Name: "ls", Args: map[string]any{"path": "/"},
		}}}},
		{Role: core.RoleUser, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: "c1", Name: "ls", Response: map[string]any{"entries": []any{}},
		}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Len(t, msgs[0].Content, 2)

	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	require.NotNil(t, msgs[1].Content[0].OfToolUse)
	assert.Equal(t, "c1", msgs[1].Content[0].OfToolUse.ID)

	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "c1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestBuildMessages_Blobs(t *testing.T) {
	msgs := BuildMessages([]core.Content{{Role: core.RoleUser, Parts: []core.Part{
		core.BlobPart{MIMEType: "image/png", Data: []byte{0x89, 0x50}},
		core.BlobPart{MIMEType: "application/zip", Data: []byte{1, 2, 3}},
	}}})

	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Content, 2)
	assert.NotNil(t, msgs[0].Content[0].OfImage)
	require.NotNil(t, msgs[0].Content[1].OfText)
	assert.Contains(t, msgs[0].Content[1].OfText.Text, "application/zip")
}

func TestBuildTools(t *testing.T) {
	tools := BuildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "cat",
			Description: "Read a file",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
				"required":   []any{"path"},
			},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "cat", tools[0].OfTool.Name)
	assert.Equal(t, []string{"path"}, tools[0].OfTool.InputSchema.Required)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	assert.Equal(t, "anthropic", m.Info().Provider)
}
