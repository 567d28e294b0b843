package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalParts_WireShape(t *testing.T) {
	data, err := MarshalParts([]Part{
		TextPart{Text: "hello"},
		BlobPart{MIMEType: "image/png", Data: []byte("png")},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "ls", Args: map[string]any{"path": "/tmp"}}},
	})
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 3)

	assert.Equal(t, "hello", raw[0]["text"])
	assert.Equal(t, map[string]any{"mimeType": "image/png", "data": "cG5n"}, raw[1]["inlineData"])
	fc := raw[2]["functionCall"].(map[string]any)
	assert.Equal(t, "ls", fc["name"])
	assert.Equal(t, map[string]any{"path": "/tmp"}, fc["args"])
}

func TestUnmarshalParts_LegacyLog(t *testing.T) {
	// shape written by earlier deployments: no ids, responses keyed by name
	legacy := `[{"functionResponse":{"name":"repo_list","response":{"repos":[]}}},{"text":"ok"}]`

	parts, err := UnmarshalParts([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, parts, 2)

	fr, ok := parts[0].(FunctionResponsePart)
	require.True(t, ok)
	assert.Equal(t, "repo_list", fr.FunctionResponse.Name)
	assert.Equal(t, TextPart{Text: "ok"}, parts[1])
}

func TestUnmarshalParts_Errors(t *testing.T) {
	_, err := UnmarshalParts([]byte(`[{}]`))
	assert.Error(t, err)

	_, err = UnmarshalParts([]byte(`[{"inlineData":{"mimeType":"x","data":"%%%"}}]`))
	assert.Error(t, err)

	_, err = UnmarshalParts([]byte(`not json`))
	assert.Error(t, err)
}

func TestContentJSON(t *testing.T) {
	in := Content{Role: RoleModel, Parts: []Part{TextPart{Text: "hi"}}}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"model","parts":[{"text":"hi"}]}`, string(data))

	var out Content
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
