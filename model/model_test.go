package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Collect / Generate --------------------

func TestCollect_ReturnsFinalResponse(t *testing.T) {
	respCh := make(chan Response, 1)
	errCh := make(chan error)

	respCh <- Response{ID: "r1", Content: core.NewTextContent(core.RoleModel, "hi")}
	close(respCh)
	close(errCh)

	resp, err := Collect(context.Background(), respCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, "hi", resp.Text())
}

func TestCollect_NoResponse(t *testing.T) {
	respCh := make(chan Response)
	errCh := make(chan error)
	close(respCh)
	close(errCh)

	_, err := Collect(context.Background(), respCh, errCh)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestGenerate_WrapsProviderError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockModel("m").Fail(boom)

	_, err := Generate(context.Background(), m, Request{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "mock")
}

func TestResponse_NilSafe(t *testing.T) {
	var r *Response
	assert.Nil(t, r.FunctionCalls())
	assert.Empty(t, r.Text())
}

func TestDefinitionsFromDeclarations(t *testing.T) {
	defs := DefinitionsFromDeclarations([]tool.Declaration{
		{Name: "cat", Description: "Read a file", Parameters: map[string]any{"type": "object"}},
		{Name: "ls", Description: "List"},
	})

	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "cat", defs[0].Function.Name)
	assert.Equal(t, "ls", defs[1].Function.Name)
}

// -------------------- Conversation --------------------

func TestConversation_AccumulatesHistory(t *testing.T) {
	m := NewMockModel("m").
		Call(core.FunctionCall{ID: "c1", Name: "ls", Args: map[string]any{"path": "/"}}).
		Reply("done")

	seed := []core.Content{core.NewTextContent(core.RoleUser, "earlier")}

	conv, err := NewBackend(m).StartConversation(context.Background(), ConversationConfig{SystemInstruction: "sys"}, seed)
	require.NoError(t, err)

	resp, err := conv.Send(context.Background(), []core.Part{core.TextPart{Text: "list files"}})
	require.NoError(t, err)
	require.Len(t, resp.FunctionCalls(), 1)

	_, err = conv.Send(context.Background(), []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
		ID: "c1", Name: "ls", Response: map[string]any{"entries": []any{}},
	}}})
	require.NoError(t, err)

	history := conv.History()
	require.Len(t, history, 4)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Len(t, history[0].Parts, 2)
	assert.Equal(t, core.RoleModel, history[1].Role)
	assert.Equal(t, core.RoleUser, history[2].Role)
	assert.Equal(t, "done", core.Text(history[3].Parts))

	last, ok := m.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "sys", last.Instructions)
	assert.Len(t, last.Contents, 3)
}

func TestConversation_ErrorLeavesHistoryUnchanged(t *testing.T) {
	m := NewMockModel("m").Fail(errors.New("unavailable"))

	conv, err := NewBackend(m).StartConversation(context.Background(), ConversationConfig{}, nil)
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), []core.Part{core.TextPart{Text: "hello"}})
	require.Error(t, err)
	assert.Empty(t, conv.History())
}

func TestConversation_EmptyResponseNotAppended(t *testing.T) {
	m := NewMockModel("m").Respond()

	conv, err := NewBackend(m).StartConversation(context.Background(), ConversationConfig{}, nil)
	require.NoError(t, err)

	resp, err := conv.Send(context.Background(), []core.Part{core.TextPart{Text: "hello"}})
	require.NoError(t, err)
	assert.Empty(t, resp.Content.Parts)
	assert.Len(t, conv.History(), 1)
}

func TestConversation_EmptyResponseKeepsRolesAlternating(t *testing.T) {
	m := NewMockModel("m").Respond().Reply("ok").Reply("again")

	conv, err := NewBackend(m).StartConversation(context.Background(), ConversationConfig{}, nil)
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), []core.Part{core.TextPart{Text: "hello"}})
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), []core.Part{core.TextPart{Text: "are you there"}})
	require.NoError(t, err)

	last, ok := m.LastRequest()
	require.True(t, ok)
	require.Len(t, last.Contents, 1)
	assert.Equal(t, core.RoleUser, last.Contents[0].Role)
	assert.Equal(t, "helloare you there", core.Text(last.Contents[0].Parts))

	_, err = conv.Send(context.Background(), []core.Part{core.TextPart{Text: "thanks"}})
	require.NoError(t, err)

	history := conv.History()
	require.Len(t, history, 4)

	for i := 1; i < len(history); i++ {
		assert.NotEqual(t, history[i-1].Role, history[i].Role, "turn %d repeats role %s", i, history[i].Role)
	}
}

func TestConversation_SeedIsCopied(t *testing.T) {
	seed := []core.Content{core.NewTextContent(core.RoleUser, "a")}

	conv, err := NewBackend(NewMockModel("m")).StartConversation(context.Background(), ConversationConfig{}, seed)
	require.NoError(t, err)

	seed[0].Parts[0] = core.TextPart{Text: "mutated"}
	assert.Equal(t, "a", core.Text(conv.History()[0].Parts))
}

// -------------------- MergeRoles --------------------

func TestMergeRoles(t *testing.T) {
	merged := MergeRoles([]core.Content{
		core.NewTextContent(core.RoleUser, "a"),
		{Role: core.RoleUser},
		core.NewTextContent(core.RoleUser, "b"),
		core.NewTextContent(core.RoleModel, "c"),
		core.NewTextContent(core.RoleUser, "d"),
	})

	require.Len(t, merged, 3)
	assert.Equal(t, "ab", core.Text(merged[0].Parts))
	assert.Equal(t, core.RoleModel, merged[1].Role)
	assert.Equal(t, "d", core.Text(merged[2].Parts))
}

// -------------------- MockModel --------------------

func TestMockModel_ExhaustedScript(t *testing.T) {
	m := NewMockModel("m").Reply("one")

	_, err := Generate(context.Background(), m, Request{})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Remaining())

	_, err = Generate(context.Background(), m, Request{})
	assert.ErrorContains(t, err, "no scripted response left")
	assert.Len(t, m.Requests(), 2)
}

func TestMockModel_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, NewMockModel("m").Reply("x"), Request{})
	assert.ErrorIs(t, err, context.Canceled)
}
