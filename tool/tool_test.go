package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/toolgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToolContext(scope *int64) *core.ToolContext {
	return core.NewToolContext(context.Background(), 1, scope, "fc1", nil)
}

func scopedListTool(calls *[]map[string]any) *FunctionTool {
	return NewFunctionTool(
		"session_list",
		"List chat sessions in a repository",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"repoId": map[string]any{"type": "integer", "description": "Repository ID"},
			},
			"required": []any{"repoId"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			*calls = append(*calls, args)
			return map[string]any{"sessions": []any{}}, nil
		},
		WithScopeRestricted(),
	)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(testToolContext(nil), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
	assert.Equal(t, Local, sumTool.Declaration().Locality)
	assert.Equal(t, Global, sumTool.Declaration().Visibility)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	execTool := NewFunctionTool("fail", "Fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(testToolContext(nil), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	execTool := NewFunctionTool("repo_get", "Get", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, NewToolError("repo_get", "Repo not found", CodeNotFound)
	})

	_, err := execTool.Call(testToolContext(nil), nil)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeNotFound, toolErr.Code)
}

type typedArgs struct {
	ID    int64    `json:"id" description:"Repository ID"`
	Names []string `json:"names,omitempty"`
}

func TestTypedTool(t *testing.T) {
	var got typedArgs

	tt := NewTypedTool("repo_get", "Get a repository", func(_ *core.ToolContext, a typedArgs) (any, error) {
		got = a
		return map[string]any{"id": a.ID}, nil
	})

	params := tt.Declaration().Parameters
	assert.Equal(t, []any{"id"}, params["required"])

	reg := NewRegistry()
	require.NoError(t, reg.Register(tt))

	res, err := reg.Dispatch(testToolContext(nil), "repo_get", map[string]any{"id": 4, "names": []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(4)}, res)
	assert.Equal(t, typedArgs{ID: 4, Names: []string{"x"}}, got)
}

func TestDelegatedTool(t *testing.T) {
	dt := NewDelegatedTool("ls", "List files", nil)
	assert.Equal(t, Delegated, dt.Declaration().Locality)

	res, err := dt.Call(testToolContext(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "ls must be executed by the delegate"}, res)
}

// -------------------- Registry Tests --------------------

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewDelegatedTool("ls", "List", nil)))

	err := reg.Register(NewDelegatedTool("cat", "Read", nil), NewDelegatedTool("ls", "List", nil))
	assert.Error(t, err)
	assert.Equal(t, 1, reg.Len(), "failed batch must not register anything")

	err = reg.Register(NewDelegatedTool("", "nameless", nil))
	assert.Error(t, err)
}

func TestRegistry_ListDeclarations(t *testing.T) {
	var calls []map[string]any
	reg := NewRegistry()
	require.NoError(t, reg.Register(
		NewDelegatedTool("ls", "List", map[string]any{"type": "object"}),
		scopedListTool(&calls),
	))

	global := reg.ListDeclarations(nil)
	require.Len(t, global, 2)
	assert.Equal(t, "ls", global[0].Name)
	assert.Contains(t, global[1].Parameters["properties"], "repoId")

	scope := int64(5)
	scoped := reg.ListDeclarations(&scope)
	require.Len(t, scoped, 2)
	assert.NotContains(t, scoped[1].Parameters["properties"], "repoId")
	assert.Equal(t, []any{}, scoped[1].Parameters["required"])

	// the registered declaration is untouched
	again := reg.ListDeclarations(nil)
	assert.Contains(t, again[1].Parameters["properties"], "repoId")
	assert.Equal(t, []any{"repoId"}, again[1].Parameters["required"])
}

func TestRegistry_Route(t *testing.T) {
	var calls []map[string]any
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewDelegatedTool("ls", "List", nil), scopedListTool(&calls)))

	loc, err := reg.Route("ls")
	require.NoError(t, err)
	assert.Equal(t, Delegated, loc)

	loc, err = reg.Route("session_list")
	require.NoError(t, err)
	assert.Equal(t, Local, loc)

	_, err = reg.Route("nope")
	assert.ErrorIs(t, err, core.ErrToolNotFound)
}

func TestRegistry_DispatchNotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Dispatch(testToolContext(nil), "nope", nil)
	assert.ErrorIs(t, err, core.ErrToolNotFound)
}

func TestRegistry_DispatchDelegatedNeverRuns(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewDelegatedTool("ls", "List", nil)))

	res, err := reg.Dispatch(testToolContext(nil), "ls", map[string]any{"path": "/tmp"})
	require.NoError(t, err)
	assert.Equal(t, DelegatedSentinel("ls"), res)
}

func TestRegistry_DispatchInjectsScope(t *testing.T) {
	var calls []map[string]any
	reg := NewRegistry()
	require.NoError(t, reg.Register(scopedListTool(&calls)))

	scope := int64(9)
	_, err := reg.Dispatch(testToolContext(&scope), "session_list", map[string]any{})
	require.NoError(t, err)

	// caller supplied value is kept
	_, err = reg.Dispatch(testToolContext(&scope), "session_list", map[string]any{"repoId": 2})
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, float64(9), calls[0]["repoId"])
	assert.Equal(t, float64(2), calls[1]["repoId"])
}

func TestRegistry_DispatchInvalidArguments(t *testing.T) {
	var calls []map[string]any
	reg := NewRegistry()
	require.NoError(t, reg.Register(scopedListTool(&calls)))

	// unscoped session, scope parameter missing
	_, err := reg.Dispatch(testToolContext(nil), "session_list", map[string]any{})
	var invalid *core.InvalidArgumentsError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "session_list", invalid.Tool)

	_, err = reg.Dispatch(testToolContext(nil), "session_list", map[string]any{"repoId": "seven"})
	assert.ErrorIs(t, err, core.ErrInvalidArguments)

	assert.Empty(t, calls)
}

func TestRegistry_CustomScopeParam(t *testing.T) {
	reg := NewRegistry(func(o *RegistryOptions) { o.ScopeParam = "projectId" })
	assert.Equal(t, "projectId", reg.ScopeParam())
}
