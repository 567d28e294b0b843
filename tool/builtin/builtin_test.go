package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/store"
	"github.com/hupe1980/toolgate/tool"
)

func setup(t *testing.T) (*tool.Registry, *store.MemoryStore) {
	t.Helper()

	mem := store.NewMemoryStore()
	reg := tool.NewRegistry()
	require.NoError(t, Register(reg, mem, mem))

	return reg, mem
}

func toolCtx(scope *int64) *core.ToolContext {
	return core.NewToolContext(context.Background(), 1, scope, "fc", nil)
}

func TestRegister_Order(t *testing.T) {
	reg, _ := setup(t)

	decls := reg.ListDeclarations(nil)
	require.Len(t, decls, 25)

	names := make([]string, 0, len(decls))
	for _, d := range decls {
		names = append(names, d.Name)
	}

	assert.Equal(t, []string{"cat", "write", "ls", "tree", "grep", "find", "cp", "mv", "convert_to_pdf"}, names[:9])
	assert.Equal(t, "repo_list", names[9])
	assert.Equal(t, "docx_delete_paragraph", names[24])

	loc, err := reg.Route("cat")
	require.NoError(t, err)
	assert.Equal(t, tool.Delegated, loc)

	loc, err = reg.Route("event_get")
	require.NoError(t, err)
	assert.Equal(t, tool.Local, loc)
}

func TestRegister_WithoutCatalog(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, Register(reg, nil, store.NewMemoryStore()))
	assert.Equal(t, 15, reg.Len())

	for _, d := range reg.ListDeclarations(nil) {
		assert.Equal(t, tool.Delegated, d.Locality, d.Name)
	}
}

func TestScopedDeclarationsHideRepoID(t *testing.T) {
	reg, _ := setup(t)

	scope := int64(1)
	for _, d := range reg.ListDeclarations(&scope) {
		if d.Visibility != tool.ScopeRestricted {
			continue
		}

		props, _ := d.Parameters["properties"].(map[string]any)
		assert.NotContains(t, props, "repoId", d.Name)
	}
}

func TestRepoGet(t *testing.T) {
	reg, mem := setup(t)
	ctx := context.Background()

	repo, err := mem.CreateRepo(ctx, "acme")
	require.NoError(t, err)

	res, err := reg.Dispatch(toolCtx(nil), "repo_get", map[string]any{"id": repo.ID})
	require.NoError(t, err)
	assert.Equal(t, "acme", res.(*store.Repo).Name)

	_, err = reg.Dispatch(toolCtx(nil), "repo_get", map[string]any{"id": 999})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeNotFound, toolErr.Code)
	assert.Equal(t, "Repo not found", toolErr.Message)
}

func TestSessionListUsesSessionScope(t *testing.T) {
	reg, mem := setup(t)
	ctx := context.Background()

	repo, err := mem.CreateRepo(ctx, "acme")
	require.NoError(t, err)

	_, err = mem.CreateSession(ctx, &repo.ID, "scoped")
	require.NoError(t, err)
	_, err = mem.CreateSession(ctx, nil, "global")
	require.NoError(t, err)

	res, err := reg.Dispatch(toolCtx(&repo.ID), "session_list", map[string]any{})
	require.NoError(t, err)

	sessions := res.(map[string]any)["sessions"].([]store.Session)
	require.Len(t, sessions, 1)
	assert.Equal(t, "scoped", sessions[0].Title)

	// unscoped callers must pass repoId
	_, err = reg.Dispatch(toolCtx(nil), "session_list", map[string]any{})
	assert.ErrorIs(t, err, core.ErrInvalidArguments)
}

func TestAssetGet(t *testing.T) {
	reg, mem := setup(t)
	ctx := context.Background()

	text, err := mem.CreateAsset(ctx, store.NewAsset{Kind: store.AssetWork, Name: "a.txt", MimeType: "text/plain", Content: "hello"})
	require.NoError(t, err)

	pdf, err := mem.CreateAsset(ctx, store.NewAsset{Kind: store.AssetReference, Name: "b.pdf", MimeType: "application/pdf", Content: "JVBERi0="})
	require.NoError(t, err)

	res, err := reg.Dispatch(toolCtx(nil), "asset_get", map[string]any{"id": text.ID})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.(*store.Asset).Content)

	res, err = reg.Dispatch(toolCtx(nil), "asset_get", map[string]any{"id": pdf.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":       pdf.ID,
		"name":     "b.pdf",
		"base64":   "JVBERi0=",
		"mimeType": "application/pdf",
	}, res)
}

func TestAssetListGlobalWinsOverScope(t *testing.T) {
	reg, mem := setup(t)
	ctx := context.Background()

	repo, err := mem.CreateRepo(ctx, "acme")
	require.NoError(t, err)

	_, err = mem.CreateAsset(ctx, store.NewAsset{RepoID: &repo.ID, Kind: store.AssetWork, Name: "scoped.md", MimeType: "text/markdown"})
	require.NoError(t, err)
	_, err = mem.CreateAsset(ctx, store.NewAsset{Kind: store.AssetReference, Name: "global.md", MimeType: "text/markdown"})
	require.NoError(t, err)

	res, err := reg.Dispatch(toolCtx(&repo.ID), "asset_list", map[string]any{})
	require.NoError(t, err)
	assets := res.(map[string]any)["assets"].([]store.Asset)
	require.Len(t, assets, 1)
	assert.Equal(t, "scoped.md", assets[0].Name)

	res, err = reg.Dispatch(toolCtx(&repo.ID), "asset_list", map[string]any{"global": true})
	require.NoError(t, err)
	assets = res.(map[string]any)["assets"].([]store.Asset)
	require.Len(t, assets, 1)
	assert.Equal(t, "global.md", assets[0].Name)
}

func TestEventAppendAndGet(t *testing.T) {
	reg, mem := setup(t)
	ctx := context.Background()

	repo, err := mem.CreateRepo(ctx, "acme")
	require.NoError(t, err)

	res, err := reg.Dispatch(toolCtx(&repo.ID), "event_append", map[string]any{
		"direction":  "in",
		"summary":    "contract received",
		"labelNames": []any{"legal"},
	})
	require.NoError(t, err)

	out := res.(map[string]any)
	assert.Equal(t, repo.ID, out["repoId"])

	detail, err := reg.Dispatch(toolCtx(nil), "event_get", map[string]any{"id": out["id"]})
	require.NoError(t, err)
	require.Len(t, detail.(*store.EventDetail).Labels, 1)
	assert.Equal(t, "legal", detail.(*store.EventDetail).Labels[0].Name)

	_, err = reg.Dispatch(toolCtx(&repo.ID), "event_append", map[string]any{"direction": "up", "summary": "x"})
	assert.ErrorIs(t, err, core.ErrInvalidArguments)
}

func TestDelegatedToolsNeverRunLocally(t *testing.T) {
	reg, _ := setup(t)

	res, err := reg.Dispatch(toolCtx(nil), "write", map[string]any{"path": "/tmp/x", "content": "y"})
	require.NoError(t, err)
	assert.Equal(t, tool.DelegatedSentinel("write"), res)
}
