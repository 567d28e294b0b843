// Package storetest holds the behavioural contract shared by every store
// implementation. Backends call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/store"
)

// Backend is a store implementing both halves of the contract.
type Backend interface {
	store.Store
	store.Catalog
}

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) Backend

// Run executes the full contract against backends produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	RunSessions(t, func(t *testing.T) store.Store { return newBackend(t) })

	t.Run("SessionFilter", func(t *testing.T) { testSessionFilter(t, newBackend(t)) })
	t.Run("Repos", func(t *testing.T) { testRepos(t, newBackend(t)) })
	t.Run("Assets", func(t *testing.T) { testAssets(t, newBackend(t)) })
	t.Run("Events", func(t *testing.T) { testEvents(t, newBackend(t)) })
}

// RunSessions executes the session and message part of the contract only,
// for backends that do not carry the catalog.
func RunSessions(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, newStore(t)) })
	t.Run("MessageLog", func(t *testing.T) { testMessageLog(t, newStore(t)) })
	t.Run("MessageValidation", func(t *testing.T) { testMessageValidation(t, newStore(t)) })
}

func testSessionLifecycle(t *testing.T, b store.Store) {
	ctx := context.Background()

	sess, err := b.CreateSession(ctx, nil, "General Chat")
	require.NoError(t, err)
	assert.Nil(t, sess.RepoID)
	assert.Equal(t, "General Chat", sess.Title)

	require.NoError(t, b.RenameSession(ctx, sess.ID, "Renamed"))

	got, err := b.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	scope, err := b.SessionScope(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, scope)

	_, err = b.AppendMessage(ctx, sess.ID, core.RoleUser, []core.Part{core.TextPart{Text: "hi"}})
	require.NoError(t, err)

	require.NoError(t, b.DeleteSession(ctx, sess.ID))

	_, err = b.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = b.ListMessages(ctx, sess.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, b.DeleteSession(ctx, sess.ID), store.ErrNotFound)
	assert.ErrorIs(t, b.RenameSession(ctx, sess.ID, "x"), store.ErrNotFound)
}

func testSessionFilter(t *testing.T, b Backend) {
	ctx := context.Background()

	repo, err := b.CreateRepo(ctx, "acme")
	require.NoError(t, err)

	_, err = b.CreateSession(ctx, nil, "global")
	require.NoError(t, err)

	scoped, err := b.CreateSession(ctx, &repo.ID, "scoped")
	require.NoError(t, err)
	require.NotNil(t, scoped.RepoID)
	assert.Equal(t, repo.ID, *scoped.RepoID)

	all, err := b.ListSessions(ctx, store.SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byRepo, err := b.ListSessions(ctx, store.SessionFilter{RepoID: &repo.ID})
	require.NoError(t, err)
	require.Len(t, byRepo, 1)
	assert.Equal(t, "scoped", byRepo[0].Title)

	global, err := b.ListSessions(ctx, store.SessionFilter{GlobalOnly: true})
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, "global", global[0].Title)

	scope, err := b.SessionScope(ctx, scoped.ID)
	require.NoError(t, err)
	require.NotNil(t, scope)
	assert.Equal(t, repo.ID, *scope)

	missing := repo.ID + 1000
	_, err = b.CreateSession(ctx, &missing, "orphan")
	assert.Error(t, err)
}

func testMessageLog(t *testing.T, b store.Store) {
	ctx := context.Background()

	sess, err := b.CreateSession(ctx, nil, "log")
	require.NoError(t, err)

	turns := []struct {
		role  core.Role
		parts []core.Part
	}{
		{core.RoleUser, []core.Part{core.TextPart{Text: "list files"}, core.BlobPart{MIMEType: "image/png", Data: []byte{0x89, 0x50}}}},
		{core.RoleModel, []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "ls", Args: map[string]any{"path": "/"}}}}},
		{core.RoleUser, []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "ls", Response: map[string]any{"files": []any{"a"}}}}}},
		{core.RoleModel, []core.Part{core.TextPart{Text: "done"}}},
	}

	for _, turn := range turns {
		msg, err := b.AppendMessage(ctx, sess.ID, turn.role, turn.parts)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, msg.SessionID)
	}

	msgs, err := b.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, len(turns))

	for i, turn := range turns {
		assert.Equal(t, turn.role, msgs[i].Role)
		assert.Equal(t, turn.parts, msgs[i].Parts)
	}

	assert.Less(t, msgs[0].ID, msgs[3].ID)
}

func testMessageValidation(t *testing.T, b store.Store) {
	ctx := context.Background()

	sess, err := b.CreateSession(ctx, nil, "v")
	require.NoError(t, err)

	_, err = b.AppendMessage(ctx, sess.ID, core.RoleUser, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArguments)

	_, err = b.AppendMessage(ctx, sess.ID, core.Role("system"), []core.Part{core.TextPart{Text: "x"}})
	assert.ErrorIs(t, err, core.ErrInvalidArguments)

	_, err = b.AppendMessage(ctx, sess.ID+1000, core.RoleUser, []core.Part{core.TextPart{Text: "x"}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	msgs, err := b.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func testRepos(t *testing.T, b Backend) {
	ctx := context.Background()

	first, err := b.CreateRepo(ctx, "first")
	require.NoError(t, err)

	second, err := b.CreateRepo(ctx, "second")
	require.NoError(t, err)

	repos, err := b.ListRepos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, second.ID, repos[0].ID, "newest first")

	got, err := b.GetRepo(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)

	_, err = b.GetRepo(ctx, second.ID+1000)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testAssets(t *testing.T, b Backend) {
	ctx := context.Background()

	repo, err := b.CreateRepo(ctx, "acme")
	require.NoError(t, err)

	text, err := b.CreateAsset(ctx, store.NewAsset{RepoID: &repo.ID, Kind: store.AssetWork, Name: "notes.md", MimeType: "text/markdown", Content: "# hi"})
	require.NoError(t, err)

	global, err := b.CreateAsset(ctx, store.NewAsset{Kind: store.AssetReference, Name: "logo.png", MimeType: "image/png", Content: "iVBO"})
	require.NoError(t, err)

	got, err := b.GetAsset(ctx, text.ID)
	require.NoError(t, err)
	assert.Equal(t, "# hi", got.Content)
	assert.True(t, got.IsText())

	listed, err := b.ListAssets(ctx, store.AssetFilter{RepoID: &repo.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "notes.md", listed[0].Name)
	assert.Empty(t, listed[0].Content)

	globals, err := b.ListAssets(ctx, store.AssetFilter{GlobalOnly: true})
	require.NoError(t, err)
	require.Len(t, globals, 1)
	assert.Equal(t, global.ID, globals[0].ID)

	_, err = b.CreateAsset(ctx, store.NewAsset{Kind: "other", Name: "x", MimeType: "text/plain"})
	assert.ErrorIs(t, err, core.ErrInvalidArguments)

	_, err = b.GetAsset(ctx, global.ID+1000)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testEvents(t *testing.T, b Backend) {
	ctx := context.Background()

	repo, err := b.CreateRepo(ctx, "acme")
	require.NoError(t, err)

	asset, err := b.CreateAsset(ctx, store.NewAsset{RepoID: &repo.ID, Kind: store.AssetWork, Name: "brief.pdf", MimeType: "application/pdf", Content: "JVBE"})
	require.NoError(t, err)

	in, err := b.AppendEvent(ctx, store.NewEvent{RepoID: repo.ID, Direction: store.DirectionIn, Summary: "brief received", LabelNames: []string{"client", "urgent"}, AssetIDs: []int64{asset.ID}})
	require.NoError(t, err)
	assert.Equal(t, store.DirectionIn, in.Direction)

	out, err := b.AppendEvent(ctx, store.NewEvent{RepoID: repo.ID, Direction: store.DirectionOut, Summary: "answer sent", LabelNames: []string{"client"}})
	require.NoError(t, err)

	require.NoError(t, b.LinkEvents(ctx, out.ID, in.ID))
	require.NoError(t, b.LinkEvents(ctx, out.ID, in.ID))

	labels, err := b.ListLabels(ctx)
	require.NoError(t, err)
	require.Len(t, labels, 2, "label names are reused")
	assert.Equal(t, "client", labels[0].Name)

	detail, err := b.GetEvent(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, "brief received", detail.Summary)
	assert.Len(t, detail.Labels, 2)
	require.Len(t, detail.Assets, 1)
	assert.Equal(t, "brief.pdf", detail.Assets[0].Name)
	assert.Equal(t, []int64{out.ID}, detail.InLinks)
	assert.Empty(t, detail.OutLinks)

	events, err := b.ListEvents(ctx, repo.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, out.ID, events[0].ID, "newest first")
	assert.Equal(t, []int64{in.ID}, events[0].OutLinks)
	assert.Len(t, events[0].LabelIDs, 1)

	_, err = b.AppendEvent(ctx, store.NewEvent{RepoID: repo.ID, Direction: "sideways", Summary: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidArguments)

	_, err = b.GetEvent(ctx, out.ID+1000)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
