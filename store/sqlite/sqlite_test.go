package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/store/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend {
		s, err := New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		return s
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "toolgate.db")

	s, err := New(func(o *Options) { o.Path = path })
	require.NoError(t, err)

	sess, err := s.CreateSession(ctx, nil, "durable")
	require.NoError(t, err)

	parts := []core.Part{
		core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "cat", Args: map[string]any{"path": "a.txt"}}},
	}
	_, err = s.AppendMessage(ctx, sess.ID, core.RoleModel, parts)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(func(o *Options) { o.Path = path })
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	msgs, err := reopened.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, parts, msgs[0].Parts)
	assert.False(t, msgs[0].CreatedAt.IsZero())
}
