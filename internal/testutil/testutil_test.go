package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/store"
)

func TestMessageBuilder(t *testing.T) {
	msg := NewMessageBuilder().ID(3).Model().Text("Listing.").Call("ls", map[string]any{"path": "/"}).Build()

	assert.Equal(t, core.RoleModel, msg.Role)
	require.Len(t, msg.Parts, 2)

	calls := core.FunctionCalls(msg.Parts)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_3_1", calls[0].ID)
}

func TestLogBuilder_AssignsIDs(t *testing.T) {
	log := NewLogBuilder(7).
		Add(NewMessageBuilder().Text("hi")).
		Add(NewMessageBuilder().Model().Text("hello")).
		Build()

	require.Len(t, log, 2)
	assert.Equal(t, int64(1), log[0].ID)
	assert.Equal(t, int64(2), log[1].ID)
	assert.Equal(t, int64(7), log[1].SessionID)
}

func TestSeedSession(t *testing.T) {
	st := store.NewMemoryStore()

	id := SeedSession(t, st, nil, NewMessageBuilder().Text("hi").Build())

	msgs, err := st.ListMessages(t.Context(), id)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
