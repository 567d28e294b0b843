package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/store"
)

// LogBuilder assembles a message log with sequential ids.
// Example:
//
//	log := NewLogBuilder(1).
//	    Add(NewMessageBuilder().Text("hi")).
//	    Add(NewMessageBuilder().Model().Text("hello")).
//	    Build()
type LogBuilder struct {
	sessionID int64
	messages  []core.Message
}

// NewLogBuilder creates a builder for the log of one session.
func NewLogBuilder(sessionID int64) *LogBuilder {
	return &LogBuilder{sessionID: sessionID}
}

// Add appends a message, assigning the next id and the session (chainable).
func (b *LogBuilder) Add(mb *MessageBuilder) *LogBuilder {
	msg := mb.Session(b.sessionID).ID(int64(len(b.messages) + 1)).Build()
	b.messages = append(b.messages, msg)

	return b
}

// Build returns a copy of the log.
func (b *LogBuilder) Build() []core.Message {
	return append([]core.Message(nil), b.messages...)
}

// SeedSession creates a session in st and appends msgs to it. It returns the
// new session id.
func SeedSession(t *testing.T, st store.Store, repoID *int64, msgs ...core.Message) int64 {
	t.Helper()

	ctx := context.Background()

	sess, err := st.CreateSession(ctx, repoID, "Test Chat")
	require.NoError(t, err)

	for _, m := range msgs {
		_, err := st.AppendMessage(ctx, sess.ID, m.Role, m.Parts)
		require.NoError(t, err)
	}

	return sess.ID
}
