package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/toolgate/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().Model().Text("Listing.").Call("ls", map[string]any{"path": "/"}).Build()
//
// Parts keep the order in which they were added.
type MessageBuilder struct {
	id        int64
	sessionID int64
	role      core.Role
	parts     []core.Part
	createdAt time.Time
	calls     int
}

// NewMessageBuilder creates a builder for a user message.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{role: core.RoleUser, createdAt: time.Now().UTC()}
}

// ID sets the message id (chainable).
func (b *MessageBuilder) ID(id int64) *MessageBuilder { b.id = id; return b }

// Session sets the owning session (chainable).
func (b *MessageBuilder) Session(id int64) *MessageBuilder { b.sessionID = id; return b }

// User sets the role to user (chainable).
func (b *MessageBuilder) User() *MessageBuilder { b.role = core.RoleUser; return b }

// Model sets the role to model (chainable).
func (b *MessageBuilder) Model() *MessageBuilder { b.role = core.RoleModel; return b }

// Text appends a text part (chainable).
func (b *MessageBuilder) Text(t string) *MessageBuilder {
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// Blob appends an inline binary part (chainable).
func (b *MessageBuilder) Blob(mimeType string, data []byte) *MessageBuilder {
	b.parts = append(b.parts, core.BlobPart{MIMEType: mimeType, Data: data})
	return b
}

// Call appends a function call with a deterministic id (chainable).
func (b *MessageBuilder) Call(name string, args map[string]any) *MessageBuilder {
	b.calls++
	return b.CallWithID(fmt.Sprintf("call_%d_%d", b.id, b.calls), name, args)
}

// CallWithID appends a function call with an explicit id (chainable).
func (b *MessageBuilder) CallWithID(id, name string, args map[string]any) *MessageBuilder {
	b.parts = append(b.parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Args: args}})
	return b
}

// Response appends a function response (chainable).
func (b *MessageBuilder) Response(id, name string, response map[string]any) *MessageBuilder {
	b.parts = append(b.parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
		ID: id, Name: name, Response: response,
	}})
	return b
}

// Part appends a custom part (chainable).
func (b *MessageBuilder) Part(p core.Part) *MessageBuilder {
	b.parts = append(b.parts, p)
	return b
}

// Parts returns a copy of the parts added so far.
func (b *MessageBuilder) Parts() []core.Part { return append([]core.Part(nil), b.parts...) }

// Build constructs the core.Message value.
func (b *MessageBuilder) Build() core.Message {
	return core.Message{
		ID:        b.id,
		SessionID: b.sessionID,
		Role:      b.role,
		Parts:     b.Parts(),
		CreatedAt: b.createdAt,
	}
}
