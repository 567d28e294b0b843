package model

import (
	"context"
	"sync"

	"github.com/hupe1980/toolgate/core"
)

// ConversationConfig is fixed for the lifetime of a conversation.
type ConversationConfig struct {
	SystemInstruction string
	Tools             []ToolDefinition
}

// Conversation is a live model-side chat. It accumulates every turn it sends
// and every response it receives, so callers only pass the new parts.
type Conversation interface {
	// Send submits one user-role turn and returns the model's response.
	// On error the conversation history is left unchanged.
	Send(ctx context.Context, parts []core.Part) (*Response, error)
	// History returns a copy of the turns exchanged so far, seed included.
	History() []core.Content
}

// Backend opens conversations seeded with reconstructed history.
type Backend interface {
	StartConversation(ctx context.Context, cfg ConversationConfig, history []core.Content) (Conversation, error)
	Info() Info
}

// ChatBackend turns any stateless Model into a Backend by keeping the
// conversation history in process.
type ChatBackend struct {
	model Model
}

var _ Backend = (*ChatBackend)(nil)

// NewBackend wraps m.
func NewBackend(m Model) *ChatBackend { return &ChatBackend{model: m} }

// StartConversation implements Backend.
func (b *ChatBackend) StartConversation(_ context.Context, cfg ConversationConfig, history []core.Content) (Conversation, error) {
	return &chat{
		model:   b.model,
		cfg:     cfg,
		history: cloneContents(history),
	}, nil
}

// Info implements Backend.
func (b *ChatBackend) Info() Info { return b.model.Info() }

type chat struct {
	model Model
	cfg   ConversationConfig

	mu      sync.Mutex
	history []core.Content
}

func (c *chat) Send(ctx context.Context, parts []core.Part) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A user turn left unanswered by an empty response absorbs the next
	// one so the history keeps alternating.
	contents := cloneContents(c.history)
	if n := len(contents); n > 0 && contents[n-1].Role == core.RoleUser {
		contents[n-1].Parts = append(contents[n-1].Parts, parts...)
	} else {
		contents = append(contents, core.Content{Role: core.RoleUser, Parts: append([]core.Part(nil), parts...)})
	}

	req := Request{
		Instructions: c.cfg.SystemInstruction,
		Contents:     contents,
		Tools:        c.cfg.Tools,
	}

	resp, err := Generate(ctx, c.model, req)
	if err != nil {
		return nil, err
	}

	resp.Content.Role = core.RoleModel
	resp.Content.Parts = core.EnsureCallIDs(resp.Content.Parts)

	c.history = cloneContents(contents)
	if len(resp.Content.Parts) > 0 {
		c.history = append(c.history, core.Content{
			Role:  core.RoleModel,
			Parts: append([]core.Part(nil), resp.Content.Parts...),
		})
	}

	return resp, nil
}

func (c *chat) History() []core.Content {
	c.mu.Lock()
	defer c.mu.Unlock()

	return cloneContents(c.history)
}

func cloneContents(in []core.Content) []core.Content {
	out := make([]core.Content, len(in))
	for i, c := range in {
		out[i] = core.Content{Role: c.Role, Parts: append([]core.Part(nil), c.Parts...)}
	}

	return out
}

// MergeRoles collapses consecutive contents of the same role. Providers that
// require strict user/model alternation call it before building messages.
func MergeRoles(contents []core.Content) []core.Content {
	out := make([]core.Content, 0, len(contents))

	for _, c := range contents {
		if len(c.Parts) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == c.Role {
			out[n-1].Parts = append(out[n-1].Parts, c.Parts...)
			continue
		}

		out = append(out, core.Content{Role: c.Role, Parts: append([]core.Part(nil), c.Parts...)})
	}

	return out
}
