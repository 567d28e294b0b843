package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----- Turn Validation Tests -----

func TestValidateTurn(t *testing.T) {
	resp := FunctionResponsePart{FunctionResponse: FunctionResponse{Name: "ls", Response: map[string]any{"ok": true}}}

	assert.ErrorIs(t, ValidateTurn(nil), ErrEmptyTurn)
	assert.NoError(t, ValidateTurn([]Part{TextPart{Text: "hi"}, BlobPart{MIMEType: "image/png", Data: []byte{1}}}))
	assert.NoError(t, ValidateTurn([]Part{resp, resp}))
	assert.ErrorIs(t, ValidateTurn([]Part{resp, TextPart{Text: "hi"}}), ErrMixedTurn)
	assert.ErrorIs(t, ValidateTurn([]Part{BlobPart{MIMEType: "image/png"}, resp}), ErrMixedTurn)
}

func TestPartHelpers(t *testing.T) {
	parts := []Part{
		TextPart{Text: "a"},
		FunctionCallPart{FunctionCall: FunctionCall{Name: "ls"}},
		TextPart{Text: "b"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "x", Name: "cat"}},
	}

	calls := FunctionCalls(parts)
	require.Len(t, calls, 2)
	assert.Equal(t, "ls", calls[0].Name)
	assert.Equal(t, "cat", calls[1].Name)
	assert.Equal(t, "ab", Text(parts))
	assert.True(t, HasFunctionCall(parts))
	assert.False(t, HasFunctionResponse(parts))
	assert.True(t, IsPlain(parts[0]))
	assert.False(t, IsPlain(parts[1]))
}

func TestEnsureCallIDs(t *testing.T) {
	parts := []Part{
		FunctionCallPart{FunctionCall: FunctionCall{Name: "ls"}},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "keep", Name: "cat"}},
	}

	out := EnsureCallIDs(parts)
	calls := FunctionCalls(out)
	assert.True(t, strings.HasPrefix(calls[0].ID, "call_"))
	assert.Equal(t, "keep", calls[1].ID)
	// input untouched
	assert.Empty(t, parts[0].(FunctionCallPart).FunctionCall.ID)
}

func TestTurnOutcomeKind(t *testing.T) {
	assert.Equal(t, OutcomeReply, (&TurnOutcome{Reply: "done"}).Kind())
	assert.Equal(t, OutcomeToolCalls, (&TurnOutcome{PendingCalls: []FunctionCall{{Name: "ls"}}}).Kind())
}

// ----- Error Taxonomy Tests -----

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection reset")

	var err error = fmt.Errorf("wrap: %w", &UpstreamError{Op: "send", Err: cause})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, cause)

	err = fmt.Errorf("wrap: %w", &ToolNotFoundError{Name: "nope"})
	assert.ErrorIs(t, err, ErrToolNotFound)
	var tnf *ToolNotFoundError
	require.ErrorAs(t, err, &tnf)
	assert.Equal(t, "nope", tnf.Name)

	assert.ErrorIs(t, &InvalidArgumentsError{Tool: "repo_get", Reason: "missing id"}, ErrInvalidArguments)
	assert.ErrorIs(t, &UnresolvedDelegateError{Names: []string{"ls"}}, ErrUnresolvedDelegate)
	assert.ErrorIs(t, &ConfigurationError{Field: "model.api_key", Reason: "required"}, ErrConfiguration)
	assert.Contains(t, (&UnresolvedDelegateError{Names: []string{"ls", "cat"}}).Error(), "ls, cat")
}

// ----- Limiter Tests -----

func TestRoundLimiter(t *testing.T) {
	rl := NewRoundLimiter(2)
	assert.NoError(t, rl.Increment())
	assert.NoError(t, rl.Increment())
	assert.Equal(t, 2, rl.Count())

	err := rl.Increment()
	assert.ErrorIs(t, err, ErrRoundLimitExceeded)
	assert.Equal(t, 3, rl.Count())

	unlimited := NewRoundLimiter(0)
	for i := 0; i < 10; i++ {
		assert.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, 10, unlimited.Count())
}

// ----- ToolContext Tests -----

func TestToolContext(t *testing.T) {
	scope := int64(7)
	tc := NewToolContext(context.Background(), 3, &scope, "fc1", nil)

	assert.NoError(t, tc.Validate())
	assert.Equal(t, int64(3), tc.SessionID())
	assert.Equal(t, "fc1", tc.FunctionCallID())
	assert.NotNil(t, tc.Logger())

	got, ok := tc.Scope()
	assert.True(t, ok)
	assert.Equal(t, int64(7), got)

	unscoped := NewToolContext(context.Background(), 0, nil, "", nil)
	_, ok = unscoped.Scope()
	assert.False(t, ok)
	assert.Error(t, unscoped.Validate())
	assert.NotNil(t, unscoped.Context())
}
