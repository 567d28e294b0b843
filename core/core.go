package core

import "github.com/google/uuid"

// NewCallID returns a fresh identifier for function calls whose provider did
// not supply one.
func NewCallID() string { return "call_" + uuid.NewString() }

// EnsureCallIDs assigns ids to calls that lack one, returning a new slice.
func EnsureCallIDs(parts []Part) []Part {
	out := make([]Part, len(parts))

	for i, p := range parts {
		if fc, ok := p.(FunctionCallPart); ok && fc.FunctionCall.ID == "" {
			fc.FunctionCall.ID = NewCallID()
			p = fc
		}
		out[i] = p
	}

	return out
}
