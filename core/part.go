package core

// Role identifies the author of a Content turn.
type Role string

const (
	// RoleUser marks turns produced by the operator (including tool results).
	RoleUser Role = "user"
	// RoleModel marks turns produced by the model backend.
	RoleModel Role = "model"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleModel }

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// BlobPart carries raw bytes plus their MIME type inline with the turn.
type BlobPart struct {
	MIMEType string
	Data     []byte
}

// isPart implements the Part interface for BlobPart.
func (BlobPart) isPart() {}

// FunctionCall describes a tool invocation requested by the model.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"` // Optional provider supplied id
	Name string         `json:"name"`         // Tool name
	Args map[string]any `json:"args,omitempty"`
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse carries the result of a FunctionCall back to the model.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"` // Matches originating FunctionCall ID
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// Content holds role + ordered parts. It is the unit exchanged with the
// model backend (a turn).
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextContent is a shorthand for a single text part turn.
func NewTextContent(role Role, text string) Content {
	return Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// FunctionCalls returns the function calls contained in parts in order.
func FunctionCalls(parts []Part) []FunctionCall {
	var calls []FunctionCall

	for _, p := range parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}

	return calls
}

// Text concatenates all text parts.
func Text(parts []Part) string {
	var out string

	for _, p := range parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}

	return out
}

// HasFunctionResponse reports whether any part is a FunctionResponsePart.
func HasFunctionResponse(parts []Part) bool {
	for _, p := range parts {
		if _, ok := p.(FunctionResponsePart); ok {
			return true
		}
	}

	return false
}

// HasFunctionCall reports whether any part is a FunctionCallPart.
func HasFunctionCall(parts []Part) bool {
	for _, p := range parts {
		if _, ok := p.(FunctionCallPart); ok {
			return true
		}
	}

	return false
}

// IsPlain reports whether p is a Text or Blob part.
func IsPlain(p Part) bool {
	switch p.(type) {
	case TextPart, BlobPart:
		return true
	default:
		return false
	}
}

// ValidateTurn enforces the structural rules for an outgoing turn: it must be
// non-empty and function responses may not be mixed with any other kind.
func ValidateTurn(parts []Part) error {
	if len(parts) == 0 {
		return ErrEmptyTurn
	}

	responses := 0

	for _, p := range parts {
		if p == nil {
			return ErrEmptyTurn
		}

		if _, ok := p.(FunctionResponsePart); ok {
			responses++
		}
	}

	if responses > 0 && responses != len(parts) {
		return ErrMixedTurn
	}

	return nil
}
