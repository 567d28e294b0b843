package core

import "time"

// Message is one persisted entry of a session's log. Messages are immutable
// once appended.
type Message struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"sessionId"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Content returns the message as a turn.
func (m Message) Content() Content { return Content{Role: m.Role, Parts: m.Parts} }

// ExecutionSource classifies where a tool result came from.
type ExecutionSource string

const (
	// SourceLocal means the tool ran in process.
	SourceLocal ExecutionSource = "local"
	// SourceDelegate means the result was supplied by the delegate executor.
	SourceDelegate ExecutionSource = "delegate"
	// SourceDenied means the call was not executed.
	SourceDenied ExecutionSource = "denied"
)

// ExecutionRecord is the audit entry for one resolved call.
type ExecutionRecord struct {
	Name   string          `json:"name"`
	Args   map[string]any  `json:"args,omitempty"`
	Result map[string]any  `json:"result"`
	Source ExecutionSource `json:"source"`
	Error  string          `json:"error,omitempty"`
}

// FrontendResult is a result computed by the delegate executor for a call name.
type FrontendResult struct {
	Name   string `json:"name"`
	Result any    `json:"result"`
}

// OutcomeKind distinguishes plain replies from outcomes awaiting approval.
type OutcomeKind string

const (
	// OutcomeReply means the model answered with text only.
	OutcomeReply OutcomeKind = "reply"
	// OutcomeToolCalls means the model issued calls that now await approval.
	OutcomeToolCalls OutcomeKind = "tool_calls"
)

// TurnOutcome is returned by the public operations of the engine.
type TurnOutcome struct {
	Reply        string            `json:"reply,omitempty"`
	PendingCalls []FunctionCall    `json:"pendingCalls,omitempty"`
	Executions   []ExecutionRecord `json:"executions,omitempty"`
}

// Kind reports whether the outcome awaits approval.
func (o *TurnOutcome) Kind() OutcomeKind {
	if len(o.PendingCalls) > 0 {
		return OutcomeToolCalls
	}

	return OutcomeReply
}
