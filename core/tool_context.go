package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/toolgate/logging"
)

// ToolContext provides the constrained surface handed to local tool
// implementations: the request context, the owning session, its scope and
// the id of the call being served.
type ToolContext struct {
	ctx            context.Context
	sessionID      int64
	scope          *int64
	functionCallID string
	logger         logging.Logger
}

// NewToolContext constructs a tool context for one function call.
func NewToolContext(ctx context.Context, sessionID int64, scope *int64, functionCallID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}

	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &ToolContext{
		ctx:            ctx,
		sessionID:      sessionID,
		scope:          scope,
		functionCallID: functionCallID,
		logger:         logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session the call belongs to.
func (tc *ToolContext) SessionID() int64 { return tc.sessionID }

// Scope returns the owning scope of the session, if any.
func (tc *ToolContext) Scope() (int64, bool) {
	if tc.scope == nil {
		return 0, false
	}

	return *tc.scope, true
}

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.sessionID <= 0 || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}
