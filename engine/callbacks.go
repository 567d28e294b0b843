package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/model"
)

// CallbackType defines the lifecycle points where callbacks run.
//
//   - BeforeModel/AfterModel: around every turn sent to the model backend
//   - BeforeTool/AfterTool: around every local tool execution
//   - OnError: when a public operation fails
//
// A BeforeModel error aborts the operation. A BeforeTool error skips the
// tool and is reported to the model as an in-band error result. Errors from
// the remaining types are logged and otherwise ignored.
type CallbackType string

const (
	// CallbackBeforeModel is triggered before a turn is sent to the model.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel is triggered after the model answered a turn.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool is triggered before a local tool runs.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool is triggered after a call was resolved, whatever its source.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnError is triggered when StartTurn or ResolvePendingBatch fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the information available at a callback point.
// Fields that do not apply to the callback type are left zero.
type CallbackContext struct {
	SessionID    int64
	CallbackType CallbackType

	// Parts is the outgoing turn (model callbacks).
	Parts []core.Part
	// Response is the model answer (after_model).
	Response *model.Response
	// Call is the tool call being resolved (tool callbacks).
	Call *core.FunctionCall
	// Record is the resolved execution (after_tool).
	Record *core.ExecutionRecord
	// Err is the failure (on_error).
	Err error
}

// Callback is an execution lifecycle hook.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks per type and runs them in registration
// order. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs every callback registered for callbackType and stops
// at the first error. A nil manager runs nothing.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes a debug entry for every lifecycle event it handles.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	args := []any{"session_id", callbackCtx.SessionID}

	if callbackCtx.Call != nil {
		args = append(args, "tool", callbackCtx.Call.Name, "call_id", callbackCtx.Call.ID)
	}

	if callbackCtx.Record != nil {
		args = append(args, "source", callbackCtx.Record.Source)
	}

	if callbackCtx.Response != nil {
		args = append(args, "calls", len(callbackCtx.Response.FunctionCalls()))
	}

	if callbackCtx.Err != nil {
		args = append(args, "error", callbackCtx.Err.Error())
	}

	c.logger.Debug("engine.callback."+string(c.callbackType), args...)

	return nil
}
