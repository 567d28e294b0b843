package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
)

type recordingLogger struct {
	msgs []string
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.msgs = append(l.msgs, msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.msgs = append(l.msgs, msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.msgs = append(l.msgs, msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.msgs = append(l.msgs, msg) }

func TestCallbackManager_RunsInOrderAndStopsOnError(t *testing.T) {
	cm := NewCallbackManager()

	var order []int

	cm.RegisterCallback(NewFunctionCallback(CallbackAfterTool, func(context.Context, *CallbackContext) error {
		order = append(order, 1)
		return nil
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackAfterTool, func(context.Context, *CallbackContext) error {
		order = append(order, 2)
		return errors.New("stop")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackAfterTool, func(context.Context, *CallbackContext) error {
		order = append(order, 3)
		return nil
	}))

	cc := &CallbackContext{SessionID: 7}
	err := cm.ExecuteCallbacks(context.Background(), CallbackAfterTool, cc)
	require.EqualError(t, err, "stop")
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, CallbackAfterTool, cc.CallbackType)

	require.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackBeforeModel, &CallbackContext{}))
}

func TestCallbackManager_NilIsNoOp(t *testing.T) {
	var cm *CallbackManager
	assert.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackOnError, &CallbackContext{}))
}

func TestLoggingCallback(t *testing.T) {
	l := &recordingLogger{}
	cb := NewLoggingCallback(CallbackAfterTool, l)

	assert.Equal(t, CallbackAfterTool, cb.Type())

	err := cb.Execute(context.Background(), &CallbackContext{
		SessionID: 1,
		Call:      &core.FunctionCall{ID: "c1", Name: "cat"},
		Record:    &core.ExecutionRecord{Name: "cat", Source: core.SourceDelegate},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"engine.callback.after_tool"}, l.msgs)
}
