package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/model"
)

// send runs one exchange: validate the turn, persist it, send it and
// persist the answer. Responses without parts are not persisted.
func (e *Engine) send(ctx context.Context, sessionID int64, conv model.Conversation, parts []core.Part) (*model.Response, error) {
	if err := core.ValidateTurn(parts); err != nil {
		return nil, err
	}

	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeModel, &CallbackContext{SessionID: sessionID, Parts: parts}); err != nil {
		return nil, err
	}

	if _, err := e.store.AppendMessage(ctx, sessionID, core.RoleUser, parts); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	info := e.backend.Info()

	ctx, span := e.tracer.Start(ctx, "model.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("session.id", sessionID),
			attribute.String("model.provider", info.Provider),
			attribute.String("model.name", info.Name),
			attribute.Int("parts", len(parts)),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := conv.Send(ctx, parts)
	e.metrics.observeModel(start, err)

	tokens := 0
	if resp != nil && resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}

	logging.LogModelCall(e.logger, info.Provider, tokens, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, &core.UpstreamError{Op: "send", Err: err}
	}

	resp.Content.Role = core.RoleModel
	resp.Content.Parts = core.EnsureCallIDs(resp.Content.Parts)

	span.SetAttributes(
		attribute.Int("response.calls", len(resp.FunctionCalls())),
		attribute.String("response.finish_reason", resp.FinishReason),
	)

	if len(resp.Content.Parts) == 0 {
		e.logger.Warn("engine.model.empty_response", "session_id", sessionID, "finish_reason", resp.FinishReason)
	} else if _, err := e.store.AppendMessage(ctx, sessionID, core.RoleModel, resp.Content.Parts); err != nil {
		return nil, fmt.Errorf("append model message: %w", err)
	}

	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterModel, &CallbackContext{SessionID: sessionID, Parts: parts, Response: resp}); err != nil {
		e.logger.Warn("engine.callback.failed", "type", CallbackAfterModel, "error", err.Error())
	}

	return resp, nil
}
