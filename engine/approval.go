package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/model"
	"github.com/hupe1980/toolgate/tool"
)

// CancelledMessage is returned to the model for every denied or superseded call.
const CancelledMessage = "User cancelled this operation. Please wait for new instructions."

func cancelledResponse() map[string]any {
	return map[string]any{"cancelled": CancelledMessage}
}

func cancellationTurn(calls []core.FunctionCall) []core.Part {
	parts := make([]core.Part, 0, len(calls))

	for _, call := range calls {
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: cancelledResponse(),
		}})
	}

	return parts
}

// autoDeny cancels the outstanding batch of a session. If the model answers
// the cancellation with new calls, those are cancelled too, up to
// MaxAutoDenyRounds turns. A batch left after the bound is dropped.
func (e *Engine) autoDeny(ctx context.Context, sessionID int64, conv model.Conversation) error {
	batch, ok := e.pending.take(sessionID)
	if !ok {
		return nil
	}

	e.metrics.pendingBatches.Set(float64(e.pending.len()))

	limiter := core.NewRoundLimiter(e.opts.MaxAutoDenyRounds)

	for {
		if err := limiter.Increment(); err != nil {
			e.logger.Warn("engine.auto_deny.bound_reached",
				"session_id", sessionID,
				"rounds", e.opts.MaxAutoDenyRounds,
				"dropped_calls", len(batch.Calls),
				"error", err.Error(),
			)

			return nil
		}

		e.metrics.autoDenyRounds.Inc()
		e.logger.Info("engine.auto_deny.round", "session_id", sessionID, "round", limiter.Count(), "calls", len(batch.Calls))

		resp, err := e.send(ctx, sessionID, conv, cancellationTurn(batch.Calls))
		if err != nil {
			return err
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return nil
		}

		batch = &PendingBatch{SessionID: sessionID, Calls: calls, IssuedAt: e.opts.Now()}
	}
}

// ResolvePendingBatch applies the operator's decision to the outstanding
// batch of a session. When approved, every delegated call needs a result in
// results; otherwise an *core.UnresolvedDelegateError is returned and the
// batch stays pending. Results are matched to calls by name in order, the
// last result of a name covering any further calls of that name. Remaining
// calls run locally; their failures are reported to the model in-band.
func (e *Engine) ResolvePendingBatch(ctx context.Context, sessionID int64, approved bool, results []core.FrontendResult) (out *core.TurnOutcome, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.resolve_pending_batch", trace.WithAttributes(
		attribute.Int64("session.id", sessionID),
		attribute.Bool("approved", approved),
		attribute.Int("frontend_results", len(results)),
	))
	defer func() { e.finish(ctx, span, "resolve", sessionID, out, err) }()

	unlock, err := e.locks.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	batch, ok := e.pending.peek(sessionID)
	if !ok {
		return nil, core.ErrNoPendingBatch
	}

	if approved {
		if err := e.preflight(batch, results); err != nil {
			return nil, err
		}
	}

	conv, err := e.conversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	scope, err := e.store.SessionScope(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	e.pending.take(sessionID)
	e.metrics.pendingBatches.Set(float64(e.pending.len()))

	fnParts, blobs, records := e.resolveCalls(ctx, sessionID, scope, batch.Calls, approved, results)

	resp, err := e.send(ctx, sessionID, conv, fnParts)
	if err != nil {
		return nil, err
	}

	if len(blobs) > 0 {
		if len(resp.FunctionCalls()) == 0 {
			resp, err = e.send(ctx, sessionID, conv, blobs)
			if err != nil {
				return nil, err
			}
		} else {
			e.logger.Warn("engine.resolve.binaries_dropped", "session_id", sessionID, "blobs", len(blobs))
		}
	}

	out = e.onModelTurnResult(sessionID, resp)
	out.Executions = records

	return out, nil
}

// preflight checks that every delegated call has a supplied result. It runs
// before anything is mutated.
func (e *Engine) preflight(batch *PendingBatch, results []core.FrontendResult) error {
	supplied := make(map[string]bool, len(results))
	for _, r := range results {
		supplied[r.Name] = true
	}

	var (
		missing []string
		seen    = map[string]bool{}
	)

	for _, call := range batch.Calls {
		locality, err := e.registry.Route(call.Name)
		if err != nil || locality != tool.Delegated {
			continue
		}

		if !supplied[call.Name] && !seen[call.Name] {
			seen[call.Name] = true
			missing = append(missing, call.Name)
		}
	}

	if len(missing) > 0 {
		return &core.UnresolvedDelegateError{Names: missing}
	}

	return nil
}

// resultQueue hands out supplied results per call name in order.
type resultQueue map[string][]any

func newResultQueue(results []core.FrontendResult) resultQueue {
	q := make(resultQueue, len(results))
	for _, r := range results {
		q[r.Name] = append(q[r.Name], r.Result)
	}

	return q
}

// next returns the next result for name. The last one is never consumed.
func (q resultQueue) next(name string) (any, bool) {
	rs := q[name]
	if len(rs) == 0 {
		return nil, false
	}

	if len(rs) > 1 {
		q[name] = rs[1:]
	}

	return rs[0], true
}

// resolveCalls produces one function response per call in issue order, the
// binaries extracted from the results and the execution records.
func (e *Engine) resolveCalls(
	ctx context.Context,
	sessionID int64,
	scope *int64,
	calls []core.FunctionCall,
	approved bool,
	results []core.FrontendResult,
) ([]core.Part, []core.Part, []core.ExecutionRecord) {
	var (
		fnParts = make([]core.Part, 0, len(calls))
		blobs   []core.Part
		records = make([]core.ExecutionRecord, 0, len(calls))
		queue   = newResultQueue(results)
	)

	for i := range calls {
		call := calls[i]
		rec := core.ExecutionRecord{Name: call.Name, Args: call.Args}

		var response map[string]any

		if !approved {
			rec.Source = core.SourceDenied
			response = cancelledResponse()
		} else {
			var raw any

			if supplied, ok := queue.next(call.Name); ok {
				rec.Source = core.SourceDelegate
				raw = supplied
			} else {
				rec.Source = core.SourceLocal
				raw, rec.Error = e.dispatch(ctx, sessionID, scope, call)
			}

			sanitized := Sanitize(raw)
			response = sanitized.Response

			if sanitized.Blob != nil {
				blobs = append(blobs, *sanitized.Blob)
			}
		}

		rec.Result = response
		records = append(records, rec)

		fnParts = append(fnParts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: response,
		}})

		e.metrics.toolExecutions.WithLabelValues(call.Name, string(rec.Source)).Inc()

		if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterTool, &CallbackContext{SessionID: sessionID, Call: &call, Record: &rec}); err != nil {
			e.logger.Warn("engine.callback.failed", "type", CallbackAfterTool, "error", err.Error())
		}
	}

	return fnParts, blobs, records
}

// dispatch runs a call locally. Failures become an {"error": msg} result and
// the message is returned for the execution record.
func (e *Engine) dispatch(ctx context.Context, sessionID int64, scope *int64, call core.FunctionCall) (any, string) {
	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeTool, &CallbackContext{SessionID: sessionID, Call: &call}); err != nil {
		return map[string]any{"error": err.Error()}, err.Error()
	}

	ctx, span := e.tracer.Start(ctx, "tool.dispatch", trace.WithAttributes(
		attribute.Int64("session.id", sessionID),
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	tc := core.NewToolContext(ctx, sessionID, scope, call.ID, e.logger)

	start := time.Now()
	result, err := e.registry.Dispatch(tc, call.Name, call.Args)
	logging.LogToolCall(e.logger, call.Name, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		msg := err.Error()

		var toolErr *tool.ToolError
		if errors.As(err, &toolErr) {
			msg = toolErr.Message
		}

		return map[string]any{"error": msg}, msg
	}

	return result, ""
}
