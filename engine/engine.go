package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/toolgate/convert"
	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/internal/util"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/model"
	"github.com/hupe1980/toolgate/store"
	"github.com/hupe1980/toolgate/tool"
)

// DefaultMaxAutoDenyRounds bounds the cancellation cascade triggered by a new
// user message while calls are pending.
const DefaultMaxAutoDenyRounds = 3

// DefaultScopeInstruction is appended to the system instruction of scoped
// sessions. It is a text/template receiving the scope id as .scope.
const DefaultScopeInstruction = "Current repository: {{.scope}}"

// Options configures an Engine using the functional options pattern.
type Options struct {
	// SystemInstruction is the base instruction of every conversation.
	SystemInstruction string

	// ScopeInstruction is rendered and appended for scoped sessions. Empty
	// selects DefaultScopeInstruction.
	ScopeInstruction string

	// MaxAutoDenyRounds bounds the auto-deny cascade. Values below one
	// select DefaultMaxAutoDenyRounds.
	MaxAutoDenyRounds int

	// Converter turns office attachments into PDF before they are sent.
	// Nil passes attachments through unchanged.
	Converter convert.Converter

	// Callbacks hooks into model sends and tool executions.
	Callbacks *CallbackManager

	// Registerer receives the engine metrics. Nil keeps them private.
	Registerer prometheus.Registerer

	// Tracer creates spans around operations. Defaults to the global provider.
	Tracer trace.Tracer

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// Now is the clock used for batch timestamps.
	Now func() time.Time
}

// Engine runs the tool-calling protocol for many sessions. It is safe for
// concurrent use; operations on one session are serialized.
type Engine struct {
	store    store.Store
	registry *tool.Registry
	backend  model.Backend
	opts     Options

	locks   *sessionLocker
	convs   *conversationCache
	pending *pendingBatches

	metrics *metrics
	tracer  trace.Tracer
	logger  logging.Logger
}

// New creates an Engine over a store, a tool registry and a model backend.
func New(st store.Store, registry *tool.Registry, backend model.Backend, optFns ...func(o *Options)) *Engine {
	opts := Options{
		ScopeInstruction:  DefaultScopeInstruction,
		MaxAutoDenyRounds: DefaultMaxAutoDenyRounds,
		Logger:            logging.NoOpLogger{},
		Now:               time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAutoDenyRounds < 1 {
		opts.MaxAutoDenyRounds = DefaultMaxAutoDenyRounds
	}

	if strings.TrimSpace(opts.ScopeInstruction) == "" {
		opts.ScopeInstruction = DefaultScopeInstruction
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/hupe1980/toolgate/engine")
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		store:    st,
		registry: registry,
		backend:  backend,
		opts:     opts,
		locks:    newSessionLocker(),
		convs:    newConversationCache(),
		pending:  newPendingBatches(),
		metrics:  newMetrics(opts.Registerer),
		tracer:   opts.Tracer,
		logger:   opts.Logger,
	}
}

// StartTurn processes a new user message. Parts must be text or blobs. An
// outstanding batch is auto-denied first. The outcome either carries the
// model's reply or the calls that now await approval.
func (e *Engine) StartTurn(ctx context.Context, sessionID int64, parts []core.Part) (out *core.TurnOutcome, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.start_turn", trace.WithAttributes(
		attribute.Int64("session.id", sessionID),
		attribute.Int("parts", len(parts)),
	))
	defer func() { e.finish(ctx, span, "start", sessionID, out, err) }()

	if err := validateUserParts(parts); err != nil {
		return nil, err
	}

	parts, err = e.convertAttachments(ctx, parts)
	if err != nil {
		return nil, err
	}

	unlock, err := e.locks.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conv, err := e.conversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := e.autoDeny(ctx, sessionID, conv); err != nil {
		return nil, err
	}

	resp, err := e.send(ctx, sessionID, conv, parts)
	if err != nil {
		return nil, err
	}

	return e.onModelTurnResult(sessionID, resp), nil
}

// Pending returns a copy of the calls awaiting approval for a session. It
// waits for an in-flight operation on the session to finish.
func (e *Engine) Pending(ctx context.Context, sessionID int64) ([]core.FunctionCall, error) {
	unlock, err := e.locks.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, ok := e.pending.peek(sessionID)
	if !ok {
		return nil, nil
	}

	return append([]core.FunctionCall(nil), b.Calls...), nil
}

// DeleteSession removes a session with its messages and forgets its live
// conversation and pending batch.
func (e *Engine) DeleteSession(ctx context.Context, sessionID int64) error {
	unlock, err := e.locks.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := e.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	e.convs.drop(sessionID)
	e.pending.clear(sessionID)
	e.metrics.pendingBatches.Set(float64(e.pending.len()))

	e.logger.Info("engine.session.deleted", "session_id", sessionID)

	return nil
}

// conversation returns the cached conversation of a session or starts one
// seeded with the reconciled message log.
func (e *Engine) conversation(ctx context.Context, sessionID int64) (model.Conversation, error) {
	if conv, ok := e.convs.get(sessionID); ok {
		return conv, nil
	}

	scope, err := e.store.SessionScope(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session %d: %w", sessionID, err)
	}

	messages, err := e.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages of session %d: %w", sessionID, err)
	}

	history := ReconcileHistory(messages)
	decls := e.registry.ListDeclarations(scope)

	conv, err := e.backend.StartConversation(ctx, model.ConversationConfig{
		SystemInstruction: e.systemInstruction(scope),
		Tools:             model.DefinitionsFromDeclarations(decls),
	}, history)
	if err != nil {
		return nil, &core.UpstreamError{Op: "start_conversation", Err: err}
	}

	e.convs.put(sessionID, conv)

	e.logger.Debug("engine.conversation.started",
		"session_id", sessionID,
		"messages", len(messages),
		"history_turns", len(history),
		"tools", len(decls),
	)

	return conv, nil
}

func (e *Engine) systemInstruction(scope *int64) string {
	if scope == nil {
		return e.opts.SystemInstruction
	}

	line, err := util.RenderTemplate(e.opts.ScopeInstruction, map[string]any{"scope": *scope})
	if err != nil {
		e.logger.Warn("engine.scope_instruction.invalid", "error", err.Error())
		line = fmt.Sprintf("Current repository: %d", *scope)
	}

	if e.opts.SystemInstruction == "" {
		return line
	}

	return e.opts.SystemInstruction + "\n\n" + line
}

func validateUserParts(parts []core.Part) error {
	if len(parts) == 0 {
		return &core.InvalidArgumentsError{Reason: "message has no parts"}
	}

	for i, p := range parts {
		if p == nil || !core.IsPlain(p) {
			return &core.InvalidArgumentsError{Reason: fmt.Sprintf("part %d: only text and binary parts are allowed", i)}
		}
	}

	return nil
}

// convertAttachments replaces office documents by their PDF rendering.
func (e *Engine) convertAttachments(ctx context.Context, parts []core.Part) ([]core.Part, error) {
	if e.opts.Converter == nil {
		return parts, nil
	}

	out := make([]core.Part, len(parts))

	for i, p := range parts {
		if b, ok := p.(core.BlobPart); ok && convert.IsConvertible(b.MIMEType) {
			pdf, err := e.opts.Converter.ToPDF(ctx, b.Data, b.MIMEType, fmt.Sprintf("attachment-%d", i))
			if err != nil {
				return nil, fmt.Errorf("convert attachment %d: %w", i, err)
			}

			e.logger.Debug("engine.attachment.converted", "from", b.MIMEType, "bytes", len(pdf))

			p = core.BlobPart{MIMEType: convert.PDFMimeType, Data: pdf}
		}

		out[i] = p
	}

	return out, nil
}

// onModelTurnResult moves the session to PendingApproval when the response
// carries calls and back to Idle otherwise.
func (e *Engine) onModelTurnResult(sessionID int64, resp *model.Response) *core.TurnOutcome {
	out := &core.TurnOutcome{Reply: resp.Text()}

	if calls := resp.FunctionCalls(); len(calls) > 0 {
		e.pending.record(&PendingBatch{
			SessionID: sessionID,
			Calls:     calls,
			IssuedAt:  e.opts.Now(),
		})
		out.PendingCalls = append([]core.FunctionCall(nil), calls...)
	} else {
		e.pending.clear(sessionID)
	}

	e.metrics.pendingBatches.Set(float64(e.pending.len()))

	return out
}

// finish records the result of a public operation.
func (e *Engine) finish(ctx context.Context, span trace.Span, operation string, sessionID int64, out *core.TurnOutcome, err error) {
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		e.metrics.observeTurn(operation, "error")
		e.logger.Warn("engine.turn.failed", "operation", operation, "session_id", sessionID, "error", err.Error())

		if cbErr := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{SessionID: sessionID, Err: err}); cbErr != nil {
			e.logger.Warn("engine.callback.failed", "type", CallbackOnError, "error", cbErr.Error())
		}

		return
	}

	kind := string(out.Kind())

	span.SetAttributes(
		attribute.String("outcome", kind),
		attribute.Int("pending_calls", len(out.PendingCalls)),
		attribute.Int("executions", len(out.Executions)),
	)

	e.metrics.observeTurn(operation, kind)
	e.logger.Info("engine.turn.completed",
		"operation", operation,
		"session_id", sessionID,
		"outcome", kind,
		"pending_calls", len(out.PendingCalls),
		"executions", len(out.Executions),
	)
}
