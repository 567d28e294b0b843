// Package engine implements the per-session tool-calling protocol.
//
// The Engine mediates between an operator, a model backend and the tool
// registry. It owns four concerns:
//
//   - History reconciliation: conversations are rebuilt from the durable
//     message log after a restart (ReconcileHistory). Tool calls and tool
//     results are stripped so the seed always satisfies the model API.
//   - Conversation cache: one live model.Conversation per session, created
//     lazily and kept for the lifetime of the process.
//   - Approval gate: every batch of calls issued by the model waits for an
//     explicit decision. A new user message auto-denies the outstanding
//     batch first, bounded by Options.MaxAutoDenyRounds.
//   - Turn protocol: every outgoing turn is validated, persisted, sent and
//     its response persisted. Function responses are never mixed with other
//     part kinds; binaries produced by tools travel in a follow-up turn.
//
// # Concurrency
//
// Operations on the same session are serialized by a keyed lock. Different
// sessions proceed in parallel.
//
// # Callbacks
//
// A CallbackManager hooks into model sends and tool executions:
//
//	cbs := engine.NewCallbackManager()
//	cbs.RegisterCallback(engine.NewFunctionCallback(engine.CallbackBeforeTool,
//	    func(ctx context.Context, cc *engine.CallbackContext) error {
//	        if cc.Call.Name == "event_append" {
//	            return errors.New("read-only session")
//	        }
//	        return nil
//	    }))
//
//	eng := engine.New(st, reg, backend, func(o *engine.Options) {
//	    o.Callbacks = cbs
//	})
package engine
