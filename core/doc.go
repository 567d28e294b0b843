// Package core provides the foundational domain types shared by every other
// toolgate package:
//
//   - Parts and Content (the turn shape exchanged with model backends)
//   - Messages (the persisted, append-only session log entries)
//   - ExecutionRecord / TurnOutcome (results of the public engine operations)
//   - ToolContext (the surface handed to local tool implementations)
//   - the error taxonomy (ToolNotFound, InvalidArguments, NoPendingBatch,
//     UnresolvedDelegate, Upstream, Configuration)
//
// The package keeps persistence, model transport and orchestration out of
// scope so that stores and backends can depend on it without cycles.
package core
