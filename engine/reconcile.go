package engine

import "github.com/hupe1980/toolgate/core"

// ReconcileHistory rebuilds model-compatible turns from a persisted message
// log:
//
//  1. messages carrying a function response are dropped;
//  2. messages carrying a function call keep only their text and blob parts
//     and are dropped when nothing remains;
//  3. consecutive retained messages of the same role are merged into one turn.
//
// The input is never mutated.
func ReconcileHistory(messages []core.Message) []core.Content {
	out := make([]core.Content, 0, len(messages))

	for _, m := range messages {
		if core.HasFunctionResponse(m.Parts) {
			continue
		}

		parts := m.Parts
		if core.HasFunctionCall(parts) {
			parts = plainParts(parts)
		}

		if len(parts) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			continue
		}

		out = append(out, core.Content{Role: m.Role, Parts: append([]core.Part(nil), parts...)})
	}

	return out
}

func plainParts(parts []core.Part) []core.Part {
	var kept []core.Part

	for _, p := range parts {
		if core.IsPlain(p) {
			kept = append(kept, p)
		}
	}

	return kept
}
