// Package builtin provides the standard tool set: local tools backed by the
// store catalog and the declarations of tools executed by the delegate.
package builtin

import (
	"errors"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/store"
	"github.com/hupe1980/toolgate/tool"
)

type repoGetArgs struct {
	ID int64 `json:"id" description:"Repository ID"`
}

type sessionListArgs struct {
	RepoID int64 `json:"repoId" description:"Repository ID"`
}

type messageListArgs struct {
	SessionID int64 `json:"sessionId" description:"Session ID"`
}

type assetListArgs struct {
	RepoID *int64 `json:"repoId,omitempty" description:"Optional repository ID to filter by"`
	Global bool   `json:"global,omitempty" description:"If true, list only global assets (repoId is null)"`
}

type assetGetArgs struct {
	ID int64 `json:"id" description:"Asset ID"`
}

type eventListArgs struct {
	RepoID int64 `json:"repoId" description:"Repository ID"`
}

type eventGetArgs struct {
	ID int64 `json:"id" description:"Event ID"`
}

type eventAppendArgs struct {
	RepoID     int64    `json:"repoId" description:"Repository ID"`
	Direction  string   `json:"direction" description:"Event direction: 'in' or 'out'" enum:"in,out"`
	Summary    string   `json:"summary" description:"Summary text of the event"`
	LabelNames []string `json:"labelNames,omitempty" description:"Label names to attach; unknown labels are created"`
	AssetIDs   []int64  `json:"assetIds,omitempty" description:"Asset IDs to attach"`
}

type noArgs struct{}

// notFound maps store.ErrNotFound to the in-band message the model sees.
func notFound(name, what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return tool.NewToolError(name, what+" not found", tool.CodeNotFound)
	}

	return err
}

// LocalTools returns the catalog-backed tools in their canonical order.
func LocalTools(catalog store.Catalog, sessions store.Store) []tool.Tool {
	return []tool.Tool{
		tool.NewTypedTool("repo_list", "List all repositories",
			func(tc *core.ToolContext, _ noArgs) (any, error) {
				repos, err := catalog.ListRepos(tc.Context())
				if err != nil {
					return nil, err
				}

				return map[string]any{"repos": repos}, nil
			}),

		tool.NewTypedTool("repo_get", "Get a repository by ID",
			func(tc *core.ToolContext, a repoGetArgs) (any, error) {
				repo, err := catalog.GetRepo(tc.Context(), a.ID)
				if err != nil {
					return nil, notFound("repo_get", "Repo", err)
				}

				return repo, nil
			}),

		tool.NewTypedTool("label_list", "List all labels",
			func(tc *core.ToolContext, _ noArgs) (any, error) {
				labels, err := catalog.ListLabels(tc.Context())
				if err != nil {
					return nil, err
				}

				return map[string]any{"labels": labels}, nil
			}),

		tool.NewTypedTool("session_list", "List chat sessions in a repository",
			func(tc *core.ToolContext, a sessionListArgs) (any, error) {
				list, err := sessions.ListSessions(tc.Context(), store.SessionFilter{RepoID: &a.RepoID})
				if err != nil {
					return nil, err
				}

				return map[string]any{"sessions": list}, nil
			}, tool.WithScopeRestricted()),

		tool.NewTypedTool("message_list", "List messages in a chat session",
			func(tc *core.ToolContext, a messageListArgs) (any, error) {
				msgs, err := sessions.ListMessages(tc.Context(), a.SessionID)
				if err != nil {
					return nil, notFound("message_list", "Session", err)
				}

				out := make([]map[string]any, 0, len(msgs))
				for _, m := range msgs {
					out = append(out, map[string]any{
						"id":        m.ID,
						"role":      m.Role,
						"content":   m.Content(),
						"createdAt": m.CreatedAt,
					})
				}

				return map[string]any{"messages": out}, nil
			}),

		tool.NewTypedTool("asset_list",
			"List assets, optionally filtered by repository ID. Use global=true to list global assets (not tied to any repository).",
			func(tc *core.ToolContext, a assetListArgs) (any, error) {
				filter := store.AssetFilter{GlobalOnly: a.Global}
				if !a.Global && a.RepoID != nil && *a.RepoID != 0 {
					filter.RepoID = a.RepoID
				}

				assets, err := catalog.ListAssets(tc.Context(), filter)
				if err != nil {
					return nil, err
				}

				return map[string]any{"assets": assets}, nil
			}, tool.WithScopeRestricted()),

		tool.NewTypedTool("asset_get", "Get an asset by ID",
			func(tc *core.ToolContext, a assetGetArgs) (any, error) {
				asset, err := catalog.GetAsset(tc.Context(), a.ID)
				if err != nil {
					return nil, notFound("asset_get", "Asset", err)
				}

				if asset.IsText() {
					return asset, nil
				}

				// base64 + mimeType is lifted into an inline blob by the sanitizer.
				return map[string]any{
					"id":       asset.ID,
					"name":     asset.Name,
					"base64":   asset.Content,
					"mimeType": asset.MimeType,
				}, nil
			}),

		tool.NewTypedTool("event_list", "List events in a repository with their labels, assets, and links",
			func(tc *core.ToolContext, a eventListArgs) (any, error) {
				events, err := catalog.ListEvents(tc.Context(), a.RepoID)
				if err != nil {
					return nil, err
				}

				return map[string]any{"events": events}, nil
			}, tool.WithScopeRestricted()),

		tool.NewTypedTool("event_get", "Get an event by ID with its labels, assets, and links",
			func(tc *core.ToolContext, a eventGetArgs) (any, error) {
				ev, err := catalog.GetEvent(tc.Context(), a.ID)
				if err != nil {
					return nil, notFound("event_get", "Event", err)
				}

				return ev, nil
			}),

		tool.NewTypedTool("event_append",
			"Append an event to a repository timeline. Labels are created on demand.",
			func(tc *core.ToolContext, a eventAppendArgs) (any, error) {
				ev, err := catalog.AppendEvent(tc.Context(), store.NewEvent{
					RepoID:     a.RepoID,
					Direction:  store.Direction(a.Direction),
					Summary:    a.Summary,
					LabelNames: a.LabelNames,
					AssetIDs:   a.AssetIDs,
				})
				if err != nil {
					return nil, notFound("event_append", "Repo or asset", err)
				}

				return map[string]any{
					"id":        ev.ID,
					"repoId":    ev.RepoID,
					"direction": ev.Direction,
					"summary":   ev.Summary,
					"createdAt": ev.CreatedAt,
				}, nil
			}, tool.WithScopeRestricted()),
	}
}
