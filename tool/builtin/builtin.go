package builtin

import (
	"github.com/hupe1980/toolgate/store"
	"github.com/hupe1980/toolgate/tool"
)

// Register installs the full standard tool set in canonical order. A nil
// catalog installs the delegated tools only.
func Register(reg *tool.Registry, catalog store.Catalog, sessions store.Store) error {
	if catalog == nil {
		ordered := append(FileTools(), AssetTools()...)
		return reg.Register(append(ordered, DocxTools()...)...)
	}

	local := LocalTools(catalog, sessions)
	byName := make(map[string]tool.Tool, len(local))

	for _, t := range local {
		byName[t.Declaration().Name] = t
	}

	ordered := FileTools()
	for _, name := range []string{"repo_list", "repo_get", "label_list", "session_list", "message_list", "asset_list"} {
		ordered = append(ordered, byName[name])
	}

	ordered = append(ordered, AssetTools()...)

	for _, name := range []string{"asset_get", "event_list", "event_get", "event_append"} {
		ordered = append(ordered, byName[name])
	}

	ordered = append(ordered, DocxTools()...)

	return reg.Register(ordered...)
}
