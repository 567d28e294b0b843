package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/store"
)

// CreateRepo implements store.Catalog.
func (s *Store) CreateRepo(ctx context.Context, name string) (*store.Repo, error) {
	if name == "" {
		return nil, &core.InvalidArgumentsError{Reason: "name is required"}
	}

	r := &store.Repo{Name: name, CreatedAt: time.Now().UTC()}

	res, err := s.db.ExecContext(ctx, "INSERT INTO repos (name, created_at) VALUES (?, ?)", name, formatTime(r.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert repo: %w", err)
	}

	if r.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}

	return r, nil
}

// GetRepo implements store.Catalog.
func (s *Store) GetRepo(ctx context.Context, id int64) (*store.Repo, error) {
	var (
		r       store.Repo
		created string
	)

	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM repos WHERE id = ?", id).Scan(&r.ID, &r.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get repo: %w", err)
	}

	r.CreatedAt = parseTime(created)

	return &r, nil
}

// ListRepos implements store.Catalog.
func (s *Store) ListRepos(ctx context.Context) ([]store.Repo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM repos ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	out := []store.Repo{}

	for rows.Next() {
		var (
			r       store.Repo
			created string
		)

		if err := rows.Scan(&r.ID, &r.Name, &created); err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}

		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}

	return out, rows.Err()
}

// EnsureLabel implements store.Catalog.
func (s *Store) EnsureLabel(ctx context.Context, name string) (*store.Label, error) {
	if name == "" {
		return nil, &core.InvalidArgumentsError{Reason: "label name is required"}
	}

	return ensureLabel(ctx, s.db, name)
}

func ensureLabel(ctx context.Context, q querier, name string) (*store.Label, error) {
	if _, err := q.ExecContext(ctx, "INSERT OR IGNORE INTO labels (name) VALUES (?)", name); err != nil {
		return nil, fmt.Errorf("insert label: %w", err)
	}

	l := &store.Label{Name: name}
	if err := q.QueryRowContext(ctx, "SELECT id FROM labels WHERE name = ?", name).Scan(&l.ID); err != nil {
		return nil, fmt.Errorf("lookup label: %w", err)
	}

	return l, nil
}

// ListLabels implements store.Catalog.
func (s *Store) ListLabels(ctx context.Context) ([]store.Label, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM labels ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	out := []store.Label{}

	for rows.Next() {
		var l store.Label
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}

		out = append(out, l)
	}

	return out, rows.Err()
}

// CreateAsset implements store.Catalog.
func (s *Store) CreateAsset(ctx context.Context, in store.NewAsset) (*store.Asset, error) {
	if err := store.ValidateNewAsset(in); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	a := &store.Asset{
		RepoID:    in.RepoID,
		Kind:      in.Kind,
		Name:      in.Name,
		MimeType:  in.MimeType,
		Content:   in.Content,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if in.RepoID != nil {
			ok, err := exists(ctx, tx, "repos", *in.RepoID)
			if err != nil {
				return err
			}

			if !ok {
				return store.ErrNotFound
			}
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO assets (repo_id, kind, name, mime_type, content, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			nullInt(in.RepoID), string(in.Kind), in.Name, in.MimeType, in.Content, formatTime(ts), formatTime(ts))
		if err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}

		a.ID, err = res.LastInsertId()

		return err
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

// GetAsset implements store.Catalog.
func (s *Store) GetAsset(ctx context.Context, id int64) (*store.Asset, error) {
	var (
		a                store.Asset
		repoID           sql.NullInt64
		kind             string
		created, updated string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, repo_id, kind, name, mime_type, content, created_at, updated_at FROM assets WHERE id = ?", id).
		Scan(&a.ID, &repoID, &kind, &a.Name, &a.MimeType, &a.Content, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}

	a.RepoID = fromNull(repoID)
	a.Kind = store.AssetKind(kind)
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)

	return &a, nil
}

// ListAssets implements store.Catalog.
func (s *Store) ListAssets(ctx context.Context, filter store.AssetFilter) ([]store.Asset, error) {
	query := "SELECT id, repo_id, kind, name, mime_type, created_at, updated_at FROM assets WHERE 1=1"
	args := []any{}

	if filter.GlobalOnly {
		query += " AND repo_id IS NULL"
	}

	if filter.RepoID != nil {
		query += " AND repo_id = ?"
		args = append(args, *filter.RepoID)
	}

	rows, err := s.db.QueryContext(ctx, query+" ORDER BY id DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	out := []store.Asset{}

	for rows.Next() {
		var (
			a                store.Asset
			repoID           sql.NullInt64
			kind             string
			created, updated string
		)

		if err := rows.Scan(&a.ID, &repoID, &kind, &a.Name, &a.MimeType, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}

		a.RepoID = fromNull(repoID)
		a.Kind = store.AssetKind(kind)
		a.CreatedAt = parseTime(created)
		a.UpdatedAt = parseTime(updated)
		out = append(out, a)
	}

	return out, rows.Err()
}

// AppendEvent implements store.Catalog.
func (s *Store) AppendEvent(ctx context.Context, in store.NewEvent) (*store.Event, error) {
	if err := store.ValidateNewEvent(in); err != nil {
		return nil, err
	}

	var ev *store.Event

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "repos", in.RepoID)
		if err != nil {
			return err
		}

		if !ok {
			return store.ErrNotFound
		}

		created := time.Now().UTC()

		res, err := tx.ExecContext(ctx,
			"INSERT INTO events (repo_id, direction, summary, created_at) VALUES (?, ?, ?, ?)",
			in.RepoID, string(in.Direction), in.Summary, formatTime(created))
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for _, name := range in.LabelNames {
			if name == "" {
				continue
			}

			l, err := ensureLabel(ctx, tx, name)
			if err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO event_labels (event_id, label_id) VALUES (?, ?)", id, l.ID); err != nil {
				return fmt.Errorf("attach label: %w", err)
			}
		}

		for _, assetID := range in.AssetIDs {
			ok, err := exists(ctx, tx, "assets", assetID)
			if err != nil {
				return err
			}

			if !ok {
				return store.ErrNotFound
			}

			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO event_assets (event_id, asset_id) VALUES (?, ?)", id, assetID); err != nil {
				return fmt.Errorf("attach asset: %w", err)
			}
		}

		ev = &store.Event{ID: id, RepoID: in.RepoID, Direction: in.Direction, Summary: in.Summary, CreatedAt: created}

		return loadRelations(ctx, tx, ev)
	})
	if err != nil {
		return nil, err
	}

	return ev, nil
}

func idList(ctx context.Context, q querier, query string, id int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []int64{}

	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, rows.Err()
}

func loadRelations(ctx context.Context, q querier, ev *store.Event) error {
	var err error

	if ev.LabelIDs, err = idList(ctx, q, "SELECT label_id FROM event_labels WHERE event_id = ? ORDER BY label_id", ev.ID); err != nil {
		return fmt.Errorf("event labels: %w", err)
	}

	if ev.AssetIDs, err = idList(ctx, q, "SELECT asset_id FROM event_assets WHERE event_id = ? ORDER BY asset_id", ev.ID); err != nil {
		return fmt.Errorf("event assets: %w", err)
	}

	if ev.OutLinks, err = idList(ctx, q, "SELECT in_event_id FROM event_links WHERE out_event_id = ? ORDER BY in_event_id", ev.ID); err != nil {
		return fmt.Errorf("event out links: %w", err)
	}

	if ev.InLinks, err = idList(ctx, q, "SELECT out_event_id FROM event_links WHERE in_event_id = ? ORDER BY out_event_id", ev.ID); err != nil {
		return fmt.Errorf("event in links: %w", err)
	}

	return nil
}

// GetEvent implements store.Catalog.
func (s *Store) GetEvent(ctx context.Context, id int64) (*store.EventDetail, error) {
	var (
		ev        store.Event
		direction string
		created   string
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, repo_id, direction, summary, created_at FROM events WHERE id = ?", id).
		Scan(&ev.ID, &ev.RepoID, &direction, &ev.Summary, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	ev.Direction = store.Direction(direction)
	ev.CreatedAt = parseTime(created)

	if err := loadRelations(ctx, s.db, &ev); err != nil {
		return nil, err
	}

	detail := &store.EventDetail{Event: ev, Labels: []store.Label{}, Assets: []store.AssetSummary{}}

	if detail.Labels, err = eventLabels(ctx, s.db, id); err != nil {
		return nil, err
	}

	if detail.Assets, err = eventAssets(ctx, s.db, id); err != nil {
		return nil, err
	}

	return detail, nil
}

func eventLabels(ctx context.Context, q querier, eventID int64) ([]store.Label, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT l.id, l.name FROM labels l JOIN event_labels el ON el.label_id = l.id
		 WHERE el.event_id = ? ORDER BY l.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("event label names: %w", err)
	}
	defer rows.Close()

	out := []store.Label{}

	for rows.Next() {
		var l store.Label
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, err
		}

		out = append(out, l)
	}

	return out, rows.Err()
}

func eventAssets(ctx context.Context, q querier, eventID int64) ([]store.AssetSummary, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT a.id, a.name, a.mime_type FROM assets a JOIN event_assets ea ON ea.asset_id = a.id
		 WHERE ea.event_id = ? ORDER BY a.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("event asset names: %w", err)
	}
	defer rows.Close()

	out := []store.AssetSummary{}

	for rows.Next() {
		var a store.AssetSummary
		if err := rows.Scan(&a.ID, &a.Name, &a.MimeType); err != nil {
			return nil, err
		}

		out = append(out, a)
	}

	return out, rows.Err()
}

// ListEvents implements store.Catalog.
func (s *Store) ListEvents(ctx context.Context, repoID int64) ([]store.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, repo_id, direction, summary, created_at FROM events WHERE repo_id = ? ORDER BY id DESC", repoID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	out := []store.Event{}

	for rows.Next() {
		var (
			ev        store.Event
			direction string
			created   string
		)

		if err := rows.Scan(&ev.ID, &ev.RepoID, &direction, &ev.Summary, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.Direction = store.Direction(direction)
		ev.CreatedAt = parseTime(created)
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}

	// Release the single connection before issuing relation queries.
	rows.Close()

	for i := range out {
		if err := loadRelations(ctx, s.db, &out[i]); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// LinkEvents implements store.Catalog.
func (s *Store) LinkEvents(ctx context.Context, outEventID, inEventID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range []int64{outEventID, inEventID} {
			ok, err := exists(ctx, tx, "events", id)
			if err != nil {
				return err
			}

			if !ok {
				return store.ErrNotFound
			}
		}

		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO event_links (out_event_id, in_event_id) VALUES (?, ?)", outEventID, inEventID)
		if err != nil {
			return fmt.Errorf("link events: %w", err)
		}

		return nil
	})
}
