// Package sqlite implements store.Store and store.Catalog on SQLite using
// the pure-Go modernc.org/sqlite driver. It is the default backend of the
// toolgate server.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/store"
)

//go:embed schema.sql
var schema string

const timeLayout = time.RFC3339Nano

// Options configures a Store.
type Options struct {
	// Path is the database file. Empty means an in-memory database.
	Path   string
	Logger logging.Logger
}

// Store is a SQLite backed store.Store and store.Catalog.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Catalog = (*Store)(nil)
)

// New opens (and if necessary creates) the database and applies the schema.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	path := opts.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: opts.Logger}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info("store.sqlite.opened", "path", path)

	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}

// Close implements store.Store.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("store.sqlite.rollback_failed", "error", err.Error())
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func exists(ctx context.Context, q querier, table string, id int64) (bool, error) {
	var one int

	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("lookup %s %d: %w", table, id, err)
	}

	return true, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}

	return t
}

func nullInt(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: *id, Valid: true}
}

func fromNull(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}

	v := n.Int64

	return &v
}

// ----- sessions -----

// CreateSession implements store.Store.
func (s *Store) CreateSession(ctx context.Context, repoID *int64, title string) (*store.Session, error) {
	sess := &store.Session{RepoID: repoID, Title: title, CreatedAt: time.Now().UTC()}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if repoID != nil {
			ok, err := exists(ctx, tx, "repos", *repoID)
			if err != nil {
				return err
			}

			if !ok {
				return store.ErrNotFound
			}
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO sessions (repo_id, title, created_at) VALUES (?, ?, ?)",
			nullInt(repoID), title, formatTime(sess.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		sess.ID, err = res.LastInsertId()

		return err
	})
	if err != nil {
		return nil, err
	}

	return sess, nil
}

func scanSession(row interface{ Scan(dest ...any) error }) (*store.Session, error) {
	var (
		sess    store.Session
		repoID  sql.NullInt64
		created string
	)

	if err := row.Scan(&sess.ID, &repoID, &sess.Title, &created); err != nil {
		return nil, err
	}

	sess.RepoID = fromNull(repoID)
	sess.CreatedAt = parseTime(created)

	return &sess, nil
}

// GetSession implements store.Store.
func (s *Store) GetSession(ctx context.Context, id int64) (*store.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		"SELECT id, repo_id, title, created_at FROM sessions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return sess, nil
}

// ListSessions implements store.Store.
func (s *Store) ListSessions(ctx context.Context, filter store.SessionFilter) ([]store.Session, error) {
	query := "SELECT id, repo_id, title, created_at FROM sessions WHERE 1=1"
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
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []store.Session{}

	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		out = append(out, *sess)
	}

	return out, rows.Err()
}

// RenameSession implements store.Store.
func (s *Store) RenameSession(ctx context.Context, id int64, title string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE sessions SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}

	return requireAffected(res)
}

// DeleteSession implements store.Store.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}

		return requireAffected(res)
	})
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return store.ErrNotFound
	}

	return nil
}

// AppendMessage implements store.Store.
func (s *Store) AppendMessage(ctx context.Context, sessionID int64, role core.Role, parts []core.Part) (*core.Message, error) {
	if err := store.ValidateMessage(role, parts); err != nil {
		return nil, err
	}

	encoded, err := core.MarshalParts(parts)
	if err != nil {
		return nil, err
	}

	msg := &core.Message{
		SessionID: sessionID,
		Role:      role,
		Parts:     append([]core.Part(nil), parts...),
		CreatedAt: time.Now().UTC(),
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "sessions", sessionID)
		if err != nil {
			return err
		}

		if !ok {
			return store.ErrNotFound
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO messages (session_id, role, parts, created_at) VALUES (?, ?, ?, ?)",
			sessionID, string(role), string(encoded), formatTime(msg.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		msg.ID, err = res.LastInsertId()

		return err
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// ListMessages implements store.Store.
func (s *Store) ListMessages(ctx context.Context, sessionID int64) ([]core.Message, error) {
	ok, err := exists(ctx, s.db, "sessions", sessionID)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, store.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, parts, created_at FROM messages WHERE session_id = ? ORDER BY id ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []core.Message{}

	for rows.Next() {
		var (
			msg     = core.Message{SessionID: sessionID}
			role    string
			raw     string
			created string
		)

		if err := rows.Scan(&msg.ID, &role, &raw, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		parts, err := core.UnmarshalParts([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", msg.ID, err)
		}

		msg.Role = core.Role(role)
		msg.Parts = parts
		msg.CreatedAt = parseTime(created)
		out = append(out, msg)
	}

	return out, rows.Err()
}

// SessionScope implements store.Store.
func (s *Store) SessionScope(ctx context.Context, sessionID int64) (*int64, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return sess.RepoID, nil
}
