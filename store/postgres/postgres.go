// Package postgres implements store.Store on PostgreSQL via pgx. Session
// scopes are plain identifiers here; the catalog that owns repositories may
// live in another backend.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
	"github.com/hupe1980/toolgate/store"
)

// Options configures a Store.
type Options struct {
	Logger logging.Logger
	// AutoMigrate runs Migrate during New.
	AutoMigrate bool
}

// Store is a PostgreSQL backed store.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ store.Store = (*Store)(nil)

// New connects to dsn and optionally applies migrations.
func New(ctx context.Context, dsn string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	s := &Store{pool: pool, logger: opts.Logger}

	if opts.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// CreateSession implements store.Store.
func (s *Store) CreateSession(ctx context.Context, repoID *int64, title string) (*store.Session, error) {
	sess := &store.Session{RepoID: repoID, Title: title}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO toolgate_sessions (repo_id, title) VALUES ($1, $2) RETURNING id, created_at`,
		repoID, title,
	).Scan(&sess.ID, &sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: create session: %w", err)
	}

	return sess, nil
}

// GetSession implements store.Store.
func (s *Store) GetSession(ctx context.Context, id int64) (*store.Session, error) {
	sess := &store.Session{}

	err := s.pool.QueryRow(ctx,
		`SELECT id, repo_id, title, created_at FROM toolgate_sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.RepoID, &sess.Title, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: get session: %w", err)
	}

	return sess, nil
}

// ListSessions implements store.Store.
func (s *Store) ListSessions(ctx context.Context, filter store.SessionFilter) ([]store.Session, error) {
	query := `SELECT id, repo_id, title, created_at FROM toolgate_sessions WHERE TRUE`
	args := []any{}

	if filter.GlobalOnly {
		query += ` AND repo_id IS NULL`
	}

	if filter.RepoID != nil {
		args = append(args, *filter.RepoID)
		query += fmt.Sprintf(` AND repo_id = $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query+` ORDER BY id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sessions: %w", err)
	}
	defer rows.Close()

	out := []store.Session{}

	for rows.Next() {
		var sess store.Session
		if err := rows.Scan(&sess.ID, &sess.RepoID, &sess.Title, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan session: %w", err)
		}

		out = append(out, sess)
	}

	return out, rows.Err()
}

// RenameSession implements store.Store.
func (s *Store) RenameSession(ctx context.Context, id int64, title string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE toolgate_sessions SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return fmt.Errorf("postgres: rename session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

// DeleteSession implements store.Store. Messages go with it via ON DELETE CASCADE.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM toolgate_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete session: %w", err)
	}

	if tag.RowsAffected() == 0 {
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

	msg := &core.Message{SessionID: sessionID, Role: role, Parts: append([]core.Part(nil), parts...)}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO toolgate_messages (session_id, role, parts)
		 SELECT id, $2, $3::jsonb FROM toolgate_sessions WHERE id = $1
		 RETURNING id, created_at`,
		sessionID, string(role), string(encoded),
	).Scan(&msg.ID, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: append message: %w", err)
	}

	return msg, nil
}

// ListMessages implements store.Store.
func (s *Store) ListMessages(ctx context.Context, sessionID int64) ([]core.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, role, parts, created_at FROM toolgate_messages WHERE session_id = $1 ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list messages: %w", err)
	}
	defer rows.Close()

	out := []core.Message{}

	for rows.Next() {
		var (
			msg  = core.Message{SessionID: sessionID}
			role string
			raw  []byte
		)

		if err := rows.Scan(&msg.ID, &role, &raw, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}

		if msg.Parts, err = core.UnmarshalParts(raw); err != nil {
			return nil, fmt.Errorf("postgres: message %d: %w", msg.ID, err)
		}

		msg.Role = core.Role(role)
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
