package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createMigrationsTableSQL = `
CREATE TABLE IF NOT EXISTS toolgate_migrations (
	id         SERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	checksum   TEXT NOT NULL
);`

type migration struct {
	Name     string
	Up       string
	Down     string
	Checksum string
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Name      string     `json:"name"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"appliedAt,omitempty"`
}

// loadMigrations reads the embedded files, pairs up/down scripts and sorts by name.
func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	up := map[string]string{}
	down := map[string]string{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		switch {
		case strings.HasSuffix(name, ".up.sql"):
			up[strings.TrimSuffix(name, ".up.sql")] = string(data)
		case strings.HasSuffix(name, ".down.sql"):
			down[strings.TrimSuffix(name, ".down.sql")] = string(data)
		}
	}

	out := make([]migration, 0, len(up))
	for key, sql := range up {
		out = append(out, migration{
			Name:     key,
			Up:       sql,
			Down:     down[key],
			Checksum: fmt.Sprintf("%x", sha256.Sum256([]byte(sql))),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (s *Store) applied(ctx context.Context) (map[string]appliedRecord, error) {
	if _, err := s.pool.Exec(ctx, createMigrationsTableSQL); err != nil {
		return nil, fmt.Errorf("ensure migrations table: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT name, applied_at, checksum FROM toolgate_migrations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]appliedRecord{}

	for rows.Next() {
		var rec appliedRecord
		if err := rows.Scan(&rec.Name, &rec.AppliedAt, &rec.Checksum); err != nil {
			return nil, err
		}

		out[rec.Name] = rec
	}

	return out, rows.Err()
}

type appliedRecord struct {
	Name      string
	AppliedAt time.Time
	Checksum  string
}

// Migrate applies all pending migrations in order, each in its own
// transaction. An applied migration whose checksum changed is an error.
func (s *Store) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("postgres: load migrations: %w", err)
	}

	applied, err := s.applied(ctx)
	if err != nil {
		return fmt.Errorf("postgres: applied migrations: %w", err)
	}

	for _, m := range migrations {
		if rec, ok := applied[m.Name]; ok {
			if rec.Checksum != m.Checksum {
				return fmt.Errorf("postgres: migration %s checksum mismatch (recorded %s, embedded %s)", m.Name, rec.Checksum, m.Checksum)
			}

			continue
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("postgres: begin migration %s: %w", m.Name, err)
		}

		if _, err := tx.Exec(ctx, m.Up); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("postgres: run migration %s: %w", m.Name, err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO toolgate_migrations (name, checksum) VALUES ($1, $2)`, m.Name, m.Checksum); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("postgres: record migration %s: %w", m.Name, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("postgres: commit migration %s: %w", m.Name, err)
		}

		s.logger.Info("store.postgres.migrated", "name", m.Name)
	}

	return nil
}

// Status lists every embedded migration with its applied state.
func (s *Store) Status(ctx context.Context) ([]MigrationStatus, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("postgres: load migrations: %w", err)
	}

	applied, err := s.applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: applied migrations: %w", err)
	}

	out := make([]MigrationStatus, 0, len(migrations))

	for _, m := range migrations {
		st := MigrationStatus{Name: m.Name}

		if rec, ok := applied[m.Name]; ok {
			at := rec.AppliedAt
			st.Applied = true
			st.AppliedAt = &at
		}

		out = append(out, st)
	}

	return out, nil
}
