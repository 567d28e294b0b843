package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/store"
	"github.com/hupe1980/toolgate/store/storetest"
)

// testDSN returns the database used for integration tests or skips.
func testDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("TOOLGATE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TOOLGATE_TEST_DATABASE_URL not set")
	}

	return dsn
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "0001_sessions", migrations[0].Name)
	assert.Contains(t, migrations[0].Up, "toolgate_messages")
	assert.NotEmpty(t, migrations[0].Down)
	assert.Len(t, migrations[0].Checksum, 64)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Name, migrations[i].Name)
	}
}

func TestStore_Contract(t *testing.T) {
	dsn := testDSN(t)

	storetest.RunSessions(t, func(t *testing.T) store.Store {
		ctx := context.Background()

		s, err := New(ctx, dsn, func(o *Options) { o.AutoMigrate = true })
		require.NoError(t, err)

		_, err = s.pool.Exec(ctx, `TRUNCATE toolgate_messages, toolgate_sessions RESTART IDENTITY`)
		require.NoError(t, err)

		t.Cleanup(func() { _ = s.Close() })

		return s
	})
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	status, err := s.Status(ctx)
	require.NoError(t, err)

	for _, st := range status {
		assert.True(t, st.Applied, st.Name)
	}
}
