package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/housinglord/housing-lord/models"
	"github.com/housinglord/housing-lord/storetest"
	"github.com/housinglord/housing-lord/testcontainers"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "housinglord.db"),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) models.Store {
		return openSQLite(t)
	})
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "housinglord.db")

	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), Config{Driver: "sqlite", DSN: path})
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown driver", cfg: Config{Driver: "mysql", DSN: "x"}},
		{name: "memory sqlite", cfg: Config{Driver: "sqlite", DSN: ":memory:"}},
		{name: "empty postgres", cfg: Config{Driver: "postgres"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: dialectPostgres}
	lite := &Store{dialect: dialectSQLite}

	q := `SELECT a FROM t WHERE b = ? AND c = ?`

	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestPostgresStore(t *testing.T) {
	testcontainers.WithPostgres(t, func(tc *testcontainers.TestContext) {
		dsn := tc.PostgresDSN

		storetest.Run(t, func(t *testing.T) models.Store {
			s, err := Open(context.Background(), Config{Driver: "postgres", DSN: dsn, Logger: zaptest.NewLogger(t)})
			require.NoError(t, err)

			_, err = s.db.Exec(`TRUNCATE interests, properties, locations, owners, users`)
			require.NoError(t, err)

			t.Cleanup(func() { _ = s.Close() })

			return s
		})
	})
}
