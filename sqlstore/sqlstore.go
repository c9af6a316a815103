// Package sqlstore implements models.Store on SQLite (modernc.org/sqlite) and
// PostgreSQL (pgx). Uniqueness of users and interests is enforced by the
// schema, so concurrent duplicate inserts resolve to models.ErrAlreadyExists.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/housinglord/housing-lord/models"
)

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

func (d dialect) driverName() string {
	if d == dialectPostgres {
		return "pgx"
	}

	return "sqlite"
}

const (
	DriverSQLite   = string(dialectSQLite)
	DriverPostgres = string(dialectPostgres)
)

// Config selects the database. For SQLite, DSN is a file path.
type Config struct {
	Driver string
	DSN    string
	Logger *zap.Logger
}

type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

var _ models.Store = (*Store)(nil)

// Open connects to the database and brings its schema up to date
func Open(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		d   dialect
		dsn string
	)

	switch cfg.Driver {
	case "sqlite":
		if cfg.DSN == "" || strings.Contains(cfg.DSN, ":memory:") {
			return nil, fmt.Errorf("sqlite store needs a database file path")
		}

		d, dsn = dialectSQLite, sqliteDSN(cfg.DSN)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres store needs a DSN")
		}

		d, dsn = dialectPostgres, cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	if err := migrateUp(d, dsn, logger); err != nil {
		return nil, err
	}

	db, err := initDatabase(ctx, d, dsn)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, dialect: d, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func initDatabase(ctx context.Context, d dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, err
	}

	if d == dialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(30 * time.Minute)

		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA cache_size=1000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, err
			}
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// rebind rewrites ? placeholders to $n for postgres
func (s *Store) rebind(q string) string {
	if s.dialect != dialectPostgres {
		return q
	}

	var (
		b strings.Builder
		n int
	)

	b.Grow(len(q) + 8)

	for _, r := range q {
		if r == '?' {
			n++

			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// insertOnce runs an INSERT ... ON CONFLICT DO NOTHING and reports
// ErrAlreadyExists when no row was written
func (s *Store) insertOnce(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return models.ErrAlreadyExists
	}

	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms).UTC()
}
