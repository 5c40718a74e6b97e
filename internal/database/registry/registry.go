// Package registry stores cases, reference photos, descriptive features and
// sightings in SQLite or MySQL/MariaDB. Both dialects share the same queries.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/sightmatch/internal/config"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/database/mariadb"
	"github.com/kozaktomas/sightmatch/internal/database/sqlite"
	"github.com/kozaktomas/sightmatch/internal/logging"
)

// Dialect selects the migration set.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// Store implements database.Registry on top of database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

var _ database.Registry = (*Store)(nil)

// New wraps an open connection. Call Migrate before first use.
func New(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  logging.NewComponentLogger(logger, "registry"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Open connects to the configured registry and applies pending migrations.
func Open(ctx context.Context, cfg config.RegistryConfig, logger *slog.Logger) (*Store, error) {
	var (
		db      *sql.DB
		dialect Dialect
	)

	switch cfg.Driver {
	case "sqlite", "":
		conn, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite registry: %w", err)
		}
		db, dialect = conn, DialectSQLite
	case "mysql", "mariadb":
		conn, err := mariadb.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening mysql registry: %w", err)
		}
		db, dialect = conn, DialectMySQL
	default:
		return nil, fmt.Errorf("unsupported registry driver %q", cfg.Driver)
	}

	store := New(db, dialect, logger)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing registry: %w", err)
	}
	return nil
}

// Ping verifies the registry is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping registry: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
