package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects placeholder syntax and table naming for a backend.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Logical table names; Table maps them to the dialect's physical name.
const (
	TableRecalls    = "recalls"
	TableComplaints = "complaints"
	TableIngestRuns = "ingest_runs"
)

// Table returns the physical name of a raw-layer table. Postgres keeps the
// raw layer in its own schema; sqlite has no schemas so a prefix is used.
func (d Dialect) Table(name string) string {
	if d == Postgres {
		return "raw." + name
	}
	return "raw_" + name
}

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) driver() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

type Config struct {
	// URL is a postgres:// URL, a sqlite:// URL or a bare sqlite file path.
	URL       string
	ChunkSize int

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPath is the local raw layer when no database URL is configured:
// ~/.recallwatch/raw.db
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".recallwatch", "raw.db")
}

// ParseURL splits a database URL into its dialect and the DSN handed to the
// driver.
func ParseURL(raw string) (Dialect, string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return SQLite, DefaultPath(), nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Postgres, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return SQLite, expandHome(strings.TrimPrefix(raw, "sqlite://")), nil
	case strings.HasPrefix(raw, "sqlite:"):
		return SQLite, expandHome(strings.TrimPrefix(raw, "sqlite:")), nil
	case strings.Contains(raw, "://"):
		return "", "", fmt.Errorf("store: unsupported database url scheme in %q", raw)
	default:
		return SQLite, expandHome(raw), nil
	}
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// Open connects to the configured raw layer and pings it.
func Open(cfg Config) (*sql.DB, Dialect, error) {
	dialect, dsn, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, "", err
	}

	if dialect == SQLite {
		if err := ensureDataDir(dsn); err != nil {
			return nil, "", fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", dialect, err)
	}

	switch dialect {
	case SQLite:
		// a single connection keeps pragmas and :memory: databases consistent
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("pragma journal_mode: %w", err)
		}
		if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("pragma busy_timeout: %w", err)
		}
	case Postgres:
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, dialect, nil
}

func ensureDataDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dsn), 0o755)
}
