package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/mou514/FinanceMate-sub000/internal/config"
)

const (
	driverLibsql = "libsql"
	memoryDSN    = ":memory:"

	// busyTimeoutMillis bounds how long a local writer waits on a lock held
	// by another process (a CLI command racing the server, typically).
	busyTimeoutMillis = 5000
)

// Store holds the receipts database: quota records, extraction attempts,
// budgets, expenses, notifications and user settings.
type Store struct {
	DB     *sql.DB
	driver string
}

// target is a resolved database location.
type target struct {
	dsn string
	// dir is created before opening; empty for memory and remote targets.
	dir   string
	local bool
}

// Open connects to the configured database. Only libsql is supported; it
// covers embedded files, :memory: and remote Turso URLs.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	tgt, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}
	if tgt.dir != "" {
		// #nosec G301 -- data directory shared with other local tools
		if err := os.MkdirAll(tgt.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open(driverLibsql, tgt.dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if err := prepare(ctx, db, tgt); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db, driver: driver}, nil
}

func prepare(ctx context.Context, db *sql.DB, tgt target) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping libsql store: %w", err)
	}
	if !tgt.local {
		return nil
	}

	// An embedded database takes one writer; :memory: is per connection,
	// so a second pooled connection would see an empty schema.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if tgt.dsn == memoryDSN {
		return nil
	}

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable wal"},
		{fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis), "set busy timeout"},
	}
	for _, p := range pragmas {
		// libsql returns the new value as a row for both pragmas.
		var ignored any
		if err := db.QueryRowContext(ctx, p.stmt).Scan(&ignored); err != nil {
			return fmt.Errorf("%s: %w", p.what, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// resolveTarget turns a URL or path setting into a libsql DSN. A URL wins
// over a path; bare paths become file: DSNs.
func resolveTarget(cfg config.StoreConfig) (target, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err := withAuthToken(raw, cfg.AuthToken)
		if err != nil {
			return target{}, err
		}
		return target{dsn: dsn, local: strings.HasPrefix(dsn, "file:")}, nil
	}

	p := strings.TrimSpace(cfg.Path)
	switch {
	case p == "":
		return target{}, errors.New("store path or url is required")
	case p == memoryDSN:
		return target{dsn: p, local: true}, nil
	case strings.HasPrefix(p, "libsql:"):
		return target{dsn: p}, nil
	case strings.HasPrefix(p, "file:"):
		file, err := filePathOf(p)
		if err != nil {
			return target{}, err
		}
		return target{dsn: p, dir: parentDir(file), local: true}, nil
	default:
		clean := filepath.Clean(p)
		return target{dsn: "file:" + clean, dir: parentDir(clean), local: true}, nil
	}
}

func withAuthToken(dsn, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	q := u.Query()
	if q.Get("authToken") != "" {
		return dsn, nil
	}
	q.Set("authToken", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func filePathOf(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return strings.TrimPrefix(p, "//"), nil
}

func parentDir(path string) string {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return ""
	}
	return dir
}
