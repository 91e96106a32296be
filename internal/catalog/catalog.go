// Package catalog records created packages in a SQLite database so they
// can be listed later without walking the filesystem.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrNotFound is returned when no entry exists for a path.
var ErrNotFound = errors.New("catalog entry not found")

// Entry is one recorded package.
type Entry struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	ModelName string    `json:"model_name"`
	Platform  string    `json:"platform"`
	Version   int       `json:"version"`
	Verified  bool      `json:"verified"`
	Transform string    `json:"transform,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a SQLite-backed package catalog.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database at path and applies
// pending migrations. Use ":memory:" for a throwaway catalog.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts or replaces the entry for e.Path. The path is stored
// absolute. A new ID is assigned when e.ID is empty, and CreatedAt
// defaults to now.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	abs, err := filepath.Abs(e.Path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to resolve package path: %w", err)
	}
	e.Path = abs
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO packages (id, path, model_name, platform, version, verified, transform, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id = excluded.id,
			model_name = excluded.model_name,
			platform = excluded.platform,
			version = excluded.version,
			verified = excluded.verified,
			transform = excluded.transform,
			created_at = excluded.created_at`,
		e.ID, e.Path, e.ModelName, e.Platform, e.Version, e.Verified, e.Transform,
		e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record package: %w", err)
	}
	return e, nil
}

// Get returns the entry for path.
func (s *Store) Get(ctx context.Context, path string) (Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to resolve package path: %w", err)
	}
	row := s.db.QueryRowContext(ctx, selectEntries+` WHERE path = ?`, abs)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	return e, err
}

// List returns all entries, newest first. A non-empty model filters by
// model name.
func (s *Store) List(ctx context.Context, model string) ([]Entry, error) {
	query := selectEntries
	var args []any
	if model != "" {
		query += ` WHERE model_name = ?`
		args = append(args, model)
	}
	query += ` ORDER BY created_at DESC, path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove deletes the entry for path. Removing an unknown path is not an
// error.
func (s *Store) Remove(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve package path: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE path = ?`, abs); err != nil {
		return fmt.Errorf("failed to remove package: %w", err)
	}
	return nil
}

// Prune removes entries whose package directory no longer exists and
// returns them.
func (s *Store) Prune(ctx context.Context) ([]Entry, error) {
	entries, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var pruned []Entry
	for _, e := range entries {
		if _, err := os.Stat(e.Path); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := s.Remove(ctx, e.Path); err != nil {
			return pruned, err
		}
		pruned = append(pruned, e)
	}
	return pruned, nil
}

const selectEntries = `SELECT id, path, model_name, platform, version, verified, transform, created_at FROM packages`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e       Entry
		created string
	)
	if err := row.Scan(&e.ID, &e.Path, &e.ModelName, &e.Platform, &e.Version, &e.Verified, &e.Transform, &created); err != nil {
		return Entry{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid created_at %q: %w", created, err)
	}
	e.CreatedAt = t
	return e, nil
}
