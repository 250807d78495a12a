package autoload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS autoloads (
	name     TEXT PRIMARY KEY,
	file     TEXT NOT NULL,
	added_at INTEGER NOT NULL
);`

// SQLiteIndex is an autoload table persisted in an SQLite database. All
// entries are mirrored in memory so lookups never touch the database.
type SQLiteIndex struct {
	db     *sql.DB
	path   string
	mem    *Map
	logger *zap.Logger
}

// Open opens or creates the database at path and loads its entries.
func Open(ctx context.Context, path string, logger *zap.Logger) (*SQLiteIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating autoload directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening autoload database: %w", err)
	}
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing autoload schema: %w", err)
	}

	idx := &SQLiteIndex{
		db:     db,
		path:   path,
		mem:    NewMap(nil),
		logger: logger.Named("autoload"),
	}
	if err := idx.reload(ctx); err != nil {
		db.Close()
		return nil, err
	}
	idx.logger.Debug("opened autoload database", zap.String("path", path), zap.Int("entries", idx.mem.Len()))
	return idx, nil
}

func (s *SQLiteIndex) reload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name, file FROM autoloads`)
	if err != nil {
		return fmt.Errorf("reading autoloads: %w", err)
	}
	defer rows.Close()

	mem := NewMap(nil)
	for rows.Next() {
		var name, file string
		if err := rows.Scan(&name, &file); err != nil {
			return fmt.Errorf("reading autoloads: %w", err)
		}
		mem.Add(name, file)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading autoloads: %w", err)
	}
	s.mem = mem
	return nil
}

// Path returns the database file path.
func (s *SQLiteIndex) Path() string { return s.path }

// Lookup implements Lookuper.
func (s *SQLiteIndex) Lookup(name string) string { return s.mem.Lookup(name) }

// Add stores an entry, replacing any earlier one for name.
func (s *SQLiteIndex) Add(ctx context.Context, name, file string) error {
	if name == "" || file == "" {
		return errors.New("autoload: name and file are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO autoloads (name, file, added_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET file = excluded.file, added_at = excluded.added_at`,
		name, file, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("adding autoload %s: %w", name, err)
	}
	s.mem.Add(name, file)
	s.logger.Info("autoload added", zap.String("name", name), zap.String("file", file))
	return nil
}

// Remove deletes the entry for name and reports whether it existed.
func (s *SQLiteIndex) Remove(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM autoloads WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("removing autoload %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("removing autoload %s: %w", name, err)
	}
	s.mem.Remove(name)
	return n > 0, nil
}

// List returns all entries sorted by name.
func (s *SQLiteIndex) List() []Entry { return s.mem.Entries() }

// Close closes the database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
