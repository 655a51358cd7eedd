// Package formiddb stores FormID descriptions in a SQLite database and
// serves them to the FormID analyzer.
package formiddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/crashscan/crashscan-go/pkg/crashscan/analyzers"
)

const driverName = "sqlite"

const createTableQuery = `
	CREATE TABLE IF NOT EXISTS formids (
		plugin TEXT NOT NULL COLLATE NOCASE,
		formid TEXT NOT NULL,
		entry  TEXT NOT NULL,
		PRIMARY KEY (plugin, formid)
	);
`

const (
	selectEntryQuery = `SELECT entry FROM formids WHERE plugin = ? AND formid = ?`
	upsertEntryQuery = `INSERT INTO formids (plugin, formid, entry) VALUES (?, ?, ?)
		ON CONFLICT (plugin, formid) DO UPDATE SET entry = excluded.entry`
)

// ErrClosed is returned by operations on a closed database.
var ErrClosed = errors.New("formid database is closed")

// Option configures a DB.
type Option func(*DB)

// WithLogger sets a logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(d *DB) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// DB is a lazily opened SQLite FormID database.
// It is safe for concurrent use.
type DB struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

var _ analyzers.FormIDDatabase = (*DB)(nil) // Compile-time check

// New returns a database backed by the SQLite file at path. The file is
// opened on first use.
func New(path string, opts ...Option) *DB {
	d := &DB{path: path, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// IsAvailable reports whether the database file exists.
func (d *DB) IsAvailable() bool {
	if d.path == "" {
		return false
	}
	info, err := os.Stat(d.path)
	return err == nil && info.Mode().IsRegular()
}

// Initialize opens the database and creates the schema. It is cheap once
// the database is open; a failed attempt is retried on the next call.
func (d *DB) Initialize(ctx context.Context) error {
	_, err := d.conn(ctx)
	return err
}

func (d *DB) conn(ctx context.Context) (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.db != nil {
		return d.db, nil
	}
	if d.path == "" {
		return nil, errors.New("formid database path is empty")
	}

	db, err := sql.Open(driverName, d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FormID database: %w", err)
	}
	// Limit SQLite to a single open connection to avoid "database is locked" errors
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open FormID database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create FormID table: %w", err)
	}
	d.logger.Debug("formid database opened", "path", d.path)
	d.db = db
	return db, nil
}

// GetEntries returns one description per key, nil where the database has none.
// A key whose lookup fails is logged and left nil; the batch only fails when
// ctx is done or the lookup statement cannot be prepared.
func (d *DB) GetEntries(ctx context.Context, keys []analyzers.FormIDKey) ([]*string, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := db.PrepareContext(ctx, selectEntryQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare FormID lookup: %w", err)
	}
	defer stmt.Close()

	out := make([]*string, len(keys))
	for i, k := range keys {
		var entry string
		err := stmt.QueryRowContext(ctx, k.Plugin, NormalizeFormID(k.FormID)).Scan(&entry)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to look up FormIDs: %w", ctxErr)
		}
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			d.logger.Debug("formid lookup failed", "plugin", k.Plugin, "formid", k.FormID, "error", err)
			continue
		}
		out[i] = &entry
	}
	return out, nil
}

// Close closes the database. Later calls fail with ErrClosed.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// ImportStats summarizes an Import call.
type ImportStats struct {
	Imported int
	Skipped  int
}

// Import reads "plugin | formid | entry" lines and stores them, replacing
// existing entries. Blank lines and "#" comments are ignored; malformed
// lines are counted as skipped. All lines are written in one transaction.
func (d *DB) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	db, err := d.conn(ctx)
	if err != nil {
		return stats, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertEntryQuery)
	if err != nil {
		return stats, fmt.Errorf("failed to prepare import: %w", err)
	}
	defer stmt.Close()

	err = scanDump(r, func(lineNo int, plugin, formID, entry string) error {
		if _, err := stmt.ExecContext(ctx, plugin, formID, entry); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		stats.Imported++
		return nil
	}, func(lineNo int, line string) {
		stats.Skipped++
		d.logger.Debug("formid dump line skipped", "line", lineNo)
	})
	if err != nil {
		return ImportStats{}, err
	}
	if err := tx.Commit(); err != nil {
		return ImportStats{}, fmt.Errorf("failed to commit import: %w", err)
	}
	return stats, nil
}

// NormalizeFormID converts "0x0001A2B3", "1a2b3" or "01A2B3" to the
// 6-digit uppercase id stored in the database. The load order prefix of an
// 8-digit id is dropped: one byte, or "FExxx" for light plugins.
func NormalizeFormID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	id = strings.TrimPrefix(id, "0X")
	if len(id) == 8 {
		if strings.HasPrefix(id, "FE") {
			id = "000" + id[5:]
		} else {
			id = id[2:]
		}
	}
	if len(id) < 6 {
		id = strings.Repeat("0", 6-len(id)) + id
	}
	return id
}
