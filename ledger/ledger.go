// Package ledger records import runs in a SQLite database so that repeated
// imports of the same export can skip posts already brought in, and so that
// failed image downloads can be listed afterwards.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// Import is one source post that was written to a user's blog.
type Import struct {
	User       string
	OriginalID string
	PostID     string
	Title      string
	ImportedAt time.Time
}

// Download is the outcome of fetching one remote image during an import.
// Err is empty for successful downloads.
type Download struct {
	User      string
	PostID    string
	SourceURL string
	File      string
	Attempts  int
	Err       string
	At        time.Time
}

// OK reports whether the download succeeded.
func (d Download) OK() bool { return d.Err == "" }

// Ledger wraps the SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and brings its schema
// up to date.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure ledger db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) ensureSchema() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS imports (
			username TEXT NOT NULL,
			original_id TEXT NOT NULL,
			post_id TEXT NOT NULL,
			title TEXT NOT NULL,
			imported_at TEXT NOT NULL,
			PRIMARY KEY (username, original_id)
		);

		CREATE TABLE IF NOT EXISTS image_downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			post_id TEXT NOT NULL,
			source_url TEXT NOT NULL,
			file TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_image_downloads_post ON image_downloads(username, post_id);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

func (l *Ledger) migrate() error {
	verStr, err := l.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version < currentSchemaVersion {
		version = currentSchemaVersion
	}
	return l.SetSetting("schema_version", strconv.Itoa(version))
}

// GetSetting returns the value stored under key, or "" when unset.
func (l *Ledger) GetSetting(key string) (string, error) {
	var val string
	err := l.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores value under key.
func (l *Ledger) SetSetting(key, value string) error {
	_, err := l.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// ImportedPostID returns the post id an original id was imported as.
func (l *Ledger) ImportedPostID(user, originalID string) (string, bool, error) {
	var postID string
	err := l.db.QueryRow(
		`SELECT post_id FROM imports WHERE username = ? AND original_id = ?`,
		user, originalID,
	).Scan(&postID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return postID, true, nil
}

// RecordImport stores imp, replacing an earlier record for the same
// original id.
func (l *Ledger) RecordImport(imp Import) error {
	if imp.ImportedAt.IsZero() {
		imp.ImportedAt = time.Now()
	}
	_, err := l.db.Exec(`
		INSERT INTO imports (username, original_id, post_id, title, imported_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username, original_id) DO UPDATE SET
			post_id = excluded.post_id,
			title = excluded.title,
			imported_at = excluded.imported_at`,
		imp.User, imp.OriginalID, imp.PostID, imp.Title, formatTime(imp.ImportedAt))
	return err
}

// Imports returns every import recorded for user, oldest first.
func (l *Ledger) Imports(user string) ([]Import, error) {
	rows, err := l.db.Query(`
		SELECT username, original_id, post_id, title, imported_at
		FROM imports WHERE username = ? ORDER BY imported_at, original_id`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Import
	for rows.Next() {
		var imp Import
		var at string
		if err := rows.Scan(&imp.User, &imp.OriginalID, &imp.PostID, &imp.Title, &at); err != nil {
			return nil, err
		}
		imp.ImportedAt = parseTime(at)
		out = append(out, imp)
	}
	return out, rows.Err()
}

// RecordDownload appends one download outcome.
func (l *Ledger) RecordDownload(d Download) error {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	_, err := l.db.Exec(`
		INSERT INTO image_downloads (username, post_id, source_url, file, attempts, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.User, d.PostID, d.SourceURL, d.File, d.Attempts, d.Err, formatTime(d.At))
	return err
}

// FailedDownloads returns the failed downloads recorded for user, in the
// order they happened.
func (l *Ledger) FailedDownloads(user string) ([]Download, error) {
	rows, err := l.db.Query(`
		SELECT username, post_id, source_url, file, attempts, error, created_at
		FROM image_downloads WHERE username = ? AND error != '' ORDER BY id`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var d Download
		var at string
		if err := rows.Scan(&d.User, &d.PostID, &d.SourceURL, &d.File, &d.Attempts, &d.Err, &at); err != nil {
			return nil, err
		}
		d.At = parseTime(at)
		out = append(out, d)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
