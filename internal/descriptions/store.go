package descriptions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"image-library/internal/filesystem"
	"image-library/internal/logging"
	"image-library/internal/metrics"
)

// Default timeout for a whole load or save
const defaultTimeout = 30 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS descriptions (
	path TEXT PRIMARY KEY,
	text BLOB
);`

// PersistenceError reports a failed load or save. The in-memory index is
// unaffected by either.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("description index %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// row mirrors the table; text is scanned as bytes so values round-trip
// exactly.
type row struct {
	Path string `db:"path"`
	Text []byte `db:"text"`
}

// Load merges the index file into memory: only paths not already present
// are inserted. A missing file is not an error. It returns the number of
// entries added.
func (x *Index) Load(ctx context.Context, file string) (int, error) {
	return x.load(ctx, file, false)
}

// LoadReplacing discards the in-memory map and replaces it with the file's
// contents. A missing file leaves an empty index.
func (x *Index) LoadReplacing(ctx context.Context, file string) (int, error) {
	return x.load(ctx, file, true)
}

func (x *Index) load(ctx context.Context, file string, replace bool) (int, error) {
	start := time.Now()
	entries, err := readFile(ctx, file)
	metrics.DescriptionPersistDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	metrics.DescriptionPersistTotal.WithLabelValues("load", metrics.Status(err)).Inc()
	if err != nil {
		return 0, &PersistenceError{Op: "load", Path: file, Err: err}
	}

	added := x.merge(entries, replace)
	logging.Info("Loaded description index %s: %d entries on disk, %d added", file, len(entries), added)
	return added, nil
}

func readFile(ctx context.Context, file string) ([]Entry, error) {
	info, err := os.Stat(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Description index %s does not exist yet", file)
			return nil, nil
		}
		return nil, err
	}
	if info.Size() == 0 {
		// SQLite treats an empty file as an empty database.
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	db, err := openReadOnly(ctx, file)
	if err != nil {
		return nil, err
	}
	defer closeDB(db, file)

	var rows []row
	if err := db.SelectContext(ctx, &rows, `SELECT path, text FROM descriptions`); err != nil {
		return nil, fmt.Errorf("failed to read descriptions: %w", err)
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{Path: r.Path, Text: string(r.Text)}
	}
	return entries, nil
}

// Save writes the full map to file, replacing it atomically. On failure
// the previous file is left in place and a *PersistenceError is returned.
func (x *Index) Save(ctx context.Context, file string) error {
	start := time.Now()
	entries := x.Entries()
	err := writeFile(ctx, file, entries)
	metrics.DescriptionPersistDuration.WithLabelValues("save").Observe(time.Since(start).Seconds())
	metrics.DescriptionPersistTotal.WithLabelValues("save", metrics.Status(err)).Inc()
	if err != nil {
		logging.Error("Failed to save description index %s: %v", file, err)
		return &PersistenceError{Op: "save", Path: file, Err: err}
	}

	logging.Info("Saved %d descriptions to %s", len(entries), file)
	return nil
}

func writeFile(ctx context.Context, file string, entries []Entry) (err error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	temp := filesystem.TempPath(file)
	defer func() {
		if err != nil {
			if removeErr := os.Remove(temp); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				logging.Warn("failed to remove temporary index %s: %v", temp, removeErr)
			}
		}
	}()

	db, err := open(ctx, temp)
	if err != nil {
		return err
	}

	if err := insertAll(ctx, db, entries); err != nil {
		closeDB(db, temp)
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close temporary index: %w", err)
	}

	return filesystem.Replace(temp, file)
}

func insertAll(ctx context.Context, db *sqlx.DB, entries []Entry) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after Commit is a no-op returning sql.ErrTxDone.
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO descriptions (path, text) VALUES (:path, :text)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, row{Path: e.Path, Text: []byte(e.Text)}); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// uriEscaper escapes the characters SQLite's URI parser treats specially.
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// openReadOnly opens an existing index without creating or altering it.
func openReadOnly(ctx context.Context, path string) (*sqlx.DB, error) {
	return connect(ctx, "file:"+uriEscaper.Replace(path)+"?mode=ro&_busy_timeout=5000", path)
}

// open opens path for writing, creating the file and schema if needed.
func open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := connect(ctx, path+"?_busy_timeout=5000", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		closeDB(db, path)
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}
	return db, nil
}

func connect(ctx context.Context, dsn, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	// One connection keeps the file handle single and the journal local.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		closeDB(db, path)
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}
	return db, nil
}

func closeDB(db *sqlx.DB, path string) {
	if err := db.Close(); err != nil {
		logging.Warn("failed to close index %s: %v", path, err)
	}
}
