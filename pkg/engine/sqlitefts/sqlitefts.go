// Package sqlitefts is the SQLite FTS5 index backend. Each index location
// is one SQLite database holding a docs table and two external-content FTS5
// tables: docs_fts (unicode61) and docs_stem (porter).
package sqlitefts

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	migrations "github.com/rubiojr/fedsearch/pkg/db"
	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/log"
)

// Name is the registry name of this backend.
const Name = "sqlite"

const (
	fileName    = "index.sqlite"
	writerBatch = 200
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func init() {
	engine.Register(Name, func() engine.Engine { return &Engine{} })
}

// Engine implements engine.Engine over SQLite FTS5 databases.
type Engine struct{}

func (e *Engine) Name() string {
	return Name
}

func (e *Engine) Location(confRoot string) string {
	return filepath.Join(confRoot, fileName)
}

var writePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 30000",
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = memory",
	"PRAGMA mmap_size = 268435456",
}

var readPragmas = []string{
	"PRAGMA busy_timeout = 30000",
	"PRAGMA query_only = ON",
	"PRAGMA temp_store = memory",
}

func openDB(path string, pragmas []string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Open opens every existing location. Missing or unreadable locations are
// logged and skipped; Open fails only when none could be opened.
func (e *Engine) Open(primary string, extra []string) (engine.Session, error) {
	logger := log.ForService("sqlite")

	var dbs []*sql.DB
	var lastErr error
	for _, loc := range append([]string{primary}, extra...) {
		if _, err := os.Stat(loc); err != nil {
			logger.Warnf("skipping index %s: %v", loc, err)
			lastErr = err
			continue
		}
		db, err := openDB(loc, readPragmas)
		if err != nil {
			logger.Warnf("skipping index %s: %v", loc, err)
			lastErr = err
			continue
		}
		dbs = append(dbs, db)
	}
	if len(dbs) == 0 {
		return nil, fmt.Errorf("opening sqlite indexes: %w", lastErr)
	}
	return &Session{dbs: dbs, sortField: engine.SortRelevance}, nil
}

// Create opens the database at location for writing and migrates its
// schema. The porter table covers English stemming whatever langs says.
func (e *Engine) Create(location string, _ []string) (engine.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(location), 0755); err != nil {
		return nil, fmt.Errorf("creating index parent dir: %w", err)
	}
	db, err := openDB(location, writePragmas)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.NewMigrationManager(db, migrationFS, "migrations").ApplyPendingMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", location, err)
	}
	return &Writer{db: db}, nil
}

// Writer inserts documents in batched transactions.
type Writer struct {
	db      *sql.DB
	tx      *sql.Tx
	pending int
}

func (w *Writer) begin(ctx context.Context) error {
	if w.tx != nil {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	w.tx = tx
	return nil
}

func (w *Writer) Index(ctx context.Context, d *engine.Doc) error {
	if err := w.begin(ctx); err != nil {
		return err
	}

	mtime := d.FMTime
	if d.DMTime != 0 {
		mtime = d.DMTime
	}

	// docs_fts is external content; a plain REPLACE would skip the delete
	// trigger.
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM docs WHERE id = ?`, d.ID()); err != nil {
		return fmt.Errorf("replacing %s: %w", d.ID(), err)
	}
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO docs (id, url, ipath, filename, title, author, mtype, origcharset,
			keywords, abstract, dir, content, fbytes, dbytes, fmtime, dmtime, mtime, sig)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID(), d.URL, nullString(d.IPath), d.Filename, nullString(d.Title), nullString(d.Author),
		d.MimeType, nullString(d.Charset), nullString(d.Keywords), nullString(d.Abstract),
		d.Dir, d.Content, d.FBytes, nullInt(d.DBytes), d.FMTime, nullInt(d.DMTime), mtime, d.Sig(),
	)
	if err != nil {
		return fmt.Errorf("inserting %s: %w", d.ID(), err)
	}
	return w.maybeCommit()
}

func (w *Writer) Delete(ctx context.Context, id string) error {
	if err := w.begin(ctx); err != nil {
		return err
	}
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM docs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	return w.maybeCommit()
}

func (w *Writer) maybeCommit() error {
	w.pending++
	if w.pending < writerBatch {
		return nil
	}
	return w.commit()
}

func (w *Writer) commit() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit()
	w.tx = nil
	w.pending = 0
	if err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	commitErr := w.commit()
	if commitErr == nil {
		if _, err := w.db.Exec(`INSERT INTO docs_fts(docs_fts) VALUES ('optimize')`); err != nil {
			log.ForService("sqlite").Warnf("optimizing fts table: %v", err)
		}
	}
	return errors.Join(commitErr, w.db.Close())
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
