package content

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// SQLiteWriter bulk-loads content records into a SQLite database. All
// writes go into one transaction, committed in batches.
type SQLiteWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
	mu        sync.Mutex
}

// NewSQLiteWriter creates the database schema and opens a transaction.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &SQLiteWriter{db: db, batchSize: 1000}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.Prepare(`INSERT OR REPLACE INTO records (kind, id, record) VALUES (?, ?, ?)`)
	return err
}

func (w *SQLiteWriter) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit()
	w.tx = nil
	return err
}

func (w *SQLiteWriter) put(kind string, id int64, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", kind, id, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.stmt.Exec(kind, id, string(raw)); err != nil {
		return fmt.Errorf("insert %s %d: %w", kind, id, err)
	}
	w.count++
	if w.count%w.batchSize == 0 {
		if err := w.commitTx(); err != nil {
			return err
		}
		return w.beginTx()
	}
	return nil
}

// WriteFixture stores every record of a fixture.
func (w *SQLiteWriter) WriteFixture(f *Fixture) error {
	if err := w.put(kindSite, 0, f.Site); err != nil {
		return err
	}
	for _, p := range f.Posts {
		if err := w.put(kindPost, p.ID, p); err != nil {
			return err
		}
	}
	for _, t := range f.Terms {
		if err := w.put(kindTerm, t.ID, t); err != nil {
			return err
		}
	}
	for _, u := range f.Users {
		if err := w.put(kindUser, u.ID, u); err != nil {
			return err
		}
	}
	for key, defs := range f.PostSchemas {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("post_schemas key %q: %w", key, err)
		}
		if err := w.put(kindPostSchemas, id, defs); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of records written so far.
func (w *SQLiteWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close commits pending writes and closes the database.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	return w.db.Close()
}
