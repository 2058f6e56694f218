package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/agentic-research/sitegraph/api"
	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// Record kinds stored in the records table.
const (
	kindPost        = "post"
	kindTerm        = "term"
	kindUser        = "user"
	kindSite        = "site"
	kindPostSchemas = "post_schemas"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	kind TEXT NOT NULL,
	id INTEGER NOT NULL,
	record JSON NOT NULL,
	PRIMARY KEY (kind, id)
) WITHOUT ROWID;
`

// SQLiteProvider reads content records from a SQLite database produced by
// SQLiteWriter. Every pooled connection is opened read-only.
type SQLiteProvider struct {
	db *sql.DB
}

// OpenSQLite opens an existing content database. A missing file is an error;
// nothing is created.
func OpenSQLite(path string) (*SQLiteProvider, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// mode=ro and the query_only pragma are applied by the driver to each
	// new connection, not just the first.
	db, err := sql.Open("sqlite", path+"?mode=ro&_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &SQLiteProvider{db: db}, nil
}

func (p *SQLiteProvider) load(ctx context.Context, kind string, id int64, dst any) error {
	var raw string
	err := p.db.QueryRowContext(ctx, "SELECT record FROM records WHERE kind = ? AND id = ?", kind, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("parse %s %d: %w", kind, id, err)
	}
	return nil
}

// Post implements Provider.
func (p *SQLiteProvider) Post(ctx context.Context, id int64) (*Post, error) {
	var post Post
	if err := p.load(ctx, kindPost, id, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// Term implements Provider.
func (p *SQLiteProvider) Term(ctx context.Context, id int64) (*Term, error) {
	var t Term
	if err := p.load(ctx, kindTerm, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// User implements Provider.
func (p *SQLiteProvider) User(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := p.load(ctx, kindUser, id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Site implements Provider. The site record is stored under id 0.
func (p *SQLiteProvider) Site(ctx context.Context) (*Site, error) {
	var s Site
	if err := p.load(ctx, kindSite, 0, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// PostSchemas implements OverrideSource. A post without overrides yields
// an empty set, not an error.
func (p *SQLiteProvider) PostSchemas(ctx context.Context, postID int64) ([]api.Definition, error) {
	var defs []api.Definition
	err := p.load(ctx, kindPostSchemas, postID, &defs)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return defs, err
}

// Close releases the database.
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}
