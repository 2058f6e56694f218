package content

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/agentic-research/sitegraph/api"
	"github.com/goccy/go-json"
)

// Fixture is the JSON interchange form of a content store. It seeds the
// in-memory provider and the SQLite importer.
type Fixture struct {
	Site  Site   `json:"site"`
	Posts []Post `json:"posts"`
	Terms []Term `json:"terms"`
	Users []User `json:"users"`
	// PostSchemas maps a post id to its override schema set.
	PostSchemas map[string][]api.Definition `json:"post_schemas,omitempty"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// MemoryProvider serves content from maps. It is read-only after
// construction.
type MemoryProvider struct {
	site      *Site
	posts     map[int64]*Post
	terms     map[int64]*Term
	users     map[int64]*User
	overrides map[int64][]api.Definition
}

// NewMemoryProvider indexes a fixture.
func NewMemoryProvider(f *Fixture) (*MemoryProvider, error) {
	m := &MemoryProvider{
		posts:     make(map[int64]*Post),
		terms:     make(map[int64]*Term),
		users:     make(map[int64]*User),
		overrides: make(map[int64][]api.Definition),
	}
	if f == nil {
		return m, nil
	}
	site := f.Site
	m.site = &site
	for i := range f.Posts {
		m.posts[f.Posts[i].ID] = &f.Posts[i]
	}
	for i := range f.Terms {
		m.terms[f.Terms[i].ID] = &f.Terms[i]
	}
	for i := range f.Users {
		m.users[f.Users[i].ID] = &f.Users[i]
	}
	for key, defs := range f.PostSchemas {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("post_schemas key %q: %w", key, err)
		}
		m.overrides[id] = defs
	}
	return m, nil
}

// Post implements Provider.
func (m *MemoryProvider) Post(_ context.Context, id int64) (*Post, error) {
	if p, ok := m.posts[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
}

// Term implements Provider.
func (m *MemoryProvider) Term(_ context.Context, id int64) (*Term, error) {
	if t, ok := m.terms[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("term %d: %w", id, ErrNotFound)
}

// User implements Provider.
func (m *MemoryProvider) User(_ context.Context, id int64) (*User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
}

// Site implements Provider.
func (m *MemoryProvider) Site(_ context.Context) (*Site, error) {
	if m.site == nil {
		return nil, fmt.Errorf("site: %w", ErrNotFound)
	}
	return m.site, nil
}

// PostSchemas implements OverrideSource.
func (m *MemoryProvider) PostSchemas(_ context.Context, postID int64) ([]api.Definition, error) {
	return m.overrides[postID], nil
}
