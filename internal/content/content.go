// Package content is the boundary to the content store: posts, taxonomy
// terms, users and site settings. The engine only reads through it.
package content

import (
	"context"
	"errors"
	"time"

	"github.com/agentic-research/sitegraph/api"
)

var ErrNotFound = errors.New("content not found")

// Term is a taxonomy term.
type Term struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Taxonomy    string `json:"taxonomy"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Post is a content entity of any post type.
type Post struct {
	ID           int64             `json:"id"`
	Type         string            `json:"type"`
	Title        string            `json:"title"`
	Excerpt      string            `json:"excerpt,omitempty"`
	Content      string            `json:"content,omitempty"`
	URL          string            `json:"url"`
	Published    time.Time         `json:"published"`
	Modified     time.Time         `json:"modified"`
	AuthorID     int64             `json:"author_id,omitempty"`
	Thumbnail    string            `json:"thumbnail,omitempty"`
	CommentCount int               `json:"comment_count,omitempty"`
	Terms        map[string][]Term `json:"terms,omitempty"` // taxonomy -> terms
	Custom       map[string]any    `json:"custom,omitempty"`
}

// User is an author or any other registered user.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	URL       string `json:"url,omitempty"` // posts index of the user
}

// Site holds site-level facts.
type Site struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"` // tagline
	URL         string `json:"url"`
	Locale      string `json:"locale,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Provider reads content for the current request.
type Provider interface {
	Post(ctx context.Context, id int64) (*Post, error)
	Term(ctx context.Context, id int64) (*Term, error)
	User(ctx context.Context, id int64) (*User, error)
	Site(ctx context.Context) (*Site, error)
}

// OverrideSource is implemented by providers that store per-entity schema
// sets. A non-empty set replaces the site-wide defaults on that entity.
type OverrideSource interface {
	PostSchemas(ctx context.Context, postID int64) ([]api.Definition, error)
}
