// Package collect gathers the facts of the current page into the render
// context that placeholders are resolved against.
package collect

import (
	"context"
	"strings"
	"time"

	"github.com/agentic-research/sitegraph/api"
	"github.com/agentic-research/sitegraph/internal/content"
	"go.uber.org/zap"
)

// Top-level namespaces of the render context.
const (
	NSPost    = "post"
	NSTerm    = "term"
	NSAuthor  = "author"
	NSUser    = "user"
	NSSite    = "site"
	NSCurrent = "current"
	NSSchemas = "schemas"
)

const descriptionLength = 160

// Snapshot is the outcome of one collection pass.
type Snapshot struct {
	// Data is the render context. Every namespace is present; a namespace
	// whose lookup failed is an empty map.
	Data map[string]any
	// Post is the current content entity, nil off singular pages.
	Post *content.Post
	// Term is the archived term on taxonomy archives.
	Term *content.Term
	Site *content.Site
}

// Collector reads page facts through a content provider.
type Collector struct {
	provider content.Provider
	log      *zap.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger used for lookup failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a collector.
func New(p content.Provider, opts ...Option) *Collector {
	c := &Collector{provider: p, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Collect builds the render context for a page. Provider failures reduce
// the context but never abort collection.
func (c *Collector) Collect(ctx context.Context, page api.Page) *Snapshot {
	snap := &Snapshot{Data: map[string]any{
		NSPost:    map[string]any{},
		NSTerm:    map[string]any{},
		NSAuthor:  map[string]any{},
		NSUser:    map[string]any{},
		NSSite:    map[string]any{},
		NSCurrent: map[string]any{},
		NSSchemas: map[string]any{},
	}}

	if site, err := c.provider.Site(ctx); err == nil {
		snap.Site = site
		snap.Data[NSSite] = siteData(site)
	} else {
		c.miss("site", 0, err)
	}

	authorID := page.UserID
	if page.PostID > 0 {
		if post, err := c.provider.Post(ctx, page.PostID); err == nil {
			snap.Post = post
			snap.Data[NSPost] = postData(post)
			if page.Kind == api.PageSingular && post.AuthorID > 0 {
				authorID = post.AuthorID
			}
		} else {
			c.miss("post", page.PostID, err)
		}
	}

	if page.TermID > 0 {
		if t, err := c.provider.Term(ctx, page.TermID); err == nil {
			snap.Term = t
			snap.Data[NSTerm] = termData(t)
		} else {
			c.miss("term", page.TermID, err)
		}
	}

	if authorID > 0 {
		if u, err := c.provider.User(ctx, authorID); err == nil {
			snap.Data[NSAuthor] = userData(u)
		} else {
			c.miss("author", authorID, err)
		}
	}
	if page.UserID > 0 {
		if u, err := c.provider.User(ctx, page.UserID); err == nil {
			snap.Data[NSUser] = userData(u)
		} else {
			c.miss("user", page.UserID, err)
		}
	}

	snap.Data[NSCurrent] = currentData(page, snap, snap.Term)
	return snap
}

func (c *Collector) miss(kind string, id int64, err error) {
	c.log.Debug("content lookup failed",
		zap.String("kind", kind),
		zap.Int64("id", id),
		zap.Error(err))
}

func postData(p *content.Post) map[string]any {
	body := Sanitize(p.Content)
	excerpt := Sanitize(p.Excerpt)
	description := excerpt
	if description == "" {
		description = truncate(body, descriptionLength)
	}

	terms := make(map[string]any, len(p.Terms))
	for tax, ts := range p.Terms {
		terms[tax] = termNames(ts)
	}

	return map[string]any{
		"id":             p.ID,
		"type":           p.Type,
		"title":          Sanitize(p.Title),
		"excerpt":        excerpt,
		"description":    description,
		"content":        body,
		"url":            Sanitize(p.URL),
		"date_published": formatTime(p.Published),
		"date_modified":  formatTime(p.Modified),
		"author_id":      p.AuthorID,
		"thumbnail":      Sanitize(p.Thumbnail),
		"comment_count":  p.CommentCount,
		"word_count":     WordCount(body),
		"categories":     termNames(p.Terms["category"]),
		"tags":           termNames(p.Terms["post_tag"]),
		"terms":          terms,
		"custom":         sanitizeValue(customOrEmpty(p.Custom)),
	}
}

func customOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func termNames(ts []content.Term) []any {
	out := make([]any, 0, len(ts))
	for _, t := range ts {
		if name := Sanitize(t.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func termData(t *content.Term) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"name":        Sanitize(t.Name),
		"slug":        Sanitize(t.Slug),
		"taxonomy":    t.Taxonomy,
		"description": Sanitize(t.Description),
		"url":         Sanitize(t.URL),
	}
}

func userData(u *content.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"name":       Sanitize(u.Name),
		"first_name": Sanitize(u.FirstName),
		"last_name":  Sanitize(u.LastName),
		"email":      Sanitize(u.Email),
		"bio":        Sanitize(u.Bio),
		"avatar":     Sanitize(u.Avatar),
		"url":        Sanitize(u.URL),
	}
}

func siteData(s *content.Site) map[string]any {
	url := Sanitize(s.URL)
	return map[string]any{
		"name":        Sanitize(s.Name),
		"description": Sanitize(s.Description),
		"url":         url,
		"language":    strings.ReplaceAll(s.Locale, "_", "-"),
		"icon":        Sanitize(s.Icon),
		"search_url":  strings.TrimRight(url, "/") + "/?s={search_term_string}",
	}
}

func currentData(page api.Page, snap *Snapshot, term *content.Term) map[string]any {
	title := Sanitize(page.Title)
	if title == "" {
		switch {
		case snap.Post != nil && page.Kind == api.PageSingular:
			title = Sanitize(snap.Post.Title)
		case term != nil:
			title = Sanitize(term.Name)
		case snap.Site != nil:
			title = Sanitize(snap.Site.Name)
		}
	}

	crumbs := page.Breadcrumbs
	if len(crumbs) == 0 {
		crumbs = defaultCrumbs(page, snap, title)
	}

	return map[string]any{
		"url":          Sanitize(page.URL),
		"title":        title,
		"kind":         string(page.Kind),
		"search_query": Sanitize(page.SearchQuery),
		"breadcrumbs":  breadcrumbList(crumbs),
	}
}

// defaultCrumbs is Home plus the current page, with the first category in
// between on singular posts.
func defaultCrumbs(page api.Page, snap *Snapshot, title string) []api.Crumb {
	var crumbs []api.Crumb
	if snap.Site != nil {
		crumbs = append(crumbs, api.Crumb{Name: "Home", URL: snap.Site.URL})
	}
	if page.IsFront {
		return crumbs
	}
	if snap.Post != nil && page.Kind == api.PageSingular {
		if cats := snap.Post.Terms["category"]; len(cats) > 0 && cats[0].URL != "" {
			crumbs = append(crumbs, api.Crumb{Name: cats[0].Name, URL: cats[0].URL})
		}
	}
	if title != "" && page.URL != "" {
		crumbs = append(crumbs, api.Crumb{Name: title, URL: page.URL})
	}
	return crumbs
}

// breadcrumbList renders crumbs as schema.org ListItem nodes.
func breadcrumbList(crumbs []api.Crumb) []any {
	out := make([]any, 0, len(crumbs))
	for _, c := range crumbs {
		name := Sanitize(c.Name)
		if name == "" {
			continue
		}
		out = append(out, map[string]any{
			"@type":    "ListItem",
			"position": len(out) + 1,
			"item": map[string]any{
				"@id":  Sanitize(c.URL),
				"name": name,
			},
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
