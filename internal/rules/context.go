package rules

import (
	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/agentic-research/sitegraph/api"
)

// Context is the slice of request state the rule grammar looks at.
type Context struct {
	Kind     api.PageKind
	PostType string
	// ObjectID is the post id on singular pages and the term id on
	// taxonomy archives.
	ObjectID    int64
	Taxonomy    string
	ProductType string
	IsFront     bool
	IsPostsPage bool

	// terms holds the term ids attached to the current singular, per taxonomy.
	terms map[string]*roaring64.Bitmap
}

// NewContext derives the rule context from a page descriptor.
func NewContext(p api.Page) *Context {
	c := &Context{
		Kind:        p.Kind,
		PostType:    p.PostType,
		Taxonomy:    p.Taxonomy,
		ProductType: p.ProductType,
		IsFront:     p.IsFront,
		IsPostsPage: p.IsPostsPage,
	}
	switch p.Kind {
	case api.PageSingular:
		c.ObjectID = p.PostID
	case api.PageTaxArchive:
		c.ObjectID = p.TermID
	case api.PageShop:
		if c.PostType == "" {
			c.PostType = "product"
		}
	}
	return c
}

// AddTerms records term ids attached to the current singular.
func (c *Context) AddTerms(taxonomy string, ids ...int64) {
	if c.terms == nil {
		c.terms = make(map[string]*roaring64.Bitmap)
	}
	bm, ok := c.terms[taxonomy]
	if !ok {
		bm = roaring64.New()
		c.terms[taxonomy] = bm
	}
	for _, id := range ids {
		if id > 0 {
			bm.Add(uint64(id))
		}
	}
}

// HasTerm reports whether the current singular carries the term.
func (c *Context) HasTerm(taxonomy string, id int64) bool {
	if id <= 0 {
		return false
	}
	bm, ok := c.terms[taxonomy]
	return ok && bm.Contains(uint64(id))
}

func (c *Context) singular() bool { return c.Kind == api.PageSingular }

func (c *Context) archive() bool {
	switch c.Kind {
	case api.PagePostTypeArchive, api.PageTaxArchive, api.PageAuthor, api.PageDate, api.PageShop:
		return true
	}
	return false
}

func (c *Context) postTypeArchive(name string) bool {
	return (c.Kind == api.PagePostTypeArchive || c.Kind == api.PageShop) && c.PostType == name
}
