package api

import (
	"errors"
	"fmt"
)

// PageKind says what kind of page is being rendered.
type PageKind string

const (
	PageSingular        PageKind = "singular"
	PagePostTypeArchive PageKind = "post_type_archive"
	PageTaxArchive      PageKind = "tax_archive"
	PageAuthor          PageKind = "author"
	PageDate            PageKind = "date"
	PageSearch          PageKind = "search"
	PageNotFound        PageKind = "not_found"
	// PageHome is the posts index when it is not a static front page.
	PageHome PageKind = "home"
	// PageShop is the commerce catalog page.
	PageShop PageKind = "shop"
)

// Crumb is one breadcrumb entry of the current page.
type Crumb struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Page describes the current request. It is the only input a render needs
// besides the content provider.
type Page struct {
	URL   string   `json:"url"`
	Title string   `json:"title,omitempty"`
	Kind  PageKind `json:"kind"`

	PostID   int64  `json:"post_id,omitempty"`
	PostType string `json:"post_type,omitempty"`
	TermID   int64  `json:"term_id,omitempty"`
	Taxonomy string `json:"taxonomy,omitempty"`
	UserID   int64  `json:"user_id,omitempty"`

	SearchQuery string `json:"search_query,omitempty"`
	// ProductType is the commerce product type of the current singular.
	ProductType string `json:"product_type,omitempty"`

	// IsFront is set on the site's front page, which may also be singular.
	IsFront bool `json:"is_front,omitempty"`
	// IsPostsPage is set on the posts index page.
	IsPostsPage bool `json:"is_posts_page,omitempty"`

	Breadcrumbs []Crumb `json:"breadcrumbs,omitempty"`
}

// Kinds lists every page kind.
var Kinds = []PageKind{
	PageSingular, PagePostTypeArchive, PageTaxArchive, PageAuthor, PageDate,
	PageSearch, PageNotFound, PageHome, PageShop,
}

// ParseKind validates a page kind name. The empty string is singular.
func ParseKind(s string) (PageKind, error) {
	if s == "" {
		return PageSingular, nil
	}
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown page kind %q", s)
}

// Validate checks that the page can be rendered.
func (p Page) Validate() error {
	if p.URL == "" {
		return errors.New("page url is required")
	}
	if _, err := ParseKind(string(p.Kind)); err != nil {
		return err
	}
	if p.PostID < 0 || p.TermID < 0 || p.UserID < 0 {
		return errors.New("ids must not be negative")
	}
	return nil
}
