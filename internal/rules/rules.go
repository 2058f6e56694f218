// Package rules decides where a schema instance is visible.
//
// A rule is a pipe-delimited token such as "basic-global", "post|all",
// "page|archive", "post|all|taxarchive|category" or "product-type|simple".
// A specific id is a dash-delimited entity reference such as "post-42" or
// "tax-7-single-category". Unknown or malformed tokens never match; they are
// not errors.
package rules

import (
	"strconv"
	"strings"

	"github.com/agentic-research/sitegraph/api"
)

// Taxonomy is a registered taxonomy.
type Taxonomy struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// PostType is a registered content type and the taxonomies attached to it.
type PostType struct {
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Taxonomies []Taxonomy `json:"taxonomies,omitempty"`
}

func (p PostType) hasTaxonomy(name string) bool {
	for _, t := range p.Taxonomies {
		if t.Name == name {
			return true
		}
	}
	return false
}

// DefaultPostTypes are registered when the caller supplies none.
var DefaultPostTypes = []PostType{
	{Name: "post", Label: "Posts", Taxonomies: []Taxonomy{
		{Name: "category", Label: "Categories"},
		{Name: "post_tag", Label: "Tags"},
	}},
	{Name: "page", Label: "Pages"},
}

// ProductPostType is registered when commerce is enabled.
var ProductPostType = PostType{Name: "product", Label: "Products", Taxonomies: []Taxonomy{
	{Name: "product_cat", Label: "Product Categories"},
	{Name: "product_tag", Label: "Product Tags"},
}}

// ProductTypes are the commerce product types offered by Options.
var ProductTypes = []string{"simple", "grouped", "external", "variable"}

// matcher is one family of rule tokens. The first family that claims a
// token's head decides the outcome.
type matcher interface {
	claims(head string) bool
	match(tokens []string, c *Context) bool
}

// Evaluator matches rule tokens against a Context. It holds no request
// state and is safe for concurrent use.
type Evaluator struct {
	postTypes map[string]PostType
	order     []PostType
	commerce  bool
	matchers  []matcher
}

// NewEvaluator builds an evaluator for the given post types. "post" and
// "page" are always registered; "product" is added when commerce is on.
func NewEvaluator(postTypes []PostType, commerce bool) *Evaluator {
	e := &Evaluator{postTypes: make(map[string]PostType), commerce: commerce}
	add := func(pt PostType) {
		if pt.Name == "" {
			return
		}
		if _, ok := e.postTypes[pt.Name]; ok {
			return
		}
		if pt.Label == "" {
			pt.Label = pt.Name
		}
		e.postTypes[pt.Name] = pt
		e.order = append(e.order, pt)
	}
	for _, pt := range postTypes {
		add(pt)
	}
	for _, pt := range DefaultPostTypes {
		add(pt)
	}
	if commerce {
		add(ProductPostType)
	}

	e.matchers = []matcher{
		basicMatcher{},
		specialMatcher{commerce: commerce},
		postTypeMatcher{pt: e.postTypes["post"]},
		postTypeMatcher{pt: e.postTypes["page"]},
	}
	if commerce {
		e.matchers = append(e.matchers, productMatcher{postTypeMatcher{pt: e.postTypes["product"]}})
	}
	e.matchers = append(e.matchers, customMatcher{e: e})
	return e
}

// PostTypes returns the registered post types in registration order.
func (e *Evaluator) PostTypes() []PostType {
	return append([]PostType(nil), e.order...)
}

// Matches evaluates one rule token.
func (e *Evaluator) Matches(rule string, c *Context) bool {
	if c == nil || rule == "" {
		return false
	}
	tokens := strings.Split(strings.TrimSpace(rule), "|")
	head := tokens[0]
	for _, m := range e.matchers {
		if m.claims(head) {
			return m.match(tokens, c)
		}
	}
	return false
}

// MatchesSpecific evaluates one specific-id token.
func (e *Evaluator) MatchesSpecific(id string, c *Context) bool {
	if c == nil {
		return false
	}
	kind, rest, ok := strings.Cut(strings.TrimSpace(id), "-")
	if !ok || rest == "" {
		return false
	}
	switch kind {
	case "post", "page", "product":
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return false
		}
		return c.singular() && c.PostType == kind && c.ObjectID == n
	case "tax":
		num, tail, _ := strings.Cut(rest, "-")
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return false
		}
		if tax, ok := strings.CutPrefix(tail, "single-"); ok {
			return tax != "" && c.singular() && c.HasTerm(tax, n)
		}
		if c.Kind != api.PageTaxArchive || c.ObjectID != n {
			return false
		}
		return tail == "" || tail == c.Taxonomy
	}
	return false
}

// Visible applies the show/suppress policy: a definition with no rules at
// all is never shown; otherwise it is shown when any show rule matches and
// no suppress rule does.
func (e *Evaluator) Visible(show, notShow api.RuleSet, c *Context) bool {
	if show.Empty() && notShow.Empty() {
		return false
	}
	return e.any(show, c) && !e.any(notShow, c)
}

func (e *Evaluator) any(set api.RuleSet, c *Context) bool {
	for _, r := range set.Rules {
		if e.Matches(r, c) {
			return true
		}
	}
	for _, id := range set.SpecificIDs {
		if e.MatchesSpecific(id, c) {
			return true
		}
	}
	return false
}

type basicMatcher struct{}

func (basicMatcher) claims(head string) bool { return strings.HasPrefix(head, "basic-") }

func (basicMatcher) match(tokens []string, c *Context) bool {
	if len(tokens) != 1 {
		return false
	}
	switch tokens[0] {
	case "basic-global":
		return true
	case "basic-singulars":
		return c.singular()
	case "basic-archives":
		return c.archive()
	}
	return false
}

type specialMatcher struct{ commerce bool }

func (specialMatcher) claims(head string) bool { return strings.HasPrefix(head, "special-") }

func (m specialMatcher) match(tokens []string, c *Context) bool {
	if len(tokens) != 1 {
		return false
	}
	switch strings.TrimPrefix(tokens[0], "special-") {
	case "404":
		return c.Kind == api.PageNotFound
	case "search":
		return c.Kind == api.PageSearch
	case "blog":
		return c.IsPostsPage || c.Kind == api.PageHome
	case "front":
		return c.IsFront
	case "date":
		return c.Kind == api.PageDate
	case "author":
		return c.Kind == api.PageAuthor
	case "woo-shop":
		return m.commerce && c.Kind == api.PageShop
	}
	return false
}

type postTypeMatcher struct{ pt PostType }

func (m postTypeMatcher) claims(head string) bool { return head == m.pt.Name }

func (m postTypeMatcher) match(tokens []string, c *Context) bool {
	name := m.pt.Name
	if len(tokens) < 2 {
		return false
	}
	switch tokens[1] {
	case "all":
		switch {
		case len(tokens) == 2:
			return c.singular() && c.PostType == name
		case len(tokens) == 3 && tokens[2] == "archive":
			if c.postTypeArchive(name) {
				return true
			}
			return c.Kind == api.PageTaxArchive && m.pt.hasTaxonomy(c.Taxonomy)
		case len(tokens) == 4 && tokens[2] == "taxarchive":
			return c.Kind == api.PageTaxArchive && tokens[3] != "" && c.Taxonomy == tokens[3]
		}
	case "archive":
		return len(tokens) == 2 && c.postTypeArchive(name)
	}
	return false
}

// productMatcher handles "product|..." like any post type and additionally
// claims "product-type|<type>".
type productMatcher struct{ postTypeMatcher }

func (m productMatcher) claims(head string) bool {
	return head == "product-type" || m.postTypeMatcher.claims(head)
}

func (m productMatcher) match(tokens []string, c *Context) bool {
	if tokens[0] == "product-type" {
		return len(tokens) == 2 && tokens[1] != "" &&
			c.singular() && c.PostType == "product" && c.ProductType == tokens[1]
	}
	return m.postTypeMatcher.match(tokens, c)
}

// customMatcher handles every other registered post type.
type customMatcher struct{ e *Evaluator }

func (m customMatcher) claims(head string) bool {
	_, ok := m.e.postTypes[head]
	return ok
}

func (m customMatcher) match(tokens []string, c *Context) bool {
	return postTypeMatcher{pt: m.e.postTypes[tokens[0]]}.match(tokens, c)
}
