// Package engine drives one structured-data render pass: it collects the
// page's facts, picks the active schema set, filters it through the rules,
// renders the survivors and assembles the JSON-LD document.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/agentic-research/sitegraph/api"
	"github.com/agentic-research/sitegraph/internal/catalog"
	"github.com/agentic-research/sitegraph/internal/collect"
	"github.com/agentic-research/sitegraph/internal/content"
	"github.com/agentic-research/sitegraph/internal/graph"
	"github.com/agentic-research/sitegraph/internal/render"
	"github.com/agentic-research/sitegraph/internal/resolve"
	"github.com/agentic-research/sitegraph/internal/rules"
	"go.uber.org/zap"
)

// ContextHook adds or replaces keys of the render context before any
// placeholder is resolved.
type ContextHook func(ctx context.Context, page api.Page, data map[string]any)

// Veto hides a definition that the rules would show. Returning true hides it.
type Veto func(def api.Definition, page api.Page) bool

// HideBreadcrumbsOnFront hides BreadcrumbList on the front page.
func HideBreadcrumbsOnFront(def api.Definition, page api.Page) bool {
	return page.IsFront && strings.EqualFold(def.Type, "BreadcrumbList")
}

// Engine renders structured data for pages. It keeps no request state and is
// safe for concurrent renders.
type Engine struct {
	provider  content.Provider
	catalog   *catalog.Registry
	rules     *rules.Evaluator
	collector *collect.Collector
	defaults  []api.Definition
	log       *zap.Logger

	commerce   bool
	postTypes  []rules.PostType
	maxDepth   int
	stepBudget int
	hooks      []ContextHook
	vetoes     []Veto
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithCatalog uses reg instead of a fresh built-in registry. The registry is
// frozen by New.
func WithCatalog(reg *catalog.Registry) Option {
	return func(e *Engine) { e.catalog = reg }
}

// WithCommerce enables the commerce types and rules.
func WithCommerce(enabled bool) Option {
	return func(e *Engine) { e.commerce = enabled }
}

// WithPostTypes registers post types beyond the built-in post and page.
func WithPostTypes(pts []rules.PostType) Option {
	return func(e *Engine) { e.postTypes = append(e.postTypes, pts...) }
}

// WithDefaults sets the site-wide default schema set.
func WithDefaults(defs []api.Definition) Option {
	return func(e *Engine) { e.defaults = defs }
}

// WithMaxDepth bounds nested placeholder expansion.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// WithStepBudget caps placeholder substitutions per render pass. The default
// is resolve.DefaultStepBudget; zero means unlimited.
func WithStepBudget(n int) Option {
	return func(e *Engine) { e.stepBudget = n }
}

// WithContextHook appends a render-context hook. Hooks run in order.
func WithContextHook(h ContextHook) Option {
	return func(e *Engine) {
		if h != nil {
			e.hooks = append(e.hooks, h)
		}
	}
}

// WithVeto appends a visibility veto.
func WithVeto(v Veto) Option {
	return func(e *Engine) {
		if v != nil {
			e.vetoes = append(e.vetoes, v)
		}
	}
}

// New creates an engine reading content through p.
func New(p content.Provider, opts ...Option) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: content provider is required")
	}
	e := &Engine{
		provider:   p,
		log:        zap.NewNop(),
		maxDepth:   resolve.DefaultMaxDepth,
		stepBudget: resolve.DefaultStepBudget,
		vetoes:     []Veto{HideBreadcrumbsOnFront},
	}
	for _, o := range opts {
		o(e)
	}
	if e.catalog == nil {
		reg, err := catalog.New(catalog.WithCommerce(e.commerce))
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.catalog = reg
	} else {
		e.commerce = e.commerce || e.catalog.Commerce()
	}
	e.catalog.Freeze()
	e.rules = rules.NewEvaluator(e.postTypes, e.commerce)
	e.collector = collect.New(p, collect.WithLogger(e.log))
	return e, nil
}

// Catalog returns the frozen schema catalog.
func (e *Engine) Catalog() *catalog.Registry { return e.catalog }

// Types lists the catalog's schema types and their fields.
func (e *Engine) Types() []catalog.TypeInfo {
	return e.catalog.List()
}

// RuleOptions lists the rule tokens a settings UI can offer.
func (e *Engine) RuleOptions() []rules.OptionGroup {
	return e.rules.Options()
}

// Close releases the content provider if it holds resources.
func (e *Engine) Close() error {
	if c, ok := e.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// active is a visible definition with its resolved field tree and @id.
type active struct {
	def api.Definition
	id  string
}

// Render produces the JSON-LD document for page. An empty document is a
// valid result. The only error is a cancelled or expired ctx.
func (e *Engine) Render(ctx context.Context, page api.Page) (*graph.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := e.collector.Collect(ctx, page)
	rc := e.ruleContext(page, snap)

	set := e.activeSet(ctx, page)
	visible := make([]active, 0, len(set))
	used := make(map[string]bool, len(set))
	for _, def := range set {
		if !e.rules.Visible(def.ShowOn, def.NotShowOn, rc) || e.vetoed(def, page) {
			continue
		}
		def, ok := e.withFields(def)
		if !ok {
			continue
		}
		visible = append(visible, active{def: def, id: uniqueID(used, page.URL, def.Label())})
	}

	schemas := snap.Data[collect.NSSchemas].(map[string]any)
	for _, a := range visible {
		stub := map[string]any{"@id": a.id}
		if key := strings.ToLower(a.def.Type); key != "" {
			if _, taken := schemas[key]; !taken {
				schemas[key] = stub
			}
		}
		if slug := render.Slug(a.def.Label()); slug != "" {
			if _, taken := schemas[slug]; !taken {
				schemas[slug] = stub
			}
		}
	}
	for _, h := range e.hooks {
		h(ctx, page, snap.Data)
	}

	budget := resolve.NewBudget(e.stepBudget)
	res := resolve.New(snap.Data,
		resolve.WithMaxDepth(e.maxDepth),
		resolve.WithBudget(budget),
		resolve.WithContext(ctx))
	r := render.New(res)

	nodes := make([]graph.Node, 0, len(visible))
	for _, a := range visible {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node, issues := r.Node(a.def, a.id)
		// Expansion stops early on a done context; drop the partial node.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, is := range issues {
			e.log.Warn("required field rendered empty",
				zap.String("schema", is.Schema),
				zap.String("path", is.Path),
				zap.String("url", page.URL))
		}
		nodes = append(nodes, node)
	}
	if budget.Exhausted() {
		e.log.Warn("placeholder budget exhausted",
			zap.String("url", page.URL),
			zap.Int("budget", e.stepBudget))
	}

	e.log.Debug("rendered structured data",
		zap.String("url", page.URL),
		zap.Int("candidates", len(set)),
		zap.Int("nodes", len(nodes)))
	return graph.New(nodes), nil
}

// activeSet picks the entity's own schema set when it has a non-empty one,
// the site defaults otherwise.
func (e *Engine) activeSet(ctx context.Context, page api.Page) []api.Definition {
	if page.Kind == api.PageSingular && page.PostID > 0 {
		if src, ok := e.provider.(content.OverrideSource); ok {
			defs, err := src.PostSchemas(ctx, page.PostID)
			switch {
			case err != nil:
				e.log.Warn("schema override lookup failed",
					zap.Int64("post", page.PostID),
					zap.Error(err))
			case len(defs) > 0:
				return defs
			}
		}
	}
	return e.defaults
}

// productTypeTaxonomy is the taxonomy a commerce store files product types
// under.
const productTypeTaxonomy = "product_type"

// ruleContext builds the rule context, taking whatever the page leaves out
// from the loaded content.
func (e *Engine) ruleContext(page api.Page, snap *collect.Snapshot) *rules.Context {
	rc := rules.NewContext(page)
	if snap.Term != nil && rc.Taxonomy == "" {
		rc.Taxonomy = snap.Term.Taxonomy
	}
	if snap.Post != nil {
		if rc.PostType == "" {
			rc.PostType = snap.Post.Type
		}
		if rc.ProductType == "" {
			rc.ProductType = productType(snap.Post)
		}
		for tax, terms := range snap.Post.Terms {
			ids := make([]int64, 0, len(terms))
			for _, t := range terms {
				ids = append(ids, t.ID)
			}
			rc.AddTerms(tax, ids...)
		}
	}
	return rc
}

// productType reads a product's type from its product_type term, falling
// back to a custom field of the same name.
func productType(p *content.Post) string {
	if ts := p.Terms[productTypeTaxonomy]; len(ts) > 0 {
		if ts[0].Slug != "" {
			return ts[0].Slug
		}
		return ts[0].Name
	}
	if s, ok := p.Custom[productTypeTaxonomy].(string); ok {
		return s
	}
	return ""
}

func (e *Engine) vetoed(def api.Definition, page api.Page) bool {
	for _, v := range e.vetoes {
		if v(def, page) {
			return true
		}
	}
	return false
}

// withFields fills an instance's field tree from the catalog when the
// instance carries none of its own.
func (e *Engine) withFields(def api.Definition) (api.Definition, bool) {
	if len(def.Fields) > 0 {
		def.Fields = catalog.CloneFields(def.Fields)
		return def, true
	}
	typ, ok := e.catalog.Get(def.Type)
	if !ok {
		e.log.Warn("skipping schema of unknown type",
			zap.String("schema", def.Label()),
			zap.String("type", def.Type))
		return def, false
	}
	def.Fields = typ.Fields
	if def.Type == "" {
		def.Type = typ.Type
	}
	return def, true
}

// uniqueID builds the node @id, suffixing a taken id with the first free _2,
// _3 and so on. Every issued id is recorded, so a suffixed id never collides
// with a label whose own slug carries the same suffix.
func uniqueID(used map[string]bool, pageURL, label string) string {
	base := render.NodeID(pageURL, label)
	id := base
	for n := 2; used[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	used[id] = true
	return id
}
