package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentic-research/sitegraph/api"
	"github.com/agentic-research/sitegraph/internal/content"
	"github.com/agentic-research/sitegraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const postURL = "https://example.com/hello-world/"

func testProvider(t *testing.T) *content.MemoryProvider {
	t.Helper()
	f, err := content.LoadFixture("../content/testdata/site.json")
	require.NoError(t, err)
	p, err := content.NewMemoryProvider(f)
	require.NoError(t, err)
	return p
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(testProvider(t), opts...)
	require.NoError(t, err)
	return e
}

func showOn(rules ...string) api.RuleSet { return api.RuleSet{Rules: rules} }

func postPage() api.Page {
	return api.Page{URL: postURL, Kind: api.PageSingular, PostID: 42, PostType: "post"}
}

func siteDefaults() []api.Definition {
	return []api.Definition{
		{Type: "Organization", ShowOn: showOn("basic-global")},
		{Type: "WebSite", ShowOn: showOn("basic-global")},
		{Type: "WebPage", ShowOn: showOn("basic-global")},
		{Type: "BreadcrumbList", ShowOn: showOn("basic-global")},
		{Type: "Article", ShowOn: showOn("post|all")},
	}
}

func TestRender_ArticleOnPost(t *testing.T) {
	e := newTestEngine(t, WithDefaults([]api.Definition{
		{Type: "Article", ShowOn: showOn("post|all")},
	}))

	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)
	require.Equal(t, 1, doc.Len())

	n := doc.Graph[0]
	assert.Equal(t, "Article", n["@type"])
	assert.Equal(t, "Hello World", n["name"])
	assert.True(t, strings.HasSuffix(n["@id"].(string), "#article"))
	assert.Equal(t, "Hello World", n["headline"])
	assert.Equal(t, []any{"intro", "meta"}, n["keywords"])
	assert.Equal(t, 9, n["wordCount"])
	assert.Equal(t, map[string]any{"@type": "Person", "name": "Ada Lovelace", "url": "https://example.com/author/ada/"}, n["author"])
	assert.NotContains(t, n, "publisher")
	assert.NotContains(t, n, "metadata")
}

func TestRender_CrossSchemaLinks(t *testing.T) {
	e := newTestEngine(t, WithDefaults(siteDefaults()))

	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)
	require.Equal(t, 5, doc.Len())

	types := make([]any, 0, doc.Len())
	for _, n := range doc.Graph {
		types = append(types, n["@type"])
	}
	assert.Equal(t, []any{"Organization", "WebSite", "WebPage", "BreadcrumbList", "Article"}, types)

	article, ok := doc.Find("article")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"@id": postURL + "#organization"}, article["publisher"])
	assert.Equal(t, map[string]any{"@id": postURL + "#webpage"}, article["mainEntityOfPage"])

	page, ok := doc.Find("webpage")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"@id": postURL + "#website"}, page["isPartOf"])
	assert.Equal(t, map[string]any{"@id": postURL + "#breadcrumblist"}, page["breadcrumb"])

	crumbs, ok := doc.Find("breadcrumblist")
	require.True(t, ok)
	assert.Len(t, crumbs["itemListElement"], 3)
}

func TestRender_GroupLinkedToSchema(t *testing.T) {
	e := newTestEngine(t, WithDefaults([]api.Definition{
		{Type: "Person", ShowOn: showOn("post|all")},
		{Type: "Article", ShowOn: showOn("post|all"), Values: map[string]any{"author": "%schemas.person%"}},
	}))

	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)
	article, ok := doc.Find("article")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"@id": postURL + "#person"}, article["author"])

	person, ok := doc.Find("person")
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", person["name"])
}

func TestRender_TermSpecificID(t *testing.T) {
	e := newTestEngine(t, WithDefaults([]api.Definition{
		{Title: "News Article", Type: "Article", ShowOn: api.RuleSet{SpecificIDs: []string{"tax-7-single-category"}}},
	}))

	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)
	require.Equal(t, 1, doc.Len())
	assert.Equal(t, postURL+"#news_article", doc.Graph[0]["@id"])

	doc, err = e.Render(context.Background(), api.Page{
		URL: "https://example.com/", Kind: api.PageSingular, PostID: 2, PostType: "page",
	})
	require.NoError(t, err)
	assert.True(t, doc.Empty())
}

func TestRender_TaxonomyFromLoadedTerm(t *testing.T) {
	e := newTestEngine(t, WithDefaults([]api.Definition{
		{Title: "Category Page", Type: "WebPage", ShowOn: showOn("post|all|taxarchive|category")},
		{Title: "Post Archive", Type: "WebPage", ShowOn: showOn("post|all|archive")},
		{Title: "News Page", Type: "WebPage", ShowOn: api.RuleSet{SpecificIDs: []string{"tax-7-category"}}},
		{Title: "Tag Page", Type: "WebPage", ShowOn: showOn("post|all|taxarchive|post_tag")},
	}))

	doc, err := e.Render(context.Background(), api.Page{
		URL: "https://example.com/category/news/", Kind: api.PageTaxArchive, TermID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, 3, doc.Len())
	for _, frag := range []string{"category_page", "post_archive", "news_page"} {
		_, ok := doc.Find(frag)
		assert.True(t, ok, frag)
	}
}

func TestRender_ProductTypeFromTerms(t *testing.T) {
	p, err := content.NewMemoryProvider(&content.Fixture{
		Site: content.Site{Name: "Shop", URL: "https://shop.example"},
		Posts: []content.Post{{
			ID: 5, Type: "product", Title: "Kettle", URL: "https://shop.example/kettle/",
			Terms: map[string][]content.Term{
				"product_type": {{ID: 30, Name: "Variable", Slug: "variable", Taxonomy: "product_type"}},
			},
		}},
	})
	require.NoError(t, err)
	e, err := New(p, WithCommerce(true), WithDefaults([]api.Definition{
		{Type: "Product", ShowOn: showOn("product-type|variable")},
	}))
	require.NoError(t, err)

	doc, err := e.Render(context.Background(), api.Page{
		URL: "https://shop.example/kettle/", Kind: api.PageSingular, PostID: 5,
	})
	require.NoError(t, err)
	require.Equal(t, 1, doc.Len())
	assert.Equal(t, "Product", doc.Graph[0]["@type"])
}

func TestRender_SuppressWins(t *testing.T) {
	e := newTestEngine(t, WithDefaults([]api.Definition{
		{Type: "Article", ShowOn: showOn("basic-global"), NotShowOn: api.RuleSet{SpecificIDs: []string{"post-42"}}},
	}))
	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)
	assert.True(t, doc.Empty())
}

func TestRender_BreadcrumbsHiddenOnFront(t *testing.T) {
	e := newTestEngine(t, WithDefaults(siteDefaults()))

	doc, err := e.Render(context.Background(), api.Page{
		URL: "https://example.com/", Kind: api.PageSingular, PostID: 2, PostType: "page", IsFront: true,
	})
	require.NoError(t, err)
	_, ok := doc.Find("breadcrumblist")
	assert.False(t, ok)

	page, ok := doc.Find("webpage")
	require.True(t, ok)
	assert.NotContains(t, page, "breadcrumb")
	assert.Equal(t, "Home", page["name"])
}

func TestRender_OverrideSetReplacesDefaults(t *testing.T) {
	e := newTestEngine(t, WithCommerce(true), WithDefaults([]api.Definition{
		{Type: "Article", ShowOn: showOn("basic-global")},
	}))

	doc, err := e.Render(context.Background(), api.Page{
		URL: "https://example.com/shop/blue-mug/", Kind: api.PageSingular, PostID: 9, PostType: "product",
	})
	require.NoError(t, err)
	require.Equal(t, 1, doc.Len())

	n := doc.Graph[0]
	assert.Equal(t, "Product", n["@type"])
	assert.Equal(t, "MUG-1-OVERRIDE", n["sku"])
	assert.Equal(t, []any{"Kitchen"}, n["category"])
	assert.Equal(t, map[string]any{"@type": "Brand", "name": "Acme"}, n["brand"])
	assert.Equal(t, []any{map[string]any{
		"@type":         "Offer",
		"price":         "12.50",
		"priceCurrency": "USD",
		"availability":  "https://schema.org/InStock",
		"url":           "https://example.com/shop/blue-mug/",
	}}, n["offers"])
}

func TestRender_EmptyGraph(t *testing.T) {
	e := newTestEngine(t)
	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)
	assert.True(t, doc.Empty())

	tag, err := doc.ScriptTag()
	require.NoError(t, err)
	assert.Empty(t, tag)
}

func TestRender_Cancelled(t *testing.T) {
	e := newTestEngine(t, WithDefaults(siteDefaults()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Render(ctx, postPage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRender_ContextHookAndVeto(t *testing.T) {
	e := newTestEngine(t,
		WithDefaults(siteDefaults()),
		WithContextHook(func(_ context.Context, _ api.Page, data map[string]any) {
			data["site"].(map[string]any)["name"] = "Hooked"
		}),
		WithVeto(func(def api.Definition, _ api.Page) bool { return def.Type == "WebSite" }),
	)

	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)

	org, ok := doc.Find("organization")
	require.True(t, ok)
	assert.Equal(t, "Hooked", org["name"])

	_, ok = doc.Find("website")
	assert.False(t, ok)
	page, _ := doc.Find("webpage")
	assert.NotContains(t, page, "isPartOf")
}

func TestRender_IssuesAndBudgetLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := newTestEngine(t,
		WithLogger(zap.New(core)),
		WithStepBudget(3),
		WithDefaults([]api.Definition{{
			Title:  "Custom",
			Type:   "Thing",
			ShowOn: showOn("basic-global"),
			Fields: []api.FieldSpec{
				{ID: "@type", Kind: api.KindHidden, Default: "Thing", Required: true},
				{ID: "name", Default: "%post.title%", Required: true},
				{ID: "alternateName", Default: "%post.custom.subtitle%", Required: true},
				{ID: "identifier", Default: "%post.nothing%", Required: true},
			},
		}}),
	)

	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)
	require.Equal(t, 1, doc.Len())
	assert.Equal(t, "", doc.Graph[0]["identifier"])

	assert.Equal(t, 1, logs.FilterMessage("required field rendered empty").Len())
	assert.Equal(t, 1, logs.FilterMessage("placeholder budget exhausted").Len())
}

func TestRender_DuplicateLabels(t *testing.T) {
	e := newTestEngine(t, WithDefaults([]api.Definition{
		{Type: "Article", ShowOn: showOn("post|all")},
		{Type: "Article", ShowOn: showOn("post|all")},
	}))
	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())
	assert.Equal(t, postURL+"#article", doc.Graph[0]["@id"])
	assert.Equal(t, postURL+"#article_2", doc.Graph[1]["@id"])
}

func TestRender_SuffixedLabelsStayUnique(t *testing.T) {
	e := newTestEngine(t, WithDefaults([]api.Definition{
		{Title: "Article", Type: "Article", ShowOn: showOn("post|all")},
		{Title: "Article 2", Type: "Article", ShowOn: showOn("post|all")},
		{Title: "Article", Type: "Article", ShowOn: showOn("post|all")},
		{Title: "Article 2", Type: "Article", ShowOn: showOn("post|all")},
	}))
	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)

	var ids []any
	for _, n := range doc.Graph {
		ids = append(ids, n["@id"])
	}
	assert.Equal(t, []any{
		postURL + "#article",
		postURL + "#article_2",
		postURL + "#article_3",
		postURL + "#article_2_2",
	}, ids)
}

func TestUniqueID(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "u#a_2", uniqueID(used, "u", "A 2"))
	assert.Equal(t, "u#a", uniqueID(used, "u", "A"))
	assert.Equal(t, "u#a_3", uniqueID(used, "u", "A"))
}

func TestRender_UnknownTypeSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	e := newTestEngine(t, WithLogger(zap.New(core)), WithDefaults([]api.Definition{
		{Type: "Recipe", ShowOn: showOn("basic-global")},
		{Type: "Product", ShowOn: showOn("basic-global")},
	}))
	doc, err := e.Render(context.Background(), postPage())
	require.NoError(t, err)
	assert.True(t, doc.Empty())
	assert.Equal(t, 2, logs.FilterMessage("skipping schema of unknown type").Len())
}

func TestSecondarySurfaces(t *testing.T) {
	e := newTestEngine(t, WithCommerce(true))
	types := e.Types()
	require.Len(t, types, 8)
	assert.Equal(t, "Article", types[0].Type)

	groups := e.RuleOptions()
	require.NotEmpty(t, groups)
	assert.Equal(t, "Basic", groups[0].Label)
	assert.Equal(t, "Product Types", groups[len(groups)-1].Label)
	assert.NoError(t, e.Close())
}

func TestHotSwap(t *testing.T) {
	first := newTestEngine(t)
	second := newTestEngine(t, WithDefaults([]api.Definition{{Type: "Article", ShowOn: showOn("post|all")}}))

	h := NewHotSwap(first)
	doc, err := h.Render(context.Background(), postPage())
	require.NoError(t, err)
	assert.True(t, doc.Empty())

	require.NoError(t, h.Replace(context.Background(), second))

	doc, err = h.Render(context.Background(), postPage())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Len())
	assert.Len(t, h.Types(), 7)
	assert.NotEmpty(t, h.RuleOptions())

	require.NoError(t, h.Close(context.Background()))
	_, err = h.Render(context.Background(), postPage())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, h.Types())
}

// gatedProvider parks every Site lookup until release is closed and fails
// lookups once closed.
type gatedProvider struct {
	*content.MemoryProvider
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func newGatedProvider(t *testing.T) *gatedProvider {
	return &gatedProvider{
		MemoryProvider: testProvider(t),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (p *gatedProvider) Site(ctx context.Context) (*content.Site, error) {
	p.once.Do(func() { close(p.entered) })
	<-p.release
	if p.closed.Load() {
		return nil, errors.New("provider closed")
	}
	return p.MemoryProvider.Site(ctx)
}

func (p *gatedProvider) Post(ctx context.Context, id int64) (*content.Post, error) {
	if p.closed.Load() {
		return nil, errors.New("provider closed")
	}
	return p.MemoryProvider.Post(ctx, id)
}

func (p *gatedProvider) Close() error {
	p.closed.Store(true)
	return nil
}

func TestHotSwap_ReplaceWaitsForInflightRenders(t *testing.T) {
	gp := newGatedProvider(t)
	first, err := New(gp, WithDefaults([]api.Definition{{Type: "Article", ShowOn: showOn("post|all")}}))
	require.NoError(t, err)
	h := NewHotSwap(first)

	type result struct {
		doc *graph.Document
		err error
	}
	rendered := make(chan result, 1)
	go func() {
		doc, err := h.Render(context.Background(), postPage())
		rendered <- result{doc, err}
	}()
	<-gp.entered

	replaced := make(chan error, 1)
	go func() { replaced <- h.Replace(context.Background(), newTestEngine(t)) }()

	select {
	case <-replaced:
		t.Fatal("old engine closed while a render was still running on it")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, gp.closed.Load())

	close(gp.release)
	res := <-rendered
	require.NoError(t, res.err)
	article, ok := res.doc.Find("article")
	require.True(t, ok)
	assert.Equal(t, "Hello World", article["headline"])

	require.NoError(t, <-replaced)
	assert.True(t, gp.closed.Load())
}

func TestHotSwap_ReplaceDrainTimeout(t *testing.T) {
	gp := newGatedProvider(t)
	first, err := New(gp)
	require.NoError(t, err)
	h := NewHotSwap(first)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.Render(context.Background(), postPage())
	}()
	<-gp.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Replace(ctx, newTestEngine(t)), context.DeadlineExceeded)
	assert.False(t, gp.closed.Load())

	close(gp.release)
	<-done
	assert.Eventually(t, gp.closed.Load, time.Second, 5*time.Millisecond)
}
