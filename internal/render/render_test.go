package render

import (
	"testing"

	"github.com/agentic-research/sitegraph/api"
	"github.com/agentic-research/sitegraph/internal/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRenderer() *Renderer {
	return New(resolve.New(map[string]any{
		"post": map[string]any{
			"title":     "Hello World",
			"thumbnail": "",
			"tags":      []any{"intro", "meta"},
			"custom":    map[string]any{"price": 12.5},
		},
		"schemas": map[string]any{
			"organization": map[string]any{"@id": "https://example.com/#org"},
			"person":       map[string]any{"@id": "https://example.com/hello/#person"},
		},
	}))
}

func typeField(name string) api.FieldSpec {
	return api.FieldSpec{ID: "@type", Kind: api.KindHidden, Default: name, Required: true}
}

func articleDef() api.Definition {
	return api.Definition{
		Title: "Blog Article",
		Type:  "Article",
		Fields: []api.FieldSpec{
			typeField("Article"),
			{ID: "metadata", Kind: api.KindTitle, Default: "Article"},
			{ID: "headline", Default: "%post.title%", Required: true},
			{ID: "keywords", Default: "%post.tags%", Visible: true},
			{ID: "description", Default: "%post.description%"},
			{ID: "publisher", Default: "%schemas.organization%", Visible: true},
			{ID: "image", Kind: api.KindGroup, Visible: true, Fields: []api.FieldSpec{
				typeField("ImageObject"),
				{ID: "url", Default: "%post.thumbnail%", Visible: true},
			}},
			{ID: "backstory", Default: "Why we wrote it", Visible: true, Variant: "OpinionNewsArticle"},
		},
	}
}

func TestNode_Article(t *testing.T) {
	node, issues := testRenderer().Node(articleDef(), "https://example.com/hello/#blog_article")
	assert.Empty(t, issues)
	assert.Equal(t, map[string]any{
		"@type":     "Article",
		"@id":       "https://example.com/hello/#blog_article",
		"headline":  "Hello World",
		"keywords":  []any{"intro", "meta"},
		"publisher": map[string]any{"@id": "https://example.com/#org"},
	}, node)
}

func TestNode_RequiredEmpty(t *testing.T) {
	def := articleDef()
	def.Values = map[string]any{"headline": "%post.missing%"}

	node, issues := testRenderer().Node(def, "x#a")
	assert.Equal(t, "", node["headline"])
	require.Len(t, issues, 1)
	assert.Equal(t, Issue{Schema: "Blog Article", Path: "/headline", Code: CodeRequiredEmpty}, issues[0])
}

func TestNode_OverridesWin(t *testing.T) {
	def := articleDef()
	def.Values = map[string]any{
		"description": "Custom %post.title%",
		"image":       map[string]any{"url": "https://example.com/a.png"},
	}
	node, _ := testRenderer().Node(def, "x#a")
	assert.Equal(t, "Custom Hello World", node["description"])
	assert.Equal(t, map[string]any{"@type": "ImageObject", "url": "https://example.com/a.png"}, node["image"])
}

func TestNode_SubTypesAndVariant(t *testing.T) {
	t.Run("declared sub-type", func(t *testing.T) {
		def := articleDef()
		def.SubTypes = []string{"OpinionNewsArticle"}
		node, _ := testRenderer().Node(def, "x#a")
		assert.Equal(t, []any{"Article", "OpinionNewsArticle"}, node["@type"])
		assert.Equal(t, "Why we wrote it", node["backstory"])
	})

	t.Run("sub-type value", func(t *testing.T) {
		def := articleDef()
		def.Values = map[string]any{"@sub_type": "NewsArticle"}
		node, _ := testRenderer().Node(def, "x#a")
		assert.Equal(t, []any{"Article", "NewsArticle"}, node["@type"])
		assert.NotContains(t, node, "@sub_type")
		assert.NotContains(t, node, "backstory")
	})

	t.Run("type override matches variant", func(t *testing.T) {
		def := articleDef()
		def.Values = map[string]any{"@type": "OpinionNewsArticle"}
		node, _ := testRenderer().Node(def, "x#a")
		assert.Equal(t, "OpinionNewsArticle", node["@type"])
		assert.Contains(t, node, "backstory")
	})
}

func TestNode_Cloneable(t *testing.T) {
	def := api.Definition{
		Type: "Product",
		Fields: []api.FieldSpec{
			typeField("Product"),
			{ID: "sameAs", Default: []any{"https://a.example", ""}, Visible: true, Cloneable: true},
			{ID: "color", Default: "blue", Visible: true, Cloneable: true},
			{ID: "offers", Kind: api.KindGroup, Visible: true, Cloneable: true, Fields: []api.FieldSpec{
				typeField("Offer"),
				{ID: "price", Default: "%post.custom.price%", Visible: true},
			}},
		},
	}

	t.Run("defaults", func(t *testing.T) {
		node, _ := testRenderer().Node(def, "x#p")
		assert.Equal(t, []any{"https://a.example"}, node["sameAs"])
		assert.Equal(t, []any{"blue"}, node["color"])
		assert.Equal(t, []any{map[string]any{"@type": "Offer", "price": 12.5}}, node["offers"])
	})

	t.Run("override list", func(t *testing.T) {
		d := def
		d.Values = map[string]any{"offers": []any{
			map[string]any{"price": 1},
			map[string]any{"price": ""},
			map[string]any{"price": 3},
		}}
		node, _ := testRenderer().Node(d, "x#p")
		assert.Equal(t, []any{
			map[string]any{"@type": "Offer", "price": 1},
			map[string]any{"@type": "Offer", "price": 3},
		}, node["offers"])
	})
}

func TestNode_GroupTemplateOverride(t *testing.T) {
	def := api.Definition{
		Type: "Article",
		Fields: []api.FieldSpec{
			typeField("Article"),
			{ID: "author", Kind: api.KindGroup, Visible: true, Fields: []api.FieldSpec{
				typeField("Person"),
				{ID: "name", Default: "%post.title%", Visible: true},
			}},
			{ID: "contributor", Kind: api.KindGroup, Visible: true, Cloneable: true, Fields: []api.FieldSpec{
				typeField("Person"),
				{ID: "name", Default: "Staff", Visible: true},
			}},
		},
	}
	fallback := map[string]any{"@type": "Person", "name": "Hello World"}

	for name, tc := range map[string]struct {
		author, contributor any
		wantAuthor          any
		wantContributor     any
	}{
		"schema link": {
			author:          "%schemas.person%",
			contributor:     []any{"%schemas.person%", "%schemas.organization%"},
			wantAuthor:      map[string]any{"@id": "https://example.com/hello/#person"},
			wantContributor: []any{map[string]any{"@id": "https://example.com/hello/#person"}, map[string]any{"@id": "https://example.com/#org"}},
		},
		"single link into cloneable": {
			author:          "%schemas.person%",
			contributor:     "%schemas.organization%",
			wantAuthor:      map[string]any{"@id": "https://example.com/hello/#person"},
			wantContributor: []any{map[string]any{"@id": "https://example.com/#org"}},
		},
		"scalar falls back to sub-fields": {
			author:          "%post.title%",
			contributor:     "%schemas.missing%",
			wantAuthor:      fallback,
			wantContributor: []any{map[string]any{"@type": "Person", "name": "Staff"}},
		},
	} {
		t.Run(name, func(t *testing.T) {
			d := def
			d.Values = map[string]any{"author": tc.author, "contributor": tc.contributor}
			node, issues := testRenderer().Node(d, "x#a")
			assert.Empty(t, issues)
			assert.Equal(t, tc.wantAuthor, node["author"])
			assert.Equal(t, tc.wantContributor, node["contributor"])
		})
	}
}

func TestNode_Flatten(t *testing.T) {
	def := api.Definition{
		Type: "Place",
		Fields: []api.FieldSpec{
			typeField("Place"),
			{ID: "geo", Kind: api.KindGroup, Visible: true, Flatten: true, Fields: []api.FieldSpec{
				typeField("GeoCoordinates"),
				{ID: "latitude", Default: 51.5, Visible: true},
				{ID: "longitude", Default: 0, Visible: true},
			}},
		},
	}
	node, _ := testRenderer().Node(def, "x#place")
	assert.Equal(t, map[string]any{
		"@type":     "Place",
		"@id":       "x#place",
		"latitude":  51.5,
		"longitude": 0,
	}, node)
}

func TestNode_DefaultsTypeFromDefinition(t *testing.T) {
	node, _ := testRenderer().Node(api.Definition{Type: "Thing"}, "x#thing")
	assert.Equal(t, map[string]any{"@type": "Thing", "@id": "x#thing"}, node)
}

func TestPrune(t *testing.T) {
	assert.Nil(t, Prune(""))
	assert.Nil(t, Prune([]any{"", nil, map[string]any{}}))
	assert.Nil(t, Prune(map[string]any{"@type": "ImageObject", "url": ""}))
	assert.Equal(t, false, Prune(false))
	assert.Equal(t, 0, Prune(0))
	assert.Equal(t, []any{"a"}, Prune([]string{"", "a"}))
	assert.True(t, IsEmpty(map[string]any{"x": []any{}}))
	assert.False(t, IsEmpty(map[string]any{"x": true}))
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Blog Post #2":     "blog_post_2",
		"Écrit à Noël":     "ecrit_a_noel",
		"123abc":           "abc",
		"__Web--Page__":    "web_page",
		"Local Business!!": "local_business",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestNodeID(t *testing.T) {
	assert.Equal(t, "https://example.com/a/#web_page", NodeID("https://example.com/a/", "Web Page"))
	assert.Equal(t, "https://example.com/a/#article", NodeID("https://example.com/a/#old", "Article"))
}
