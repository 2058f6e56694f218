package graph

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *Document {
	return New([]Node{
		{"@type": "WebSite", "@id": "https://example.com/#website", "name": "Example"},
		{"@type": "Article", "@id": "https://example.com/a/#article", "headline": "Tom & <Jerry>"},
	})
}

func TestDocument_Empty(t *testing.T) {
	var nilDoc *Document
	assert.True(t, nilDoc.Empty())
	assert.True(t, New(nil).Empty())
	assert.False(t, sampleDocument().Empty())
	assert.Equal(t, 2, sampleDocument().Len())

	var buf bytes.Buffer
	require.NoError(t, New(nil).Encode(&buf, false))
	assert.Zero(t, buf.Len())

	tag, err := New(nil).ScriptTag()
	require.NoError(t, err)
	assert.Empty(t, tag)
}

func TestDocument_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(sampleDocument())
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, SchemaContext, back["@context"])
	graph, ok := back["@graph"].([]any)
	require.True(t, ok)
	require.Len(t, graph, 2)
	assert.Equal(t, "Tom & <Jerry>", graph[1].(map[string]any)["headline"])

	raw, err = json.Marshal(New(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"@context":"https://schema.org","@graph":[]}`, string(raw))
}

func TestDocument_Deterministic(t *testing.T) {
	a, err := json.Marshal(sampleDocument())
	require.NoError(t, err)
	b, err := json.Marshal(sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDocument_ScriptTag(t *testing.T) {
	tag, err := sampleDocument().ScriptTag()
	require.NoError(t, err)
	assert.True(t, len(tag) > 0)
	assert.Contains(t, tag, `<script type="application/ld+json">{"@context":"https://schema.org"`)
	assert.Contains(t, tag, `\u003cJerry\u003e`)
	assert.NotContains(t, tag, "<Jerry>")
	assert.Regexp(t, `}</script>$`, tag)
}

func TestDocument_Find(t *testing.T) {
	n, ok := sampleDocument().Find("article")
	require.True(t, ok)
	assert.Equal(t, "Article", n["@type"])

	_, ok = sampleDocument().Find("missing")
	assert.False(t, ok)
}
