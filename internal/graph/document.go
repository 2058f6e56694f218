// Package graph holds the JSON-LD document emitted for a page and its wire
// encoding.
package graph

import (
	"bytes"
	"io"

	"github.com/goccy/go-json"
)

// SchemaContext is the @context of every document.
const SchemaContext = "https://schema.org"

// Node is one rendered schema object. It always carries @type and @id.
type Node = map[string]any

// Document is the output of one render pass.
type Document struct {
	Context string `json:"@context"`
	Graph   []Node `json:"@graph"`
}

// New returns a document over nodes.
func New(nodes []Node) *Document {
	return &Document{Context: SchemaContext, Graph: nodes}
}

// Empty reports whether the document holds no nodes. An empty document
// encodes to nothing.
func (d *Document) Empty() bool {
	return d == nil || len(d.Graph) == 0
}

// Len is the number of nodes.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Graph)
}

// Find returns the first node whose @id ends with "#"+fragment.
func (d *Document) Find(fragment string) (Node, bool) {
	if d == nil {
		return nil, false
	}
	suffix := "#" + fragment
	for _, n := range d.Graph {
		id, _ := n["@id"].(string)
		if len(id) >= len(suffix) && id[len(id)-len(suffix):] == suffix {
			return n, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the document. Map keys come out sorted, so the same
// input always yields the same bytes. HTML-significant characters are
// escaped so the output is safe inside a script element.
func (d *Document) MarshalJSON() ([]byte, error) {
	type wire Document
	if d == nil {
		return []byte("null"), nil
	}
	w := wire(*d)
	if w.Graph == nil {
		w.Graph = []Node{}
	}
	return json.Marshal(w)
}

// Encode writes the document as JSON. Nothing is written for an empty
// document.
func (d *Document) Encode(w io.Writer, indent bool) error {
	if d.Empty() {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(d)
}

// ScriptTag renders the document inside a
// <script type="application/ld+json"> element. An empty document renders
// to an empty string.
func (d *Document) ScriptTag() (string, error) {
	if d.Empty() {
		return "", nil
	}
	var buf bytes.Buffer
	buf.WriteString(`<script type="application/ld+json">`)
	if err := d.Encode(&buf, false); err != nil {
		return "", err
	}
	buf.Truncate(buf.Len() - 1) // trailing newline from Encode
	buf.WriteString("</script>")
	return buf.String(), nil
}
