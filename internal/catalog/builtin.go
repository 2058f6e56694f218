package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/agentic-research/sitegraph/api"
	"gopkg.in/yaml.v3"
)

//go:embed types/*.yaml
var builtinFS embed.FS

// table is the on-disk shape of a built-in type.
type table struct {
	Type     string          `yaml:"type"`
	Title    string          `yaml:"title"`
	Commerce bool            `yaml:"commerce"`
	Fields   []api.FieldSpec `yaml:"fields"`
}

func (t table) generator() FieldGenerator {
	return func() []api.FieldSpec { return CloneFields(t.Fields) }
}

// Builtin type load order. Types not listed here load afterwards by file name.
var builtinOrder = []string{
	"WebSite", "SearchAction", "Organization", "Person",
	"WebPage", "BreadcrumbList", "Article", "Product",
}

func loadBuiltins() ([]table, error) {
	paths, err := fs.Glob(builtinFS, "types/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	byType := make(map[string]table, len(paths))
	var extra []string
	for _, p := range paths {
		raw, err := builtinFS.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var t table
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		if t.Type == "" {
			return nil, fmt.Errorf("parse %s: missing type", p)
		}
		if t.Title == "" {
			t.Title = t.Type
		}
		byType[t.Type] = t
		extra = append(extra, t.Type)
	}

	out := make([]table, 0, len(byType))
	for _, name := range builtinOrder {
		if t, ok := byType[name]; ok {
			out = append(out, t)
			delete(byType, name)
		}
	}
	for _, name := range extra {
		if t, ok := byType[name]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}
