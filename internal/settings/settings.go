// Package settings loads the site's schema settings: the default schema set
// and the extra post types the rule grammar should know about.
//
// The file is HCL:
//
//	post_type "book" {
//	  label = "Books"
//	  taxonomy "genre" { label = "Genres" }
//	}
//
//	schema "Site Organization" {
//	  type      = "Organization"
//	  sub_types = ["LocalBusiness"]
//	  show_on { rules = ["basic-global"] }
//	  values = {
//	    sameAs = ["https://social.example/acme"]
//	  }
//	}
package settings

import (
	"errors"
	"fmt"

	"github.com/agentic-research/sitegraph/api"
	"github.com/agentic-research/sitegraph/internal/catalog"
	"github.com/agentic-research/sitegraph/internal/rules"
	"github.com/goccy/go-json"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Settings is the decoded settings file.
type Settings struct {
	PostTypes []rules.PostType
	Defaults  []api.Definition
}

type fileSpec struct {
	PostTypes []postTypeBlock `hcl:"post_type,block"`
	Schemas   []schemaBlock   `hcl:"schema,block"`
}

type postTypeBlock struct {
	Name       string          `hcl:"name,label"`
	Label      string          `hcl:"label,optional"`
	Taxonomies []taxonomyBlock `hcl:"taxonomy,block"`
}

type taxonomyBlock struct {
	Name  string `hcl:"name,label"`
	Label string `hcl:"label,optional"`
}

type schemaBlock struct {
	Title     string     `hcl:"title,label"`
	Type      string     `hcl:"type"`
	SubTypes  []string   `hcl:"sub_types,optional"`
	ShowOn    *ruleBlock `hcl:"show_on,block"`
	NotShowOn *ruleBlock `hcl:"not_show_on,block"`
	Values    cty.Value  `hcl:"values,optional"`
}

type ruleBlock struct {
	Rules       []string `hcl:"rules,optional"`
	SpecificIDs []string `hcl:"specific_ids,optional"`
}

func (b *ruleBlock) ruleSet() api.RuleSet {
	if b == nil {
		return api.RuleSet{}
	}
	return api.RuleSet{Rules: b.Rules, SpecificIDs: b.SpecificIDs}
}

// Load reads a settings file. The extension selects the syntax: ".hcl" for
// native HCL, ".json" for HCL's JSON form.
func Load(path string) (*Settings, error) {
	var f fileSpec
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}
	return f.settings()
}

// Parse decodes settings from src. filename is used for diagnostics and to
// pick the syntax.
func Parse(filename string, src []byte) (*Settings, error) {
	var f fileSpec
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", filename, err)
	}
	return f.settings()
}

func (f *fileSpec) settings() (*Settings, error) {
	s := &Settings{}
	seen := make(map[string]bool)
	for _, b := range f.PostTypes {
		if seen[b.Name] {
			return nil, fmt.Errorf("post_type %q declared twice", b.Name)
		}
		seen[b.Name] = true
		pt := rules.PostType{Name: b.Name, Label: b.Label}
		for _, t := range b.Taxonomies {
			pt.Taxonomies = append(pt.Taxonomies, rules.Taxonomy{Name: t.Name, Label: t.Label})
		}
		s.PostTypes = append(s.PostTypes, pt)
	}

	for _, b := range f.Schemas {
		values, err := goValues(b.Values)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", b.Title, err)
		}
		s.Defaults = append(s.Defaults, api.Definition{
			Title:     b.Title,
			Type:      b.Type,
			SubTypes:  b.SubTypes,
			ShowOn:    b.ShowOn.ruleSet(),
			NotShowOn: b.NotShowOn.ruleSet(),
			Values:    values,
		})
	}
	return s, nil
}

// goValues converts an HCL object into plain Go values. Numbers come out as
// float64, like any JSON decode.
func goValues(v cty.Value) (map[string]any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("values must be fully known")
	}
	if t := v.Type(); !t.IsObjectType() && !t.IsMapType() {
		return nil, fmt.Errorf("values must be an object, got %s", t.FriendlyName())
	}
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, fmt.Errorf("encode values: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	return out, nil
}

// Validate reports every default schema whose type the catalog does not
// know. It freezes reg.
func (s *Settings) Validate(reg *catalog.Registry) error {
	var errs []error
	for _, d := range s.Defaults {
		if _, ok := reg.Get(d.Type); !ok {
			errs = append(errs, fmt.Errorf("schema %q: %s: %w", d.Label(), d.Type, catalog.ErrUnknownType))
		}
	}
	return errors.Join(errs...)
}
