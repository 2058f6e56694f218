package api

// FieldKind classifies a node in a schema field tree.
type FieldKind string

const (
	// KindScalar is a plain value (string, number, list of strings).
	KindScalar FieldKind = "scalar"
	// KindGroup nests sub-fields into an object.
	KindGroup FieldKind = "group"
	// KindHidden is emitted but never edited (e.g. "@type" tags).
	KindHidden FieldKind = "hidden"
	// KindTitle is internal bookkeeping and is never emitted.
	KindTitle FieldKind = "title"
)

// FieldSpec is one node of a schema type's field tree.
type FieldSpec struct {
	// ID is the output key (e.g. "headline", "@type").
	ID   string    `json:"id" yaml:"id"`
	Kind FieldKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Default is the value used when the instance has no override.
	// Strings may carry %namespace.path% placeholders.
	Default   any  `json:"default,omitempty" yaml:"default,omitempty"`
	Required  bool `json:"required,omitempty" yaml:"required,omitempty"`
	Visible   bool `json:"visible,omitempty" yaml:"visible,omitempty"`
	Cloneable bool `json:"cloneable,omitempty" yaml:"cloneable,omitempty"`
	// Flatten merges a group's keys into its parent object.
	Flatten bool `json:"flatten,omitempty" yaml:"flatten,omitempty"`
	// Fields are the sub-fields of a group.
	Fields []FieldSpec `json:"fields,omitempty" yaml:"fields,omitempty"`
	// Variant restricts the field to parents whose @type equals it.
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty"`
}

// IsGroup reports whether the field nests sub-fields.
func (f FieldSpec) IsGroup() bool { return f.Kind == KindGroup }

// RuleSet is a list of rule tokens plus literal entity references.
type RuleSet struct {
	Rules       []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	SpecificIDs []string `json:"specific_ids,omitempty" yaml:"specific_ids,omitempty"`
}

// Empty reports whether the set holds neither rules nor specific ids.
func (r RuleSet) Empty() bool {
	return len(r.Rules) == 0 && len(r.SpecificIDs) == 0
}

// Definition is one schema instance: a catalog type, its field tree and the
// rules deciding where it is visible.
type Definition struct {
	// Title is the human label; it seeds the node's @id slug.
	Title string `json:"title"`
	// Type is the catalog type name (e.g. "Article").
	Type string `json:"type"`
	// SubTypes are merged with Type into an array-valued @type.
	SubTypes  []string    `json:"sub_types,omitempty"`
	ShowOn    RuleSet     `json:"show_on"`
	NotShowOn RuleSet     `json:"not_show_on"`
	Fields    []FieldSpec `json:"fields,omitempty"`
	// Values overrides field defaults, keyed by field id. Group overrides
	// are maps; cloneable overrides may be lists.
	Values map[string]any `json:"values,omitempty"`
}

// Label returns the title, falling back to the type name.
func (d Definition) Label() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Type
}
