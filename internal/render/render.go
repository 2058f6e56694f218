// Package render turns one schema definition into a JSON-LD node.
//
// Every participating field value is run through the placeholder resolver,
// groups are nested (or flattened into their parent), cloneable fields become
// lists, sub-types are merged into @type and empty values are pruned.
package render

import (
	"github.com/agentic-research/sitegraph/api"
	"github.com/agentic-research/sitegraph/internal/resolve"
)

// Issue codes.
const (
	// CodeRequiredEmpty marks a required field that resolved to nothing. The
	// field is still emitted, as an empty string.
	CodeRequiredEmpty = "required_empty"
)

const (
	keyType    = "@type"
	keyID      = "@id"
	keySubType = "@sub_type"
)

// Issue is a non-fatal finding about a rendered node.
type Issue struct {
	Schema string // definition label
	Path   string // JSON Pointer of the field (for example: /author/name)
	Code   string
}

// Renderer renders definitions against one resolver.
type Renderer struct {
	res *resolve.Resolver
}

// New creates a renderer.
func New(res *resolve.Resolver) *Renderer {
	return &Renderer{res: res}
}

// Node renders def as a JSON-LD node with the given @id.
func (r *Renderer) Node(def api.Definition, id string) (map[string]any, []Issue) {
	st := &state{schema: def.Label()}
	values := def.Values
	types := typeSet(r.nodeType(def), def.SubTypes, values[keySubType])

	obj, _ := r.fields(st, def.Fields, values, types, "")

	if _, ok := obj[keyType]; !ok {
		obj[keyType] = def.Type
	}
	obj[keyType] = mergeTypes(obj[keyType], def.SubTypes, r.res.Render(values[keySubType]))
	delete(obj, keySubType)
	obj[keyID] = id
	return obj, st.issues
}

type state struct {
	schema string
	issues []Issue
}

// nodeType is the node's base @type before sub-type merging.
func (r *Renderer) nodeType(def api.Definition) any {
	if v, ok := def.Values[keyType]; ok {
		if t := Prune(r.res.Render(v)); t != nil {
			return t
		}
	}
	for _, f := range def.Fields {
		if f.ID == keyType {
			if t := Prune(r.res.Render(f.Default)); t != nil {
				return t
			}
		}
	}
	return def.Type
}

// fields renders a field list into an object. It also reports how many keys
// other than @type carry a value, so callers can collapse empty groups.
func (r *Renderer) fields(st *state, specs []api.FieldSpec, values map[string]any, types []string, path string) (map[string]any, int) {
	obj := make(map[string]any, len(specs))
	meaningful := 0
	var required []string

	for _, f := range specs {
		if f.Variant != "" && !containsString(types, f.Variant) {
			continue
		}
		override, has := values[f.ID]
		if !f.Required && !f.Visible && !has {
			continue
		}
		if f.Kind == api.KindTitle {
			continue
		}

		fieldPath := path + "/" + f.ID
		var v any
		if f.IsGroup() {
			v = r.group(st, f, override, fieldPath)
		} else {
			raw := f.Default
			if has {
				raw = override
			}
			v = Prune(r.res.Render(raw))
			if f.Cloneable && v != nil {
				v = asList(v)
			}
		}

		if v == nil {
			if f.Required && !f.IsGroup() {
				required = append(required, f.ID)
			}
			continue
		}
		if f.IsGroup() && f.Flatten {
			if m, ok := v.(map[string]any); ok {
				for k, e := range m {
					if k == keyType {
						continue
					}
					obj[k] = e
					meaningful++
				}
				continue
			}
		}
		obj[f.ID] = v
		if f.ID != keyType {
			meaningful++
		}
	}

	// Required fields with no value are emitted empty only when the object
	// itself survives.
	if meaningful > 0 || path == "" {
		for _, id := range required {
			obj[id] = ""
			st.issues = append(st.issues, Issue{Schema: st.schema, Path: path + "/" + id, Code: CodeRequiredEmpty})
		}
	}
	return obj, meaningful
}

// group renders a group field. A cloneable group always yields a list; a
// group whose only key is @type yields nil.
func (r *Renderer) group(st *state, f api.FieldSpec, override any, path string) any {
	if isTemplate(override) {
		if v, ok := r.linked(override); ok {
			if f.Cloneable {
				return asList(v)
			}
			return v
		}
		override = nil
	}
	if !f.Cloneable {
		m, _ := override.(map[string]any)
		return r.groupObject(st, f, m, path)
	}

	var items []map[string]any
	switch o := override.(type) {
	case []any:
		for _, e := range o {
			if m, ok := e.(map[string]any); ok {
				items = append(items, m)
			}
		}
	case map[string]any:
		items = []map[string]any{o}
	default:
		items = []map[string]any{nil}
	}

	out := make([]any, 0, len(items))
	for i, item := range items {
		if m := r.groupObject(st, f, item, path+"/"+itoa(i)); m != nil {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// isTemplate reports whether a group override is a template rather than a
// map (or list of maps) of sub-field values.
func isTemplate(override any) bool {
	switch o := override.(type) {
	case string, []string:
		return true
	case []any:
		for _, e := range o {
			if _, ok := e.(map[string]any); ok {
				return false
			}
		}
		return len(o) > 0
	}
	return false
}

// linked resolves a template override of a group, such as
// "%schemas.person%". It succeeds only when the result is an object or a
// list; anything else leaves the group to its sub-fields.
func (r *Renderer) linked(override any) (any, bool) {
	switch v := Prune(r.res.Render(override)).(type) {
	case map[string]any, []any:
		return v, true
	}
	return nil, false
}

func (r *Renderer) groupObject(st *state, f api.FieldSpec, values map[string]any, path string) any {
	var base any
	if v, ok := values[keyType]; ok {
		base = Prune(r.res.Render(v))
	}
	if base == nil {
		for _, sub := range f.Fields {
			if sub.ID == keyType {
				base = Prune(r.res.Render(sub.Default))
			}
		}
	}
	obj, meaningful := r.fields(st, f.Fields, values, typeSet(base, nil, nil), path)
	if meaningful == 0 {
		return nil
	}
	return obj
}

// typeSet flattens a @type value plus sub-types into a list of names for
// variant matching.
func typeSet(base any, subTypes []string, extra any) []string {
	var out []string
	add := func(v any) {
		switch t := v.(type) {
		case string:
			if t != "" && !containsString(out, t) {
				out = append(out, t)
			}
		case []any:
			for _, e := range t {
				if s, ok := e.(string); ok && s != "" && !containsString(out, s) {
					out = append(out, s)
				}
			}
		}
	}
	add(base)
	for _, s := range subTypes {
		add(s)
	}
	add(extra)
	return out
}

// mergeTypes folds sub-types into @type. Without sub-types @type is left as
// it was.
func mergeTypes(base any, subTypes []string, extra any) any {
	more := typeSet(nil, subTypes, extra)
	if len(more) == 0 {
		return base
	}
	merged := typeSet(base, more, nil)
	out := make([]any, len(merged))
	for i, s := range merged {
		out[i] = s
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func asList(v any) any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{v}
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func itoa(i int) string {
	return resolve.Stringify(i)
}
