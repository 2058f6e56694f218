// Package catalog holds the table of schema types the engine can render.
//
// A Registry is built once at startup: built-in types are loaded from the
// embedded YAML tables, collaborators then register extra types or extend
// existing ones, and the registry is frozen before the first render. After
// Freeze every read is safe from any number of goroutines.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agentic-research/sitegraph/api"
)

var (
	ErrFrozen      = errors.New("catalog is frozen")
	ErrUnknownType = errors.New("unknown schema type")
)

// FieldGenerator produces the field tree of a schema type.
type FieldGenerator func() []api.FieldSpec

// FieldExtender rewrites the field tree of an existing type. Extenders run in
// registration order on the generator's output.
type FieldExtender func([]api.FieldSpec) []api.FieldSpec

// TypeInfo is the listing entry returned by List.
type TypeInfo struct {
	Type   string          `json:"type"`
	Fields []api.FieldSpec `json:"fields"`
}

type entry struct {
	name      string
	title     string
	gen       FieldGenerator
	extenders []FieldExtender
}

// Registry maps schema type names to field generators.
type Registry struct {
	mu       sync.Mutex
	frozen   bool
	commerce bool
	entries  map[string]*entry // lower-cased name -> entry
	order    []string

	// built on Freeze
	defs map[string]api.Definition
}

// Option configures a Registry.
type Option func(*Registry)

// WithCommerce enables the commerce types (Product).
func WithCommerce(enabled bool) Option {
	return func(r *Registry) { r.commerce = enabled }
}

// New creates a registry pre-loaded with the built-in types.
func New(opts ...Option) (*Registry, error) {
	r := &Registry{entries: make(map[string]*entry)}
	for _, o := range opts {
		o(r)
	}
	tables, err := loadBuiltins()
	if err != nil {
		return nil, fmt.Errorf("load built-in types: %w", err)
	}
	for _, t := range tables {
		if t.Commerce && !r.commerce {
			continue
		}
		if err := r.register(t.Type, t.Title, t.generator()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds (or replaces) a schema type.
func (r *Registry) Register(name string, gen FieldGenerator) error {
	return r.register(name, name, gen)
}

func (r *Registry) register(name, title string, gen FieldGenerator) error {
	if name == "" || gen == nil {
		return fmt.Errorf("register %q: name and generator are required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("register %s: %w", name, ErrFrozen)
	}
	key := strings.ToLower(name)
	if e, ok := r.entries[key]; ok {
		e.gen = gen
		e.title = title
		return nil
	}
	r.entries[key] = &entry{name: name, title: title, gen: gen}
	r.order = append(r.order, key)
	return nil
}

// Extend adds or overrides fields on an existing type.
func (r *Registry) Extend(name string, ext FieldExtender) error {
	if ext == nil {
		return fmt.Errorf("extend %q: extender is required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("extend %s: %w", name, ErrFrozen)
	}
	e, ok := r.entries[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("extend %s: %w", name, ErrUnknownType)
	}
	e.extenders = append(e.extenders, ext)
	return nil
}

// Freeze runs every generator and extender once and closes registration.
// Calling it again is a no-op.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freezeLocked()
}

func (r *Registry) freezeLocked() {
	if r.frozen {
		return
	}
	r.defs = make(map[string]api.Definition, len(r.entries))
	for _, key := range r.order {
		e := r.entries[key]
		fields := e.gen()
		for _, ext := range e.extenders {
			fields = ext(fields)
		}
		r.defs[key] = api.Definition{
			Title:  e.title,
			Type:   e.name,
			Fields: fields,
		}
	}
	r.frozen = true
}

// Commerce reports whether the commerce types are loaded.
func (r *Registry) Commerce() bool { return r.commerce }

// Frozen reports whether registration is closed.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

func (r *Registry) snapshot() map[string]api.Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	// The first read closes registration.
	r.freezeLocked()
	return r.defs
}

// Get returns a copy of the definition for a type. Lookup ignores case.
func (r *Registry) Get(name string) (api.Definition, bool) {
	d, ok := r.snapshot()[strings.ToLower(name)]
	if !ok {
		return api.Definition{}, false
	}
	return cloneDefinition(d), true
}

// All returns every definition in registration order.
func (r *Registry) All() []api.Definition {
	defs := r.snapshot()
	out := make([]api.Definition, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, cloneDefinition(defs[key]))
	}
	return out
}

// Types returns the registered type names in registration order.
func (r *Registry) Types() []string {
	defs := r.snapshot()
	names := make([]string, 0, len(defs))
	for _, key := range r.order {
		names = append(names, defs[key].Type)
	}
	return names
}

// List returns type listings sorted by type name.
func (r *Registry) List() []TypeInfo {
	all := r.All()
	out := make([]TypeInfo, len(all))
	for i, d := range all {
		out[i] = TypeInfo{Type: d.Type, Fields: d.Fields}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func cloneDefinition(d api.Definition) api.Definition {
	d.Fields = CloneFields(d.Fields)
	return d
}

// CloneFields deep-copies a field tree.
func CloneFields(fields []api.FieldSpec) []api.FieldSpec {
	if fields == nil {
		return nil
	}
	out := make([]api.FieldSpec, len(fields))
	for i, f := range fields {
		f.Default = cloneValue(f.Default)
		f.Fields = CloneFields(f.Fields)
		out[i] = f
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
