// Package resolve substitutes %namespace.path% placeholders with values from
// a render context.
//
// Substitution is recursive: a resolved value may itself hold placeholders,
// which are expanded in turn. Expansion is bounded twice. A token that is
// already being expanded further up the chain is left as literal text, and
// nothing is expanded beyond the maximum depth. Both cases fail closed: the
// unresolved token is returned as-is. The total number of substitutions is
// capped by a Budget, and a done context stops expansion the same way.
package resolve

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/ohler55/ojg/jp"
)

const (
	// DefaultMaxDepth bounds nested expansion.
	DefaultMaxDepth = 8
	// DefaultStepBudget bounds substitutions when no budget is shared in.
	// Depth alone does not bound a chain that fans out at every level.
	DefaultStepBudget = 10000

	// ctxEvery is how many substitutions run between context checks.
	ctxEvery = 64
)

var tokenRe = regexp.MustCompile(`%([A-Za-z_@][\w@-]*(?:\.[\w@-]+)*)%`)

// Budget caps the number of token substitutions across a whole render pass.
// It is not safe for concurrent use; a render pass is single-threaded.
type Budget struct {
	remaining int
	limited   bool
}

// NewBudget returns a budget of n substitutions; n <= 0 means unlimited.
func NewBudget(n int) *Budget {
	return &Budget{remaining: n, limited: n > 0}
}

func (b *Budget) take() bool {
	if b == nil || !b.limited {
		return true
	}
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Exhausted reports whether a limited budget has been used up.
func (b *Budget) Exhausted() bool {
	return b != nil && b.limited && b.remaining <= 0
}

// Resolver expands placeholders against one render context. Compiled paths
// are memoized per resolver, so a resolver lives no longer than a render.
type Resolver struct {
	data     map[string]any
	maxDepth int
	budget   *Budget
	paths    map[string]jp.Expr

	ctx   context.Context
	steps int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth sets the expansion depth limit.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// WithBudget shares a substitution budget with the resolver. Without one the
// resolver gets its own budget of DefaultStepBudget.
func WithBudget(b *Budget) Option {
	return func(r *Resolver) {
		if b != nil {
			r.budget = b
		}
	}
}

// WithContext stops expansion once ctx is done. Tokens not yet expanded are
// left literal.
func WithContext(ctx context.Context) Option {
	return func(r *Resolver) { r.ctx = ctx }
}

// New creates a resolver over data.
func New(data map[string]any, opts ...Option) *Resolver {
	r := &Resolver{
		data:     data,
		maxDepth: DefaultMaxDepth,
		budget:   NewBudget(DefaultStepBudget),
		paths:    make(map[string]jp.Expr),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render returns v with every placeholder replaced. Containers are copied;
// v itself is never modified. A string that is exactly one placeholder takes
// the resolved value's type, so "%current.breadcrumbs%" becomes a list.
func (r *Resolver) Render(v any) any {
	return r.render(v, 0, nil)
}

// Lookup walks the context along a dotted path. Numeric segments index lists.
func (r *Resolver) Lookup(path string) (any, bool) {
	x, ok := r.paths[path]
	if !ok {
		x = compile(path)
		r.paths[path] = x
	}
	res := x.Get(r.data)
	if len(res) == 0 {
		return nil, false
	}
	return res[0], true
}

// step reports whether one more substitution may run.
func (r *Resolver) step() bool {
	if r.ctx != nil && r.steps%ctxEvery == 0 && r.ctx.Err() != nil {
		return false
	}
	r.steps++
	return r.budget.take()
}

// Stopped reports whether expansion was cut short by the budget or the
// context.
func (r *Resolver) Stopped() bool {
	return r.budget.Exhausted() || (r.ctx != nil && r.ctx.Err() != nil)
}

func compile(path string) jp.Expr {
	segs := strings.Split(path, ".")
	x := make(jp.Expr, 0, len(segs))
	for _, seg := range segs {
		if n, err := strconv.Atoi(seg); err == nil && n >= 0 {
			x = append(x, jp.Nth(n))
			continue
		}
		x = append(x, jp.Child(seg))
	}
	return x
}

func (r *Resolver) render(v any, depth int, seen []string) any {
	switch t := v.(type) {
	case string:
		return r.renderString(t, depth, seen)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = r.render(e, depth, seen)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = r.render(e, depth, seen)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = r.render(e, depth, seen)
		}
		return out
	default:
		return v
	}
}

func (r *Resolver) renderString(s string, depth int, seen []string) any {
	if !strings.Contains(s, "%") {
		return s
	}
	locs := tokenRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 || depth >= r.maxDepth {
		return s
	}

	if len(locs) == 1 && locs[0][0] == 0 && locs[0][1] == len(s) {
		name := s[locs[0][2]:locs[0][3]]
		if contains(seen, name) || !r.step() {
			return s
		}
		val, ok := r.Lookup(name)
		if !ok || val == nil {
			return ""
		}
		return r.render(val, depth+1, with(seen, name))
	}

	var b strings.Builder
	last := 0
	next := seen
	for _, loc := range locs {
		b.WriteString(s[last:loc[0]])
		last = loc[1]
		name := s[loc[2]:loc[3]]
		if contains(seen, name) || !r.step() {
			b.WriteString(s[loc[0]:loc[1]])
			continue
		}
		val, _ := r.Lookup(name)
		b.WriteString(Stringify(r.render(val, depth+1, with(seen, name))))
		next = with(next, name)
	}
	b.WriteString(s[last:])

	out := b.String()
	if out == s {
		return out
	}
	// A substitution can splice a new token together; expand once more.
	return r.render(out, depth+1, next)
}

// Stringify formats a resolved value for interpolation into a larger string.
// Lists are joined with ", " and objects are encoded as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := Stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func contains(seen []string, name string) bool {
	for _, s := range seen {
		if s == name {
			return true
		}
	}
	return false
}

// with returns seen plus name without sharing seen's backing array.
func with(seen []string, name string) []string {
	out := make([]string, len(seen), len(seen)+1)
	copy(out, seen)
	return append(out, name)
}
