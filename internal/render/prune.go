package render

// Prune drops empty values recursively: nil, "", and maps or lists that end
// up empty. Booleans and zero numbers are values and stay. A pruned-away
// value returns nil.
func Prune(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return t
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if p := Prune(e); p != nil {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if e != "" {
				out = append(out, e)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if p := Prune(e); p != nil {
				out[k] = p
			}
		}
		if len(out) == 0 || onlyType(out) {
			return nil
		}
		return out
	default:
		return v
	}
}

// IsEmpty reports whether v prunes away entirely.
func IsEmpty(v any) bool {
	return Prune(v) == nil
}

// onlyType is true for an object that carries nothing but its @type.
func onlyType(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	_, ok := m[keyType]
	return ok
}
