package domain

// Params maps parameter names to bound values.
type Params map[string]any

// Clone returns a deep copy. Nested maps and slices are copied so that a
// clone can be mutated without touching the original.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = CloneValue(v)
	}
	return out
}

// Merge returns a copy of p with overrides applied on top.
func (p Params) Merge(overrides Params) Params {
	out := p.Clone()
	for k, v := range overrides {
		out[k] = CloneValue(v)
	}
	return out
}

// Keys returns the parameter names in no particular order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}

// CloneValue deep-copies maps and slices and returns other values as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Params(t).Clone())
	case Params:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}
