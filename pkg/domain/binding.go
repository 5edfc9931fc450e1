package domain

import (
	"fmt"
	"strings"
)

// BindingPrefix marks a parameter value that refers to another node's
// parameter, written "$label.key".
const BindingPrefix = "$"

// ParseBinding splits a binding reference. ok is false for plain values.
func ParseBinding(v any) (label, key string, ok bool) {
	s, isString := v.(string)
	if !isString || !strings.HasPrefix(s, BindingPrefix) {
		return "", "", false
	}
	ref := strings.TrimPrefix(s, BindingPrefix)
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}

// ResolveParams returns a copy of n's parameters with every binding
// replaced by the current value of the referenced parameter in root.
func ResolveParams(root, n *Node) (Params, error) {
	out := n.Params.Clone()
	for k, v := range n.Params {
		label, key, ok := ParseBinding(v)
		if !ok {
			continue
		}
		value, err := lookupBinding(root, label, key)
		if err != nil {
			return nil, fmt.Errorf("param %q of %q: %w", k, n.Label, err)
		}
		out[k] = value
	}
	return out, nil
}

// CheckBindings reports the first binding in the subtree of root that does
// not resolve against root.
func CheckBindings(root *Node) error {
	var err error
	root.Walk(func(n *Node) bool {
		if err != nil {
			return false
		}
		for k, v := range n.Params {
			label, key, ok := ParseBinding(v)
			if !ok {
				continue
			}
			if _, lerr := lookupBinding(root, label, key); lerr != nil {
				err = fmt.Errorf("param %q of %q: %w", k, n.Label, lerr)
				return false
			}
		}
		return true
	})
	return err
}

// References reports whether any node in root binds to a parameter of label.
func References(root *Node, label string) bool {
	found := false
	root.Walk(func(n *Node) bool {
		for _, v := range n.Params {
			if l, _, ok := ParseBinding(v); ok && l == label {
				found = true
			}
		}
		return !found
	})
	return found
}

func lookupBinding(root *Node, label, key string) (any, error) {
	target := root.Find(label)
	if target == nil {
		return nil, fmt.Errorf("%w: no node labelled %q", ErrMissingBinding, label)
	}
	value, ok := target.Params[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no param %q", ErrMissingBinding, label, key)
	}
	if _, _, chained := ParseBinding(value); chained {
		return nil, fmt.Errorf("%w: %s%s.%s is itself a binding", ErrMissingBinding, BindingPrefix, label, key)
	}
	return value, nil
}
