// Package tree implements persistent operations over configuration trees.
//
// A configuration value is one of: a scalar (string, bool, number or nil for
// null), a sequence ([]any) or a mapping (map[string]any). Functions in this
// package never mutate their arguments. Each returns a new root in which the
// nodes along the addressed path are copied and every untouched sub-tree is
// shared with the input.
//
// Absence is reported through a separate found flag rather than a sentinel
// value, so a stored nil (null) and a missing key remain distinguishable.
package tree

import (
	"strconv"

	"github.com/thoreinstein/strata/pkg/keypath"
)

// IsMergeable reports whether v is a mapping. Sequences, scalars and nil
// are not mergeable.
func IsMergeable(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// Get walks t along p. It reports false as soon as a segment is missing or
// the current node cannot be indexed. The root path returns t itself.
func Get(p keypath.Path, t any) (any, bool) {
	current := t
	for _, seg := range p {
		next, ok := child(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Set returns a tree in which the value at p is v.
//
// The root path returns v. Otherwise every intermediate segment that is
// missing, or present but not a mapping, is replaced by a fresh mapping.
func Set(p keypath.Path, t any, v any) any {
	if len(p) == 0 {
		return v
	}
	return setAt(p, t, func(any, bool) any { return v })
}

// Clear returns a tree without the value at p.
//
// Clearing the root reports false: the whole tree is gone. When an
// intermediate segment cannot be reached the input is returned unchanged.
// Clearing a sequence index leaves a nil in that slot so sibling indexes
// keep their positions.
func Clear(p keypath.Path, t any) (any, bool) {
	if len(p) == 0 {
		return nil, false
	}
	out, _ := clearAt(p, t)
	return out, true
}

// Merge returns a tree in which v has been deep-folded into the value at p.
// The root path folds t and v directly. Otherwise the path to the parent is
// materialized exactly as Set does.
func Merge(p keypath.Path, t any, v any) any {
	if len(p) == 0 {
		out, _ := MergeObjects(t, v)
		return out
	}
	return setAt(p, t, func(existing any, found bool) any {
		if !found {
			return v
		}
		out, _ := MergeObjects(existing, v)
		return out
	})
}

// MergeObjects folds values from left to right.
//
// When both the accumulator and the next element are mappings, the element's
// keys are overlaid onto the accumulator, recursing only where the
// accumulator already holds a mapping at that key. Any element that is not a
// mapping replaces the accumulator outright, so scalars and sequences shadow
// everything before them. Sequences are never concatenated.
//
// An empty list reports false.
func MergeObjects(values ...any) (any, bool) {
	if len(values) == 0 {
		return nil, false
	}

	acc := values[0]
	for _, v := range values[1:] {
		acc = fold(acc, v)
	}
	return acc, true
}

func fold(acc, v any) any {
	accMap, ok := acc.(map[string]any)
	if !ok {
		return v
	}
	vMap, ok := v.(map[string]any)
	if !ok {
		return v
	}

	out := make(map[string]any, len(accMap)+len(vMap))
	for k, existing := range accMap {
		out[k] = existing
	}
	for k, incoming := range vMap {
		if existing, ok := out[k]; ok && IsMergeable(existing) {
			out[k] = fold(existing, incoming)
			continue
		}
		out[k] = incoming
	}
	return out
}

// setAt copies the mappings along p and stores fn(existing) at the last
// segment.
func setAt(p keypath.Path, t any, fn func(existing any, found bool) any) any {
	node, ok := t.(map[string]any)
	if !ok {
		node = map[string]any{}
	}
	out := copyMap(node)

	key := p[0]
	if len(p) == 1 {
		existing, found := out[key]
		out[key] = fn(existing, found)
		return out
	}

	out[key] = setAt(p[1:], out[key], fn)
	return out
}

// clearAt returns the tree with the last segment of p removed and whether
// anything changed.
func clearAt(p keypath.Path, t any) (any, bool) {
	key := p[0]

	if len(p) == 1 {
		switch node := t.(type) {
		case map[string]any:
			if _, ok := node[key]; !ok {
				return t, false
			}
			out := copyMap(node)
			delete(out, key)
			return out, true
		case []any:
			idx, ok := index(node, key)
			if !ok {
				return t, false
			}
			out := make([]any, len(node))
			copy(out, node)
			out[idx] = nil
			return out, true
		default:
			return t, false
		}
	}

	next, ok := child(t, key)
	if !ok {
		return t, false
	}
	updated, changed := clearAt(p[1:], next)
	if !changed {
		return t, false
	}

	switch node := t.(type) {
	case map[string]any:
		out := copyMap(node)
		out[key] = updated
		return out, true
	case []any:
		idx, _ := index(node, key)
		out := make([]any, len(node))
		copy(out, node)
		out[idx] = updated
		return out, true
	default:
		return t, false
	}
}

// child returns the value stored under seg in node.
func child(node any, seg string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		v, ok := n[seg]
		return v, ok
	case []any:
		idx, ok := index(n, seg)
		if !ok {
			return nil, false
		}
		return n[idx], true
	default:
		return nil, false
	}
}

func index(s []any, seg string) (int, bool) {
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 || idx >= len(s) {
		return 0, false
	}
	// reject forms such as "+1" or "01" that are not canonical indexes
	if strconv.Itoa(idx) != seg {
		return 0, false
	}
	return idx, true
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
