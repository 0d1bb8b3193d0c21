package tree

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/thoreinstein/strata/pkg/keypath"
)

// Clone returns a deep copy of v in canonical shape.
//
// Decoders hand back a variety of container types. Clone converts
// map[any]any and any other map keyed by strings into map[string]any, and
// typed slices into []any, so the rest of the package only has to handle
// the canonical shapes. Scalars are returned as they are.
func Clone(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = Clone(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprint(k)] = Clone(child)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = child
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = child
		}
		return out
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Clone(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Clone(rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}

// Leaf is a scalar or sequence found while flattening a tree.
type Leaf struct {
	Path  keypath.Path
	Value any
}

// Flatten lists every non-mapping value in t together with its path, sorted
// by rendered key. Empty mappings produce no leaves. A non-mapping root is
// returned as a single leaf at the root path.
func Flatten(t any) []Leaf {
	var leaves []Leaf
	flatten(nil, t, &leaves)
	sort.Slice(leaves, func(i, j int) bool {
		return leaves[i].Path.String() < leaves[j].Path.String()
	})
	return leaves
}

func flatten(prefix keypath.Path, v any, leaves *[]Leaf) {
	m, ok := v.(map[string]any)
	if !ok {
		*leaves = append(*leaves, Leaf{Path: prefix, Value: v})
		return
	}
	for k, child := range m {
		flatten(keypath.Join(prefix, k), child, leaves)
	}
}

// Equal reports whether a and b hold the same configuration value.
func Equal(a, b any) bool {
	return reflect.DeepEqual(Clone(a), Clone(b))
}
