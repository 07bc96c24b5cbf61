// Package pathutil resolves and writes dotted paths inside nested value trees.
//
// Paths are split on '.' and '/', and bracket indexes are accepted, so
// "collections.tasks[0].title", "collections/tasks/0/title" and
// "collections.tasks.0.title" address the same value.
package pathutil

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Split breaks a path into its segments. Empty segments are dropped.
func Split(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	var segments []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}
	for _, r := range path {
		switch r {
		case '.', '/', '[':
			flush()
		case ']':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return segments
}

// Root returns the first segment of a path, or "" for an empty path.
func Root(path string) string {
	segments := Split(path)
	if len(segments) == 0 {
		return ""
	}
	return segments[0]
}

// Lookup resolves path against root. The boolean is false when any segment misses.
// An empty path resolves to root itself.
func Lookup(root any, path string) (any, bool) {
	return LookupSegments(root, Split(path))
}

// LookupSegments resolves pre-split segments against root.
func LookupSegments(root any, segments []string) (any, bool) {
	current := root
	for _, segment := range segments {
		next, ok := step(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func step(node any, segment string) (any, bool) {
	switch v := node.(type) {
	case nil:
		return nil, false
	case map[string]any:
		value, ok := v[segment]
		return value, ok
	case []any:
		idx, ok := index(segment, len(v))
		if !ok {
			return nil, false
		}
		return v[idx], true
	}

	rv := reflect.ValueOf(node)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		value := rv.MapIndex(reflect.ValueOf(segment).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil, false
		}
		return value.Interface(), true
	case reflect.Slice, reflect.Array:
		idx, ok := index(segment, rv.Len())
		if !ok {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	default:
		return nil, false
	}
}

func index(segment string, length int) (int, bool) {
	idx, err := strconv.Atoi(segment)
	if err != nil {
		return 0, false
	}
	if idx < 0 {
		idx += length
	}
	if idx < 0 || idx >= length {
		return 0, false
	}
	return idx, true
}

// Set writes value at path inside root, creating intermediate maps as needed.
// Intermediate non-map values are replaced. Root is mutated in place.
func Set(root map[string]any, path string, value any) error {
	segments := Split(path)
	if len(segments) == 0 {
		return fmt.Errorf("empty path")
	}
	current := root
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
	return nil
}

// Clone deep-copies maps and slices of the generic value tree.
// Other values are copied by assignment.
func Clone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return CloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Clone(item)
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies a generic map. A nil map yields an empty map.
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}
