// Package extract locates record arrays and pagination cursors inside
// decoded JSON payloads using dot-separated key paths (e.g. "data.items").
//
// Both entry points are pure: they never mutate the payload and calling
// them twice on the same inputs yields identical results.
package extract

import (
	"encoding/json"
	"fmt"
)

// PathError reports a dot-path walk that could not be completed against
// the shape of the payload.
type PathError struct {
	// Path is the full dot-separated path that was requested.
	Path string

	// Segment is the path segment at which the walk failed.
	Segment string

	// Reason describes why the walk failed at Segment.
	Reason string
}

// Error implements the error interface.
func (e *PathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("extract: %s", e.Reason)
	}
	return fmt.Sprintf("extract: path %q, segment %q: %s", e.Path, e.Segment, e.Reason)
}

// Records returns the record objects located at path within body.
//
// An empty path means body itself must already be a JSON array. Otherwise
// the path is walked key by key through nested JSON objects; a missing key,
// a non-object intermediate value, or a final value that is not an array
// returns a PathError naming the offending segment.
//
// Array items that are not objects are wrapped as {"value": item} so that
// providers returning arrays of scalars still yield one record per item.
func Records(body any, path string) ([]map[string]any, error) {
	value := body
	if path != "" {
		var err *PathError
		value, err = walk(body, path)
		if err != nil {
			return nil, err
		}
	}

	list, ok := value.([]any)
	if !ok {
		segment := lastSegment(path)
		return nil, &PathError{Path: path, Segment: segment, Reason: fmt.Sprintf("expected JSON array, got %T", value)}
	}

	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			records = append(records, obj)
			continue
		}
		records = append(records, map[string]any{"value": item})
	}
	return records, nil
}

// Cursor resolves path within body and returns the next-cursor value.
//
// A missing key, a JSON null, or an empty string all mean "no further
// cursor": Cursor returns (nil, false, nil) and the caller should stop
// paginating. Any other scalar (string, number, boolean) is returned
// verbatim with no type coercion. A non-object intermediate value or a
// cursor that resolves to an object or array is a PathError, since such a
// payload cannot carry a usable cursor.
func Cursor(body any, path string) (any, bool, error) {
	if path == "" {
		return nil, false, nil
	}
	current := body
	for _, segment := range splitPath(path) {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false, &PathError{Path: path, Segment: segment, Reason: fmt.Sprintf("expected JSON object, got %T", current)}
		}
		next, present := obj[segment]
		if !present {
			return nil, false, nil
		}
		current = next
		if current == nil {
			// Null mid-walk or at the leaf both terminate pagination.
			return nil, false, nil
		}
	}

	switch v := current.(type) {
	case string:
		if v == "" {
			return nil, false, nil
		}
		return v, true, nil
	case float64, bool, int, int64, json.Number:
		return v, true, nil
	default:
		return nil, false, &PathError{Path: path, Segment: lastSegment(path), Reason: fmt.Sprintf("cursor must be a scalar, got %T", current)}
	}
}

// walk resolves a dot path through nested JSON objects.
func walk(body any, path string) (any, *PathError) {
	current := body
	for _, segment := range splitPath(path) {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, &PathError{Path: path, Segment: segment, Reason: fmt.Sprintf("expected JSON object, got %T", current)}
		}
		next, present := obj[segment]
		if !present {
			return nil, &PathError{Path: path, Segment: segment, Reason: "key not found"}
		}
		current = next
	}
	return current, nil
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	return append(segments, path[start:])
}

func lastSegment(path string) string {
	segments := splitPath(path)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
