// Package jsontree provides lenient accessors over decoded JSON documents
// (map[string]any trees as produced by encoding/json). D-TRO payloads are
// schema-validated but structurally open, so every accessor tolerates missing
// keys and mistyped nodes by returning a zero value instead of panicking.
package jsontree

import (
	"strings"
	"time"
)

// GetPath walks a dotted path ("source.provision") through nested objects.
// Returns nil when any segment is missing or not an object.
func GetPath(doc map[string]any, path string) any {
	segments := strings.Split(path, ".")
	var current any = doc
	for _, segment := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = obj[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// Object returns the object at path, or nil.
func Object(doc map[string]any, path string) map[string]any {
	obj, _ := GetPath(doc, path).(map[string]any)
	return obj
}

// List returns the array at path, or nil.
func List(doc map[string]any, path string) []any {
	list, _ := GetPath(doc, path).([]any)
	return list
}

// Objects returns the array at path filtered down to its object elements.
func Objects(doc map[string]any, path string) []map[string]any {
	var result []map[string]any
	for _, item := range List(doc, path) {
		if obj, ok := item.(map[string]any); ok {
			result = append(result, obj)
		}
	}
	return result
}

// String returns the string at path, or "".
func String(doc map[string]any, path string) string {
	s, _ := GetPath(doc, path).(string)
	return s
}

// Strings returns the array at path filtered down to its string elements.
func Strings(doc map[string]any, path string) []string {
	var result []string
	for _, item := range List(doc, path) {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// Int returns the number at path truncated to int, or 0. JSON numbers decode
// as float64, but a caller that pre-processed the tree may have stored ints.
func Int(doc map[string]any, path string) int {
	switch v := GetPath(doc, path).(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Float returns the number at path, or 0.
func Float(doc map[string]any, path string) float64 {
	switch v := GetPath(doc, path).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Has reports whether the key at path is present, regardless of its value.
func Has(doc map[string]any, path string) bool {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		_, ok := doc[path]
		return ok
	}
	parent := Object(doc, path[:i])
	if parent == nil {
		return false
	}
	_, ok := parent[path[i+1:]]
	return ok
}

// Time parses the RFC 3339 timestamp at path. Returns nil when the key is
// absent or the value does not parse; date-only values ("2024-01-01") are
// accepted as midnight UTC.
func Time(doc map[string]any, path string) *time.Time {
	s, ok := GetPath(doc, path).(string)
	if !ok {
		return nil
	}
	return ParseTime(s)
}

// ParseTime parses an RFC 3339 timestamp or a bare date.
func ParseTime(s string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
