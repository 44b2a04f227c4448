// Package attr implements case-insensitive access to the semi-structured
// SCIM attribute bag: normalized key lookup, dotted-path traversal,
// extension-URN path splitting, and the attribute projection engine.
//
// Values are decoded JSON (string, float64, bool, nil, []interface{},
// map[string]interface{}); everything here pattern-matches on that closed
// set with type switches and never mutates its input unless the function
// name says so.
package attr

import "strings"

// Index maps lower-cased keys of one object to their canonical spelling.
// Build it once per object view instead of scanning keys with a per-lookup
// case fold.
type Index map[string]string

// NewIndex builds the normalized-key index for one object.
func NewIndex(m map[string]interface{}) Index {
	ix := make(Index, len(m))
	for k := range m {
		ix[strings.ToLower(k)] = k
	}
	return ix
}

// Canonical returns the canonical spelling of a case-insensitive key.
func (ix Index) Canonical(name string) (string, bool) {
	k, ok := ix[strings.ToLower(name)]
	return k, ok
}

// Lookup fetches a single key from an object, matching case-insensitively.
func Lookup(m map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	k, ok := NewIndex(m).Canonical(name)
	if !ok {
		return nil, false
	}
	return m[k], true
}

// Get traverses a dotted path through nested objects. Traversal stops with
// ok=false as soon as a segment is missing or the current value is not an
// object.
func Get(m map[string]interface{}, segments []string) (interface{}, bool) {
	var cur interface{} = m
	for _, seg := range segments {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = Lookup(obj, seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes a value at a dotted path, creating intermediate objects as
// needed. Existing keys are reused with their canonical casing so a write
// through "NAME.familyname" lands on an existing "name" object.
func Set(m map[string]interface{}, segments []string, value interface{}) {
	cur := m
	for _, seg := range segments[:len(segments)-1] {
		key := seg
		if canon, ok := NewIndex(cur).Canonical(seg); ok {
			key = canon
		}
		next, ok := cur[key].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[key] = next
		}
		cur = next
	}
	last := segments[len(segments)-1]
	if canon, ok := NewIndex(cur).Canonical(last); ok {
		last = canon
	}
	cur[last] = value
}

// Remove deletes the value at a dotted path. Removing a missing path is a
// no-op; it reports whether something was deleted.
func Remove(m map[string]interface{}, segments []string) bool {
	cur := m
	for _, seg := range segments[:len(segments)-1] {
		canon, ok := NewIndex(cur).Canonical(seg)
		if !ok {
			return false
		}
		next, ok := cur[canon].(map[string]interface{})
		if !ok {
			return false
		}
		cur = next
	}
	canon, ok := NewIndex(cur).Canonical(segments[len(segments)-1])
	if !ok {
		return false
	}
	delete(cur, canon)
	return true
}

// Clone deep-copies a decoded JSON value.
func Clone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// CloneDocument deep-copies a resource representation.
func CloneDocument(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return Clone(m).(map[string]interface{})
}

// IsEmpty reports whether a value counts as "empty" for the RFC 7644
// §3.5.2.3 empty-value removal rule: null, empty string, empty array or
// object, or an object whose discriminating "value" sub-field is empty.
func IsEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		if len(t) == 0 {
			return true
		}
		if inner, ok := Lookup(t, "value"); ok {
			return IsEmpty(inner)
		}
		return false
	default:
		return false
	}
}

// SplitURN splits an extension-qualified attribute path into its schema
// URN and the (possibly empty) attribute remainder. known lists the schema
// URNs registered for the resource type; a known URN wins over the
// structural fallback, which splits a "urn:..." path at its last colon.
func SplitURN(path string, known []string) (urn, rest string, ok bool) {
	lower := strings.ToLower(path)
	if !strings.HasPrefix(lower, "urn:") {
		return "", "", false
	}
	for _, u := range known {
		ul := strings.ToLower(u)
		if lower == ul {
			return u, "", true
		}
		if strings.HasPrefix(lower, ul+":") {
			return u, path[len(u)+1:], true
		}
	}
	idx := strings.LastIndex(path, ":")
	if idx < 0 || idx == len(path)-1 {
		return path, "", true
	}
	return path[:idx], path[idx+1:], true
}

// SplitPath splits a dotted attribute path into segments. An extension URN
// prefix, when present, becomes the first segment as a whole.
func SplitPath(path string, known []string) []string {
	if urn, rest, ok := SplitURN(path, known); ok {
		if rest == "" {
			return []string{urn}
		}
		return append([]string{urn}, strings.Split(rest, ".")...)
	}
	return strings.Split(path, ".")
}
