package attr

import (
	"strings"

	"github.com/pranems/SCIMServer-sub002/internal/scim/policy"
)

// Project applies the attributes / excludedAttributes projection to a
// resource representation and returns a new document; the input is never
// modified. Rules per RFC 7644 §3.4.2.5 / §3.9:
//
//   - attributes marked never-returned (password) are stripped first,
//     unconditionally;
//   - id, schemas, and meta always survive and cannot be excluded;
//   - a non-empty inclusion list wins entirely, the exclusion list is then
//     ignored;
//   - dotted names narrow to just the named sub-attribute, inside objects
//     and inside each element of a multi-valued attribute;
//   - all name matching is case-insensitive.
func Project(doc map[string]interface{}, include, exclude []string, pol *policy.Table, known []string) map[string]interface{} {
	out := CloneDocument(doc)

	for _, k := range keysOf(out) {
		if pol.NeverReturned(k) {
			delete(out, k)
		}
	}

	switch {
	case len(include) > 0:
		applyInclude(out, include, pol, known)
	case len(exclude) > 0:
		applyExclude(out, exclude, pol, known)
	}
	return out
}

// request collects what was asked for under one top-level attribute.
type request struct {
	whole bool
	subs  [][]string
}

func applyInclude(out map[string]interface{}, include []string, pol *policy.Table, known []string) {
	reqs := make(map[string]*request, len(include))
	for _, name := range include {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		segs := SplitPath(name, known)
		top := strings.ToLower(segs[0])
		r := reqs[top]
		if r == nil {
			r = &request{}
			reqs[top] = r
		}
		if len(segs) == 1 {
			r.whole = true
		} else {
			r.subs = append(r.subs, segs[1:])
		}
	}

	for _, k := range keysOf(out) {
		if pol.AlwaysReturned(k) {
			continue
		}
		r, ok := reqs[strings.ToLower(k)]
		if !ok {
			delete(out, k)
			continue
		}
		if r.whole {
			continue
		}
		out[k] = narrow(out[k], r.subs)
	}
}

func applyExclude(out map[string]interface{}, exclude []string, pol *policy.Table, known []string) {
	for _, name := range exclude {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		segs := SplitPath(name, known)
		if pol.AlwaysReturned(segs[0]) {
			continue
		}
		if len(segs) == 1 {
			if canon, ok := NewIndex(out).Canonical(segs[0]); ok {
				delete(out, canon)
			}
			continue
		}
		canon, ok := NewIndex(out).Canonical(segs[0])
		if !ok {
			continue
		}
		out[canon] = removeSub(out[canon], segs[1:])
	}
}

// narrow keeps only the requested sub-attribute paths of a value. Arrays
// narrow element-wise; non-object values pass through unchanged.
func narrow(v interface{}, subs [][]string) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		kept := make(map[string]interface{})
		bySeg := make(map[string][][]string)
		for _, sub := range subs {
			bySeg[strings.ToLower(sub[0])] = append(bySeg[strings.ToLower(sub[0])], sub[1:])
		}
		ix := NewIndex(t)
		for seg, rests := range bySeg {
			canon, ok := ix.Canonical(seg)
			if !ok {
				continue
			}
			deeper := nonEmptyPaths(rests)
			if len(deeper) < len(rests) {
				// at least one request named this sub-attribute whole
				kept[canon] = t[canon]
			} else {
				kept[canon] = narrow(t[canon], deeper)
			}
		}
		return kept
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = narrow(e, subs)
		}
		return out
	default:
		return v
	}
}

// removeSub deletes a sub-attribute path from a value, recursing through
// arrays element-wise.
func removeSub(v interface{}, segs []string) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		Remove(t, segs)
		return t
	case []interface{}:
		for i, e := range t {
			t[i] = removeSub(e, segs)
		}
		return t
	default:
		return v
	}
}

func nonEmptyPaths(paths [][]string) [][]string {
	out := paths[:0]
	for _, p := range paths {
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// keysOf snapshots map keys so callers can delete while iterating.
func keysOf(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
