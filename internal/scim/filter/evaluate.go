package filter

import (
	"strings"

	"github.com/pranems/SCIMServer-sub002/internal/scim/attr"
	"github.com/pranems/SCIMServer-sub002/internal/scim/policy"
)

// Evaluate applies a filter AST to a resource representation. It is a pure
// function: neither the AST nor the document is modified, so it is safe on
// any number of concurrent requests.
//
// Attribute paths resolve case-insensitively at every segment and may take
// three shapes: simple key, dotted nested key, or extension-URN-qualified
// key (known lists the schema URNs registered for the resource type). When
// a path crosses a multi-valued attribute, a comparison matches if any
// element matches (RFC 7644 §3.4.2.2). String comparison case sensitivity
// comes from the policy table.
func Evaluate(e Expr, doc map[string]interface{}, pol *policy.Table, known []string) (bool, error) {
	ev := &evaluator{pol: pol, known: known}
	return ev.eval(e, doc, "")
}

// EvaluateWithin evaluates a filter against a single element of the named
// multi-valued attribute, so the policy lookup for an inner comparison on
// "value" resolves as "<parent>.value". The patch executor uses this to
// match value-path targets with the same comparator as query filters.
func EvaluateWithin(e Expr, parent string, elem map[string]interface{}, pol *policy.Table, known []string) (bool, error) {
	ev := &evaluator{pol: pol, known: known}
	return ev.eval(e, elem, parent)
}

type evaluator struct {
	pol   *policy.Table
	known []string
}

func (ev *evaluator) eval(e Expr, doc map[string]interface{}, prefix string) (bool, error) {
	switch n := e.(type) {
	case *Logical:
		left, err := ev.eval(n.Left, doc, prefix)
		if err != nil {
			return false, err
		}
		if n.Op == OpAnd && !left {
			return false, nil
		}
		if n.Op == OpOr && left {
			return true, nil
		}
		return ev.eval(n.Right, doc, prefix)

	case *Not:
		inner, err := ev.eval(n.Expr, doc, prefix)
		if err != nil {
			return false, err
		}
		return !inner, nil

	case *Compare:
		return ev.evalCompare(n, doc, prefix), nil

	case *ValuePath:
		return ev.evalValuePath(n, doc, prefix)

	default:
		return false, nil
	}
}

func (ev *evaluator) evalCompare(n *Compare, doc map[string]interface{}, prefix string) bool {
	candidates := ev.resolve(doc, n.Path)

	if n.Op == OpPr {
		for _, v := range candidates {
			if present(v) {
				return true
			}
		}
		return false
	}

	caseExact := ev.pol.CaseExact(joinPath(prefix, n.Path))
	for _, v := range candidates {
		if elems, ok := v.([]interface{}); ok {
			for _, e := range elems {
				if matchValue(n.Op, e, n.Value, caseExact) {
					return true
				}
			}
			continue
		}
		if matchValue(n.Op, v, n.Value, caseExact) {
			return true
		}
	}
	return false
}

func (ev *evaluator) evalValuePath(n *ValuePath, doc map[string]interface{}, prefix string) (bool, error) {
	for _, v := range ev.resolve(doc, n.Path) {
		var elems []interface{}
		switch t := v.(type) {
		case []interface{}:
			elems = t
		case map[string]interface{}:
			// single-valued complex attribute behaves as a one-element list
			elems = []interface{}{t}
		}
		for _, e := range elems {
			m, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			match, err := ev.eval(n.Filter, m, joinPath(prefix, n.Path))
			if err != nil {
				return false, err
			}
			if match {
				return true, nil
			}
		}
	}
	return false, nil
}

// resolve walks an attribute path through the document, fanning out over
// array elements at every step, and returns the resolved leaf values.
func (ev *evaluator) resolve(doc map[string]interface{}, path string) []interface{} {
	segs := attr.SplitPath(path, ev.known)
	cur := []interface{}{doc}
	for _, seg := range segs {
		var next []interface{}
		for _, c := range cur {
			switch t := c.(type) {
			case map[string]interface{}:
				if v, ok := attr.Lookup(t, seg); ok {
					next = append(next, v)
				}
			case []interface{}:
				for _, e := range t {
					if m, ok := e.(map[string]interface{}); ok {
						if v, ok := attr.Lookup(m, seg); ok {
							next = append(next, v)
						}
					}
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		cur = next
	}
	return cur
}

// matchValue applies one comparison operator to a single resolved value.
func matchValue(op Operator, v, lit interface{}, caseExact bool) bool {
	switch op {
	case OpEq:
		return equalValue(v, lit, caseExact)
	case OpNe:
		return !equalValue(v, lit, caseExact)
	case OpCo, OpSw, OpEw:
		vs, ok1 := v.(string)
		ls, ok2 := lit.(string)
		if !ok1 || !ok2 {
			return false
		}
		if !caseExact {
			vs, ls = strings.ToLower(vs), strings.ToLower(ls)
		}
		switch op {
		case OpCo:
			return strings.Contains(vs, ls)
		case OpSw:
			return strings.HasPrefix(vs, ls)
		default:
			return strings.HasSuffix(vs, ls)
		}
	case OpGt, OpGe, OpLt, OpLe:
		cmp, ok := orderValues(v, lit, caseExact)
		if !ok {
			return false
		}
		switch op {
		case OpGt:
			return cmp > 0
		case OpGe:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	}
	return false
}

func equalValue(v, lit interface{}, caseExact bool) bool {
	switch l := lit.(type) {
	case nil:
		return v == nil
	case string:
		s, ok := v.(string)
		if !ok {
			return false
		}
		if caseExact {
			return s == l
		}
		return strings.EqualFold(s, l)
	case float64:
		n, ok := v.(float64)
		return ok && n == l
	case bool:
		b, ok := v.(bool)
		return ok && b == l
	default:
		return false
	}
}

// orderValues compares two values for the ordering operators: numbers
// numerically, strings lexicographically (case-folded unless exact, which
// also gives RFC 3339 timestamps their natural order). Booleans and
// structured values have no order.
func orderValues(v, lit interface{}, caseExact bool) (int, bool) {
	switch l := lit.(type) {
	case float64:
		n, ok := v.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case n < l:
			return -1, true
		case n > l:
			return 1, true
		default:
			return 0, true
		}
	case string:
		s, ok := v.(string)
		if !ok {
			return 0, false
		}
		if !caseExact {
			s, l = strings.ToLower(s), strings.ToLower(l)
		}
		return strings.Compare(s, l), true
	default:
		return 0, false
	}
}

// present implements "pr": non-null and, for strings, arrays, and objects,
// non-empty.
func present(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

func joinPath(prefix, path string) string {
	if prefix == "" {
		return path
	}
	return prefix + "." + path
}
