package patch

import (
	"strings"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
	"github.com/pranems/SCIMServer-sub002/internal/scim/attr"
	"github.com/pranems/SCIMServer-sub002/internal/scim/filter"
	"github.com/pranems/SCIMServer-sub002/internal/scim/policy"
)

// Executor applies PATCH operation lists to resource representations. It
// is a pure function of "current representation + operations": the input
// document is never modified, and a failing operation discards the whole
// working copy, so partial application is never observable.
type Executor struct {
	Policy *policy.Table
	// Known lists the schema URNs registered for the resource type.
	Known []string
	// AllowMultiValue permits an add/replace on a multi-valued attribute to
	// carry an array literal with more than one member (tenant flag).
	AllowMultiValue bool
}

// Apply runs the operations in order against a working copy and returns
// the new representation.
func (x *Executor) Apply(doc map[string]interface{}, ops []domain.PatchOperation) (map[string]interface{}, error) {
	work := attr.CloneDocument(doc)
	for i, op := range ops {
		if err := x.applyOne(work, op); err != nil {
			return nil, domain.ErrPatchOp(i, err)
		}
	}
	return work, nil
}

func (x *Executor) applyOne(work map[string]interface{}, op domain.PatchOperation) error {
	opName := strings.ToLower(strings.TrimSpace(op.Op))
	switch opName {
	case domain.OpAdd, domain.OpReplace, domain.OpRemove:
	default:
		return domain.ErrInvalidValue("unsupported patch op %q", op.Op)
	}

	p, err := Resolve(op.Path, x.Policy.ResourceType(), x.Known)
	if err != nil {
		return err
	}

	if p.Kind == KindNone {
		if opName == domain.OpRemove {
			return domain.ErrNoTarget("remove requires a path")
		}
		return x.mergeObject(work, op.Value)
	}

	if x.Policy.ReadOnly(p.Attr) || (p.Kind == KindSimple && x.Policy.ReadOnly(strings.Join(p.Segments, "."))) {
		return domain.ErrMutability("attribute %q is read-only", p.Attr)
	}

	switch p.Kind {
	case KindFirstClass, KindSimple:
		return x.applySimple(work, p.Segments, opName, op.Value)
	case KindExtension:
		return x.applyExtension(work, p, opName, op.Value)
	case KindValuePath:
		return x.applyValuePath(work, p, opName, op.Value)
	}
	return domain.ErrInvalidPath("unresolvable path %q", op.Path)
}

// mergeObject is the path-less mode: each key of the object value is
// applied as if it were its own simple path, with the same case-insensitive,
// extension-aware resolution. Read-only bookkeeping attributes a client
// echoes back (schemas, meta, an unchanged id) are skipped rather than
// rejected, because provisioning clients routinely send the whole resource.
func (x *Executor) mergeObject(work map[string]interface{}, value interface{}) error {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return domain.ErrInvalidValue("a path-less add/replace requires an object value")
	}
	for key, v := range obj {
		switch strings.ToLower(key) {
		case "schemas", "meta":
			continue
		case "id":
			if cur, ok := attr.Lookup(work, "id"); ok {
				if s, _ := v.(string); s != cur {
					return domain.ErrMutability("attribute %q is read-only", "id")
				}
			}
			continue
		}
		if x.Policy.ReadOnly(key) {
			return domain.ErrMutability("attribute %q is read-only", key)
		}
		p, err := Resolve(key, x.Policy.ResourceType(), x.Known)
		if err != nil {
			return err
		}
		if p.Kind == KindExtension {
			if err := x.applyExtension(work, p, domain.OpReplace, v); err != nil {
				return err
			}
			continue
		}
		if err := x.applySimple(work, p.Segments, domain.OpReplace, v); err != nil {
			return err
		}
	}
	return nil
}

func (x *Executor) applySimple(work map[string]interface{}, segments []string, opName string, value interface{}) error {
	if opName == domain.OpRemove {
		attr.Remove(work, segments)
		return nil
	}

	// RFC 7644 §3.5.2.3: an empty replacement value deletes the attribute.
	if attr.IsEmpty(value) {
		attr.Remove(work, segments)
		return nil
	}

	if opName == domain.OpAdd {
		if existing, ok := attr.Get(work, segments); ok {
			if arr, ok := existing.([]interface{}); ok {
				appended, err := x.appendElements(segments[0], arr, value)
				if err != nil {
					return err
				}
				attr.Set(work, segments, appended)
				return nil
			}
			if obj, ok := existing.(map[string]interface{}); ok {
				if patchObj, ok := value.(map[string]interface{}); ok {
					for k, v := range patchObj {
						attr.Set(obj, []string{k}, attr.Clone(v))
					}
					return nil
				}
			}
		}
	}

	attr.Set(work, segments, attr.Clone(value))
	return nil
}

// applyExtension addresses inside a schema-URN-qualified extension object,
// creating it (and registering the URN in schemas) when absent.
func (x *Executor) applyExtension(work map[string]interface{}, p *Path, opName string, value interface{}) error {
	if len(p.Segments) == 0 {
		// whole extension object
		if opName == domain.OpRemove || attr.IsEmpty(value) {
			attr.Remove(work, []string{p.URN})
			x.unregisterSchema(work, p.URN)
			return nil
		}
		obj, ok := value.(map[string]interface{})
		if !ok {
			return domain.ErrInvalidValue("extension %q requires an object value", p.URN)
		}
		if opName == domain.OpAdd {
			if existing, ok := attr.Lookup(work, p.URN); ok {
				if cur, ok := existing.(map[string]interface{}); ok {
					for k, v := range obj {
						attr.Set(cur, []string{k}, attr.Clone(v))
					}
					return nil
				}
			}
		}
		attr.Set(work, []string{p.URN}, attr.Clone(obj))
		x.registerSchema(work, p.URN)
		return nil
	}

	segments := append([]string{p.URN}, p.Segments...)
	if opName == domain.OpRemove || attr.IsEmpty(value) {
		attr.Remove(work, segments)
		if ext, ok := attr.Lookup(work, p.URN); ok {
			if m, ok := ext.(map[string]interface{}); ok && len(m) == 0 {
				attr.Remove(work, []string{p.URN})
				x.unregisterSchema(work, p.URN)
			}
		}
		return nil
	}
	attr.Set(work, segments, attr.Clone(value))
	x.registerSchema(work, p.URN)
	return nil
}

// applyValuePath filters the named array with the embedded sub-filter and
// mutates every match. Zero matches fail with noTarget.
func (x *Executor) applyValuePath(work map[string]interface{}, p *Path, opName string, value interface{}) error {
	raw, ok := attr.Lookup(work, p.Attr)
	if !ok {
		return domain.ErrNoTarget("no values match filter for %q", p.Attr)
	}
	arr, ok := raw.([]interface{})
	if !ok {
		return domain.ErrInvalidPath("attribute %q is not multi-valued", p.Attr)
	}

	matched := make([]bool, len(arr))
	count := 0
	for i, e := range arr {
		elem, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		m, err := filter.EvaluateWithin(p.Filter, p.Attr, elem, x.Policy, x.Known)
		if err != nil {
			return err
		}
		if m {
			matched[i] = true
			count++
		}
	}
	if count == 0 {
		return domain.ErrNoTarget("no values match filter for %q", p.Attr)
	}

	if opName == domain.OpRemove {
		if p.SubAttr != "" {
			for i, e := range arr {
				if matched[i] {
					attr.Remove(e.(map[string]interface{}), strings.Split(p.SubAttr, "."))
				}
			}
			return nil
		}
		kept := make([]interface{}, 0, len(arr)-count)
		for i, e := range arr {
			if !matched[i] {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			attr.Remove(work, []string{p.Attr})
		} else {
			attr.Set(work, []string{p.Attr}, kept)
		}
		return nil
	}

	// add / replace on the matched elements
	for i, e := range arr {
		if !matched[i] {
			continue
		}
		elem := e.(map[string]interface{})
		switch {
		case p.SubAttr != "":
			if attr.IsEmpty(value) {
				attr.Remove(elem, strings.Split(p.SubAttr, "."))
			} else {
				attr.Set(elem, strings.Split(p.SubAttr, "."), attr.Clone(value))
			}
		case opName == domain.OpAdd:
			patchObj, ok := value.(map[string]interface{})
			if !ok {
				return domain.ErrInvalidValue("value for %q must be an object", p.Attr)
			}
			for k, v := range patchObj {
				attr.Set(elem, []string{k}, attr.Clone(v))
			}
		default:
			repl, ok := attr.Clone(value).(map[string]interface{})
			if !ok {
				return domain.ErrInvalidValue("value for %q must be an object", p.Attr)
			}
			arr[i] = repl
		}
	}
	return nil
}

// appendElements implements add on a multi-valued attribute: new elements
// append, deduplicated by their "value" sub-field with the attribute's
// case policy. A multi-element array literal needs the tenant flag.
func (x *Executor) appendElements(attrName string, existing []interface{}, value interface{}) ([]interface{}, error) {
	var incoming []interface{}
	if arr, ok := value.([]interface{}); ok {
		if len(arr) > 1 && !x.AllowMultiValue {
			return nil, domain.ErrInvalidValue("multiple values in one %q operation are not permitted for this tenant", attrName)
		}
		incoming = arr
	} else {
		incoming = []interface{}{value}
	}

	caseExact := x.Policy.CaseExact(attrName + ".value")
	out := existing
	for _, e := range incoming {
		if dup := containsByValue(out, e, caseExact); !dup {
			out = append(out, attr.Clone(e))
		}
	}
	return out, nil
}

// registerSchema ensures the extension URN appears in the document's
// schemas list.
func (x *Executor) registerSchema(work map[string]interface{}, urn string) {
	raw, _ := attr.Lookup(work, "schemas")
	list, _ := raw.([]interface{})
	for _, s := range list {
		if str, ok := s.(string); ok && strings.EqualFold(str, urn) {
			return
		}
	}
	attr.Set(work, []string{"schemas"}, append(list, urn))
}

func (x *Executor) unregisterSchema(work map[string]interface{}, urn string) {
	raw, ok := attr.Lookup(work, "schemas")
	if !ok {
		return
	}
	list, ok := raw.([]interface{})
	if !ok {
		return
	}
	kept := make([]interface{}, 0, len(list))
	for _, s := range list {
		if str, ok := s.(string); ok && strings.EqualFold(str, urn) {
			continue
		}
		kept = append(kept, s)
	}
	attr.Set(work, []string{"schemas"}, kept)
}

func containsByValue(arr []interface{}, candidate interface{}, caseExact bool) bool {
	cm, ok := candidate.(map[string]interface{})
	if !ok {
		return false
	}
	cv, ok := attr.Lookup(cm, "value")
	if !ok {
		return false
	}
	cs, ok := cv.(string)
	if !ok {
		return false
	}
	for _, e := range arr {
		em, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		ev, ok := attr.Lookup(em, "value")
		if !ok {
			continue
		}
		es, ok := ev.(string)
		if !ok {
			continue
		}
		if caseExact && es == cs {
			return true
		}
		if !caseExact && strings.EqualFold(es, cs) {
			return true
		}
	}
	return false
}
