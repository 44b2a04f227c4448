// Package policy holds the per-attribute comparison policy table: which
// attributes compare case-exactly, which are backed by an indexed store
// column, which are always or never returned, and which are read-only.
// The filter evaluator, the pushdown planner, the attribute projector,
// and the uniqueness pre-check all consult the same table.
package policy

import (
	"strings"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

// Returned mirrors the RFC 7643 "returned" characteristic, reduced to the
// cases the projection engine distinguishes.
type Returned int

const (
	ReturnedDefault Returned = iota
	ReturnedAlways
	ReturnedNever
)

// Attribute is one row of the policy table. Name is the dotted attribute
// path in canonical casing.
type Attribute struct {
	Name      string
	CaseExact bool
	// Indexed names the store column this attribute is mirrored into, for
	// attributes the planner may push an eq comparison down to.
	Indexed  domain.PredicateColumn
	Returned Returned
	ReadOnly bool
}

// Table is the policy table for one resource type. Lookup is by
// lower-cased attribute path; unknown attributes fall back to the RFC 7643
// §2.4 default (case-insensitive, returned by default, writable).
type Table struct {
	resourceType string
	byPath       map[string]Attribute
}

// ForResourceType builds the policy table for "User" or "Group".
func ForResourceType(resourceType string) *Table {
	t := &Table{resourceType: resourceType, byPath: make(map[string]Attribute)}

	// Common to every resource type.
	t.add(Attribute{Name: "id", CaseExact: true, Indexed: domain.ColumnID, Returned: ReturnedAlways, ReadOnly: true})
	t.add(Attribute{Name: "externalId", CaseExact: true, Indexed: domain.ColumnExternalID})
	t.add(Attribute{Name: "schemas", Returned: ReturnedAlways, ReadOnly: true})
	t.add(Attribute{Name: "meta", Returned: ReturnedAlways, ReadOnly: true})

	switch resourceType {
	case domain.TypeGroup:
		t.add(Attribute{Name: "displayName", Indexed: domain.ColumnPrimaryIdentifier})
		// Member references point at server-assigned ids and compare exactly.
		t.add(Attribute{Name: "members.value", CaseExact: true})
		t.add(Attribute{Name: "members.$ref", CaseExact: true})
	default:
		t.add(Attribute{Name: "userName", Indexed: domain.ColumnPrimaryIdentifier})
		t.add(Attribute{Name: "password", CaseExact: true, Returned: ReturnedNever})
		// groups on a User is maintained server-side from Group membership.
		t.add(Attribute{Name: "groups", ReadOnly: true})
		t.add(Attribute{Name: "groups.value", CaseExact: true})
	}

	return t
}

func (t *Table) add(a Attribute) {
	t.byPath[strings.ToLower(a.Name)] = a
}

// ResourceType returns the resource type this table was built for.
func (t *Table) ResourceType() string { return t.resourceType }

func (t *Table) lookup(path string) (Attribute, bool) {
	a, ok := t.byPath[strings.ToLower(path)]
	return a, ok
}

// CaseExact reports whether string comparisons on the attribute path must
// preserve case. Nearly all string attributes are case-insensitive per
// RFC 7643 §2.4; only identifiers, member references, and write-only
// secrets compare exactly.
func (t *Table) CaseExact(path string) bool {
	a, ok := t.lookup(path)
	return ok && a.CaseExact
}

// Indexed returns the store column an eq comparison on the attribute may
// be pushed down to, if any.
func (t *Table) Indexed(path string) (domain.PredicateColumn, bool) {
	a, ok := t.lookup(path)
	if !ok || a.Indexed == "" {
		return "", false
	}
	return a.Indexed, true
}

// AlwaysReturned reports whether the attribute survives every projection.
func (t *Table) AlwaysReturned(path string) bool {
	a, ok := t.lookup(path)
	return ok && a.Returned == ReturnedAlways
}

// NeverReturned reports whether the attribute is stripped from every
// response regardless of the requested projection.
func (t *Table) NeverReturned(path string) bool {
	a, ok := t.lookup(path)
	return ok && a.Returned == ReturnedNever
}

// ReadOnly reports whether PATCH/PUT may modify the attribute.
func (t *Table) ReadOnly(path string) bool {
	a, ok := t.lookup(path)
	return ok && a.ReadOnly
}

// NormalizeIdentifier normalizes a value for comparison against the given
// attribute: lower-cased unless the attribute is case-exact.
func (t *Table) NormalizeIdentifier(path, value string) string {
	if t.CaseExact(path) {
		return value
	}
	return strings.ToLower(value)
}
