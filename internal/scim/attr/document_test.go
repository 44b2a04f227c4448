package attr

import (
	"reflect"
	"testing"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

func TestLookupCaseInsensitive(t *testing.T) {
	m := map[string]interface{}{"userName": "bjensen"}
	for _, name := range []string{"userName", "username", "USERNAME", "UserName"} {
		v, ok := Lookup(m, name)
		if !ok || v != "bjensen" {
			t.Errorf("Lookup(%q): %v %v", name, v, ok)
		}
	}
	if _, ok := Lookup(m, "missing"); ok {
		t.Error("missing key must not resolve")
	}
}

func TestGetDottedPath(t *testing.T) {
	m := map[string]interface{}{
		"name": map[string]interface{}{"givenName": "Barbara"},
	}
	v, ok := Get(m, []string{"NAME", "givenname"})
	if !ok || v != "Barbara" {
		t.Errorf("Get: %v %v", v, ok)
	}
	if _, ok := Get(m, []string{"name", "missing"}); ok {
		t.Error("missing leaf must not resolve")
	}
	if _, ok := Get(m, []string{"name", "givenName", "deeper"}); ok {
		t.Error("traversal through a scalar must stop")
	}
}

func TestSetReusesCanonicalCasing(t *testing.T) {
	m := map[string]interface{}{
		"name": map[string]interface{}{"givenName": "Barbara"},
	}
	Set(m, []string{"NAME", "FAMILYNAME"}, "Jensen")

	name := m["name"].(map[string]interface{})
	if name["givenName"] != "Barbara" {
		t.Error("existing sub-attributes must survive")
	}
	if name["FAMILYNAME"] != "Jensen" {
		t.Errorf("new key keeps the caller's casing: %v", name)
	}
	if _, ok := m["NAME"]; ok {
		t.Error("write must reuse the existing canonical key, not add a duplicate")
	}
}

func TestSetCreatesIntermediates(t *testing.T) {
	m := map[string]interface{}{}
	Set(m, []string{"name", "givenName"}, "Barbara")
	v, ok := Get(m, []string{"name", "givenName"})
	if !ok || v != "Barbara" {
		t.Errorf("Set through missing intermediate: %v %v", v, ok)
	}
}

func TestRemove(t *testing.T) {
	m := map[string]interface{}{
		"name": map[string]interface{}{"givenName": "Barbara", "familyName": "Jensen"},
	}
	if !Remove(m, []string{"NAME", "givenname"}) {
		t.Fatal("remove should report deletion")
	}
	if _, ok := Get(m, []string{"name", "givenName"}); ok {
		t.Error("removed attribute still present")
	}
	if _, ok := Get(m, []string{"name", "familyName"}); !ok {
		t.Error("sibling must survive")
	}
	if Remove(m, []string{"name", "missing"}) {
		t.Error("removing a missing path reports false")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"value": "a@x.com"},
		},
	}
	cp := CloneDocument(orig)
	cp["emails"].([]interface{})[0].(map[string]interface{})["value"] = "b@x.com"
	if orig["emails"].([]interface{})[0].(map[string]interface{})["value"] != "a@x.com" {
		t.Error("clone shares structure with the original")
	}
}

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		v    interface{}
		want bool
	}{
		{nil, true},
		{"", true},
		{[]interface{}{}, true},
		{map[string]interface{}{}, true},
		{map[string]interface{}{"value": ""}, true},
		{map[string]interface{}{"value": nil}, true},
		{"x", false},
		{float64(0), false},
		{false, false},
		{[]interface{}{"x"}, false},
		{map[string]interface{}{"value": "x"}, false},
		{map[string]interface{}{"display": "x"}, false},
	}
	for _, c := range cases {
		if got := IsEmpty(c.v); got != c.want {
			t.Errorf("IsEmpty(%#v): got %v, want %v", c.v, got, c.want)
		}
	}
}

func TestSplitURN(t *testing.T) {
	known := []string{domain.SchemaEnterpriseUser}

	urn, rest, ok := SplitURN(domain.SchemaEnterpriseUser+":manager.displayName", known)
	if !ok || urn != domain.SchemaEnterpriseUser || rest != "manager.displayName" {
		t.Errorf("known URN split: %q %q %v", urn, rest, ok)
	}

	// Bare URN, no remainder.
	urn, rest, ok = SplitURN(domain.SchemaEnterpriseUser, known)
	if !ok || urn != domain.SchemaEnterpriseUser || rest != "" {
		t.Errorf("bare URN: %q %q %v", urn, rest, ok)
	}

	// Unknown URN falls back to splitting at the last colon.
	urn, rest, ok = SplitURN("urn:example:params:custom:nickName", nil)
	if !ok || urn != "urn:example:params:custom" || rest != "nickName" {
		t.Errorf("structural fallback: %q %q %v", urn, rest, ok)
	}

	// Non-URN paths are not split.
	if _, _, ok := SplitURN("name.givenName", known); ok {
		t.Error("plain path must not split as a URN")
	}
}

func TestSplitPath(t *testing.T) {
	known := []string{domain.SchemaEnterpriseUser}
	cases := []struct {
		in   string
		want []string
	}{
		{"userName", []string{"userName"}},
		{"name.givenName", []string{"name", "givenName"}},
		{domain.SchemaEnterpriseUser + ":department", []string{domain.SchemaEnterpriseUser, "department"}},
		{domain.SchemaEnterpriseUser + ":manager.displayName", []string{domain.SchemaEnterpriseUser, "manager", "displayName"}},
		{domain.SchemaEnterpriseUser, []string{domain.SchemaEnterpriseUser}},
	}
	for _, c := range cases {
		if got := SplitPath(c.in, known); !reflect.DeepEqual(got, c.want) {
			t.Errorf("SplitPath(%q): %v, want %v", c.in, got, c.want)
		}
	}
}
