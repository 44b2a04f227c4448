package filter

import (
	"testing"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
	"github.com/pranems/SCIMServer-sub002/internal/scim/policy"
)

var userKnown = []string{domain.SchemaUser, domain.SchemaEnterpriseUser}

func testUser() map[string]interface{} {
	return map[string]interface{}{
		"schemas":  []interface{}{domain.SchemaUser, domain.SchemaEnterpriseUser},
		"id":       "2819c223-7f76-453a-919d-413861904646",
		"userName": "bjensen@example.com",
		"name": map[string]interface{}{
			"givenName":  "Barbara",
			"familyName": "Jensen",
		},
		"active": true,
		"title":  "Tour Guide",
		"emails": []interface{}{
			map[string]interface{}{"value": "bjensen@example.com", "type": "work", "primary": true},
			map[string]interface{}{"value": "babs@jensen.org", "type": "home"},
		},
		"meta": map[string]interface{}{
			"lastModified": "2024-05-13T04:42:34Z",
		},
		domain.SchemaEnterpriseUser: map[string]interface{}{
			"department":     "Tour Operations",
			"employeeNumber": "701984",
		},
	}
}

func mustEval(t *testing.T, input string, doc map[string]interface{}) bool {
	t.Helper()
	e, err := Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	got, err := Evaluate(e, doc, policy.ForResourceType(domain.TypeUser), userKnown)
	if err != nil {
		t.Fatalf("evaluate %q: %v", input, err)
	}
	return got
}

func TestEvaluateOperators(t *testing.T) {
	doc := testUser()
	cases := []struct {
		filter string
		want   bool
	}{
		{`userName eq "bjensen@example.com"`, true},
		{`userName eq "other@example.com"`, false},
		{`userName ne "other@example.com"`, true},
		{`userName co "jensen"`, true},
		{`userName co "nobody"`, false},
		{`userName sw "bjensen"`, true},
		{`userName sw "jensen"`, false},
		{`userName ew "example.com"`, true},
		{`userName ew "example.org"`, false},
		{`title pr`, true},
		{`nickName pr`, false},
		{`active eq true`, true},
		{`active eq false`, false},
		{`meta.lastModified gt "2024-01-01T00:00:00Z"`, true},
		{`meta.lastModified lt "2024-01-01T00:00:00Z"`, false},
		{`meta.lastModified ge "2024-05-13T04:42:34Z"`, true},
		{`meta.lastModified le "2024-05-13T04:42:34Z"`, true},
	}
	for _, c := range cases {
		if got := mustEval(t, c.filter, doc); got != c.want {
			t.Errorf("%q: got %v, want %v", c.filter, got, c.want)
		}
	}
}

func TestEvaluateCaseInsensitivity(t *testing.T) {
	doc := testUser()
	// userName is not case-exact: value matching folds case.
	if !mustEval(t, `userName eq "BJENSEN@EXAMPLE.COM"`, doc) {
		t.Error("userName eq should fold case")
	}
	if !mustEval(t, `userName co "JENSEN"`, doc) {
		t.Error("userName co should fold case")
	}
	// Attribute names fold case regardless of value policy.
	if !mustEval(t, `USERNAME eq "bjensen@example.com"`, doc) {
		t.Error("attribute names should resolve case-insensitively")
	}
	if !mustEval(t, `name.GIVENNAME eq "barbara"`, doc) {
		t.Error("nested attribute names should resolve case-insensitively")
	}
	// id is case-exact.
	if mustEval(t, `id eq "2819C223-7F76-453A-919D-413861904646"`, doc) {
		t.Error("id comparison must be case-exact")
	}
}

func TestEvaluateLogical(t *testing.T) {
	doc := testUser()
	cases := []struct {
		filter string
		want   bool
	}{
		{`active eq true and title pr`, true},
		{`active eq false and title pr`, false},
		{`active eq false or title pr`, true},
		{`active eq false or nickName pr`, false},
		{`not (active eq false)`, true},
		{`active eq false and nickName pr or title pr`, true},
	}
	for _, c := range cases {
		if got := mustEval(t, c.filter, doc); got != c.want {
			t.Errorf("%q: got %v, want %v", c.filter, got, c.want)
		}
	}
}

func TestEvaluateMultiValuedFanOut(t *testing.T) {
	doc := testUser()
	// A comparison over a multi-valued path matches if any element matches.
	if !mustEval(t, `emails.value co "jensen.org"`, doc) {
		t.Error("dotted path through array should fan out over elements")
	}
	if !mustEval(t, `emails.type eq "home"`, doc) {
		t.Error("expected any-element match on emails.type")
	}
	if mustEval(t, `emails.type eq "other"`, doc) {
		t.Error("no element has type other")
	}
}

func TestEvaluateValuePath(t *testing.T) {
	doc := testUser()
	cases := []struct {
		filter string
		want   bool
	}{
		{`emails[type eq "work"]`, true},
		{`emails[type eq "other"]`, false},
		{`emails[type eq "work" and primary eq true]`, true},
		{`emails[type eq "home" and primary eq true]`, false},
		{`emails[value ew "jensen.org"]`, true},
	}
	for _, c := range cases {
		if got := mustEval(t, c.filter, doc); got != c.want {
			t.Errorf("%q: got %v, want %v", c.filter, got, c.want)
		}
	}
}

func TestEvaluateExtensionPath(t *testing.T) {
	doc := testUser()
	f := domain.SchemaEnterpriseUser + `:department eq "Tour Operations"`
	if !mustEval(t, f, doc) {
		t.Error("extension path should resolve into the URN-keyed sub-object")
	}
	f = domain.SchemaEnterpriseUser + `:employeeNumber pr`
	if !mustEval(t, f, doc) {
		t.Error("pr on extension sub-attribute")
	}
	f = domain.SchemaEnterpriseUser + `:costCenter pr`
	if mustEval(t, f, doc) {
		t.Error("absent extension sub-attribute should not be present")
	}
}

func TestEvaluateMissingAttribute(t *testing.T) {
	doc := testUser()
	// Comparisons against a missing attribute are false, including ne.
	if mustEval(t, `nickName eq "x"`, doc) {
		t.Error("eq on missing attribute must be false")
	}
	if mustEval(t, `nickName ne "x"`, doc) {
		t.Error("ne on missing attribute must be false, not vacuously true")
	}
}

func TestEvaluatePresenceEmptyValues(t *testing.T) {
	doc := map[string]interface{}{
		"a": "",
		"b": []interface{}{},
		"c": map[string]interface{}{},
		"d": nil,
		"e": false,
		"f": float64(0),
	}
	pol := policy.ForResourceType(domain.TypeUser)
	for name, want := range map[string]bool{
		"a": false, "b": false, "c": false, "d": false,
		"e": true, "f": true,
	} {
		e, _ := Parse(name + " pr")
		got, err := Evaluate(e, doc, pol, userKnown)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got != want {
			t.Errorf("%s pr: got %v, want %v", name, got, want)
		}
	}
}

func TestEvaluateGroupMembersCasePolicy(t *testing.T) {
	group := map[string]interface{}{
		"schemas":     []interface{}{domain.SchemaGroup},
		"displayName": "Tour Guides",
		"members": []interface{}{
			map[string]interface{}{"value": "2819c223", "display": "Babs Jensen"},
		},
	}
	pol := policy.ForResourceType(domain.TypeGroup)
	known := []string{domain.SchemaGroup}

	// members.value is case-exact (it holds resource ids).
	e, _ := Parse(`members[value eq "2819C223"]`)
	got, err := Evaluate(e, group, pol, known)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got {
		t.Error("members.value must compare case-exactly")
	}

	// displayName folds case.
	e, _ = Parse(`displayName eq "tour guides"`)
	got, err = Evaluate(e, group, pol, known)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !got {
		t.Error("displayName should fold case")
	}
}

func TestEvaluateWithinElement(t *testing.T) {
	elem := map[string]interface{}{"value": "2819c223", "type": "User"}
	pol := policy.ForResourceType(domain.TypeGroup)
	known := []string{domain.SchemaGroup}

	inner, _ := Parse(`value eq "2819C223"`)
	got, err := EvaluateWithin(inner, "members", elem, pol, known)
	if err != nil {
		t.Fatalf("evaluate within: %v", err)
	}
	if got {
		t.Error("inner value comparison must inherit members.value case policy")
	}

	inner, _ = Parse(`value eq "2819c223"`)
	got, err = EvaluateWithin(inner, "members", elem, pol, known)
	if err != nil {
		t.Fatalf("evaluate within: %v", err)
	}
	if !got {
		t.Error("exact-case match should succeed")
	}
}
