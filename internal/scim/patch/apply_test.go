package patch

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
	"github.com/pranems/SCIMServer-sub002/internal/scim/attr"
	"github.com/pranems/SCIMServer-sub002/internal/scim/policy"
)

func userExecutor() *Executor {
	return &Executor{
		Policy: policy.ForResourceType(domain.TypeUser),
		Known:  []string{domain.SchemaUser, domain.SchemaEnterpriseUser},
	}
}

func groupExecutor() *Executor {
	return &Executor{
		Policy: policy.ForResourceType(domain.TypeGroup),
		Known:  []string{domain.SchemaGroup},
	}
}

func patchUser() map[string]interface{} {
	return map[string]interface{}{
		"schemas":  []interface{}{domain.SchemaUser},
		"id":       "2819c223",
		"userName": "bjensen@example.com",
		"name": map[string]interface{}{
			"givenName":  "Barbara",
			"familyName": "Jensen",
		},
		"active": true,
		"emails": []interface{}{
			map[string]interface{}{"value": "bjensen@example.com", "type": "work", "primary": true},
			map[string]interface{}{"value": "babs@jensen.org", "type": "home"},
		},
	}
}

func patchGroup() map[string]interface{} {
	return map[string]interface{}{
		"schemas":     []interface{}{domain.SchemaGroup},
		"id":          "e9e30dba",
		"displayName": "Tour Guides",
		"members": []interface{}{
			map[string]interface{}{"value": "2819c223", "display": "Babs Jensen"},
			map[string]interface{}{"value": "902c246b", "display": "Mandy Pepperidge"},
		},
	}
}

func apply(t *testing.T, x *Executor, doc map[string]interface{}, ops ...domain.PatchOperation) map[string]interface{} {
	t.Helper()
	out, err := x.Apply(doc, ops)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	return out
}

func TestApplyReplaceSimple(t *testing.T) {
	doc := patchUser()
	out := apply(t, userExecutor(), doc, domain.PatchOperation{
		Op: "replace", Path: "title", Value: "Tour Guide",
	})
	if out["title"] != "Tour Guide" {
		t.Errorf("title: %v", out["title"])
	}
	if _, ok := doc["title"]; ok {
		t.Error("input document must not be mutated")
	}
}

func TestApplyOpNameIsCaseInsensitive(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op: "Replace", Path: "title", Value: "Tour Guide",
	})
	if out["title"] != "Tour Guide" {
		t.Errorf("title: %v", out["title"])
	}
}

func TestApplyReplaceIsIdempotent(t *testing.T) {
	x := userExecutor()
	op := domain.PatchOperation{Op: "replace", Path: "name.givenName", Value: "Barb"}
	once := apply(t, x, patchUser(), op)
	twice := apply(t, x, once, op)
	if !reflect.DeepEqual(once, twice) {
		t.Error("replace must be idempotent")
	}
}

func TestApplyDottedPathResolvesCaseInsensitively(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op: "replace", Path: "NAME.GIVENNAME", Value: "Barb",
	})
	name := out["name"].(map[string]interface{})
	if name["givenName"] != "Barb" {
		t.Errorf("name: %v", name)
	}
	if _, ok := name["GIVENNAME"]; ok {
		t.Error("write must land on the existing key, not add a cased duplicate")
	}
}

func TestApplyRemoveSimple(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op: "remove", Path: "name.familyName",
	})
	name := out["name"].(map[string]interface{})
	if _, ok := name["familyName"]; ok {
		t.Error("removed attribute survived")
	}
}

func TestApplyRemoveWithoutPathFails(t *testing.T) {
	_, err := userExecutor().Apply(patchUser(), []domain.PatchOperation{
		{Op: "remove"},
	})
	var noTarget *domain.NoTargetError
	if !errors.As(err, &noTarget) {
		t.Fatalf("expected NoTargetError, got %v", err)
	}
}

func TestApplyEmptyValueRemoves(t *testing.T) {
	// RFC 7644 §3.5.2.3: replacing with an empty value deletes the attribute.
	for _, empty := range []interface{}{nil, "", []interface{}{}, map[string]interface{}{}} {
		out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
			Op: "replace", Path: "name", Value: empty,
		})
		if _, ok := out["name"]; ok {
			t.Errorf("empty value %#v must remove the attribute", empty)
		}
	}
}

func TestApplyAddMergesIntoObject(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op: "add", Path: "name", Value: map[string]interface{}{"middleName": "Jane"},
	})
	name := out["name"].(map[string]interface{})
	if name["middleName"] != "Jane" {
		t.Error("added sub-attribute missing")
	}
	if name["givenName"] != "Barbara" {
		t.Error("add must merge, not replace the object")
	}
}

func TestApplyAddAppendsToArray(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op: "add", Path: "emails",
		Value: map[string]interface{}{"value": "work2@example.com", "type": "work"},
	})
	emails := out["emails"].([]interface{})
	if len(emails) != 3 {
		t.Fatalf("emails: %d elements", len(emails))
	}
	last := emails[2].(map[string]interface{})
	if last["value"] != "work2@example.com" {
		t.Errorf("appended element: %v", last)
	}
}

func TestApplyAddDeduplicatesByValue(t *testing.T) {
	// Same address in a different case: userName-style folding applies to
	// emails.value, so this is a duplicate, not a new element.
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op: "add", Path: "emails",
		Value: map[string]interface{}{"value": "BJENSEN@EXAMPLE.COM", "type": "work"},
	})
	emails := out["emails"].([]interface{})
	if len(emails) != 2 {
		t.Errorf("duplicate element appended: %d elements", len(emails))
	}
}

func TestApplyAddMultiElementArrayNeedsTenantFlag(t *testing.T) {
	value := []interface{}{
		map[string]interface{}{"value": "a@example.com"},
		map[string]interface{}{"value": "b@example.com"},
	}

	_, err := userExecutor().Apply(patchUser(), []domain.PatchOperation{
		{Op: "add", Path: "emails", Value: value},
	})
	var invalid *domain.InvalidValueError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidValueError, got %v", err)
	}

	x := userExecutor()
	x.AllowMultiValue = true
	out := apply(t, x, patchUser(), domain.PatchOperation{
		Op: "add", Path: "emails", Value: value,
	})
	if len(out["emails"].([]interface{})) != 4 {
		t.Errorf("emails: %d elements", len(out["emails"].([]interface{})))
	}
}

func TestApplyValuePathReplaceSubAttr(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op:    "replace",
		Path:  `emails[type eq "work"].value`,
		Value: "new-work@example.com",
	})
	emails := out["emails"].([]interface{})
	work := emails[0].(map[string]interface{})
	if work["value"] != "new-work@example.com" {
		t.Errorf("work email: %v", work)
	}
	home := emails[1].(map[string]interface{})
	if home["value"] != "babs@jensen.org" {
		t.Error("unmatched element modified")
	}
}

func TestApplyValuePathReplaceWholeElement(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op:    "replace",
		Path:  `emails[type eq "home"]`,
		Value: map[string]interface{}{"value": "new-home@jensen.org", "type": "home"},
	})
	emails := out["emails"].([]interface{})
	home := emails[1].(map[string]interface{})
	if home["value"] != "new-home@jensen.org" {
		t.Errorf("home email: %v", home)
	}
}

func TestApplyValuePathAddMergesIntoMatch(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op:    "add",
		Path:  `emails[type eq "home"]`,
		Value: map[string]interface{}{"display": "Home"},
	})
	home := out["emails"].([]interface{})[1].(map[string]interface{})
	if home["display"] != "Home" || home["value"] != "babs@jensen.org" {
		t.Errorf("home email: %v", home)
	}
}

func TestApplyValuePathNoMatchFails(t *testing.T) {
	_, err := userExecutor().Apply(patchUser(), []domain.PatchOperation{
		{Op: "replace", Path: `emails[type eq "other"].value`, Value: "x"},
	})
	var noTarget *domain.NoTargetError
	if !errors.As(err, &noTarget) {
		t.Fatalf("expected NoTargetError, got %v", err)
	}
}

func TestApplyRemoveGroupMember(t *testing.T) {
	x := groupExecutor()
	out := apply(t, x, patchGroup(), domain.PatchOperation{
		Op: "remove", Path: `members[value eq "2819c223"]`,
	})
	members := out["members"].([]interface{})
	if len(members) != 1 {
		t.Fatalf("members: %d", len(members))
	}
	if members[0].(map[string]interface{})["value"] != "902c246b" {
		t.Error("wrong member removed")
	}

	// Removing the same member again has no target.
	_, err := x.Apply(out, []domain.PatchOperation{
		{Op: "remove", Path: `members[value eq "2819c223"]`},
	})
	var noTarget *domain.NoTargetError
	if !errors.As(err, &noTarget) {
		t.Fatalf("repeat removal: expected NoTargetError, got %v", err)
	}
}

func TestApplyRemoveLastMemberRemovesAttribute(t *testing.T) {
	doc := patchGroup()
	doc["members"] = []interface{}{
		map[string]interface{}{"value": "2819c223"},
	}
	out := apply(t, groupExecutor(), doc, domain.PatchOperation{
		Op: "remove", Path: `members[value eq "2819c223"]`,
	})
	if _, ok := out["members"]; ok {
		t.Error("an emptied multi-valued attribute must be removed entirely")
	}
}

func TestApplyMemberValueIsCaseExact(t *testing.T) {
	_, err := groupExecutor().Apply(patchGroup(), []domain.PatchOperation{
		{Op: "remove", Path: `members[value eq "2819C223"]`},
	})
	var noTarget *domain.NoTargetError
	if !errors.As(err, &noTarget) {
		t.Fatalf("members.value must compare case-exactly, got %v", err)
	}
}

func TestApplyExtensionPath(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op:    "replace",
		Path:  domain.SchemaEnterpriseUser + ":department",
		Value: "Tour Operations",
	})
	ext := out[domain.SchemaEnterpriseUser].(map[string]interface{})
	if ext["department"] != "Tour Operations" {
		t.Errorf("extension: %v", ext)
	}
	// Touching the extension registers its URN in schemas.
	schemas := out["schemas"].([]interface{})
	found := false
	for _, s := range schemas {
		if s == domain.SchemaEnterpriseUser {
			found = true
		}
	}
	if !found {
		t.Errorf("schemas not updated: %v", schemas)
	}
}

func TestApplyExtensionRemoveLastAttrUnregistersSchema(t *testing.T) {
	x := userExecutor()
	doc := apply(t, x, patchUser(), domain.PatchOperation{
		Op: "replace", Path: domain.SchemaEnterpriseUser + ":department", Value: "Tooling",
	})
	out := apply(t, x, doc, domain.PatchOperation{
		Op: "remove", Path: domain.SchemaEnterpriseUser + ":department",
	})
	if _, ok := out[domain.SchemaEnterpriseUser]; ok {
		t.Error("emptied extension object must be pruned")
	}
	for _, s := range out["schemas"].([]interface{}) {
		if s == domain.SchemaEnterpriseUser {
			t.Error("pruned extension URN still in schemas")
		}
	}
}

func TestApplyPathlessMerge(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op: "add",
		Value: map[string]interface{}{
			"title":    "Tour Guide",
			"nickName": "Babs",
		},
	})
	if out["title"] != "Tour Guide" || out["nickName"] != "Babs" {
		t.Errorf("merged attributes: title=%v nickName=%v", out["title"], out["nickName"])
	}
	if out["userName"] != "bjensen@example.com" {
		t.Error("untouched attributes must survive the merge")
	}
}

func TestApplyPathlessMergeSkipsBookkeeping(t *testing.T) {
	// Clients echo back schemas, meta, and an unchanged id; that is fine.
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op: "replace",
		Value: map[string]interface{}{
			"id":      "2819c223",
			"schemas": []interface{}{domain.SchemaUser},
			"title":   "Tour Guide",
		},
	})
	if out["id"] != "2819c223" || out["title"] != "Tour Guide" {
		t.Errorf("merge result: %v", out)
	}

	// A changed id is a mutability violation.
	_, err := userExecutor().Apply(patchUser(), []domain.PatchOperation{
		{Op: "replace", Value: map[string]interface{}{"id": "different"}},
	})
	var mut *domain.MutabilityError
	if !errors.As(err, &mut) {
		t.Fatalf("expected MutabilityError, got %v", err)
	}
}

func TestApplyReadOnlyAttributeFails(t *testing.T) {
	for _, path := range []string{"id", "meta", "groups"} {
		_, err := userExecutor().Apply(patchUser(), []domain.PatchOperation{
			{Op: "replace", Path: path, Value: "x"},
		})
		var mut *domain.MutabilityError
		if !errors.As(err, &mut) {
			t.Errorf("%s: expected MutabilityError, got %v", path, err)
		}
	}
}

func TestApplyUnknownOpFails(t *testing.T) {
	_, err := userExecutor().Apply(patchUser(), []domain.PatchOperation{
		{Op: "move", Path: "title", Value: "x"},
	})
	var invalid *domain.InvalidValueError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidValueError, got %v", err)
	}
}

func TestApplyFailedOperationDiscardsEverything(t *testing.T) {
	doc := patchUser()
	_, err := userExecutor().Apply(doc, []domain.PatchOperation{
		{Op: "replace", Path: "title", Value: "Tour Guide"},
		{Op: "replace", Path: `emails[type eq "other"].value`, Value: "x"},
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "operation 2") {
		t.Errorf("error should name the failing operation: %v", err)
	}
	if _, ok := doc["title"]; ok {
		t.Error("input must be untouched after a failed apply")
	}
}

func TestApplyOperationsRunInOrder(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(),
		domain.PatchOperation{Op: "replace", Path: "title", Value: "First"},
		domain.PatchOperation{Op: "replace", Path: "title", Value: "Second"},
	)
	if out["title"] != "Second" {
		t.Errorf("title: %v", out["title"])
	}
}

func TestApplyFirstClassRename(t *testing.T) {
	out := apply(t, userExecutor(), patchUser(), domain.PatchOperation{
		Op: "replace", Path: "userName", Value: "barbara@example.com",
	})
	if out["userName"] != "barbara@example.com" {
		t.Errorf("userName: %v", out["userName"])
	}
	if v, _ := attr.Lookup(out, "username"); v != "barbara@example.com" {
		t.Error("rename must stay reachable case-insensitively")
	}
}
