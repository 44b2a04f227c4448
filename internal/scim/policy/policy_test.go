package policy

import (
	"testing"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

func TestUserTable(t *testing.T) {
	p := ForResourceType(domain.TypeUser)

	if p.ResourceType() != domain.TypeUser {
		t.Errorf("resource type: %q", p.ResourceType())
	}

	// Identifiers
	if !p.CaseExact("id") || !p.CaseExact("externalId") {
		t.Error("id and externalId must be case-exact")
	}
	if p.CaseExact("userName") {
		t.Error("userName must be case-insensitive")
	}

	// Index mapping
	if col, ok := p.Indexed("userName"); !ok || col != domain.ColumnPrimaryIdentifier {
		t.Errorf("userName index: %v %v", col, ok)
	}
	if col, ok := p.Indexed("externalId"); !ok || col != domain.ColumnExternalID {
		t.Errorf("externalId index: %v %v", col, ok)
	}
	if _, ok := p.Indexed("title"); ok {
		t.Error("title must not be indexed")
	}

	// Returned characteristics
	for _, name := range []string{"id", "schemas", "meta"} {
		if !p.AlwaysReturned(name) {
			t.Errorf("%s must always be returned", name)
		}
	}
	if !p.NeverReturned("password") {
		t.Error("password must never be returned")
	}
	if p.NeverReturned("userName") {
		t.Error("userName is returned by default")
	}

	// Mutability
	if !p.ReadOnly("id") || !p.ReadOnly("meta") || !p.ReadOnly("groups") {
		t.Error("id, meta, and groups are read-only")
	}
	if p.ReadOnly("userName") {
		t.Error("userName is writable")
	}
}

func TestGroupTable(t *testing.T) {
	p := ForResourceType(domain.TypeGroup)

	if col, ok := p.Indexed("displayName"); !ok || col != domain.ColumnPrimaryIdentifier {
		t.Errorf("displayName index: %v %v", col, ok)
	}
	if p.CaseExact("displayName") {
		t.Error("displayName folds case")
	}
	if !p.CaseExact("members.value") {
		t.Error("members.value holds ids and is case-exact")
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	p := ForResourceType(domain.TypeUser)
	if !p.CaseExact("EXTERNALID") {
		t.Error("policy lookup must fold the attribute path")
	}
	if col, ok := p.Indexed("USERNAME"); !ok || col != domain.ColumnPrimaryIdentifier {
		t.Errorf("USERNAME index lookup: %v %v", col, ok)
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	p := ForResourceType(domain.TypeUser)
	if got := p.NormalizeIdentifier("userName", "John@X.COM"); got != "john@x.com" {
		t.Errorf("userName normalization: %q", got)
	}
	if got := p.NormalizeIdentifier("externalId", "Ext-42"); got != "Ext-42" {
		t.Errorf("externalId must not be lowered: %q", got)
	}
}
