package domain

import (
	"strings"
	"time"
)

// SCIM schema and message URNs.
const (
	SchemaUser           = "urn:ietf:params:scim:schemas:core:2.0:User"
	SchemaGroup          = "urn:ietf:params:scim:schemas:core:2.0:Group"
	SchemaEnterpriseUser = "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User"

	MessageListResponse  = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	MessageSearchRequest = "urn:ietf:params:scim:api:messages:2.0:SearchRequest"
	MessagePatchOp       = "urn:ietf:params:scim:api:messages:2.0:PatchOp"
	MessageError         = "urn:ietf:params:scim:api:messages:2.0:Error"
)

// Resource type names.
const (
	TypeUser  = "User"
	TypeGroup = "Group"
)

// Meta holds the common SCIM meta sub-object. LastModified is the sole
// source for the resource's version token.
type Meta struct {
	ResourceType string
	Created      time.Time
	LastModified time.Time
	Location     string
}

// Resource is a User or Group within one tenant scope. Document holds the
// full SCIM representation (schemas, userName, emails, extension objects,
// ...) as decoded JSON; identifier columns are mirrored out of it so the
// store can index them.
type Resource struct {
	ID                string // server-assigned, immutable, case-exact
	TenantID          string
	Type              string  // TypeUser or TypeGroup
	ExternalID        *string // client-supplied, case-exact, unique when present
	PrimaryIdentifier string  // userName (User) / displayName (Group)
	Document          map[string]interface{}
	Meta              Meta
}

// PrimaryIdentifierAttr returns the attribute name that acts as the primary
// identifier for a resource type.
func PrimaryIdentifierAttr(resourceType string) string {
	if resourceType == TypeGroup {
		return "displayName"
	}
	return "userName"
}

// CoreSchema returns the core schema URN for a resource type.
func CoreSchema(resourceType string) string {
	if resourceType == TypeGroup {
		return SchemaGroup
	}
	return SchemaUser
}

// NormalizedIdentifier returns the lower-cased shadow of the primary
// identifier used for case-insensitive uniqueness and lookup.
func (r *Resource) NormalizedIdentifier() string {
	return strings.ToLower(r.PrimaryIdentifier)
}

// PatchOp values, compared case-insensitively per RFC 7644 §3.5.2.
const (
	OpAdd     = "add"
	OpReplace = "replace"
	OpRemove  = "remove"
)

// PatchOperation is one entry of a PatchOp request body.
type PatchOperation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// PredicateColumn names a store column eligible for filter pushdown.
type PredicateColumn string

const (
	ColumnID                = PredicateColumn("id")
	ColumnExternalID        = PredicateColumn("external_id")
	ColumnPrimaryIdentifier = PredicateColumn("primary_identifier_lower")
)

// StorePredicate is an indexed equality handed to the resource store in
// place of in-memory evaluation. Value is already normalized for the
// column's case policy.
type StorePredicate struct {
	Column PredicateColumn
	Value  string
}

// PageRequest carries SCIM pagination parameters. StartIndex is 1-based;
// zero values mean "use defaults".
type PageRequest struct {
	StartIndex int
	Count      int
}

const defaultPageCount = 100

// Start returns the normalized 1-based start index.
func (p PageRequest) Start() int {
	if p.StartIndex < 1 {
		return 1
	}
	return p.StartIndex
}

// Limit returns the normalized page size. A negative count means "no
// resources, just the total" per RFC 7644 §3.4.2.4 and returns 0.
func (p PageRequest) Limit() int {
	if p.Count < 0 {
		return 0
	}
	if p.Count == 0 {
		return defaultPageCount
	}
	return p.Count
}

// Tenant is one isolation scope. Administration of tenants is external;
// this core only reads them.
type Tenant struct {
	ID   string
	Name string
	// AllowMultiValuePatch permits a PATCH add/replace on a multi-valued
	// attribute to carry an array literal with several members at once.
	AllowMultiValuePatch bool
	CreatedAt            time.Time
}
