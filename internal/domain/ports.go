package domain

import "context"

// ResourceStore is the persistence port for SCIM resources. Every method
// operates within a single tenant scope. Implementations must enforce the
// identifier uniqueness constraints atomically with the write: the
// check-and-insert must not be observable as two separate steps.
type ResourceStore interface {
	// FindByID returns the resource with the given server-assigned id.
	FindByID(ctx context.Context, tenantID, resourceType, id string) (*Resource, error)

	// FindByIdentifier looks a resource up by an indexed identity column.
	// The value must already be normalized for the column's case policy
	// (lower-cased for primary_identifier_lower, verbatim otherwise).
	FindByIdentifier(ctx context.Context, tenantID, resourceType string, col PredicateColumn, value string) (*Resource, error)

	// FindCandidates returns the tenant-scoped candidate set for filter
	// evaluation. When pred is non-nil the store applies it as an indexed
	// equality; otherwise all resources of the type are returned.
	FindCandidates(ctx context.Context, tenantID, resourceType string, pred *StorePredicate) ([]*Resource, error)

	// Create inserts a new resource, enforcing uniqueness of the primary
	// identifier and externalId within the tenant scope in the same
	// transaction. Collisions surface as *UniquenessError.
	Create(ctx context.Context, res *Resource) (*Resource, error)

	// Update overwrites an existing resource by id, re-checking uniqueness
	// for any changed identifiers and bumping meta.lastModified.
	Update(ctx context.Context, res *Resource) (*Resource, error)

	// Delete removes a resource. Missing ids surface as *NotFoundError.
	Delete(ctx context.Context, tenantID, resourceType, id string) error
}

// TenantStore reads tenant scope records. Tenant CRUD is an external
// administration concern; this core needs lookup only (plus Create for
// seeding and tests).
type TenantStore interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetByName(ctx context.Context, name string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Create(ctx context.Context, t *Tenant) (*Tenant, error)
}
