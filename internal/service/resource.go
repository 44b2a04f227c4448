// Package service implements the SCIM resource operations on top of the
// store ports: query planning and evaluation, patch application, replace,
// and create with uniqueness enforcement.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
	"github.com/pranems/SCIMServer-sub002/internal/scim/attr"
	"github.com/pranems/SCIMServer-sub002/internal/scim/filter"
	"github.com/pranems/SCIMServer-sub002/internal/scim/patch"
	"github.com/pranems/SCIMServer-sub002/internal/scim/policy"
	"github.com/pranems/SCIMServer-sub002/internal/scim/version"
)

// SearchRequest carries the query surface of GET /Users|/Groups and the
// search-by-POST form.
type SearchRequest struct {
	Filter             string
	Attributes         []string
	ExcludedAttributes []string
	Page               domain.PageRequest
}

// SearchResult is the material for a ListResponse envelope.
type SearchResult struct {
	TotalResults int
	StartIndex   int
	ItemsPerPage int
	Resources    []ResourceView
}

// ResourceView is a rendered resource: the (projected) representation plus
// the headers the transport layer attaches.
type ResourceView struct {
	ID       string
	Document map[string]interface{}
	ETag     string
	Location string
}

// ResourceService implements the SCIM protocol semantics for one resource
// type. All methods take the tenant scope explicitly; the service holds no
// per-request state and is safe for concurrent use.
type ResourceService struct {
	store        domain.ResourceStore
	resourceType string
	pol          *policy.Table
	known        []string
	basePath     string
	logger       *slog.Logger
}

// NewResourceService builds the service for "User" or "Group".
func NewResourceService(store domain.ResourceStore, resourceType string, logger *slog.Logger) *ResourceService {
	known := []string{domain.CoreSchema(resourceType)}
	if resourceType == domain.TypeUser {
		known = append(known, domain.SchemaEnterpriseUser)
	}
	return &ResourceService{
		store:        store,
		resourceType: resourceType,
		pol:          policy.ForResourceType(resourceType),
		known:        known,
		basePath:     "/scim/v2/" + resourceType + "s",
		logger:       logger.With("component", "resource-service", "type", resourceType),
	}
}

// ResourceType returns the SCIM resource type this service handles.
func (s *ResourceService) ResourceType() string { return s.resourceType }

// Search runs the query path: parse, plan, fetch, evaluate the residual,
// paginate, project.
func (s *ResourceService) Search(ctx context.Context, tenant *domain.Tenant, req SearchRequest) (*SearchResult, error) {
	var plan filter.Plan
	if strings.TrimSpace(req.Filter) != "" {
		expr, err := filter.Parse(req.Filter)
		if err != nil {
			return nil, err
		}
		plan = filter.PlanQuery(expr, s.pol)
	}

	candidates, err := s.store.FindCandidates(ctx, tenant.ID, s.resourceType, plan.Pushdown)
	if err != nil {
		return nil, err
	}

	matched := candidates
	if plan.Residual != nil {
		matched = matched[:0:0]
		for _, res := range candidates {
			ok, err := filter.Evaluate(plan.Residual, s.representation(res), s.pol, s.known)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = append(matched, res)
			}
		}
	}

	start := req.Page.Start()
	limit := req.Page.Limit()
	result := &SearchResult{
		TotalResults: len(matched),
		StartIndex:   start,
	}

	from := start - 1
	if from > len(matched) {
		from = len(matched)
	}
	to := from + limit
	if to > len(matched) {
		to = len(matched)
	}
	for _, res := range matched[from:to] {
		result.Resources = append(result.Resources, s.view(res, req.Attributes, req.ExcludedAttributes))
	}
	result.ItemsPerPage = len(result.Resources)
	return result, nil
}

// Get fetches a single resource with optional projection.
func (s *ResourceService) Get(ctx context.Context, tenant *domain.Tenant, id string, attributes, excluded []string) (*ResourceView, error) {
	res, err := s.store.FindByID(ctx, tenant.ID, s.resourceType, id)
	if err != nil {
		return nil, err
	}
	v := s.view(res, attributes, excluded)
	return &v, nil
}

// Create validates and persists a new resource. The primary identifier is
// required; id and meta are server-assigned regardless of what the client
// sent. Identifier collisions surface as *domain.UniquenessError.
func (s *ResourceService) Create(ctx context.Context, tenant *domain.Tenant, doc map[string]interface{}) (*ResourceView, error) {
	doc = attr.CloneDocument(doc)
	delete(doc, "meta")

	primary, err := s.extractPrimaryIdentifier(doc)
	if err != nil {
		return nil, err
	}
	if err := s.prepareDocument(ctx, tenant, doc); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res := &domain.Resource{
		ID:                uuid.NewString(),
		TenantID:          tenant.ID,
		Type:              s.resourceType,
		ExternalID:        extractExternalID(doc),
		PrimaryIdentifier: primary,
		Document:          doc,
		Meta: domain.Meta{
			ResourceType: s.resourceType,
			Created:      now,
			LastModified: now,
		},
	}
	attr.Set(doc, []string{"id"}, res.ID)

	created, err := s.store.Create(ctx, res)
	if err != nil {
		return nil, err
	}

	s.logger.Info("resource created", "id", created.ID, "tenant", tenant.ID)
	v := s.view(created, nil, nil)
	return &v, nil
}

// Replace overwrites a resource wholesale, preserving id and creation
// metadata, after an optional If-Match precondition.
func (s *ResourceService) Replace(ctx context.Context, tenant *domain.Tenant, id string, doc map[string]interface{}, ifMatch string) (*ResourceView, error) {
	current, err := s.store.FindByID(ctx, tenant.ID, s.resourceType, id)
	if err != nil {
		return nil, err
	}
	if err := version.CheckIfMatch(ifMatch, version.ETag(current.Meta.LastModified)); err != nil {
		return nil, err
	}

	doc = attr.CloneDocument(doc)
	delete(doc, "meta")
	if sent, ok := attr.Lookup(doc, "id"); ok {
		if sid, _ := sent.(string); sid != "" && sid != current.ID {
			return nil, domain.ErrMutability("attribute %q is read-only", "id")
		}
	}

	primary, err := s.extractPrimaryIdentifier(doc)
	if err != nil {
		return nil, err
	}
	if err := s.prepareDocument(ctx, tenant, doc); err != nil {
		return nil, err
	}
	attr.Set(doc, []string{"id"}, current.ID)

	current.PrimaryIdentifier = primary
	current.ExternalID = extractExternalID(doc)
	current.Document = doc
	current.Meta.LastModified = time.Now().UTC()

	updated, err := s.store.Update(ctx, current)
	if err != nil {
		return nil, err
	}
	v := s.view(updated, nil, nil)
	return &v, nil
}

// Patch applies an operation list. The computation is pure; only the final
// store.Update needs the write section, and any reads used to assemble the
// write (member resolution) happen before it.
func (s *ResourceService) Patch(ctx context.Context, tenant *domain.Tenant, id string, ops []domain.PatchOperation, ifMatch string) (*ResourceView, error) {
	if len(ops) == 0 {
		return nil, domain.ErrInvalidValue("Operations must contain at least one entry")
	}

	current, err := s.store.FindByID(ctx, tenant.ID, s.resourceType, id)
	if err != nil {
		return nil, err
	}
	if err := version.CheckIfMatch(ifMatch, version.ETag(current.Meta.LastModified)); err != nil {
		return nil, err
	}

	executor := &patch.Executor{
		Policy:          s.pol,
		Known:           s.known,
		AllowMultiValue: tenant.AllowMultiValuePatch,
	}
	newDoc, err := executor.Apply(s.representation(current), ops)
	if err != nil {
		return nil, err
	}

	primary, err := s.extractPrimaryIdentifier(newDoc)
	if err != nil {
		return nil, err
	}
	if err := s.prepareDocument(ctx, tenant, newDoc); err != nil {
		return nil, err
	}
	attr.Set(newDoc, []string{"id"}, current.ID)

	current.PrimaryIdentifier = primary
	current.ExternalID = extractExternalID(newDoc)
	current.Document = newDoc
	current.Meta.LastModified = time.Now().UTC()

	updated, err := s.store.Update(ctx, current)
	if err != nil {
		return nil, err
	}
	v := s.view(updated, nil, nil)
	return &v, nil
}

// Delete removes a resource from the tenant scope.
func (s *ResourceService) Delete(ctx context.Context, tenant *domain.Tenant, id string) error {
	return s.store.Delete(ctx, tenant.ID, s.resourceType, id)
}

// prepareDocument normalizes a representation before persistence: the
// schemas list always carries the core schema, and Group members are
// deduplicated and their display/$ref resolved while still outside the
// store's write section.
func (s *ResourceService) prepareDocument(ctx context.Context, tenant *domain.Tenant, doc map[string]interface{}) error {
	s.ensureSchemas(doc)
	if s.resourceType == domain.TypeGroup {
		return s.resolveMembers(ctx, tenant, doc)
	}
	return nil
}

func (s *ResourceService) ensureSchemas(doc map[string]interface{}) {
	core := domain.CoreSchema(s.resourceType)
	raw, _ := attr.Lookup(doc, "schemas")
	list, _ := raw.([]interface{})
	for _, e := range list {
		if str, ok := e.(string); ok && strings.EqualFold(str, core) {
			return
		}
	}
	attr.Set(doc, []string{"schemas"}, append([]interface{}{core}, list...))
}

// resolveMembers deduplicates Group members by value and fills display and
// $ref for members that reference a resource in the same tenant scope.
func (s *ResourceService) resolveMembers(ctx context.Context, tenant *domain.Tenant, doc map[string]interface{}) error {
	raw, ok := attr.Lookup(doc, "members")
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return domain.ErrInvalidValue("members must be a list")
	}

	seen := make(map[string]bool, len(list))
	out := make([]interface{}, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]interface{})
		if !ok {
			return domain.ErrInvalidValue("members entries must be objects")
		}
		value, _ := attr.Lookup(m, "value")
		id, ok := value.(string)
		if !ok || id == "" {
			return domain.ErrInvalidValue("members entries require a value")
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		if _, hasDisplay := attr.Lookup(m, "display"); !hasDisplay {
			if ref, err := s.store.FindByID(ctx, tenant.ID, domain.TypeUser, id); err == nil {
				attr.Set(m, []string{"display"}, ref.PrimaryIdentifier)
				attr.Set(m, []string{"type"}, domain.TypeUser)
			}
		}
		out = append(out, m)
	}
	attr.Set(doc, []string{"members"}, out)
	return nil
}

func (s *ResourceService) extractPrimaryIdentifier(doc map[string]interface{}) (string, error) {
	name := domain.PrimaryIdentifierAttr(s.resourceType)
	raw, ok := attr.Lookup(doc, name)
	if !ok {
		return "", domain.ErrInvalidValue("%s is required", name)
	}
	str, ok := raw.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return "", domain.ErrInvalidValue("%s must be a non-empty string", name)
	}
	return str, nil
}

func extractExternalID(doc map[string]interface{}) *string {
	raw, ok := attr.Lookup(doc, "externalId")
	if !ok {
		return nil
	}
	str, ok := raw.(string)
	if !ok || str == "" {
		return nil
	}
	return &str
}

// representation renders the stored document as the full SCIM body the
// evaluator and patch executor work on (id included, meta excluded).
func (s *ResourceService) representation(res *domain.Resource) map[string]interface{} {
	doc := attr.CloneDocument(res.Document)
	doc["id"] = res.ID
	return doc
}

// view renders a resource for a response: projection applied, meta and
// version attached, never-returned attributes stripped.
func (s *ResourceService) view(res *domain.Resource, attributes, excluded []string) ResourceView {
	etag := version.ETag(res.Meta.LastModified)
	location := fmt.Sprintf("%s/%s", s.basePath, res.ID)

	doc := s.representation(res)
	doc["meta"] = map[string]interface{}{
		"resourceType": s.resourceType,
		"created":      res.Meta.Created.UTC().Format(time.RFC3339Nano),
		"lastModified": res.Meta.LastModified.UTC().Format(time.RFC3339Nano),
		"location":     location,
		"version":      etag,
	}

	return ResourceView{
		ID:       res.ID,
		Document: attr.Project(doc, attributes, excluded, s.pol, s.known),
		ETag:     etag,
		Location: location,
	}
}
