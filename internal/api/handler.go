package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
	"github.com/pranems/SCIMServer-sub002/internal/middleware"
	"github.com/pranems/SCIMServer-sub002/internal/scim/version"
	"github.com/pranems/SCIMServer-sub002/internal/service"
)

// scimMediaType is the fixed Content-Type of every SCIM response.
const scimMediaType = "application/scim+json"

// Handler serves the SCIM 2.0 protocol endpoints.
type Handler struct {
	users  *service.ResourceService
	groups *service.ResourceService
	logger *slog.Logger
}

// NewHandler creates the handler with its service dependencies.
func NewHandler(users, groups *service.ResourceService, logger *slog.Logger) *Handler {
	return &Handler{users: users, groups: groups, logger: logger.With("component", "api")}
}

// Mount registers the SCIM routes on a router. The tenant-resolution
// middleware must run before these handlers.
func (h *Handler) Mount(r chi.Router) {
	for _, svc := range []*service.ResourceService{h.users, h.groups} {
		svc := svc
		r.Route("/"+svc.ResourceType()+"s", func(r chi.Router) {
			r.Get("/", h.list(svc))
			r.Post("/", h.create(svc))
			r.Post("/.search", h.search(svc))
			r.Get("/{id}", h.get(svc))
			r.Put("/{id}", h.replace(svc))
			r.Patch("/{id}", h.patch(svc))
			r.Delete("/{id}", h.delete(svc))
		})
	}
	r.Get("/ServiceProviderConfig", h.serviceProviderConfig)
	r.Get("/ResourceTypes", h.resourceTypes)
	r.Get("/Schemas", h.schemas)
}

// listResponse is the RFC 7644 §3.4.2 query response envelope.
type listResponse struct {
	Schemas      []string                 `json:"schemas"`
	TotalResults int                      `json:"totalResults"`
	StartIndex   int                      `json:"startIndex"`
	ItemsPerPage int                      `json:"itemsPerPage"`
	Resources    []map[string]interface{} `json:"Resources"`
}

// searchRequest is the body of search-by-POST; the fields mirror the GET
// query parameters.
type searchRequest struct {
	Schemas            []string `json:"schemas"`
	Filter             string   `json:"filter"`
	Attributes         []string `json:"attributes"`
	ExcludedAttributes []string `json:"excludedAttributes"`
	StartIndex         int      `json:"startIndex"`
	Count              *int     `json:"count"`
}

// patchRequest is the body of PATCH.
type patchRequest struct {
	Schemas    []string                `json:"schemas"`
	Operations []domain.PatchOperation `json:"Operations"`
}

func (h *Handler) list(svc *service.ResourceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())
		q := r.URL.Query()

		count := 0
		if q.Has("count") {
			count = intParam(q.Get("count"), 0)
			if count <= 0 {
				count = -1 // explicit zero count: totals only
			}
		}
		req := service.SearchRequest{
			Filter:             q.Get("filter"),
			Attributes:         splitNames(q.Get("attributes")),
			ExcludedAttributes: splitNames(q.Get("excludedAttributes")),
			Page: domain.PageRequest{
				StartIndex: intParam(q.Get("startIndex"), 1),
				Count:      count,
			},
		}
		h.runSearch(w, r, svc, tenant, req)
	}
}

func (h *Handler) search(svc *service.ResourceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())

		var body searchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, domain.ErrInvalidValue("malformed search request: %v", err))
			return
		}

		count := 0
		if body.Count != nil {
			count = *body.Count
			if count <= 0 {
				count = -1 // explicit zero/negative count: totals only
			}
		}
		req := service.SearchRequest{
			Filter:             body.Filter,
			Attributes:         body.Attributes,
			ExcludedAttributes: body.ExcludedAttributes,
			Page:               domain.PageRequest{StartIndex: body.StartIndex, Count: count},
		}
		h.runSearch(w, r, svc, tenant, req)
	}
}

func (h *Handler) runSearch(w http.ResponseWriter, r *http.Request, svc *service.ResourceService, tenant *domain.Tenant, req service.SearchRequest) {
	result, err := svc.Search(r.Context(), tenant, req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listResponse{
		Schemas:      []string{domain.MessageListResponse},
		TotalResults: result.TotalResults,
		StartIndex:   result.StartIndex,
		ItemsPerPage: result.ItemsPerPage,
		Resources:    make([]map[string]interface{}, 0, len(result.Resources)),
	}
	for _, v := range result.Resources {
		resp.Resources = append(resp.Resources, v.Document)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) create(svc *service.ResourceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())

		var doc map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			writeError(w, domain.ErrInvalidValue("malformed resource body: %v", err))
			return
		}

		view, err := svc.Create(r.Context(), tenant, doc)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Location", view.Location)
		w.Header().Set("ETag", view.ETag)
		writeJSON(w, http.StatusCreated, view.Document)
	}
}

func (h *Handler) get(svc *service.ResourceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())
		q := r.URL.Query()

		view, err := svc.Get(r.Context(), tenant, chi.URLParam(r, "id"),
			splitNames(q.Get("attributes")), splitNames(q.Get("excludedAttributes")))
		if err != nil {
			writeError(w, err)
			return
		}

		if version.NotModified(r.Header.Get("If-None-Match"), view.ETag) {
			w.Header().Set("ETag", view.ETag)
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", view.ETag)
		writeJSON(w, http.StatusOK, view.Document)
	}
}

func (h *Handler) replace(svc *service.ResourceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())

		var doc map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			writeError(w, domain.ErrInvalidValue("malformed resource body: %v", err))
			return
		}

		view, err := svc.Replace(r.Context(), tenant, chi.URLParam(r, "id"), doc, r.Header.Get("If-Match"))
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("ETag", view.ETag)
		writeJSON(w, http.StatusOK, view.Document)
	}
}

func (h *Handler) patch(svc *service.ResourceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())

		var body patchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, domain.ErrInvalidValue("malformed patch request: %v", err))
			return
		}
		if !containsSchema(body.Schemas, domain.MessagePatchOp) {
			writeError(w, domain.ErrInvalidValue("patch request must declare schema %s", domain.MessagePatchOp))
			return
		}

		view, err := svc.Patch(r.Context(), tenant, chi.URLParam(r, "id"), body.Operations, r.Header.Get("If-Match"))
		if err != nil {
			writeError(w, err)
			return
		}

		// the full updated resource, not a bare 204
		w.Header().Set("ETag", view.ETag)
		writeJSON(w, http.StatusOK, view.Document)
	}
}

func (h *Handler) delete(svc *service.ResourceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := middleware.TenantFromContext(r.Context())

		if err := svc.Delete(r.Context(), tenant, chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", scimMediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// splitNames parses a comma-separated attribute name list.
func splitNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func containsSchema(schemas []string, urn string) bool {
	for _, s := range schemas {
		if strings.EqualFold(s, urn) {
			return true
		}
	}
	return false
}
