package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

type tenantKey struct{}

// TenantHeader names the request header that selects the tenant scope.
const TenantHeader = "X-Tenant-ID"

// WithTenant stores the resolved tenant scope in the context.
func WithTenant(ctx context.Context, t *domain.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

// TenantFromContext extracts the tenant scope. Handlers behind
// TenantResolver can rely on a non-nil result.
func TenantFromContext(ctx context.Context) *domain.Tenant {
	t, _ := ctx.Value(tenantKey{}).(*domain.Tenant)
	return t
}

// TenantResolver returns a middleware that resolves the active tenant
// scope from the X-Tenant-ID header (matched against tenant name or id),
// falling back to defaultName when the header is absent. Requests naming
// an unknown tenant are rejected before any handler runs.
func TenantResolver(store domain.TenantStore, defaultName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := r.Header.Get(TenantHeader)
			if name == "" {
				name = defaultName
			}

			tenant, err := store.GetByName(r.Context(), name)
			if err != nil {
				tenant, err = store.GetByID(r.Context(), name)
			}
			if err != nil {
				w.Header().Set("Content-Type", "application/scim+json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"schemas": []string{domain.MessageError},
					"detail":  "unknown tenant",
					"status":  "401",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenant)))
		})
	}
}
