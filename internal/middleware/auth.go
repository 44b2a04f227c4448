package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type subjectKey struct{}

// WithSubject stores the authenticated caller's subject in the context.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

// SubjectFromContext extracts the authenticated subject from the context.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey{}).(string)
	return sub, ok
}

// BearerAuth returns a middleware that requires a valid Bearer token on
// every request. Token issuance and full OAuth flows are an external
// concern; this only gates the SCIM surface on a validated token.
func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token := strings.TrimPrefix(auth, "Bearer ")
				if claims, err := validator.Validate(r.Context(), token); err == nil {
					ctx := WithSubject(r.Context(), claims.Subject)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Bearer realm="scim"`)
			w.Header().Set("Content-Type", "application/scim+json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:Error"},
				"detail":  "unauthorized: provide a valid Bearer token",
				"status":  "401",
			})
		})
	}
}
