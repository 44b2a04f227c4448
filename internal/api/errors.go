// Package api provides the SCIM 2.0 HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

// errorEnvelope is the RFC 7644 §3.12 error response body. Status carries
// the HTTP status as a string, never a number.
type errorEnvelope struct {
	Schemas  []string `json:"schemas"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail"`
	Status   string   `json:"status"`
}

// classifyError maps a domain error to its HTTP status and SCIM error type.
func classifyError(err error) (int, string) {
	var (
		invalidFilter   *domain.InvalidFilterError
		invalidPath     *domain.InvalidPathError
		invalidValue    *domain.InvalidValueError
		noTarget        *domain.NoTargetError
		uniqueness      *domain.UniquenessError
		versionMismatch *domain.VersionMismatchError
		mutability      *domain.MutabilityError
		notFound        *domain.NotFoundError
		validation      *domain.ValidationError
	)

	switch {
	case errors.As(err, &invalidFilter):
		return http.StatusBadRequest, domain.ScimTypeInvalidFilter
	case errors.As(err, &invalidPath):
		return http.StatusBadRequest, domain.ScimTypeInvalidPath
	case errors.As(err, &invalidValue):
		return http.StatusBadRequest, domain.ScimTypeInvalidValue
	case errors.As(err, &noTarget):
		return http.StatusBadRequest, domain.ScimTypeNoTarget
	case errors.As(err, &uniqueness):
		return http.StatusConflict, domain.ScimTypeUniqueness
	case errors.As(err, &versionMismatch):
		return http.StatusPreconditionFailed, ""
	case errors.As(err, &mutability):
		return http.StatusNotImplemented, domain.ScimTypeMutability
	case errors.As(err, &notFound):
		return http.StatusNotFound, ""
	case errors.As(err, &validation):
		return http.StatusBadRequest, domain.ScimTypeInvalidValue
	default:
		return http.StatusInternalServerError, ""
	}
}

// writeError renders the single well-formed SCIM error envelope every
// failure path produces.
func writeError(w http.ResponseWriter, err error) {
	status, scimType := classifyError(err)

	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal server error"
	}

	w.Header().Set("Content-Type", scimMediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Schemas:  []string{domain.MessageError},
		ScimType: scimType,
		Detail:   detail,
		Status:   strconv.Itoa(status),
	})
}
