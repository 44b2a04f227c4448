// Package version derives weak ETags from resource modification times and
// implements the conditional-request checks built on them.
package version

import (
	"strings"
	"time"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

// ETag returns the weak version token of a resource. The token is derived
// from meta.lastModified alone at full stored precision, so it changes on
// every successful mutation and only then.
func ETag(lastModified time.Time) string {
	return `W/"` + lastModified.UTC().Format(time.RFC3339Nano) + `"`
}

// NotModified reports whether an If-None-Match header matches the current
// version, i.e. the caller's copy is still fresh and the response should
// be 304 with no body.
func NotModified(ifNoneMatch, current string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || tagValue(candidate) == tagValue(current) {
			return true
		}
	}
	return false
}

// CheckIfMatch validates an If-Match precondition against the current
// version. An empty header passes (the precondition is optional); a
// mismatch is a *domain.VersionMismatchError.
func CheckIfMatch(ifMatch, current string) error {
	if ifMatch == "" {
		return nil
	}
	for _, candidate := range strings.Split(ifMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || tagValue(candidate) == tagValue(current) {
			return nil
		}
	}
	return domain.ErrVersionMismatch("version %s does not match If-Match %s", current, ifMatch)
}

// tagValue strips the weak prefix and quotes so comparison follows weak
// ETag semantics.
func tagValue(tag string) string {
	tag = strings.TrimPrefix(tag, "W/")
	tag = strings.TrimPrefix(tag, "w/")
	return strings.Trim(tag, `"`)
}
