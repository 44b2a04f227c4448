// Package patch implements the SCIM PATCH path resolver and the patch
// executor (RFC 7644 §3.5.2).
package patch

import (
	"strings"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
	"github.com/pranems/SCIMServer-sub002/internal/scim/attr"
	"github.com/pranems/SCIMServer-sub002/internal/scim/filter"
)

// Kind is the addressing mode of a PATCH path.
type Kind int

const (
	// KindNone is the path-less whole-object merge mode.
	KindNone Kind = iota
	// KindFirstClass is a bare identifier-bearing attribute name.
	KindFirstClass
	// KindExtension is a schema-URN-qualified path into an extension object.
	KindExtension
	// KindValuePath is attr[subAttr op "literal"] with an optional trailing
	// sub-attribute.
	KindValuePath
	// KindSimple is a plain or dotted path into the attribute bag.
	KindSimple
)

// Path is a classified PATCH path. Which fields are set depends on Kind.
type Path struct {
	Kind Kind
	// Attr is the top-level attribute in its input spelling (KindFirstClass,
	// KindValuePath, KindSimple).
	Attr string
	// Segments is the full dotted traversal (KindSimple, KindFirstClass) or
	// the traversal inside the extension object (KindExtension).
	Segments []string
	// URN is the extension schema URN (KindExtension).
	URN string
	// Filter is the embedded value-path sub-filter (KindValuePath).
	Filter filter.Expr
	// SubAttr is the sub-attribute after the closing bracket (KindValuePath).
	SubAttr string
}

// Resolve classifies a PATCH operation path into one of the five
// addressing modes. Classification order is fixed so ambiguous inputs
// resolve deterministically: first-class names, then extension URNs, then
// value paths, then plain/dotted paths. An empty string yields KindNone.
// Unresolvable input is a *domain.InvalidPathError.
func Resolve(path, resourceType string, known []string) (*Path, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return &Path{Kind: KindNone}, nil
	}

	if isFirstClass(path, resourceType) {
		return &Path{Kind: KindFirstClass, Attr: path, Segments: []string{path}}, nil
	}

	if urn, rest, ok := attr.SplitURN(path, known); ok {
		if strings.Contains(rest, "[") {
			return nil, domain.ErrInvalidPath("value-path filters inside extension paths are not supported: %q", path)
		}
		p := &Path{Kind: KindExtension, URN: urn}
		if rest != "" {
			p.Segments = strings.Split(rest, ".")
		}
		return p, nil
	}

	if strings.Contains(path, "[") {
		return resolveValuePath(path)
	}

	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, domain.ErrInvalidPath("empty segment in path %q", path)
		}
	}
	return &Path{Kind: KindSimple, Attr: segments[0], Segments: segments}, nil
}

func isFirstClass(path, resourceType string) bool {
	switch strings.ToLower(path) {
	case "externalid":
		return true
	case "username":
		return resourceType == domain.TypeUser
	case "displayname":
		return resourceType == domain.TypeGroup
	default:
		return false
	}
}

func resolveValuePath(path string) (*Path, error) {
	open := strings.Index(path, "[")
	closing := strings.LastIndex(path, "]")
	if closing < open || open == 0 {
		return nil, domain.ErrInvalidPath("unbalanced brackets in path %q", path)
	}

	inner, err := filter.Parse(path[open+1 : closing])
	if err != nil {
		return nil, domain.ErrInvalidPath("invalid value-path filter in %q: %v", path, err)
	}

	p := &Path{Kind: KindValuePath, Attr: path[:open], Filter: inner}
	rest := path[closing+1:]
	switch {
	case rest == "":
	case strings.HasPrefix(rest, "."):
		p.SubAttr = rest[1:]
		if p.SubAttr == "" || strings.ContainsAny(p.SubAttr, "[]") {
			return nil, domain.ErrInvalidPath("invalid sub-attribute in path %q", path)
		}
	default:
		return nil, domain.ErrInvalidPath("unexpected trailing %q in path %q", rest, path)
	}
	return p, nil
}
