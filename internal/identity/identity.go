package identity

import "strings"

// Role is one of the four portal roles. Capability checks enumerate explicit
// allow-sets instead of comparing ranks: ADMIN sits above EDITOR nominally but
// is the only sector-fenced role, so a total order would be wrong.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleEditor     Role = "EDITOR"
	RoleViewer     Role = "VIEWER"
)

// ParseRole normalizes a textual role. The zero Role and an unknown input are
// both reported as invalid.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleEditor:
		return RoleEditor, true
	case RoleViewer:
		return RoleViewer, true
	}
	return "", false
}

// Identity is the authenticated caller: a snapshot of the user row and its
// sector memberships taken at authentication time. It is immutable for the
// duration of a request and is always passed explicitly.
type Identity struct {
	ID          string
	Role        Role
	SectorSlugs []string
}

// InSector reports whether the identity is a member of the given sector.
func (id Identity) InSector(slug string) bool {
	for _, s := range id.SectorSlugs {
		if s == slug {
			return true
		}
	}
	return false
}

// NormalizeSlugs trims, lower-cases and deduplicates sector slugs while
// preserving order.
func NormalizeSlugs(slugs []string) []string {
	if len(slugs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(slugs))
	var out []string
	for _, slug := range slugs {
		slug = strings.TrimSpace(strings.ToLower(slug))
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}
