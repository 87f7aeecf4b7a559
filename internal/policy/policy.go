// Package policy is the portal's authorization engine. Every decision is a
// pure function over an Identity snapshot and a resource descriptor: no I/O,
// no state, no clock. Gateways call these checks before touching storage and
// translate the returned sentinels into API errors.
package policy

import (
	"fmt"

	"legitheque.org/internal/identity"
)

// DocumentStatus is the document lifecycle state.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"
	StatusPublished DocumentStatus = "PUBLISHED"
	StatusArchived  DocumentStatus = "ARCHIVED"
)

// ParseStatus normalizes a textual status.
func ParseStatus(raw string) (DocumentStatus, bool) {
	switch DocumentStatus(raw) {
	case StatusDraft:
		return StatusDraft, true
	case StatusPublished:
		return StatusPublished, true
	case StatusArchived:
		return StatusArchived, true
	}
	return "", false
}

// UserRef describes the target of a user mutation: just enough of the user
// row for the policy checks, resolved by the gateway before asking.
type UserRef struct {
	ID               string
	Role             identity.Role
	SectorSlugs      []string
	DocumentsCreated int
}

// HasAnyRole reports whether the identity's role is in the allowed set.
func HasAnyRole(id identity.Identity, roles ...identity.Role) bool {
	for _, role := range roles {
		if id.Role == role {
			return true
		}
	}
	return false
}

// AssertSectorScope checks whether the identity may act against the given
// sector. SUPER_ADMIN, EDITOR and VIEWER hold global sector scope: EDITOR and
// VIEWER are cross-sector content roles. ADMIN is the only role whose
// authority is sector-fenced and must be a member of the target sector.
func AssertSectorScope(id identity.Identity, sectorSlug string) error {
	switch id.Role {
	case identity.RoleSuperAdmin, identity.RoleEditor, identity.RoleViewer:
		return nil
	}
	if !id.InSector(sectorSlug) {
		return fmt.Errorf("%w: sector %q out of scope", ErrDenied, sectorSlug)
	}
	return nil
}

// DocumentInScope reports whether the request sector gives access to the
// document. SUPER_ADMIN, VIEWER and EDITOR bypass the per-document sector
// membership check; other roles need the request sector among the document's
// sectors.
func DocumentInScope(id identity.Identity, sectorSlug string, documentSectors []string) bool {
	switch id.Role {
	case identity.RoleSuperAdmin, identity.RoleViewer, identity.RoleEditor:
		return true
	}
	for _, slug := range documentSectors {
		if slug == sectorSlug {
			return true
		}
	}
	return false
}

// CanViewDocument gates document metadata access: published documents are
// visible to everyone in scope, drafts and archived documents only to the
// content roles.
func CanViewDocument(id identity.Identity, status DocumentStatus) bool {
	if status == StatusPublished {
		return true
	}
	return HasAnyRole(id, identity.RoleAdmin, identity.RoleEditor, identity.RoleSuperAdmin)
}

// CanDownloadDocument gates file downloads. Same rule as metadata access;
// the gateway additionally requires the backing file to exist.
func CanDownloadDocument(id identity.Identity, status DocumentStatus) bool {
	if status == StatusPublished {
		return true
	}
	return HasAnyRole(id, identity.RoleAdmin, identity.RoleEditor, identity.RoleSuperAdmin)
}

// CanMutateUser reports whether the actor may manage a user with the given
// role and sector memberships. SUPER_ADMIN manages everyone; ADMIN manages
// only EDITOR/VIEWER users sharing at least one sector.
func CanMutateUser(actor identity.Identity, targetRole identity.Role, targetSectorSlugs []string) bool {
	switch actor.Role {
	case identity.RoleSuperAdmin:
		return true
	case identity.RoleAdmin:
		if targetRole != identity.RoleEditor && targetRole != identity.RoleViewer {
			return false
		}
		for _, slug := range targetSectorSlugs {
			if actor.InSector(slug) {
				return true
			}
		}
		return false
	}
	return false
}

// CanCreateUserWithRole restricts which roles an actor may hand out.
// SUPER_ADMIN may create any role; ADMIN only EDITOR or VIEWER. A role is
// never self-escalatable through this surface.
func CanCreateUserWithRole(actor identity.Identity, requested identity.Role) bool {
	switch actor.Role {
	case identity.RoleSuperAdmin:
		return true
	case identity.RoleAdmin:
		return requested == identity.RoleEditor || requested == identity.RoleViewer
	}
	return false
}

// CanDeleteUser decides whether the target account may be removed at all.
// A super-admin never deletes their own account (irrecoverable lockout), and
// a user who has created documents can only be deactivated, never deleted —
// those two rules hold for every actor including SUPER_ADMIN.
func CanDeleteUser(actor identity.Identity, target UserRef) error {
	if actor.ID == target.ID && target.Role == identity.RoleSuperAdmin {
		return fmt.Errorf("%w: cannot delete your own super administrator account", ErrConflict)
	}
	if target.DocumentsCreated >= 1 {
		return fmt.Errorf("%w: user has created documents and cannot be deleted; deactivate the account instead", ErrConflict)
	}
	if !CanMutateUser(actor, target.Role, target.SectorSlugs) {
		return fmt.Errorf("%w: cannot manage this user", ErrDenied)
	}
	return nil
}

// CanDeactivateUser guards activation toggles. The self-lockout rule applies
// only when deactivating; re-activating yourself is not blocked (a
// deactivated account cannot authenticate, so the branch is unreachable
// through normal flows, but the guard stays one-directional).
func CanDeactivateUser(actor identity.Identity, target UserRef, requestedActive bool) error {
	if !CanMutateUser(actor, target.Role, target.SectorSlugs) {
		return fmt.Errorf("%w: cannot manage this user", ErrDenied)
	}
	if !requestedActive && actor.ID == target.ID && target.Role == identity.RoleSuperAdmin {
		return fmt.Errorf("%w: cannot deactivate your own super administrator account", ErrConflict)
	}
	return nil
}
