package portal

import (
	"context"
	"fmt"
	"strings"

	"legitheque.org/internal/audit"
	"legitheque.org/internal/identity"
	"legitheque.org/internal/ids"
	"legitheque.org/internal/policy"
)

const (
	minPasswordLength = 8
	minReasonLength   = 5
)

// UserService is the user gateway.
type UserService struct {
	store UserStore
	audit *audit.Recorder
}

// NewUserService constructs the user gateway.
func NewUserService(store UserStore, recorder *audit.Recorder) *UserService {
	return &UserService{store: store, audit: recorder}
}

// CreateUserInput is the account creation payload.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Sectors  []string
}

// CreateUser registers an account. An ADMIN actor may only hand out
// EDITOR/VIEWER and the requested sectors are narrowed to the actor's own;
// an empty intersection is a hard error, never a zero-sector account.
func (s *UserService) CreateUser(ctx context.Context, actor identity.Identity, input CreateUserInput) (User, error) {
	if actor.ID == "" {
		return User{}, ErrUnauthenticated
	}
	if !policy.HasAnyRole(actor, identity.RoleSuperAdmin, identity.RoleAdmin) {
		return User{}, fmt.Errorf("%w: user creation requires an administrator", ErrDenied)
	}
	role, ok := identity.ParseRole(input.Role)
	if !ok {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, input.Role)
	}
	if !policy.CanCreateUserWithRole(actor, role) {
		return User{}, fmt.Errorf("%w: role not allowed for this administrator", ErrDenied)
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if len(input.Name) < 2 {
		return User{}, fmt.Errorf("%w: name must be at least 2 characters", ErrValidation)
	}
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	slugs := identity.NormalizeSlugs(input.Sectors)
	if actor.Role == identity.RoleAdmin {
		var narrowed []string
		for _, slug := range slugs {
			if actor.InSector(slug) {
				narrowed = append(narrowed, slug)
			}
		}
		if len(narrowed) == 0 {
			return User{}, fmt.Errorf("%w: no authorized sector for this user", ErrValidation)
		}
		slugs = narrowed
	}

	hash, err := identity.HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}

	var sectorIDs, sectorSlugs []string
	if len(slugs) > 0 {
		sectors, err := s.store.SectorsBySlugs(ctx, slugs)
		if err != nil {
			return User{}, err
		}
		for _, sector := range sectors {
			sectorIDs = append(sectorIDs, sector.ID)
			sectorSlugs = append(sectorSlugs, sector.Slug)
		}
	}

	user := User{
		ID:           ids.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		SectorIDs:    sectorIDs,
		SectorSlugs:  sectorSlugs,
	}
	if err := s.store.CreateUser(ctx, &user, sectorIDs); err != nil {
		return User{}, err
	}

	// The audit event is emitted only when at least one sector association
	// was made; its sector is the first created association.
	if len(sectorIDs) > 0 {
		if err := s.audit.Record(ctx, audit.Event{
			ActorUserID: actor.ID,
			Action:      audit.ActionCreateUser,
			EntityType:  "User",
			EntityID:    user.ID,
			SectorID:    sectorIDs[0],
		}); err != nil {
			return User{}, err
		}
	}
	return user, nil
}

// ListUsers returns the users the actor may see: SUPER_ADMIN sees everyone,
// ADMIN sees EDITOR/VIEWER users sharing at least one sector.
func (s *UserService) ListUsers(ctx context.Context, actor identity.Identity) ([]User, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	switch actor.Role {
	case identity.RoleSuperAdmin:
		return s.store.ListUsers(ctx)
	case identity.RoleAdmin:
		return s.store.ListUsersByRolesAndSectors(ctx,
			[]identity.Role{identity.RoleEditor, identity.RoleViewer},
			actor.SectorSlugs)
	}
	return nil, fmt.Errorf("%w: user listing requires an administrator", ErrDenied)
}

// SetUserActive toggles an account. Deactivation demands a reason of at
// least 5 characters after trimming and never applies to the caller's own
// super administrator account.
func (s *UserService) SetUserActive(ctx context.Context, actor identity.Identity, targetID string, active bool, reason string) (User, error) {
	if actor.ID == "" {
		return User{}, ErrUnauthenticated
	}
	target, err := s.store.UserByID(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	ref := policy.UserRef{ID: target.ID, Role: target.Role, SectorSlugs: target.SectorSlugs}
	if err := policy.CanDeactivateUser(actor, ref, active); err != nil {
		return User{}, err
	}
	reason = strings.TrimSpace(reason)
	if !active && len(reason) < minReasonLength {
		return User{}, fmt.Errorf("%w: a reason of at least %d characters is required to deactivate", ErrValidation, minReasonLength)
	}

	if err := s.store.SetUserActive(ctx, target.ID, active); err != nil {
		return User{}, err
	}
	target.IsActive = active

	action := audit.ActionDeactivateUser
	if active {
		action = audit.ActionActivateUser
	}
	if err := s.audit.Record(ctx, audit.Event{
		ActorUserID: actor.ID,
		Action:      action,
		EntityType:  "User",
		EntityID:    target.ID,
		Reason:      reason,
	}); err != nil {
		return User{}, err
	}
	return target, nil
}

// DeleteUser removes an account. Users who have created documents are never
// deleted; deactivation is the only path for them. Cleanup is ordered:
// sector memberships, then sessions and credentials, then the user row.
func (s *UserService) DeleteUser(ctx context.Context, actor identity.Identity, targetID, reason string) error {
	if actor.ID == "" {
		return ErrUnauthenticated
	}
	target, err := s.store.UserByID(ctx, targetID)
	if err != nil {
		return err
	}
	created, err := s.store.CountDocumentsCreatedBy(ctx, target.ID)
	if err != nil {
		return err
	}
	ref := policy.UserRef{
		ID:               target.ID,
		Role:             target.Role,
		SectorSlugs:      target.SectorSlugs,
		DocumentsCreated: created,
	}
	if err := policy.CanDeleteUser(actor, ref); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < minReasonLength {
		return fmt.Errorf("%w: a reason of at least %d characters is required to delete", ErrValidation, minReasonLength)
	}

	if err := s.store.DeleteUser(ctx, target.ID); err != nil {
		return err
	}
	return s.audit.Record(ctx, audit.Event{
		ActorUserID: actor.ID,
		Action:      audit.ActionDeleteUser,
		EntityType:  "User",
		EntityID:    target.ID,
		Reason:      reason,
	})
}
