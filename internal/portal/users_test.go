package portal_test

import (
	"context"
	"errors"
	"testing"

	"legitheque.org/internal/audit"
	"legitheque.org/internal/identity"
	"legitheque.org/internal/portal"
)

func (f *fixture) createUser(t *testing.T, actor identity.Identity, role string, sectors ...string) portal.User {
	t.Helper()
	user, err := f.users.CreateUser(context.Background(), actor, portal.CreateUserInput{
		Name:     "Awa Diallo",
		Email:    role + "@example.org",
		Password: "motdepasse",
		Role:     role,
		Sectors:  sectors,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", role, err)
	}
	return user
}

func TestCreateUserAdminNarrowsSectors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.CreateUser(ctx, admin("agriculture"), portal.CreateUserInput{
		Name:     "Moussa Ba",
		Email:    "moussa@example.org",
		Password: "motdepasse",
		Role:     "EDITOR",
		Sectors:  []string{"agriculture", "peche"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if len(user.SectorSlugs) != 1 || user.SectorSlugs[0] != "agriculture" {
		t.Fatalf("sectors should be narrowed to the admin's own, got %v", user.SectorSlugs)
	}

	events := f.store.Events()
	if len(events) != 1 || events[0].Action != audit.ActionCreateUser {
		t.Fatalf("expected one CREATE_USER event, got %v", events)
	}
	if events[0].SectorID != f.agriculture.ID {
		t.Fatalf("audit sector should be the first association, got %s", events[0].SectorID)
	}
}

func TestCreateUserAdminEmptyIntersection(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.CreateUser(context.Background(), admin("agriculture"), portal.CreateUserInput{
		Name:     "Moussa Ba",
		Email:    "moussa@example.org",
		Password: "motdepasse",
		Role:     "VIEWER",
		Sectors:  []string{"peche"},
	})
	if !errors.Is(err, portal.ErrValidation) {
		t.Fatalf("empty sector intersection must be ErrValidation, got %v", err)
	}
	if users, _ := f.store.ListUsers(context.Background()); len(users) != 0 {
		t.Fatalf("no account may be created, got %d", len(users))
	}
	if len(f.store.Events()) != 0 {
		t.Fatalf("failed creation must not audit")
	}
}

func TestCreateUserRoleCeilingForAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, role := range []string{"ADMIN", "SUPER_ADMIN"} {
		_, err := f.users.CreateUser(ctx, admin("agriculture"), portal.CreateUserInput{
			Name:     "Moussa Ba",
			Email:    "moussa@example.org",
			Password: "motdepasse",
			Role:     role,
			Sectors:  []string{"agriculture"},
		})
		if !errors.Is(err, portal.ErrDenied) {
			t.Fatalf("admin handing out %s must be denied, got %v", role, err)
		}
	}
	// SUPER_ADMIN may hand out anything.
	if _, err := f.users.CreateUser(ctx, superAdmin(), portal.CreateUserInput{
		Name:     "Fatou Sow",
		Email:    "fatou@example.org",
		Password: "motdepasse",
		Role:     "ADMIN",
		Sectors:  []string{"agriculture"},
	}); err != nil {
		t.Fatalf("super admin creating an admin: %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		name string
		in   portal.CreateUserInput
	}{
		{"short password", portal.CreateUserInput{Name: "Awa", Email: "awa@example.org", Password: "court", Role: "VIEWER"}},
		{"bad email", portal.CreateUserInput{Name: "Awa", Email: "not-an-email", Password: "motdepasse", Role: "VIEWER"}},
		{"short name", portal.CreateUserInput{Name: "A", Email: "awa@example.org", Password: "motdepasse", Role: "VIEWER"}},
		{"unknown role", portal.CreateUserInput{Name: "Awa", Email: "awa@example.org", Password: "motdepasse", Role: "OWNER"}},
	}
	for _, tc := range cases {
		if _, err := f.users.CreateUser(ctx, superAdmin(), tc.in); !errors.Is(err, portal.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, superAdmin(), "VIEWER", "agriculture")
	_, err := f.users.CreateUser(ctx, superAdmin(), portal.CreateUserInput{
		Name:     "Awa Diallo",
		Email:    "VIEWER@example.org", // same address, different case
		Password: "motdepasse",
		Role:     "VIEWER",
		Sectors:  []string{"agriculture"},
	})
	if !errors.Is(err, portal.ErrConflict) {
		t.Fatalf("duplicate email must be ErrConflict, got %v", err)
	}
}

func TestSetUserActiveReasonRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.createUser(t, superAdmin(), "EDITOR", "agriculture")
	before := len(f.store.Events())

	for _, reason := range []string{"", "quit", "   ab  "} {
		if _, err := f.users.SetUserActive(ctx, superAdmin(), target.ID, false, reason); !errors.Is(err, portal.ErrValidation) {
			t.Fatalf("reason %q: expected ErrValidation, got %v", reason, err)
		}
	}
	got, err := f.store.UserByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if !got.IsActive {
		t.Fatalf("rejected deactivation must not toggle the account")
	}
	if len(f.store.Events()) != before {
		t.Fatalf("rejected deactivation must not audit")
	}

	updated, err := f.users.SetUserActive(ctx, superAdmin(), target.ID, false, "  left the ministry  ")
	if err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if updated.IsActive {
		t.Fatalf("account should be inactive")
	}
	events := f.store.Events()
	if len(events) != before+1 {
		t.Fatalf("expected exactly one new event, got %d", len(events)-before)
	}
	last := events[len(events)-1]
	if last.Action != audit.ActionDeactivateUser || last.Reason != "left the ministry" {
		t.Fatalf("expected DEACTIVATE_USER with trimmed reason, got %+v", last)
	}
}

func TestSetUserActiveReactivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.createUser(t, superAdmin(), "EDITOR", "agriculture")
	if _, err := f.users.SetUserActive(ctx, superAdmin(), target.ID, false, "left the ministry"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// Reactivation needs no reason.
	updated, err := f.users.SetUserActive(ctx, superAdmin(), target.ID, true, "")
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if !updated.IsActive {
		t.Fatalf("account should be active again")
	}
	events := f.store.Events()
	if events[len(events)-1].Action != audit.ActionActivateUser {
		t.Fatalf("expected ACTIVATE_USER, got %s", events[len(events)-1].Action)
	}
}

func TestSuperAdminCannotDeactivateSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	self := f.createUser(t, superAdmin(), "SUPER_ADMIN")
	actor := identity.Identity{ID: self.ID, Role: identity.RoleSuperAdmin}
	before := len(f.store.Events())

	_, err := f.users.SetUserActive(ctx, actor, self.ID, false, "stepping down now")
	if !errors.Is(err, portal.ErrConflict) {
		t.Fatalf("self deactivation must be ErrConflict, got %v", err)
	}
	got, _ := f.store.UserByID(ctx, self.ID)
	if !got.IsActive {
		t.Fatalf("account must stay active")
	}
	if len(f.store.Events()) != before {
		t.Fatalf("rejected self deactivation must not audit")
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.createUser(t, superAdmin(), "VIEWER", "agriculture")

	if err := f.users.DeleteUser(ctx, superAdmin(), target.ID, "bad"); !errors.Is(err, portal.ErrValidation) {
		t.Fatalf("short reason must be ErrValidation, got %v", err)
	}
	if err := f.users.DeleteUser(ctx, superAdmin(), target.ID, "account requested removal"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := f.store.UserByID(ctx, target.ID); !errors.Is(err, portal.ErrNotFound) {
		t.Fatalf("user should be gone, got %v", err)
	}
	events := f.store.Events()
	last := events[len(events)-1]
	if last.Action != audit.ActionDeleteUser || last.EntityID != target.ID {
		t.Fatalf("expected DELETE_USER for %s, got %+v", target.ID, last)
	}
}

func TestDeleteUserWithDocumentsIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author, err := f.users.CreateUser(ctx, superAdmin(), portal.CreateUserInput{
		Name:     "Cheikh Ndiaye",
		Email:    "cheikh@example.org",
		Password: "motdepasse",
		Role:     "EDITOR",
		Sectors:  []string{"agriculture"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	actor := identity.Identity{ID: author.ID, Role: identity.RoleEditor, SectorSlugs: []string{"agriculture"}}
	f.upload(t, actor, "agriculture")

	err = f.users.DeleteUser(ctx, superAdmin(), author.ID, "cleanup of stale accounts")
	if !errors.Is(err, portal.ErrConflict) {
		t.Fatalf("authors of documents must not be deletable, got %v", err)
	}
	if _, err := f.store.UserByID(ctx, author.ID); err != nil {
		t.Fatalf("author must still exist: %v", err)
	}
}

func TestSuperAdminCannotDeleteSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	self := f.createUser(t, superAdmin(), "SUPER_ADMIN")
	actor := identity.Identity{ID: self.ID, Role: identity.RoleSuperAdmin}
	before := len(f.store.Events())

	err := f.users.DeleteUser(ctx, actor, self.ID, "closing my own account")
	if !errors.Is(err, portal.ErrConflict) {
		t.Fatalf("self deletion must be ErrConflict, got %v", err)
	}
	if _, err := f.store.UserByID(ctx, self.ID); err != nil {
		t.Fatalf("account must survive: %v", err)
	}
	if len(f.store.Events()) != before {
		t.Fatalf("rejected self deletion must not audit")
	}
}

func TestListUsersVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, superAdmin(), "EDITOR", "agriculture")
	f.createUser(t, superAdmin(), "VIEWER", "peche")
	f.createUser(t, superAdmin(), "ADMIN", "peche")

	all, err := f.users.ListUsers(ctx, superAdmin())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("super admin should see every user, got %d", len(all))
	}

	// Admin of agriculture sees only EDITOR/VIEWER accounts sharing a sector.
	scoped, err := f.users.ListUsers(ctx, admin("agriculture"))
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Role != identity.RoleEditor {
		t.Fatalf("admin should see the agriculture editor only, got %+v", scoped)
	}

	if _, err := f.users.ListUsers(ctx, editor("agriculture")); !errors.Is(err, portal.ErrDenied) {
		t.Fatalf("editor listing must be denied, got %v", err)
	}
}
