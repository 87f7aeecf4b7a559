package portal

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"legitheque.org/internal/identity"
	"legitheque.org/internal/policy"
)

// MenuService derives each sector's visible navigation from the global legal
// level ordering plus the sector's override rows.
type MenuService struct {
	store MenuStore
}

// NewMenuService constructs the menu gateway.
func NewMenuService(store MenuStore) *MenuService {
	return &MenuService{store: store}
}

// MenuEntryInput is one override row submitted by a sector administrator.
// Entries whose legal level cannot be resolved are skipped, not rejected.
type MenuEntryInput struct {
	LegalLevelID  string
	OrderOverride *int
	LabelOverride *string
	IsVisible     bool
}

// ResolveMenu returns the sector's ordered, visible menu.
func (s *MenuService) ResolveMenu(ctx context.Context, actor identity.Identity, sectorSlug string) ([]MenuEntry, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	if err := policy.AssertSectorScope(actor, sectorSlug); err != nil {
		return nil, err
	}
	sector, err := s.store.SectorBySlug(ctx, sectorSlug)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.MenuRows(ctx, sector.ID)
	if err != nil {
		return nil, err
	}
	return buildMenu(rows), nil
}

// buildMenu is the pure projection: visible rows only, effective order is the
// override when present else the level's base order, label is the override
// when present else the base name. Ties break on ascending legal level id so
// the result is deterministic.
func buildMenu(rows []MenuRow) []MenuEntry {
	entries := make([]MenuEntry, 0, len(rows))
	for _, row := range rows {
		if !row.Link.IsVisible {
			continue
		}
		order := row.Level.LegalOrder
		if row.Link.OrderOverride != nil {
			order = *row.Link.OrderOverride
		}
		label := row.Level.Name
		if row.Link.LabelOverride != nil && strings.TrimSpace(*row.Link.LabelOverride) != "" {
			label = *row.Link.LabelOverride
		}
		entries = append(entries, MenuEntry{
			Label:        label,
			Slug:         row.Level.Slug,
			LegalLevelID: row.Level.ID,
			Order:        order,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return entries[i].LegalLevelID < entries[j].LegalLevelID
	})
	return entries
}

// UpsertMenuConfig writes override rows for the sector. Requires
// ADMIN/SUPER_ADMIN plus sector scope.
func (s *MenuService) UpsertMenuConfig(ctx context.Context, actor identity.Identity, sectorSlug string, entries []MenuEntryInput) error {
	if actor.ID == "" {
		return ErrUnauthenticated
	}
	if !policy.HasAnyRole(actor, identity.RoleAdmin, identity.RoleSuperAdmin) {
		return fmt.Errorf("%w: menu configuration requires an administrator", ErrDenied)
	}
	if err := policy.AssertSectorScope(actor, sectorSlug); err != nil {
		return err
	}
	sector, err := s.store.SectorBySlug(ctx, sectorSlug)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		levelID := strings.TrimSpace(entry.LegalLevelID)
		if levelID == "" {
			continue
		}
		ok, err := s.store.LegalLevelExists(ctx, levelID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		link := SectorLegalLevel{
			SectorID:      sector.ID,
			LegalLevelID:  levelID,
			OrderOverride: entry.OrderOverride,
			LabelOverride: entry.LabelOverride,
			IsVisible:     entry.IsVisible,
		}
		if err := s.store.UpsertSectorLegalLevel(ctx, link); err != nil {
			return err
		}
	}
	return nil
}
