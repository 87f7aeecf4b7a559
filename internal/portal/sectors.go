package portal

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"legitheque.org/internal/identity"
	"legitheque.org/internal/ids"
	"legitheque.org/internal/policy"
)

// SectorService manages sectors. Creation is reserved to SUPER_ADMIN; every
// authenticated identity may list them.
type SectorService struct {
	store SectorStore
}

// NewSectorService constructs the sector gateway.
func NewSectorService(store SectorStore) *SectorService {
	return &SectorService{store: store}
}

// SectorInput is the creation payload.
type SectorInput struct {
	Name        string
	Slug        string
	ThemeAccent string
}

// ListSectors returns all sectors ordered by name.
func (s *SectorService) ListSectors(ctx context.Context, actor identity.Identity) ([]Sector, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	sectors, err := s.store.ListSectors(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(sectors, func(i, j int) bool { return sectors[i].Name < sectors[j].Name })
	return sectors, nil
}

// CreateSector registers a new sector.
func (s *SectorService) CreateSector(ctx context.Context, actor identity.Identity, input SectorInput) (Sector, error) {
	if actor.ID == "" {
		return Sector{}, ErrUnauthenticated
	}
	if !policy.HasAnyRole(actor, identity.RoleSuperAdmin) {
		return Sector{}, fmt.Errorf("%w: only a super administrator may create sectors", ErrDenied)
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.TrimSpace(strings.ToLower(input.Slug))
	input.ThemeAccent = strings.TrimSpace(input.ThemeAccent)
	if len(input.Name) < 2 {
		return Sector{}, fmt.Errorf("%w: sector name must be at least 2 characters", ErrValidation)
	}
	if len(input.Slug) < 2 {
		return Sector{}, fmt.Errorf("%w: sector slug must be at least 2 characters", ErrValidation)
	}
	if len(input.ThemeAccent) < 4 {
		return Sector{}, fmt.Errorf("%w: theme accent must be at least 4 characters", ErrValidation)
	}
	sector := Sector{
		ID:          ids.New(),
		Slug:        input.Slug,
		Name:        input.Name,
		ThemeAccent: input.ThemeAccent,
	}
	if err := s.store.CreateSector(ctx, &sector); err != nil {
		return Sector{}, err
	}
	return sector, nil
}

// LegalLevelService manages the global legal level hierarchy.
type LegalLevelService struct {
	store LegalLevelStore
}

// NewLegalLevelService constructs the legal level gateway.
func NewLegalLevelService(store LegalLevelStore) *LegalLevelService {
	return &LegalLevelService{store: store}
}

// LegalLevelInput is the creation payload.
type LegalLevelInput struct {
	Name       string
	Slug       string
	LegalOrder int
}

// ListLegalLevels returns the hierarchy ordered by legal order.
func (s *LegalLevelService) ListLegalLevels(ctx context.Context, actor identity.Identity) ([]LegalLevel, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	levels, err := s.store.ListLegalLevels(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].LegalOrder != levels[j].LegalOrder {
			return levels[i].LegalOrder < levels[j].LegalOrder
		}
		return levels[i].ID < levels[j].ID
	})
	return levels, nil
}

// CreateLegalLevel registers a new classification rung.
func (s *LegalLevelService) CreateLegalLevel(ctx context.Context, actor identity.Identity, input LegalLevelInput) (LegalLevel, error) {
	if actor.ID == "" {
		return LegalLevel{}, ErrUnauthenticated
	}
	if !policy.HasAnyRole(actor, identity.RoleSuperAdmin) {
		return LegalLevel{}, fmt.Errorf("%w: only a super administrator may create legal levels", ErrDenied)
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.TrimSpace(strings.ToLower(input.Slug))
	if len(input.Name) < 2 {
		return LegalLevel{}, fmt.Errorf("%w: legal level name must be at least 2 characters", ErrValidation)
	}
	if len(input.Slug) < 2 {
		return LegalLevel{}, fmt.Errorf("%w: legal level slug must be at least 2 characters", ErrValidation)
	}
	if input.LegalOrder < 1 {
		return LegalLevel{}, fmt.Errorf("%w: legal order must be at least 1", ErrValidation)
	}
	level := LegalLevel{
		ID:         ids.New(),
		Slug:       input.Slug,
		Name:       input.Name,
		LegalOrder: input.LegalOrder,
	}
	if err := s.store.CreateLegalLevel(ctx, &level); err != nil {
		return LegalLevel{}, err
	}
	return level, nil
}
