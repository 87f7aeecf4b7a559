package portal

import (
	"context"

	"legitheque.org/internal/identity"
)

// SectorStore persists sectors.
type SectorStore interface {
	CreateSector(ctx context.Context, sector *Sector) error
	SectorBySlug(ctx context.Context, slug string) (Sector, error)
	SectorsBySlugs(ctx context.Context, slugs []string) ([]Sector, error)
	ListSectors(ctx context.Context) ([]Sector, error)
}

// LegalLevelStore persists the global legal level hierarchy.
type LegalLevelStore interface {
	CreateLegalLevel(ctx context.Context, level *LegalLevel) error
	ListLegalLevels(ctx context.Context) ([]LegalLevel, error)
	LegalLevelExists(ctx context.Context, id string) (bool, error)
}

// MenuRow is a sector override joined with its legal level.
type MenuRow struct {
	Link  SectorLegalLevel
	Level LegalLevel
}

// MenuStore persists per-sector menu overrides.
type MenuStore interface {
	SectorBySlug(ctx context.Context, slug string) (Sector, error)
	MenuRows(ctx context.Context, sectorID string) ([]MenuRow, error)
	UpsertSectorLegalLevel(ctx context.Context, link SectorLegalLevel) error
	LegalLevelExists(ctx context.Context, id string) (bool, error)
}

// DocumentStore persists documents and their sector associations.
type DocumentStore interface {
	// CreateDocument inserts the document and its sector associations in one
	// transaction.
	CreateDocument(ctx context.Context, doc *Document, sectorIDs []string) error
	DocumentByID(ctx context.Context, id string) (Document, error)
	UpdateDocument(ctx context.Context, id string, patch DocumentPatch) (Document, error)
	// DeleteDocument removes the sector associations before the row, in one
	// transaction. The backing file is left in place.
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, sectorSlug string, filter DocumentFilter) ([]Document, error)
	SectorsBySlugs(ctx context.Context, slugs []string) ([]Sector, error)
}

// UserStore persists users and their sector memberships.
type UserStore interface {
	// CreateUser inserts the user and its memberships in one transaction.
	CreateUser(ctx context.Context, user *User, sectorIDs []string) error
	UserByID(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// ListUsersByRolesAndSectors returns users holding one of the roles with
	// at least one membership among the sector slugs.
	ListUsersByRolesAndSectors(ctx context.Context, roles []identity.Role, sectorSlugs []string) ([]User, error)
	SetUserActive(ctx context.Context, id string, active bool) error
	// DeleteUser removes memberships, then sessions/credentials, then the
	// user row, in that order, in one transaction.
	DeleteUser(ctx context.Context, id string) error
	CountDocumentsCreatedBy(ctx context.Context, userID string) (int, error)
	SectorsBySlugs(ctx context.Context, slugs []string) ([]Sector, error)
}
