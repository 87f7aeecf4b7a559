// Package portal implements the resource gateways of the document portal.
// Each service checks the policy engine before touching its store and records
// an audit event after a sensitive mutation commits.
package portal

import (
	"time"

	"legitheque.org/internal/identity"
	"legitheque.org/internal/policy"
)

// Sector is an organizational domain partitioning documents and users.
type Sector struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	ThemeAccent string    `json:"theme_accent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LegalLevel is a global classification rung with a base ordering,
// customizable per sector via override rows.
type LegalLevel struct {
	ID         string    `json:"id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	LegalOrder int       `json:"legal_order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SectorLegalLevel customizes the label, ordering and visibility of a legal
// level inside one sector without touching the global row. Unique on
// (SectorID, LegalLevelID).
type SectorLegalLevel struct {
	SectorID      string  `json:"sector_id"`
	LegalLevelID  string  `json:"legal_level_id"`
	OrderOverride *int    `json:"order_override,omitempty"`
	LabelOverride *string `json:"label_override,omitempty"`
	IsVisible     bool    `json:"is_visible"`
}

// MenuEntry is one resolved navigation item for a sector.
type MenuEntry struct {
	Label        string `json:"label"`
	Slug         string `json:"slug"`
	LegalLevelID string `json:"legal_level_id"`
	Order        int    `json:"order"`
}

// User is a portal account. IsActive gates authentication, not data
// visibility.
type User struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Role         identity.Role `json:"role"`
	IsActive     bool          `json:"is_active"`
	SectorIDs    []string      `json:"sector_ids,omitempty"`
	SectorSlugs  []string      `json:"sector_slugs,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Document is a classified PDF. It always belongs to at least one sector.
type Document struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Description      string                `json:"description,omitempty"`
	ReferenceNumber  string                `json:"reference_number,omitempty"`
	Year             int                   `json:"year,omitempty"`
	Status           policy.DocumentStatus `json:"status"`
	Keywords         string                `json:"keywords,omitempty"`
	FilePath         string                `json:"-"`
	OriginalFileName string                `json:"original_file_name"`
	FileSize         int64                 `json:"file_size"`
	FileHash         string                `json:"file_hash"`
	LegalLevelID     string                `json:"legal_level_id"`
	CreatedByID      string                `json:"created_by_id"`
	SectorIDs        []string              `json:"sector_ids,omitempty"`
	SectorSlugs      []string              `json:"sector_slugs,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// DocumentFilter narrows a listing. Constraints are additive.
type DocumentFilter struct {
	Status         *policy.DocumentStatus
	Year           *int
	LegalLevelSlug string
	Query          string
}

// DocumentPatch is a partial metadata update.
type DocumentPatch struct {
	Title       *string
	Description *string
	Status      *policy.DocumentStatus
}
