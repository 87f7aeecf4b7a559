package portal

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"legitheque.org/internal/audit"
	"legitheque.org/internal/filestore"
	"legitheque.org/internal/identity"
	"legitheque.org/internal/ids"
	"legitheque.org/internal/policy"
)

// MaxDocumentSize is the upload ceiling.
const MaxDocumentSize = 20 << 20 // 20 MiB

var pdfMagic = []byte("%PDF-")

// DocumentService is the document gateway: policy checks first, storage
// second, audit event after a successful mutation.
type DocumentService struct {
	store DocumentStore
	files filestore.Store
	audit *audit.Recorder
}

// NewDocumentService constructs the document gateway.
func NewDocumentService(store DocumentStore, files filestore.Store, recorder *audit.Recorder) *DocumentService {
	return &DocumentService{store: store, files: files, audit: recorder}
}

// CreateDocumentInput is the upload payload. Sectors defaults to the request
// sector when empty.
type CreateDocumentInput struct {
	Title           string
	Description     string
	ReferenceNumber string
	Year            int
	Keywords        string
	LegalLevelID    string
	SectorSlug      string
	Sectors         []string
	FileName        string
}

// CreateDocument validates the upload, stores the file, persists the
// document as DRAFT and records the audit event. Documents are never created
// pre-published.
func (s *DocumentService) CreateDocument(ctx context.Context, actor identity.Identity, input CreateDocumentInput, fileBytes []byte) (Document, error) {
	if actor.ID == "" {
		return Document{}, ErrUnauthenticated
	}
	if !policy.HasAnyRole(actor, identity.RoleSuperAdmin, identity.RoleAdmin, identity.RoleEditor) {
		return Document{}, fmt.Errorf("%w: document creation requires an editor role", ErrDenied)
	}
	if err := policy.AssertSectorScope(actor, input.SectorSlug); err != nil {
		return Document{}, err
	}

	input.Title = strings.TrimSpace(input.Title)
	if len(input.Title) < 2 {
		return Document{}, fmt.Errorf("%w: title must be at least 2 characters", ErrValidation)
	}
	if strings.TrimSpace(input.LegalLevelID) == "" {
		return Document{}, fmt.Errorf("%w: legal level is required", ErrValidation)
	}
	if err := validatePDF(fileBytes); err != nil {
		return Document{}, err
	}

	slugs := identity.NormalizeSlugs(input.Sectors)
	if len(slugs) == 0 {
		slugs = identity.NormalizeSlugs([]string{input.SectorSlug})
	}
	sectors, err := s.store.SectorsBySlugs(ctx, slugs)
	if err != nil {
		return Document{}, err
	}
	if len(sectors) == 0 {
		return Document{}, fmt.Errorf("%w: no resolvable sector for the document", ErrValidation)
	}
	sectorIDs := make([]string, len(sectors))
	sectorSlugs := make([]string, len(sectors))
	for i, sector := range sectors {
		sectorIDs[i] = sector.ID
		sectorSlugs[i] = sector.Slug
	}

	digest := sha256.Sum256(fileBytes)
	handle, err := s.files.Store(fileBytes)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:               ids.New(),
		Title:            input.Title,
		Description:      strings.TrimSpace(input.Description),
		ReferenceNumber:  strings.TrimSpace(input.ReferenceNumber),
		Year:             input.Year,
		Status:           policy.StatusDraft,
		Keywords:         strings.TrimSpace(input.Keywords),
		FilePath:         handle,
		OriginalFileName: input.FileName,
		FileSize:         int64(len(fileBytes)),
		FileHash:         hex.EncodeToString(digest[:]),
		LegalLevelID:     strings.TrimSpace(input.LegalLevelID),
		CreatedByID:      actor.ID,
		SectorIDs:        sectorIDs,
		SectorSlugs:      sectorSlugs,
	}
	if err := s.store.CreateDocument(ctx, &doc, sectorIDs); err != nil {
		return Document{}, err
	}

	if err := s.audit.Record(ctx, audit.Event{
		ActorUserID: actor.ID,
		Action:      audit.ActionCreateDocument,
		EntityType:  "Document",
		EntityID:    doc.ID,
		SectorID:    sectorIDs[0],
	}); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func validatePDF(fileBytes []byte) error {
	if len(fileBytes) == 0 {
		return fmt.Errorf("%w: file is required", ErrValidation)
	}
	if len(fileBytes) > MaxDocumentSize {
		return fmt.Errorf("%w: file exceeds the 20 MiB limit", ErrValidation)
	}
	if !bytes.HasPrefix(fileBytes, pdfMagic) {
		return fmt.Errorf("%w: only PDF files are accepted", ErrValidation)
	}
	return nil
}

// GetDocument returns document metadata when the identity may view it.
func (s *DocumentService) GetDocument(ctx context.Context, actor identity.Identity, id, sectorSlug string) (Document, error) {
	if actor.ID == "" {
		return Document{}, ErrUnauthenticated
	}
	if err := policy.AssertSectorScope(actor, sectorSlug); err != nil {
		return Document{}, err
	}
	doc, err := s.store.DocumentByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if !policy.DocumentInScope(actor, sectorSlug, doc.SectorSlugs) {
		return Document{}, fmt.Errorf("%w: document out of sector scope", ErrDenied)
	}
	if !policy.CanViewDocument(actor, doc.Status) {
		return Document{}, fmt.Errorf("%w: document is not published", ErrDenied)
	}
	return doc, nil
}

// ListDocuments returns the sector's documents matching the filter. Roles
// without draft access are silently forced to PUBLISHED: a requested status
// filter from a viewer is ignored, not rejected.
func (s *DocumentService) ListDocuments(ctx context.Context, actor identity.Identity, sectorSlug string, filter DocumentFilter) ([]Document, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	if err := policy.AssertSectorScope(actor, sectorSlug); err != nil {
		return nil, err
	}
	if !policy.HasAnyRole(actor, identity.RoleAdmin, identity.RoleEditor, identity.RoleSuperAdmin) {
		published := policy.StatusPublished
		filter.Status = &published
	}
	return s.store.ListDocuments(ctx, sectorSlug, filter)
}

// UpdateDocument patches metadata. Non-SUPER_ADMIN actors must have the
// document already associated with the request sector, which blocks
// cross-sector metadata edits.
func (s *DocumentService) UpdateDocument(ctx context.Context, actor identity.Identity, id string, patch DocumentPatch, sectorSlug string) (Document, error) {
	if actor.ID == "" {
		return Document{}, ErrUnauthenticated
	}
	if !policy.HasAnyRole(actor, identity.RoleSuperAdmin, identity.RoleAdmin, identity.RoleEditor) {
		return Document{}, fmt.Errorf("%w: document update requires an editor role", ErrDenied)
	}
	if err := policy.AssertSectorScope(actor, sectorSlug); err != nil {
		return Document{}, err
	}
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if len(trimmed) < 2 {
			return Document{}, fmt.Errorf("%w: title must be at least 2 characters", ErrValidation)
		}
		patch.Title = &trimmed
	}
	if patch.Status != nil {
		if _, ok := policy.ParseStatus(string(*patch.Status)); !ok {
			return Document{}, fmt.Errorf("%w: unknown document status %q", ErrValidation, *patch.Status)
		}
	}

	doc, err := s.store.DocumentByID(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if actor.Role != identity.RoleSuperAdmin && !containsSlug(doc.SectorSlugs, sectorSlug) {
		return Document{}, fmt.Errorf("%w: document not associated with sector", ErrDenied)
	}

	updated, err := s.store.UpdateDocument(ctx, id, patch)
	if err != nil {
		return Document{}, err
	}
	if err := s.audit.Record(ctx, audit.Event{
		ActorUserID: actor.ID,
		Action:      audit.ActionUpdateDocument,
		EntityType:  "Document",
		EntityID:    updated.ID,
	}); err != nil {
		return Document{}, err
	}
	return updated, nil
}

// DeleteDocument removes the document and its sector associations. Narrower
// than update: EDITOR cannot delete. The stored file is left in place.
func (s *DocumentService) DeleteDocument(ctx context.Context, actor identity.Identity, id, sectorSlug string) error {
	if actor.ID == "" {
		return ErrUnauthenticated
	}
	if !policy.HasAnyRole(actor, identity.RoleSuperAdmin, identity.RoleAdmin) {
		return fmt.Errorf("%w: document deletion requires an administrator", ErrDenied)
	}
	if err := policy.AssertSectorScope(actor, sectorSlug); err != nil {
		return err
	}
	doc, err := s.store.DocumentByID(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != identity.RoleSuperAdmin && !containsSlug(doc.SectorSlugs, sectorSlug) {
		return fmt.Errorf("%w: document not associated with sector", ErrDenied)
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	return s.audit.Record(ctx, audit.Event{
		ActorUserID: actor.ID,
		Action:      audit.ActionDeleteDocument,
		EntityType:  "Document",
		EntityID:    doc.ID,
	})
}

// DownloadDocument returns the document and its file bytes. A missing
// backing file is NotFound, distinct from a permission failure, so operators
// can detect storage drift.
func (s *DocumentService) DownloadDocument(ctx context.Context, actor identity.Identity, id, sectorSlug string) (Document, []byte, error) {
	if actor.ID == "" {
		return Document{}, nil, ErrUnauthenticated
	}
	if err := policy.AssertSectorScope(actor, sectorSlug); err != nil {
		return Document{}, nil, err
	}
	doc, err := s.store.DocumentByID(ctx, id)
	if err != nil {
		return Document{}, nil, err
	}
	if !policy.DocumentInScope(actor, sectorSlug, doc.SectorSlugs) {
		return Document{}, nil, fmt.Errorf("%w: document out of sector scope", ErrDenied)
	}
	if !policy.CanViewDocument(actor, doc.Status) || !policy.CanDownloadDocument(actor, doc.Status) {
		return Document{}, nil, fmt.Errorf("%w: document is not published", ErrDenied)
	}
	if !s.files.Exists(doc.FilePath) {
		return Document{}, nil, fmt.Errorf("%w: backing file is missing", ErrNotFound)
	}
	data, err := s.files.Read(doc.FilePath)
	if err != nil {
		return Document{}, nil, err
	}
	return doc, data, nil
}

func containsSlug(slugs []string, slug string) bool {
	for _, s := range slugs {
		if s == slug {
			return true
		}
	}
	return false
}
