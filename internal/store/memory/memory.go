// Package memory is an in-memory implementation of the portal store
// contracts, used by gateway and HTTP handler tests and as the
// development fallback when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"legitheque.org/internal/audit"
	"legitheque.org/internal/identity"
	"legitheque.org/internal/portal"
)

var (
	_ portal.SectorStore       = (*Store)(nil)
	_ portal.LegalLevelStore   = (*Store)(nil)
	_ portal.MenuStore         = (*Store)(nil)
	_ portal.DocumentStore     = (*Store)(nil)
	_ portal.UserStore         = (*Store)(nil)
	_ identity.CredentialStore = (*Store)(nil)
	_ audit.Store              = (*Store)(nil)
)

// Store keeps every entity in maps guarded by one mutex.
type Store struct {
	mu        sync.RWMutex
	sectors   map[string]portal.Sector
	levels    map[string]portal.LegalLevel
	links     map[string]portal.SectorLegalLevel
	users     map[string]portal.User
	documents map[string]portal.Document
	events    []audit.Event
}

// New returns an empty store.
func New() *Store {
	return &Store{
		sectors:   make(map[string]portal.Sector),
		levels:    make(map[string]portal.LegalLevel),
		links:     make(map[string]portal.SectorLegalLevel),
		users:     make(map[string]portal.User),
		documents: make(map[string]portal.Document),
	}
}

func linkKey(sectorID, levelID string) string { return sectorID + "/" + levelID }

// --- sectors ---

func (s *Store) CreateSector(_ context.Context, sector *portal.Sector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sectors {
		if existing.Slug == sector.Slug {
			return fmt.Errorf("%w: sector slug already exists", portal.ErrConflict)
		}
	}
	s.sectors[sector.ID] = *sector
	return nil
}

func (s *Store) SectorBySlug(_ context.Context, slug string) (portal.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sector := range s.sectors {
		if sector.Slug == slug {
			return sector, nil
		}
	}
	return portal.Sector{}, fmt.Errorf("%w: sector %q", portal.ErrNotFound, slug)
}

func (s *Store) SectorsBySlugs(_ context.Context, slugs []string) ([]portal.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []portal.Sector
	for _, slug := range slugs {
		for _, sector := range s.sectors {
			if sector.Slug == slug {
				out = append(out, sector)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) ListSectors(_ context.Context) ([]portal.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]portal.Sector, 0, len(s.sectors))
	for _, sector := range s.sectors {
		out = append(out, sector)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- legal levels ---

func (s *Store) CreateLegalLevel(_ context.Context, level *portal.LegalLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.levels {
		if existing.Slug == level.Slug {
			return fmt.Errorf("%w: legal level slug already exists", portal.ErrConflict)
		}
	}
	s.levels[level.ID] = *level
	return nil
}

func (s *Store) ListLegalLevels(_ context.Context) ([]portal.LegalLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]portal.LegalLevel, 0, len(s.levels))
	for _, level := range s.levels {
		out = append(out, level)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LegalOrder < out[j].LegalOrder })
	return out, nil
}

func (s *Store) LegalLevelExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.levels[id]
	return ok, nil
}

// --- menu ---

func (s *Store) MenuRows(_ context.Context, sectorID string) ([]portal.MenuRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []portal.MenuRow
	for _, link := range s.links {
		if link.SectorID != sectorID {
			continue
		}
		level, ok := s.levels[link.LegalLevelID]
		if !ok {
			continue
		}
		rows = append(rows, portal.MenuRow{Link: link, Level: level})
	}
	return rows, nil
}

func (s *Store) UpsertSectorLegalLevel(_ context.Context, link portal.SectorLegalLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[linkKey(link.SectorID, link.LegalLevelID)] = link
	return nil
}

// --- documents ---

func (s *Store) CreateDocument(_ context.Context, doc *portal.Document, sectorIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *doc
	stored.SectorIDs = append([]string(nil), sectorIDs...)
	s.documents[doc.ID] = stored
	return nil
}

func (s *Store) DocumentByID(_ context.Context, id string) (portal.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return portal.Document{}, fmt.Errorf("%w: document %q", portal.ErrNotFound, id)
	}
	return doc, nil
}

func (s *Store) UpdateDocument(_ context.Context, id string, patch portal.DocumentPatch) (portal.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return portal.Document{}, fmt.Errorf("%w: document %q", portal.ErrNotFound, id)
	}
	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.Description != nil {
		doc.Description = *patch.Description
	}
	if patch.Status != nil {
		doc.Status = *patch.Status
	}
	s.documents[id] = doc
	return doc, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("%w: document %q", portal.ErrNotFound, id)
	}
	delete(s.documents, id)
	return nil
}

func (s *Store) ListDocuments(_ context.Context, sectorSlug string, filter portal.DocumentFilter) ([]portal.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []portal.Document
	for _, doc := range s.documents {
		if !containsString(doc.SectorSlugs, sectorSlug) {
			continue
		}
		if filter.Status != nil && doc.Status != *filter.Status {
			continue
		}
		if filter.Year != nil && doc.Year != *filter.Year {
			continue
		}
		if filter.LegalLevelSlug != "" {
			level, ok := s.levels[doc.LegalLevelID]
			if !ok || level.Slug != filter.LegalLevelSlug {
				continue
			}
		}
		if filter.Query != "" {
			q := strings.ToLower(filter.Query)
			if !strings.Contains(strings.ToLower(doc.Title), q) &&
				!strings.Contains(strings.ToLower(doc.Keywords), q) {
				continue
			}
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user *portal.User, sectorIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: email already registered", portal.ErrConflict)
		}
	}
	stored := *user
	stored.SectorIDs = append([]string(nil), sectorIDs...)
	s.users[user.ID] = stored
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (portal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return portal.User{}, fmt.Errorf("%w: user %q", portal.ErrNotFound, id)
	}
	return user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]portal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]portal.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListUsersByRolesAndSectors(_ context.Context, roles []identity.Role, sectorSlugs []string) ([]portal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []portal.User
	for _, user := range s.users {
		roleOK := false
		for _, role := range roles {
			if user.Role == role {
				roleOK = true
				break
			}
		}
		if !roleOK {
			continue
		}
		shared := false
		for _, slug := range sectorSlugs {
			if containsString(user.SectorSlugs, slug) {
				shared = true
				break
			}
		}
		if !shared {
			continue
		}
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SetUserActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: user %q", portal.ErrNotFound, id)
	}
	user.IsActive = active
	s.users[id] = user
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("%w: user %q", portal.ErrNotFound, id)
	}
	delete(s.users, id)
	return nil
}

func (s *Store) CountDocumentsCreatedBy(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, doc := range s.documents {
		if doc.CreatedByID == userID {
			count++
		}
	}
	return count, nil
}

// --- credentials ---

// CredentialByEmail implements identity.CredentialStore.
func (s *Store) CredentialByEmail(_ context.Context, email string) (identity.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return identity.Credential{
				UserID:       user.ID,
				PasswordHash: user.PasswordHash,
				Role:         user.Role,
				SectorSlugs:  user.SectorSlugs,
				IsActive:     user.IsActive,
			}, nil
		}
	}
	return identity.Credential{}, fmt.Errorf("%w: credential for %q", portal.ErrNotFound, email)
}

// --- audit ---

// Append implements audit.Store.
func (s *Store) Append(_ context.Context, event *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

// Events returns a copy of the appended audit events.
func (s *Store) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event(nil), s.events...)
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
