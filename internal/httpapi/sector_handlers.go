package httpapi

import (
	"net/http"
	"strings"

	"legitheque.org/internal/portal"
)

type createSectorRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	ThemeAccent string `json:"theme_accent"`
}

type createLegalLevelRequest struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	LegalOrder int    `json:"legal_order"`
}

type menuConfigRequest struct {
	Entries []menuConfigEntry `json:"entries"`
}

type menuConfigEntry struct {
	LegalLevelID  string  `json:"legal_level_id"`
	OrderOverride *int    `json:"order_override"`
	LabelOverride *string `json:"label_override"`
	IsVisible     bool    `json:"is_visible"`
}

func (a *API) handleSectorsCollection(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		sectors, err := a.sectors.ListSectors(r.Context(), actor)
		if err != nil {
			handlePortalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": sectors})
	case http.MethodPost:
		var req createSectorRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sector, err := a.sectors.CreateSector(r.Context(), actor, portal.SectorInput{
			Name:        req.Name,
			Slug:        req.Slug,
			ThemeAccent: req.ThemeAccent,
		})
		if err != nil {
			handlePortalError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/sectors/"+sector.Slug)
		writeJSON(w, http.StatusCreated, sector)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleSectorResource dispatches /v1/sectors/{slug}/menu.
func (a *API) handleSectorResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/sectors/")
	slug, rest, found := strings.Cut(path, "/")
	if slug == "" || !found || rest != "menu" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		entries, err := a.menu.ResolveMenu(r.Context(), actor, slug)
		if err != nil {
			handlePortalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": entries})
	case http.MethodPost:
		var req menuConfigRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		entries := make([]portal.MenuEntryInput, len(req.Entries))
		for i, e := range req.Entries {
			entries[i] = portal.MenuEntryInput{
				LegalLevelID:  e.LegalLevelID,
				OrderOverride: e.OrderOverride,
				LabelOverride: e.LabelOverride,
				IsVisible:     e.IsVisible,
			}
		}
		if err := a.menu.UpsertMenuConfig(r.Context(), actor, slug, entries); err != nil {
			handlePortalError(w, r, err)
			return
		}
		resolved, err := a.menu.ResolveMenu(r.Context(), actor, slug)
		if err != nil {
			handlePortalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": resolved})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleLegalLevelsCollection(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		levels, err := a.levels.ListLegalLevels(r.Context(), actor)
		if err != nil {
			handlePortalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": levels})
	case http.MethodPost:
		var req createLegalLevelRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		level, err := a.levels.CreateLegalLevel(r.Context(), actor, portal.LegalLevelInput{
			Name:       req.Name,
			Slug:       req.Slug,
			LegalOrder: req.LegalOrder,
		})
		if err != nil {
			handlePortalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, level)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}
