package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"legitheque.org/internal/policy"
	"legitheque.org/internal/portal"
)

// multipart memory ceiling; larger parts spill to disk before validation.
const uploadParseLimit = 4 << 20

type documentPatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (a *API) handleDocumentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listDocuments(w, r)
	case http.MethodPost:
		a.createDocument(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleDocumentResource dispatches /v1/documents/{id} and
// /v1/documents/{id}/download.
func (a *API) handleDocumentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, found := strings.CutSuffix(path, "/download"); found {
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.downloadDocument(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getDocument(w, r, path)
	case http.MethodPatch:
		a.updateDocument(w, r, path)
	case http.MethodDelete:
		a.deleteDocument(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, portal.MaxDocumentSize+uploadParseLimit)
	if err := r.ParseMultipartForm(uploadParseLimit); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form expected")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	year := 0
	if raw := strings.TrimSpace(r.FormValue("year")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "year must be an integer")
			return
		}
		year = v
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()
	fileBytes, err := io.ReadAll(io.LimitReader(file, portal.MaxDocumentSize+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "could not read file part")
		return
	}

	input := portal.CreateDocumentInput{
		Title:           r.FormValue("title"),
		Description:     r.FormValue("description"),
		ReferenceNumber: r.FormValue("reference_number"),
		Year:            year,
		Keywords:        r.FormValue("keywords"),
		LegalLevelID:    r.FormValue("legal_level_id"),
		SectorSlug:      r.FormValue("sector"),
		Sectors:         splitCSV(r.FormValue("sectors")),
		FileName:        header.Filename,
	}
	doc, err := a.documents.CreateDocument(r.Context(), actor, input, fileBytes)
	if err != nil {
		handlePortalError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/documents/"+doc.ID)
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) listDocuments(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	q := r.URL.Query()
	sectorSlug := strings.TrimSpace(q.Get("sector"))
	if sectorSlug == "" {
		writeError(w, r, http.StatusBadRequest, "sector query parameter is required")
		return
	}

	var filter portal.DocumentFilter
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := policy.ParseStatus(raw)
		if !ok {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown document status %q", raw))
			return
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "year must be an integer")
			return
		}
		filter.Year = &year
	}
	filter.LegalLevelSlug = strings.TrimSpace(q.Get("legal_level"))
	filter.Query = strings.TrimSpace(q.Get("q"))

	docs, err := a.documents.ListDocuments(r.Context(), actor, sectorSlug, filter)
	if err != nil {
		handlePortalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": docs})
}

func (a *API) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	sectorSlug, ok := requireSectorParam(w, r)
	if !ok {
		return
	}
	doc, err := a.documents.GetDocument(r.Context(), actor, id, sectorSlug)
	if err != nil {
		handlePortalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) updateDocument(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	sectorSlug, ok := requireSectorParam(w, r)
	if !ok {
		return
	}
	var req documentPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	patch := portal.DocumentPatch{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := policy.DocumentStatus(*req.Status)
		patch.Status = &status
	}
	doc, err := a.documents.UpdateDocument(r.Context(), actor, id, patch, sectorSlug)
	if err != nil {
		handlePortalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) deleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	sectorSlug, ok := requireSectorParam(w, r)
	if !ok {
		return
	}
	if err := a.documents.DeleteDocument(r.Context(), actor, id, sectorSlug); err != nil {
		handlePortalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) downloadDocument(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	sectorSlug, ok := requireSectorParam(w, r)
	if !ok {
		return
	}
	doc, data, err := a.documents.DownloadDocument(r.Context(), actor, id, sectorSlug)
	if err != nil {
		handlePortalError(w, r, err)
		return
	}
	name := doc.OriginalFileName
	if name == "" {
		name = doc.ID + ".pdf"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func requireSectorParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	sectorSlug := strings.TrimSpace(r.URL.Query().Get("sector"))
	if sectorSlug == "" {
		writeError(w, r, http.StatusBadRequest, "sector query parameter is required")
		return "", false
	}
	return sectorSlug, true
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
