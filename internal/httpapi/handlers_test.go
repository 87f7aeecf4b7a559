package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"legitheque.org/internal/audit"
	"legitheque.org/internal/filestore"
	"legitheque.org/internal/httpapi"
	"legitheque.org/internal/identity"
	"legitheque.org/internal/ids"
	"legitheque.org/internal/portal"
	"legitheque.org/internal/store/memory"
)

type testServer struct {
	handler http.Handler
	store   *memory.Store

	agriculture portal.Sector
	peche       portal.Sector
	lois        portal.LegalLevel
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("LEGITHEQUE_AUTH_SECRET", "handler-test-secret")
	identity.ResetSecretForTests()
	t.Cleanup(identity.ResetSecretForTests)

	store := memory.New()
	files, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	recorder := audit.NewRecorder(store)

	api := httpapi.New(httpapi.Config{
		Version:   "test",
		Auth:      identity.NewService(store),
		Sectors:   portal.NewSectorService(store),
		Levels:    portal.NewLegalLevelService(store),
		Menu:      portal.NewMenuService(store),
		Documents: portal.NewDocumentService(store, files, recorder),
		Users:     portal.NewUserService(store, recorder),
	})

	ts := &testServer{
		handler: httpapi.RequestID(api.Handler()),
		store:   store,
	}

	ctx := context.Background()
	ts.agriculture = portal.Sector{ID: ids.New(), Slug: "agriculture", Name: "Agriculture", ThemeAccent: "#2F7D32"}
	ts.peche = portal.Sector{ID: ids.New(), Slug: "peche", Name: "Peche", ThemeAccent: "#1E5AA8"}
	for _, sector := range []*portal.Sector{&ts.agriculture, &ts.peche} {
		if err := store.CreateSector(ctx, sector); err != nil {
			t.Fatalf("CreateSector: %v", err)
		}
	}
	ts.lois = portal.LegalLevel{ID: ids.New(), Slug: "lois", Name: "Lois", LegalOrder: 2}
	if err := store.CreateLegalLevel(ctx, &ts.lois); err != nil {
		t.Fatalf("CreateLegalLevel: %v", err)
	}
	return ts
}

func (ts *testServer) token(t *testing.T, id identity.Identity) string {
	t.Helper()
	token, err := identity.GenerateToken(id, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, target, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return &buf
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
}

func superAdminToken(t *testing.T, ts *testServer) string {
	return ts.token(t, identity.Identity{ID: "sa1", Role: identity.RoleSuperAdmin})
}

func editorToken(t *testing.T, ts *testServer) string {
	return ts.token(t, identity.Identity{ID: "ed1", Role: identity.RoleEditor, SectorSlugs: []string{"agriculture"}})
}

func viewerToken(t *testing.T, ts *testServer) string {
	return ts.token(t, identity.Identity{ID: "vw1", Role: identity.RoleViewer})
}

func multipartUpload(t *testing.T, fields map[string]string, fileName string, fileBytes []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s): %v", k, err)
		}
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(fileBytes); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/sectors", "", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/v1/sectors", "garbage", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}

	var payload map[string]any
	decodeBody(t, rec, &payload)
	if rid, _ := payload["request_id"].(string); rid == "" {
		t.Fatalf("error payload should carry the request id: %v", payload)
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	hash, err := identity.HashPassword("motdepasse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := portal.User{
		ID: ids.New(), Name: "Awa Diallo", Email: "awa@example.org",
		PasswordHash: hash, Role: identity.RoleAdmin, IsActive: true,
		SectorSlugs: []string{"agriculture"},
	}
	if err := ts.store.CreateUser(context.Background(), &user, []string{ts.agriculture.ID}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	rec := ts.do(t, http.MethodPost, "/v1/auth/login", "",
		jsonBody(t, map[string]string{"email": "awa@example.org", "password": "motdepasse"}), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	decodeBody(t, rec, &resp)
	if resp.Token == "" || resp.User.Role != "ADMIN" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	// The issued token works against a protected route.
	rec = ts.do(t, http.MethodGet, "/v1/sectors", resp.Token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("token rejected: %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/v1/auth/login", "",
		jsonBody(t, map[string]string{"email": "awa@example.org", "password": "mauvais-mdp"}), "application/json")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password should be 401, got %d", rec.Code)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	editor := editorToken(t, ts)
	viewer := viewerToken(t, ts)
	admin := superAdminToken(t, ts)

	pdfBytes := append([]byte("%PDF-1.4\n"), []byte("contenu")...)
	body, contentType := multipartUpload(t, map[string]string{
		"title":          "Loi de finances 2024",
		"legal_level_id": ts.lois.ID,
		"sector":         "agriculture",
		"year":           "2024",
	}, "loi.pdf", pdfBytes)

	rec := ts.do(t, http.MethodPost, "/v1/documents", editor, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create document status %d: %s", rec.Code, rec.Body.String())
	}
	var doc portal.Document
	decodeBody(t, rec, &doc)
	if doc.Status != "DRAFT" {
		t.Fatalf("uploaded document must be DRAFT, got %s", doc.Status)
	}

	// The draft is hidden from viewers.
	rec = ts.do(t, http.MethodGet, "/v1/documents?sector=agriculture", viewer, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var listing struct {
		Items []portal.Document `json:"items"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.Items) != 0 {
		t.Fatalf("viewer must not see drafts, got %d", len(listing.Items))
	}

	rec = ts.do(t, http.MethodGet, "/v1/documents/"+doc.ID+"/download?sector=agriculture", viewer, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer draft download should be 403, got %d", rec.Code)
	}

	// Publish, then the viewer can list and download.
	rec = ts.do(t, http.MethodPatch, "/v1/documents/"+doc.ID+"?sector=agriculture", admin,
		jsonBody(t, map[string]string{"status": "PUBLISHED"}), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/documents?sector=agriculture", viewer, nil, "")
	decodeBody(t, rec, &listing)
	if len(listing.Items) != 1 {
		t.Fatalf("viewer should see the published document, got %d", len(listing.Items))
	}

	rec = ts.do(t, http.MethodGet, "/v1/documents/"+doc.ID+"/download?sector=agriculture", viewer, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("download status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "loi.pdf") {
		t.Fatalf("disposition should carry the original name: %q", rec.Header().Get("Content-Disposition"))
	}
	if !bytes.Equal(rec.Body.Bytes(), pdfBytes) {
		t.Fatalf("downloaded bytes differ from upload")
	}

	// Delete requires an administrator.
	rec = ts.do(t, http.MethodDelete, "/v1/documents/"+doc.ID+"?sector=agriculture", editor, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("editor delete should be 403, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/v1/documents/"+doc.ID+"?sector=agriculture", admin, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUserEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := superAdminToken(t, ts)

	rec := ts.do(t, http.MethodPost, "/v1/users", admin, jsonBody(t, map[string]any{
		"name":     "Moussa Ba",
		"email":    "moussa@example.org",
		"password": "motdepasse",
		"role":     "EDITOR",
		"sectors":  []string{"agriculture"},
	}), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user status %d: %s", rec.Code, rec.Body.String())
	}
	var user portal.User
	decodeBody(t, rec, &user)

	// Deactivation without a reason is rejected with 400.
	rec = ts.do(t, http.MethodPatch, "/v1/users/"+user.ID, admin, jsonBody(t, map[string]any{
		"is_active": false,
	}), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing reason should be 400, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPatch, "/v1/users/"+user.ID, admin, jsonBody(t, map[string]any{
		"is_active": false,
		"reason":    "left the ministry",
	}), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate status %d: %s", rec.Code, rec.Body.String())
	}
	var updated portal.User
	decodeBody(t, rec, &updated)
	if updated.IsActive {
		t.Fatalf("account should be inactive")
	}

	// A super administrator deleting their own account is a conflict.
	self := portal.User{
		ID: "sa1", Name: "Root", Email: "root@example.org",
		PasswordHash: "x", Role: identity.RoleSuperAdmin, IsActive: true,
	}
	if err := ts.store.CreateUser(context.Background(), &self, nil); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	rec = ts.do(t, http.MethodDelete, "/v1/users/sa1", admin, jsonBody(t, map[string]any{
		"reason": "closing my own account",
	}), "application/json")
	if rec.Code != http.StatusConflict {
		t.Fatalf("self deletion should be 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMenuEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := superAdminToken(t, ts)
	viewer := viewerToken(t, ts)

	rec := ts.do(t, http.MethodPost, "/v1/sectors/agriculture/menu", admin, jsonBody(t, map[string]any{
		"entries": []map[string]any{
			{"legal_level_id": ts.lois.ID, "is_visible": true, "label_override": "Textes de loi"},
		},
	}), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("menu config status %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/sectors/agriculture/menu", viewer, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("menu resolve status %d", rec.Code)
	}
	var resp struct {
		Items []portal.MenuEntry `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 1 || resp.Items[0].Label != "Textes de loi" {
		t.Fatalf("unexpected menu: %+v", resp.Items)
	}
}

func TestSectorCreationDenied(t *testing.T) {
	ts := newTestServer(t)
	editor := editorToken(t, ts)

	rec := ts.do(t, http.MethodPost, "/v1/sectors", editor, jsonBody(t, map[string]string{
		"name": "Environnement", "slug": "environnement", "theme_accent": "#0B795E",
	}), "application/json")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("editor sector creation should be 403, got %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/v1/unknown-%d", time.Now().Unix()), superAdminToken(t, ts), nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
