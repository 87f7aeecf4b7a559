package httpapi

import (
	"net/http"
	"strings"

	"legitheque.org/internal/portal"
)

type createUserRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     string   `json:"role"`
	Sectors  []string `json:"sectors"`
}

type userPatchRequest struct {
	IsActive *bool  `json:"is_active"`
	Reason   string `json:"reason"`
}

type deleteUserRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		users, err := a.users.ListUsers(r.Context(), actor)
		if err != nil {
			handlePortalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": users})
	case http.MethodPost:
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.users.CreateUser(r.Context(), actor, portal.CreateUserInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Role:     req.Role,
			Sectors:  req.Sectors,
		})
		if err != nil {
			handlePortalError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/users/"+user.ID)
		writeJSON(w, http.StatusCreated, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserResource dispatches /v1/users/{id}.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	actor, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req userPatchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.IsActive == nil {
			writeError(w, r, http.StatusBadRequest, "is_active is required")
			return
		}
		user, err := a.users.SetUserActive(r.Context(), actor, id, *req.IsActive, req.Reason)
		if err != nil {
			handlePortalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		var req deleteUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.users.DeleteUser(r.Context(), actor, id, req.Reason); err != nil {
			handlePortalError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}
