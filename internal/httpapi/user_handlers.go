package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"mecone.com/internal/auth"
)

type createUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Profile   string `json:"profile"`
}

type updateUserRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Profile   *string `json:"profile"`
	IsActive  *bool   `json:"isActive"`
}

type createUserResponse struct {
	User auth.UserProjection `json:"user"`
	// The temporary password is surfaced once to the administrator who
	// created the account; it is never retrievable again.
	TemporaryPassword string `json:"temporaryPassword"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users/"), "/")
	if path == "" {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getUser(w, r, userID)
		case http.MethodPut:
			a.updateUser(w, r, userID)
		case http.MethodDelete:
			a.deactivateUser(w, r, userID)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "reset-password":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		a.resetPassword(w, r, userID)
	default:
		writeError(w, http.StatusNotFound, "Resource not found")
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Profile)
	if err != nil {
		writeValidationError(w, fieldError{Field: "profile", Message: "unknown profile"})
		return
	}

	user, temp, err := a.auth.CreateUser(r.Context(), principal.UserID, auth.CreateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	}, requestOrigin(r))
	if err != nil {
		handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createUserResponse{User: user, TemporaryPassword: temp})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := a.auth.GetUser(r.Context(), userID)
	if err != nil {
		handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, userID string) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	input := auth.UpdateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  req.IsActive,
	}
	if req.Profile != nil {
		role, err := auth.ParseRole(*req.Profile)
		if err != nil {
			writeValidationError(w, fieldError{Field: "profile", Message: "unknown profile"})
			return
		}
		input.Role = &role
	}

	user, err := a.auth.UpdateUser(r.Context(), principal.UserID, userID, input, requestOrigin(r))
	if err != nil {
		handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) deactivateUser(w http.ResponseWriter, r *http.Request, userID string) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	if err := a.auth.DeactivateUser(r.Context(), principal.UserID, userID, requestOrigin(r)); err != nil {
		handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User deactivated"})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request, userID string) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	temp, err := a.auth.ResetPassword(r.Context(), principal.UserID, userID, requestOrigin(r))
	if err != nil {
		handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"temporaryPassword": temp})
}

func handleUserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "auth: "))
	case errors.Is(err, auth.ErrConflict):
		writeError(w, http.StatusBadRequest, "User with this email already exists")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		internalError(w, r, err)
	}
}
