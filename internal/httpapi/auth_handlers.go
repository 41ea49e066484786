package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"mecone.com/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
	User         auth.UserProjection `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// Generic by design: the response never reveals whether the email exists.
const forgotPasswordMessage = "If the email is registered, a temporary password has been sent"

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var fields []fieldError
	if strings.TrimSpace(req.Email) == "" {
		fields = append(fields, fieldError{Field: "email", Message: "email is required"})
	}
	if req.Password == "" {
		fields = append(fields, fieldError{Field: "password", Message: "password is required"})
	}
	if len(fields) > 0 {
		writeValidationError(w, fields...)
		return
	}

	result, err := a.auth.Login(r.Context(), req.Email, req.Password, requestOrigin(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		User:         result.User,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeValidationError(w, fieldError{Field: "refreshToken", Message: "refreshToken is required"})
		return
	}

	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken, requestOrigin(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	// The body is optional: logout without a refresh token still succeeds.
	var req logoutRequest
	_ = decodeJSON(w, r, &req)

	if err := a.auth.Logout(r.Context(), principal.UserID, req.RefreshToken, requestOrigin(r)); err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out successfully"})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeValidationError(w, fieldError{Field: "email", Message: "email is required"})
		return
	}

	// The temporary password travels through an external notification
	// channel, never through this response.
	if _, err := a.auth.ForgotPassword(r.Context(), req.Email, requestOrigin(r)); err != nil {
		if errors.Is(err, auth.ErrInvalidInput) {
			writeValidationError(w, fieldError{Field: "email", Message: "email is required"})
			return
		}
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": forgotPasswordMessage})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	projection, err := a.auth.CurrentUser(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}
