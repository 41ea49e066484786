package httpapi

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"mecone.com/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearerScheme = "Bearer"
)

// withAuth is the authentication gate. Every rejection is a terminal,
// structured 401; unexpected internal failures also surface as 401 so the
// auth boundary never leaks internal state.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get(authHeader))
		if header == "" {
			writeError(w, http.StatusUnauthorized, "No authorization header provided")
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			writeError(w, http.StatusUnauthorized, "No token provided")
			return
		}

		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			case errors.Is(err, auth.ErrUserInactive):
				writeError(w, http.StatusUnauthorized, "User not found or inactive")
			default:
				writeError(w, http.StatusUnauthorized, "Authentication failed")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		a.auth.RecordAPIAccess(ctx, principal, requestOrigin(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if !strings.EqualFold(parts[0], bearerScheme) {
		return "", false
	}
	if len(parts) < 2 {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// requestOrigin extracts the caller address and agent recorded on sessions
// and audit rows.
func requestOrigin(r *http.Request) auth.Origin {
	return auth.Origin{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
