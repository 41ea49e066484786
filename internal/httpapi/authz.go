package httpapi

import (
	"net/http"

	"mecone.com/internal/auth"
)

// RequireRole is the authorization gate: a declarative allow-set check over
// the identity resolved by the authentication gate. It must run after
// withAuth. Pure pass-through on success; no audit entry of its own.
func RequireRole(allowed ...auth.Role) func(http.Handler) http.Handler {
	allowSet := make(map[auth.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowSet[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			if _, ok := allowSet[principal.Role]; !ok {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
