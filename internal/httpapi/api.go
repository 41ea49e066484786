// Package httpapi exposes the back-office HTTP surface: the authentication
// flows, the per-request authentication and authorization gates, and the
// administrative user endpoints.
package httpapi

import (
	"net/http"

	"mecone.com/internal/auth"
	"mecone.com/internal/obs"
)

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	readyProbe ReadyProbe
	version    string
}

// New wires every route. Authenticated routes pass through the
// authentication gate; administrative routes additionally require the
// ADMINISTRATOR or MANAGER profile.
func New(svc *auth.Service, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       svc,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.HandleFunc("/v1/info", a.handleInfo)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/api/auth/forgot-password", a.handleForgotPassword)
	a.mux.Handle("/api/auth/logout", a.withAuth(http.HandlerFunc(a.handleLogout)))
	a.mux.Handle("/api/auth/me", a.withAuth(http.HandlerFunc(a.handleMe)))

	adminOnly := RequireRole(auth.RoleAdministrator, auth.RoleManager)
	a.mux.Handle("/api/users", a.withAuth(adminOnly(http.HandlerFunc(a.handleUsers))))
	a.mux.Handle("/api/users/", a.withAuth(adminOnly(http.HandlerFunc(a.handleUserScoped))))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Resource not found")
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}
