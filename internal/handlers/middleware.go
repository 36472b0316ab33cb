package handlers

import (
	"net/http"
	"strings"

	"github.com/nrekik/b1-purchasing-portal/internal/httpx"
	"github.com/nrekik/b1-purchasing-portal/internal/session"
)

// RequireSession is the protected-view guard: without a valid session it
// clears any stale persisted session and redirects to the login page, or
// answers 401 JSON for fetch-style requests. No network call is made.
func RequireSession(m *session.Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.LoggedIn() {
			m.ClearStale()
			accept := r.Header.Get("Accept")
			if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html") {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
