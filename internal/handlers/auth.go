package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/nrekik/b1-purchasing-portal/internal/i18n"
	"github.com/nrekik/b1-purchasing-portal/internal/servicelayer"
	"github.com/nrekik/b1-purchasing-portal/internal/session"
	"github.com/nrekik/b1-purchasing-portal/internal/view"
)

// AuthHandler serves the login form and the logout action.
type AuthHandler struct {
	sessions  *session.Manager
	flash     *Flash
	companyDB string // optional form prefill from config
}

func NewAuthHandler(sessions *session.Manager, flash *Flash, companyDB string) *AuthHandler {
	return &AuthHandler{sessions: sessions, flash: flash, companyDB: companyDB}
}

func (h *AuthHandler) lang(r *http.Request) string {
	return i18n.DetectLanguage(r.Header.Get("Accept-Language"))
}

// Login renders the form on GET and authenticates on POST. An already
// logged-in user is sent straight to the articles page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.sessions.LoggedIn() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if r.Method == http.MethodGet {
		view.Render(w, r, "login.html", map[string]any{"CompanyDB": h.companyDB})
		return
	}

	companyDB := r.FormValue("company_db")
	userName := r.FormValue("user_name")
	password := r.FormValue("password")
	if companyDB == "" || userName == "" || password == "" {
		view.Render(w, r, "login.html", map[string]any{
			"CompanyDB": companyDB,
			"UserName":  userName,
			"Error":     i18n.T(h.lang(r), "login.required"),
		})
		return
	}

	_, err := h.sessions.Login(r.Context(), servicelayer.Credentials{
		CompanyDB: companyDB,
		UserName:  userName,
		Password:  password,
	})
	if err != nil {
		log.Printf("login failed for %s@%s: %v", userName, companyDB, err)
		msg := i18n.T(h.lang(r), "login.failed")
		var apiErr *servicelayer.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = msg + ": " + apiErr.Message
		}
		view.Render(w, r, "login.html", map[string]any{
			"CompanyDB": companyDB,
			"UserName":  userName,
			"Error":     msg,
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout terminates the session. When the remote call fails and the
// manager is fail-open the user stays logged in locally and sees a
// transient failure notice instead.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		log.Printf("logout failed: %v", err)
		h.flash.Add(w, r, "error", i18n.T(h.lang(r), "logout.failed"))
	}
	if h.sessions.LoggedIn() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
