package main

import (
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/csrf"

	"github.com/nrekik/b1-purchasing-portal/internal/catalog"
	"github.com/nrekik/b1-purchasing-portal/internal/config"
	"github.com/nrekik/b1-purchasing-portal/internal/handlers"
	"github.com/nrekik/b1-purchasing-portal/internal/servicelayer"
	"github.com/nrekik/b1-purchasing-portal/internal/session"
	"github.com/nrekik/b1-purchasing-portal/internal/state"
)

// NewApp wires the portal routes: the login pair, the guarded article
// and request pages, and the JSON selection endpoints.
func NewApp(cfg *config.Config, sessions *session.Manager, articles *catalog.Store, sl *servicelayer.Client, store *state.Store) http.Handler {
	flash := handlers.NewFlash([]byte(cfg.App.SessionSecret))

	authHandler := handlers.NewAuthHandler(sessions, flash, cfg.ServiceLayer.CompanyDB)
	articlesHandler := handlers.NewArticlesHandler(articles, sl, flash)
	requestsHandler := handlers.NewRequestsHandler(sl, store, flash)

	mux := http.NewServeMux()
	mux.HandleFunc("/login", authHandler.Login)
	mux.HandleFunc("POST /logout", authHandler.Logout)

	guard := func(h http.HandlerFunc) http.Handler {
		return handlers.RequireSession(sessions, h)
	}
	mux.Handle("/{$}", guard(articlesHandler.Index))
	mux.Handle("GET /in-stock", guard(articlesHandler.InStock))
	mux.Handle("GET /requests", guard(requestsHandler.List))
	mux.Handle("POST /articles/select", guard(articlesHandler.Select))
	mux.Handle("POST /articles/select-all", guard(articlesHandler.SelectAll))
	mux.Handle("POST /articles/quantity", guard(articlesHandler.Quantity))
	mux.Handle("POST /articles/selection/clear", guard(articlesHandler.ClearSelection))
	mux.Handle("POST /articles/submit", guard(articlesHandler.Submit))

	mux.Handle("/static/", http.StripPrefix("/static/", staticHandler()))

	protect := csrf.Protect(
		[]byte(cfg.App.CSRFSecret),
		csrf.Secure(false), // localhost portal, no TLS on the local hop
		csrf.Path("/"),
	)
	return protect(mux)
}

// staticHandler serves the css/js assets with a content ETag so the
// browser can revalidate cheaply.
func staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Clean(r.URL.Path)
		f, err := os.Open(filepath.Join("static", name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		h := sha1.New()
		if _, err := io.Copy(h, f); err == nil {
			etag := fmt.Sprintf("%q", fmt.Sprintf("%x", h.Sum(nil)[:8]))
			w.Header().Set("ETag", etag)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, name, trimModTime(f), f)
	})
}

func trimModTime(f *os.File) (t time.Time) {
	if fi, err := f.Stat(); err == nil {
		t = fi.ModTime()
	}
	return
}
