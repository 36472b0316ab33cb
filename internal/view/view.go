// Package view renders the portal's HTML templates. Every page template
// is parsed together with layout.html and cached after first use.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/csrf"

	"github.com/nrekik/b1-purchasing-portal/internal/i18n"
)

var (
	baseDir  string
	once     sync.Once
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}
)

// detectBase finds the templates directory whether the binary runs from
// the repo root or from cmd/server.
func detectBase() {
	candidates := []string{"templates", "../templates", "../../templates"}
	for _, c := range candidates {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			baseDir = filepath.Clean(c)
			return
		}
	}
	baseDir = "templates"
}

// SetBaseDir overrides template lookup, mainly for tests.
func SetBaseDir(dir string) {
	once.Do(func() {})
	baseDir = dir
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
}

// Funcs returns the template func map: i18n lookup bound to the
// request's language plus small helpers.
func Funcs(r *http.Request) template.FuncMap {
	lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
	return template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"lang": func() string { return lang },
		"year": func() int { return time.Now().Year() },
		"csrfField": func() template.HTML {
			return csrf.TemplateField(r)
		},
		"csrfToken": func() string {
			return csrf.Token(r)
		},
		"fmtMoney": func(v float64) string {
			return fmt.Sprintf("%.2f", v)
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int {
			if a-b < 0 {
				return 0
			}
			return a - b
		},
	}
}

func load(r *http.Request, name string) (*template.Template, error) {
	once.Do(detectBase)

	// The func map closes over the request, so cached templates are
	// cloned per render and only the parse cost is shared.
	tplCache.RLock()
	cached := tplCache.m[name]
	tplCache.RUnlock()
	if cached == nil {
		t, err := template.New("layout.html").
			Funcs(Funcs(r)).
			ParseFiles(filepath.Join(baseDir, "layout.html"), filepath.Join(baseDir, name))
		if err != nil {
			return nil, err
		}
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
		cached = t
	}
	t, err := cached.Clone()
	if err != nil {
		return nil, err
	}
	return t.Funcs(Funcs(r)), nil
}

// Render writes the named page template wrapped in the layout. Render
// errors are logged and answered with a plain 500 so a template mistake
// never takes the process down.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	t, err := load(r, name)
	if err != nil {
		log.Printf("view: parse %s: %v", name, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]any{}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		log.Printf("view: render %s: %v", name, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
