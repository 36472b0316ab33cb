package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/nrekik/b1-purchasing-portal/internal/catalog"
	"github.com/nrekik/b1-purchasing-portal/internal/httpx"
	"github.com/nrekik/b1-purchasing-portal/internal/i18n"
	"github.com/nrekik/b1-purchasing-portal/internal/models"
	"github.com/nrekik/b1-purchasing-portal/internal/servicelayer"
	"github.com/nrekik/b1-purchasing-portal/internal/view"
)

// StockLister fetches the in-stock article listing.
type StockLister interface {
	InStockItems(ctx context.Context) ([]models.Article, error)
}

// ArticlesHandler serves the article browsing page, the selection
// endpoints, and purchase request submission.
type ArticlesHandler struct {
	catalog *catalog.Store
	stock   StockLister
	flash   *Flash
}

func NewArticlesHandler(cat *catalog.Store, stock StockLister, flash *Flash) *ArticlesHandler {
	return &ArticlesHandler{catalog: cat, stock: stock, flash: flash}
}

func (h *ArticlesHandler) lang(r *http.Request) string {
	return i18n.DetectLanguage(r.Header.Get("Accept-Language"))
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Index renders the articles table. Normal pagination is driven by
// ?page=N; a non-empty ?q= enters search mode with ?field= and ?spage=
// selecting the filter column and the search page.
func (h *ArticlesHandler) Index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("q")
	field := servicelayer.ParseSearchField(q.Get("field"))

	var rows []models.Article
	var err error
	if text != "" {
		rows, err = h.catalog.SearchAt(r.Context(), text, field, atoiDefault(q.Get("spage"), 0))
	} else {
		rows, err = h.catalog.FetchPage(r.Context(), atoiDefault(q.Get("page"), h.catalog.Page()))
	}
	if errors.Is(err, catalog.ErrStale) {
		rows, err = h.catalog.Visible(), nil
	}
	if err != nil {
		log.Printf("articles: %v", err)
		h.flash.Add(w, r, "error", i18n.T(h.lang(r), "fetch.failed"))
		rows = nil
	}

	h.render(w, r, rows, false)
}

// InStock renders the warehouse-stock listing as a single unpaginated
// table.
func (h *ArticlesHandler) InStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.stock.InStockItems(r.Context())
	if err != nil {
		log.Printf("articles: in-stock: %v", err)
		h.flash.Add(w, r, "error", i18n.T(h.lang(r), "fetch.failed"))
	}
	h.render(w, r, rows, true)
}

func (h *ArticlesHandler) render(w http.ResponseWriter, r *http.Request, rows []models.Article, stockView bool) {
	searching := h.catalog.SearchMode()
	page := h.catalog.Page()
	if searching {
		page = h.catalog.SearchPage()
	}
	selectedSet := map[string]bool{}
	for _, a := range rows {
		if a.ItemCode != "" {
			selectedSet[a.ItemCode] = h.catalog.Selected(a.ItemCode)
		}
	}
	view.Render(w, r, "articles.html", map[string]any{
		"Rows":        rows,
		"SelectedSet": selectedSet,
		"StockView":   stockView,
		"Searching":   searching,
		"SearchText":  h.catalog.SearchText(),
		"SearchField": string(h.catalog.SearchField()),
		"Fields":      []string{string(servicelayer.SearchByItemCode), string(servicelayer.SearchByItemName)},
		"Page":        page,
		"PageDisplay": page + 1,
		"HasPrev":     page > 0,
		"HasMore":     h.catalog.HasMore(),
		"Selection":   h.catalog.Selection(),
		"Count":       h.catalog.SelectionCount(),
		"AllSelected": h.catalog.AllVisibleSelected(),
		"Flashes":     h.flash.Pop(w, r),
	})
}

type selectPayload struct {
	ItemCode string `json:"itemCode"`
	Quantity int    `json:"quantity"`
}

func decodePayload(w http.ResponseWriter, r *http.Request, into *selectPayload) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return false
	}
	return true
}

// Select toggles one item in the selection.
func (h *ArticlesHandler) Select(w http.ResponseWriter, r *http.Request) {
	var p selectPayload
	if !decodePayload(w, r, &p) {
		return
	}
	if p.ItemCode == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_item_code", nil)
		return
	}
	h.catalog.ToggleSelect(p.ItemCode)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"selected": h.catalog.Selected(p.ItemCode),
		"count":    h.catalog.SelectionCount(),
	})
}

// SelectAll toggles selection of every row on the visible page.
func (h *ArticlesHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	h.catalog.ToggleSelectAll()
	httpx.JSON(w, http.StatusOK, map[string]any{
		"allSelected": h.catalog.AllVisibleSelected(),
		"count":       h.catalog.SelectionCount(),
	})
}

// Quantity sets the quantity of a selected item, clamped to >= 1.
func (h *ArticlesHandler) Quantity(w http.ResponseWriter, r *http.Request) {
	var p selectPayload
	if !decodePayload(w, r, &p) {
		return
	}
	effective := h.catalog.SetQuantity(p.ItemCode, p.Quantity)
	if effective == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "not_selected", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quantity": effective})
}

// ClearSelection removes every selected item.
func (h *ArticlesHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.catalog.RemoveAll()
	httpx.JSON(w, http.StatusOK, map[string]any{"count": 0})
}

// Submit creates a purchase request from the selection and redirects
// back to the articles page with a transient notice either way.
func (h *ArticlesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	created, err := h.catalog.Submit(r.Context())
	lang := h.lang(r)
	switch {
	case errors.Is(err, catalog.ErrEmptySelection):
		h.flash.Add(w, r, "error", i18n.T(lang, "selection.failed"))
	case err != nil:
		log.Printf("articles: submit: %v", err)
		h.flash.Add(w, r, "error", i18n.T(lang, "selection.failed"))
	default:
		msg := i18n.T(lang, "selection.created")
		if created.DocNum != 0 {
			msg += " (#" + strconv.Itoa(created.DocNum) + ")"
		}
		h.flash.Add(w, r, "success", msg)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
