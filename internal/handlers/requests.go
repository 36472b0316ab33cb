package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/nrekik/b1-purchasing-portal/internal/i18n"
	"github.com/nrekik/b1-purchasing-portal/internal/models"
	"github.com/nrekik/b1-purchasing-portal/internal/view"
)

// RequestLister reads purchase requests back from the backend by id.
type RequestLister interface {
	PurchaseRequests(ctx context.Context, docEntries []int) ([]models.PurchaseRequest, error)
}

// EntrySource yields the locally recorded document ids that scope the
// "my purchase requests" view.
type EntrySource interface {
	DocumentEntries() ([]int, error)
}

// RequestsHandler lists the purchase requests created from this client.
type RequestsHandler struct {
	api     RequestLister
	entries EntrySource
	flash   *Flash
}

func NewRequestsHandler(api RequestLister, entries EntrySource, flash *Flash) *RequestsHandler {
	return &RequestsHandler{api: api, entries: entries, flash: flash}
}

// List renders the requests page. The id list comes from local state
// because the backend has no per-user document listing here; an empty
// list renders without any network call.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.entries.DocumentEntries()
	if err != nil {
		log.Printf("requests: entries: %v", err)
	}

	var docs []models.PurchaseRequest
	if len(entries) > 0 {
		docs, err = h.api.PurchaseRequests(r.Context(), entries)
		if err != nil {
			log.Printf("requests: fetch: %v", err)
			lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
			h.flash.Add(w, r, "error", i18n.T(lang, "fetch.failed"))
			docs = nil
		}
	}

	view.Render(w, r, "requests.html", map[string]any{
		"Requests": docs,
		"Flashes":  h.flash.Pop(w, r),
	})
}
