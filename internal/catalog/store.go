// Package catalog holds the article browsing state for one visit: the
// page cache, the search overlay, and the selection with per-item
// quantities feeding purchase request submission.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/nrekik/b1-purchasing-portal/internal/models"
	"github.com/nrekik/b1-purchasing-portal/internal/servicelayer"
)

// API is the slice of the Service Layer client the store needs.
type API interface {
	Items(ctx context.Context, q servicelayer.ItemsQuery) ([]models.Article, error)
	OpenPostingPeriodDate(ctx context.Context) (string, error)
	CreatePurchaseRequest(ctx context.Context, doc models.PurchaseRequest) (models.PurchaseRequest, error)
}

// Recorder remembers created documents so the requests view can find
// them again.
type Recorder interface {
	RecordDocument(docEntry, docNum int) error
}

var (
	// ErrEmptySelection is returned by Submit when nothing is selected;
	// no network call is made in that case.
	ErrEmptySelection = errors.New("catalog: selection is empty")
	// ErrSubmitInFlight is returned when a submission is already running.
	ErrSubmitInFlight = errors.New("catalog: submission already in flight")
	// ErrStale marks a response that arrived after the mode or query
	// changed; callers drop it silently.
	ErrStale = errors.New("catalog: stale response discarded")
)

// SelectedItem is one selection entry in insertion order.
type SelectedItem struct {
	ItemCode string
	ItemName string
	Quantity int
}

// Store owns the paginated article state and the selection. The page
// cache is append-only for the lifetime of a session; search results are
// never cached. All methods are safe for concurrent use; network calls
// happen outside the lock and a generation counter discards responses
// that no longer match the current mode.
type Store struct {
	api             API
	rec             Recorder
	pageSize        int
	fallbackDocDate string

	mu  sync.Mutex
	gen uint64

	pages   map[int][]models.Article
	page    int
	hasMore bool

	searchMode    bool
	searchText    string
	searchField   servicelayer.SearchField
	searchPage    int
	searchHasMore bool
	searchResults []models.Article

	inflight map[int]chan struct{}

	selected   map[string]string // ItemCode -> display name
	quantities map[string]int
	order      []string // selection insertion order

	submitting bool
}

func NewStore(api API, rec Recorder, pageSize int, fallbackDocDate string) *Store {
	return &Store{
		api:             api,
		rec:             rec,
		pageSize:        pageSize,
		fallbackDocDate: fallbackDocDate,
		pages:           map[int][]models.Article{},
		searchField:     servicelayer.SearchByItemCode,
		inflight:        map[int]chan struct{}{},
		selected:        map[string]string{},
		quantities:      map[string]int{},
	}
}

// FetchPage displays the given normal-mode page, serving from the cache
// when present (no network call) and fetching otherwise. A fetch already
// in flight for the same page is awaited rather than issued twice.
// Calling it always leaves the store in normal mode.
func (s *Store) FetchPage(ctx context.Context, page int) ([]models.Article, error) {
	if page < 0 {
		page = 0
	}

	s.mu.Lock()
	if s.searchMode {
		s.exitSearchLocked()
	}
	if arts, ok := s.pages[page]; ok {
		s.page = page
		s.hasMore = len(arts) == s.pageSize
		s.mu.Unlock()
		return arts, nil
	}
	if done, ok := s.inflight[page]; ok {
		// Same page already being fetched: wait for it instead of
		// issuing a second request.
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.mu.Lock()
		arts, ok := s.pages[page]
		s.mu.Unlock()
		if !ok {
			return nil, ErrStale
		}
		return arts, nil
	}
	done := make(chan struct{})
	s.inflight[page] = done
	gen := s.gen
	s.mu.Unlock()

	arts, err := s.api.Items(ctx, servicelayer.ItemsQuery{
		Skip: page * s.pageSize,
		Top:  s.pageSize,
	})

	s.mu.Lock()
	delete(s.inflight, page)
	close(done)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}
	if s.gen != gen {
		s.mu.Unlock()
		return nil, ErrStale
	}
	s.pages[page] = arts
	s.page = page
	s.hasMore = len(arts) == s.pageSize
	s.mu.Unlock()
	return arts, nil
}

// Search applies a search query: empty text exits search mode and
// reverts to normal pagination at page 0 (served from cache when there),
// non-empty text enters search mode at search page 0.
func (s *Store) Search(ctx context.Context, text string, field servicelayer.SearchField) ([]models.Article, error) {
	return s.SearchAt(ctx, text, field, 0)
}

// SearchAt runs a search positioned at the given search page. It backs
// both the initial search and next/previous navigation while searching,
// and re-issuing with a new field keeps the current page. Results are
// never cached across distinct texts or fields.
func (s *Store) SearchAt(ctx context.Context, text string, field servicelayer.SearchField, page int) ([]models.Article, error) {
	if !field.Valid() {
		field = servicelayer.SearchByItemCode
	}
	if page < 0 {
		page = 0
	}

	if text == "" {
		return s.FetchPage(ctx, 0)
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.searchMode = true
	s.searchText = text
	s.searchField = field
	s.searchPage = page
	s.mu.Unlock()

	arts, err := s.api.Items(ctx, servicelayer.ItemsQuery{
		Skip:   page * s.pageSize,
		Top:    s.pageSize,
		Filter: servicelayer.ContainsFilter(field, text),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("search %q by %s: %w", text, field, err)
	}
	if s.gen != gen {
		return nil, ErrStale
	}
	s.searchResults = arts
	s.searchHasMore = len(arts) == s.pageSize
	return arts, nil
}

// SetSearchField changes the filter column. While searching the current
// query is re-issued with the new field at the same search page; outside
// search mode only the field is recorded for the next search.
func (s *Store) SetSearchField(ctx context.Context, field servicelayer.SearchField) ([]models.Article, error) {
	if !field.Valid() {
		field = servicelayer.SearchByItemCode
	}
	s.mu.Lock()
	if !s.searchMode {
		s.searchField = field
		s.mu.Unlock()
		return nil, nil
	}
	text, page := s.searchText, s.searchPage
	s.mu.Unlock()
	return s.SearchAt(ctx, text, field, page)
}

// exitSearchLocked drops the search overlay. Caller holds the lock.
func (s *Store) exitSearchLocked() {
	s.gen++
	s.searchMode = false
	s.searchText = ""
	s.searchPage = 0
	s.searchHasMore = false
	s.searchResults = nil
}

// Visible returns the rows the user currently sees: the search results
// while searching, the displayed cached page otherwise.
func (s *Store) Visible() []models.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchMode {
		return s.searchResults
	}
	return s.pages[s.page]
}

// ToggleSelect adds the item to the selection with a default quantity of
// 1, or removes it (and its quantity) when already selected. The display
// name is captured from whichever result set currently shows the item.
func (s *Store) ToggleSelect(itemCode string) {
	if itemCode == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[itemCode]; ok {
		s.removeLocked(itemCode)
		return
	}
	s.addLocked(itemCode)
}

// Selected reports whether the item is currently selected.
func (s *Store) Selected(itemCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[itemCode]
	return ok
}

func (s *Store) addLocked(itemCode string) {
	name := "—"
	for _, a := range s.visibleLocked() {
		if a.ItemCode == itemCode {
			if a.ItemName != "" {
				name = a.ItemName
			}
			break
		}
	}
	s.selected[itemCode] = name
	if _, ok := s.quantities[itemCode]; !ok {
		s.quantities[itemCode] = 1
	}
	s.order = append(s.order, itemCode)
}

func (s *Store) removeLocked(itemCode string) {
	delete(s.selected, itemCode)
	delete(s.quantities, itemCode)
	for i, code := range s.order {
		if code == itemCode {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) visibleLocked() []models.Article {
	if s.searchMode {
		return s.searchResults
	}
	return s.pages[s.page]
}

// AllVisibleSelected reports whether every row currently displayed is
// selected. Empty pages count as not-all-selected.
func (s *Store) AllVisibleSelected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allVisibleSelectedLocked()
}

func (s *Store) allVisibleSelectedLocked() bool {
	rows := s.visibleLocked()
	n := 0
	for _, a := range rows {
		if a.ItemCode == "" {
			continue
		}
		n++
		if _, ok := s.selected[a.ItemCode]; !ok {
			return false
		}
	}
	return n > 0
}

// ToggleSelectAll selects every visible row, or deselects exactly those
// rows when all of them are already selected. Selections made on
// other pages are left untouched either way.
func (s *Store) ToggleSelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.visibleLocked()
	if s.allVisibleSelectedLocked() {
		for _, a := range rows {
			if a.ItemCode != "" {
				s.removeLocked(a.ItemCode)
			}
		}
		return
	}
	for _, a := range rows {
		if a.ItemCode == "" {
			continue
		}
		if _, ok := s.selected[a.ItemCode]; !ok {
			s.addLocked(a.ItemCode)
		}
	}
}

// SetQuantity sets the quantity for a selected item, clamped to a
// minimum of 1. Unselected items are ignored.
func (s *Store) SetQuantity(itemCode string, qty int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[itemCode]; !ok {
		return 0
	}
	if qty < 1 {
		qty = 1
	}
	s.quantities[itemCode] = qty
	return qty
}

// RemoveAll clears the whole selection and its quantities.
func (s *Store) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = map[string]string{}
	s.quantities = map[string]int{}
	s.order = nil
}

// Selection returns the selected items in the order they were chosen.
func (s *Store) Selection() []SelectedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]SelectedItem, 0, len(s.order))
	for _, code := range s.order {
		name, ok := s.selected[code]
		if !ok {
			continue
		}
		qty := s.quantities[code]
		if qty < 1 {
			qty = 1
		}
		items = append(items, SelectedItem{ItemCode: code, ItemName: name, Quantity: qty})
	}
	return items
}

// SelectionCount returns how many items are selected.
func (s *Store) SelectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// Submit creates a purchase request from the selection. The document
// date comes from the open posting period when that lookup succeeds and
// falls back to the configured default otherwise. On success the
// selection is cleared and the created document recorded; on failure the
// selection is kept for retry. Not idempotent: a retry after a failure
// whose request did reach the backend creates a duplicate document.
func (s *Store) Submit(ctx context.Context) (models.PurchaseRequest, error) {
	s.mu.Lock()
	if len(s.selected) == 0 {
		s.mu.Unlock()
		return models.PurchaseRequest{}, ErrEmptySelection
	}
	if s.submitting {
		s.mu.Unlock()
		return models.PurchaseRequest{}, ErrSubmitInFlight
	}
	s.submitting = true
	lines := make([]models.DocumentLine, 0, len(s.order))
	for _, code := range s.order {
		if _, ok := s.selected[code]; !ok {
			continue
		}
		qty := s.quantities[code]
		if qty < 1 {
			qty = 1
		}
		lines = append(lines, models.DocumentLine{ItemCode: code, Quantity: float64(qty)})
	}
	s.mu.Unlock()

	docDate := s.fallbackDocDate
	if date, err := s.api.OpenPostingPeriodDate(ctx); err == nil && date != "" {
		docDate = date
	} else if err != nil {
		log.Printf("catalog: posting period lookup failed, using fallback date %s: %v", docDate, err)
	}

	created, err := s.api.CreatePurchaseRequest(ctx, models.PurchaseRequest{
		DocDate:       docDate,
		RequriedDate:  docDate,
		DocumentLines: lines,
	})

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.mu.Unlock()
		return models.PurchaseRequest{}, fmt.Errorf("create purchase request: %w", err)
	}
	s.selected = map[string]string{}
	s.quantities = map[string]int{}
	s.order = nil
	s.mu.Unlock()

	if s.rec != nil && created.DocEntry != 0 {
		if err := s.rec.RecordDocument(created.DocEntry, created.DocNum); err != nil {
			log.Printf("catalog: record created document %d: %v", created.DocEntry, err)
		}
	}
	return created, nil
}

// Teardown discards everything the store holds: page cache, search
// state, selection, quantities. The session manager calls it when the
// session ends.
func (s *Store) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.pages = map[int][]models.Article{}
	s.page = 0
	s.hasMore = false
	s.searchMode = false
	s.searchText = ""
	s.searchPage = 0
	s.searchHasMore = false
	s.searchResults = nil
	s.selected = map[string]string{}
	s.quantities = map[string]int{}
	s.order = nil
}

// Page returns the displayed normal-mode page index.
func (s *Store) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// HasMore reports whether a next page may exist in the current mode. It
// is true exactly when the last fetched page was full.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchMode {
		return s.searchHasMore
	}
	return s.hasMore
}

// SearchMode reports whether the search overlay is active.
func (s *Store) SearchMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchMode
}

// SearchText returns the active search text, empty outside search mode.
func (s *Store) SearchText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchText
}

// SearchField returns the active search field.
func (s *Store) SearchField() servicelayer.SearchField {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchField
}

// SearchPage returns the search-mode page index.
func (s *Store) SearchPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchPage
}

// Submitting reports whether a purchase request submission is in flight.
func (s *Store) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}
