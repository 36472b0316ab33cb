package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nrekik/b1-purchasing-portal/internal/models"
	"github.com/nrekik/b1-purchasing-portal/internal/servicelayer"
)

// fakeAPI serves articles from a fixed list and counts calls. A non-nil
// block channel makes Items wait until it is closed, to simulate a slow
// response.
type fakeAPI struct {
	mu         sync.Mutex
	articles   []models.Article
	itemCalls  []servicelayer.ItemsQuery
	block      chan struct{}
	periodDate string
	periodErr  error
	createErr  error
	created    []models.PurchaseRequest
	nextEntry  int
}

func makeArticles(n int) []models.Article {
	arts := make([]models.Article, n)
	for i := range arts {
		arts[i] = models.Article{ItemCode: fmt.Sprintf("A%03d", i), ItemName: fmt.Sprintf("Article %d", i)}
	}
	return arts
}

func (f *fakeAPI) Items(ctx context.Context, q servicelayer.ItemsQuery) ([]models.Article, error) {
	f.mu.Lock()
	f.itemCalls = append(f.itemCalls, q)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if q.Skip >= len(f.articles) {
		return nil, nil
	}
	end := q.Skip + q.Top
	if end > len(f.articles) {
		end = len(f.articles)
	}
	return f.articles[q.Skip:end], nil
}

func (f *fakeAPI) OpenPostingPeriodDate(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.periodDate, f.periodErr
}

func (f *fakeAPI) CreatePurchaseRequest(_ context.Context, doc models.PurchaseRequest) (models.PurchaseRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.PurchaseRequest{}, f.createErr
	}
	f.nextEntry++
	doc.DocEntry = f.nextEntry
	doc.DocNum = 1000 + f.nextEntry
	f.created = append(f.created, doc)
	return doc, nil
}

func (f *fakeAPI) calls() []servicelayer.ItemsQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]servicelayer.ItemsQuery{}, f.itemCalls...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries [][2]int
}

func (f *fakeRecorder) RecordDocument(docEntry, docNum int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, [2]int{docEntry, docNum})
	return nil
}

func newTestStore(api *fakeAPI) *Store {
	return NewStore(api, nil, 20, "2025-06-30")
}

func TestFetchPageServedFromCache(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(50)}
	s := newTestStore(api)
	ctx := context.Background()

	first, err := s.FetchPage(ctx, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	second, err := s.FetchPage(ctx, 0)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got := len(api.calls()); got != 1 {
		t.Fatalf("issued %d network calls, want 1", got)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Fatal("cached page content differs from fetched content")
	}
}

func TestHasMoreTracksPageFullness(t *testing.T) {
	// 27 articles, page size 20: page 0 is full, page 1 is short.
	api := &fakeAPI{articles: makeArticles(27)}
	s := newTestStore(api)
	ctx := context.Background()

	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if !s.HasMore() {
		t.Fatal("full page 0 should imply more pages")
	}
	arts, err := s.FetchPage(ctx, 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(arts) != 7 {
		t.Fatalf("page 1 has %d articles, want 7", len(arts))
	}
	if s.HasMore() {
		t.Fatal("short page 1 should be the last page")
	}

	// Navigating back must not hit the network again.
	before := len(api.calls())
	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("back to page 0: %v", err)
	}
	if len(api.calls()) != before {
		t.Fatal("cached page 0 must not be refetched")
	}
	if !s.HasMore() {
		t.Fatal("hasMore should be recomputed from the cached full page")
	}
}

func TestConcurrentFetchSamePageSingleFlight(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(30), block: make(chan struct{})}
	s := newTestStore(api)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.FetchPage(ctx, 0)
		}(i)
	}
	// Let both goroutines reach the fetch before releasing it.
	for {
		if len(api.calls()) >= 1 {
			break
		}
	}
	close(api.block)
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if got := len(api.calls()); got != 1 {
		t.Fatalf("issued %d network calls for the same page, want 1", got)
	}
}

func TestToggleSelectIsAnIdempotentPair(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(5)}
	s := newTestStore(api)
	if _, err := s.FetchPage(context.Background(), 0); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	s.ToggleSelect("A001")
	if !s.Selected("A001") || s.SelectionCount() != 1 {
		t.Fatal("first toggle should select")
	}
	sel := s.Selection()
	if sel[0].ItemName != "Article 1" || sel[0].Quantity != 1 {
		t.Fatalf("selection entry = %+v", sel[0])
	}

	s.ToggleSelect("A001")
	if s.Selected("A001") || s.SelectionCount() != 0 {
		t.Fatal("second toggle should deselect")
	}
	if len(s.Selection()) != 0 {
		t.Fatal("quantity entry should be gone after deselect")
	}
}

func TestToggleSelectAllIsPageScoped(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(40)}
	s := newTestStore(api)
	ctx := context.Background()

	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("page 0: %v", err)
	}
	s.ToggleSelect("A000") // one manual selection on page 0

	if _, err := s.FetchPage(ctx, 1); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	s.ToggleSelectAll()
	if s.SelectionCount() != 21 {
		t.Fatalf("selected %d items, want 21 (page 1 + one from page 0)", s.SelectionCount())
	}
	if !s.AllVisibleSelected() {
		t.Fatal("page 1 should be fully selected")
	}

	s.ToggleSelectAll()
	if s.SelectionCount() != 1 {
		t.Fatalf("selected %d items after deselect-all, want the page-0 item only", s.SelectionCount())
	}
	if !s.Selected("A000") {
		t.Fatal("page-0 selection must survive select-all on page 1")
	}
}

func TestSetQuantityClampsToOne(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(5)}
	s := newTestStore(api)
	if _, err := s.FetchPage(context.Background(), 0); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	s.ToggleSelect("A002")

	if got := s.SetQuantity("A002", 0); got != 1 {
		t.Fatalf("SetQuantity(0) = %d, want 1", got)
	}
	if got := s.SetQuantity("A002", -5); got != 1 {
		t.Fatalf("SetQuantity(-5) = %d, want 1", got)
	}
	if got := s.SetQuantity("A002", 7); got != 7 {
		t.Fatalf("SetQuantity(7) = %d, want 7", got)
	}
	if got := s.SetQuantity("A999", 3); got != 0 {
		t.Fatalf("SetQuantity on unselected item = %d, want 0", got)
	}
}

func TestSearchModeUsesSeparatePagination(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(45)}
	s := newTestStore(api)
	ctx := context.Background()

	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("page 0: %v", err)
	}

	arts, err := s.Search(ctx, "ABC", servicelayer.SearchByItemName)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !s.SearchMode() {
		t.Fatal("store should be in search mode")
	}
	if len(arts) != 20 || !s.HasMore() {
		t.Fatalf("search page 0: %d rows, hasMore=%v", len(arts), s.HasMore())
	}
	calls := api.calls()
	last := calls[len(calls)-1]
	if last.Filter != "contains(ItemName,'ABC')" || last.Skip != 0 {
		t.Fatalf("search query = %+v", last)
	}

	// Next page within the filtered result set.
	if _, err := s.SearchAt(ctx, "ABC", servicelayer.SearchByItemName, 1); err != nil {
		t.Fatalf("search page 1: %v", err)
	}
	calls = api.calls()
	last = calls[len(calls)-1]
	if last.Skip != 20 || last.Filter == "" {
		t.Fatalf("search pagination query = %+v", last)
	}
	if s.SearchPage() != 1 {
		t.Fatalf("search page = %d, want 1", s.SearchPage())
	}
	// The normal-mode page index is untouched by search pagination.
	if s.Page() != 0 {
		t.Fatalf("normal page = %d, want 0", s.Page())
	}
}

func TestClearingSearchRevertsWithoutNetwork(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(45)}
	s := newTestStore(api)
	ctx := context.Background()

	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if _, err := s.Search(ctx, "ABC", servicelayer.SearchByItemName); err != nil {
		t.Fatalf("search: %v", err)
	}

	before := len(api.calls())
	arts, err := s.Search(ctx, "", servicelayer.SearchByItemName)
	if err != nil {
		t.Fatalf("clear search: %v", err)
	}
	if s.SearchMode() {
		t.Fatal("empty text should exit search mode")
	}
	if len(api.calls()) != before {
		t.Fatal("reverting to the cached normal page must not hit the network")
	}
	if len(arts) != 20 || arts[0].ItemCode != "A000" {
		t.Fatalf("reverted rows wrong: %d rows", len(arts))
	}
}

func TestSetSearchFieldReissuesCurrentQuery(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(45)}
	s := newTestStore(api)
	ctx := context.Background()

	// Outside search mode only the field is recorded.
	if _, err := s.SetSearchField(ctx, servicelayer.SearchByItemName); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if n := len(api.calls()); n != 0 {
		t.Fatalf("field change outside search mode made %d calls, want 0", n)
	}
	if s.SearchField() != servicelayer.SearchByItemName {
		t.Fatalf("search field = %s, want ItemName", s.SearchField())
	}

	if _, err := s.SearchAt(ctx, "ABC", servicelayer.SearchByItemName, 1); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := s.SetSearchField(ctx, servicelayer.SearchByItemCode); err != nil {
		t.Fatalf("switch field: %v", err)
	}
	calls := api.calls()
	last := calls[len(calls)-1]
	if last.Filter != "contains(ItemCode,'ABC')" || last.Skip != 20 {
		t.Fatalf("re-issued query = %+v, want ItemCode filter at skip 20", last)
	}
	if s.SearchPage() != 1 {
		t.Fatalf("search page = %d after field switch, want 1", s.SearchPage())
	}
}

func TestSearchResultsNeverCached(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(45)}
	s := newTestStore(api)
	ctx := context.Background()

	if _, err := s.Search(ctx, "ABC", servicelayer.SearchByItemCode); err != nil {
		t.Fatalf("search: %v", err)
	}
	before := len(api.calls())
	if _, err := s.Search(ctx, "ABC", servicelayer.SearchByItemCode); err != nil {
		t.Fatalf("repeat search: %v", err)
	}
	if len(api.calls()) != before+1 {
		t.Fatal("repeating a search must re-issue the request")
	}
}

func TestStaleSearchResponseDiscarded(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(45), block: make(chan struct{})}
	s := newTestStore(api)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Search(ctx, "ABC", servicelayer.SearchByItemCode)
		errCh <- err
	}()
	for {
		if len(api.calls()) >= 1 {
			break
		}
	}
	// Mode changes while the search is still in flight.
	s.Teardown()
	close(api.block)

	if err := <-errCh; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if s.SearchMode() || len(s.Visible()) != 0 {
		t.Fatal("stale search response must not be applied")
	}
}

func TestSubmitClearsSelectionAndRecords(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(5), periodDate: "2025-04-01"}
	rec := &fakeRecorder{}
	s := NewStore(api, rec, 20, "2025-06-30")
	ctx := context.Background()

	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	s.ToggleSelect("A001")
	s.ToggleSelect("A003")
	s.SetQuantity("A003", 4)

	created, err := s.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.DocEntry == 0 {
		t.Fatal("created document should carry its id")
	}
	if s.SelectionCount() != 0 {
		t.Fatal("selection must be cleared after a successful submit")
	}

	doc := api.created[0]
	if doc.DocDate != "2025-04-01" || doc.RequriedDate != "2025-04-01" {
		t.Fatalf("document dates = %s / %s, want the open period start", doc.DocDate, doc.RequriedDate)
	}
	if len(doc.DocumentLines) != 2 {
		t.Fatalf("lines = %+v", doc.DocumentLines)
	}
	if doc.DocumentLines[0].ItemCode != "A001" || doc.DocumentLines[0].Quantity != 1 {
		t.Fatalf("line 0 = %+v", doc.DocumentLines[0])
	}
	if doc.DocumentLines[1].ItemCode != "A003" || doc.DocumentLines[1].Quantity != 4 {
		t.Fatalf("line 1 = %+v", doc.DocumentLines[1])
	}
	if len(rec.entries) != 1 || rec.entries[0][0] != created.DocEntry {
		t.Fatalf("recorded entries = %v", rec.entries)
	}
}

func TestSubmitUsesFallbackDateWhenLookupFails(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(5), periodErr: errors.New("lookup down")}
	s := newTestStore(api)
	ctx := context.Background()

	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	s.ToggleSelect("A000")
	if _, err := s.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if api.created[0].DocDate != "2025-06-30" {
		t.Fatalf("DocDate = %s, want the configured fallback", api.created[0].DocDate)
	}
}

func TestSubmitEmptySelectionRejectedWithoutNetwork(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(5)}
	s := newTestStore(api)

	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	if len(api.created) != 0 {
		t.Fatal("no document may be created for an empty selection")
	}
}

func TestSubmitFailureKeepsSelection(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(5), createErr: errors.New("backend rejected")}
	s := newTestStore(api)
	ctx := context.Background()

	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	s.ToggleSelect("A001")
	if _, err := s.Submit(ctx); err == nil {
		t.Fatal("expected submit error")
	}
	if s.SelectionCount() != 1 || !s.Selected("A001") {
		t.Fatal("failed submit must keep the selection for retry")
	}
	if s.Submitting() {
		t.Fatal("in-flight flag must be reset after a failure")
	}
}

func TestSelectionSurvivesPaginationAndSearch(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(45)}
	s := newTestStore(api)
	ctx := context.Background()

	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("page 0: %v", err)
	}
	s.ToggleSelect("A002")

	if _, err := s.FetchPage(ctx, 1); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if _, err := s.Search(ctx, "ABC", servicelayer.SearchByItemName); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := s.Search(ctx, "", servicelayer.SearchByItemName); err != nil {
		t.Fatalf("clear search: %v", err)
	}

	if !s.Selected("A002") || s.SelectionCount() != 1 {
		t.Fatal("selection must survive pagination and search toggling")
	}
}

func TestTeardownDiscardsEverything(t *testing.T) {
	api := &fakeAPI{articles: makeArticles(45)}
	s := newTestStore(api)
	ctx := context.Background()

	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	s.ToggleSelect("A000")
	s.Teardown()

	if s.SelectionCount() != 0 || len(s.Visible()) != 0 {
		t.Fatal("teardown should clear selection and pages")
	}
	before := len(api.calls())
	if _, err := s.FetchPage(ctx, 0); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if len(api.calls()) != before+1 {
		t.Fatal("page cache must be empty after teardown")
	}
}
