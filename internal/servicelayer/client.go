// Package servicelayer is the HTTP client for the remote OData Service
// Layer: session login/logout, item listing and search, posting periods,
// and purchase request creation. It is the only place that talks to the
// backend.
package servicelayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/nrekik/b1-purchasing-portal/internal/models"
)

const sessionCookieName = "B1SESSION"

// Credentials are the login payload for /Login.
type Credentials struct {
	CompanyDB string `json:"CompanyDB"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
}

// LoginResult carries the session identity fields of a successful login.
// SessionTimeout is in minutes.
type LoginResult struct {
	SessionID      string `json:"SessionId"`
	SessionTimeout int    `json:"SessionTimeout"`
	Version        string `json:"Version"`
}

// ErrorDetail is one entry of a structured error body.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-success response with a structured {error:{...}}
// body, as the backend reports application-level failures.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []ErrorDetail
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("service layer: %s (code %s, http %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("service layer: http %d", e.StatusCode)
}

type errorEnvelope struct {
	Error struct {
		Code    json.Number   `json:"code"`
		Message string        `json:"message"`
		Details []ErrorDetail `json:"details"`
	} `json:"error"`
}

type valueEnvelope[T any] struct {
	Value []T `json:"value"`
}

// Client talks to one Service Layer base URL. The session cookie set by
// /Login is carried automatically by the cookie jar; all methods require
// a context and return wrapped transport errors or *APIError for
// application-level failures.
type Client struct {
	baseURL *url.URL
	hc      *http.Client
}

// New builds a client for the given base URL (e.g.
// "https://host:50000/b1s/v1"). No request timeout is set beyond the
// transport's own; callers bound requests with their context.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse service layer url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{baseURL: u, hc: &http.Client{Jar: jar}}, nil
}

// PrimeSession injects a previously persisted session id into the cookie
// jar so a restored session keeps working without a fresh login.
func (c *Client) PrimeSession(sessionID string) {
	if sessionID == "" {
		return
	}
	c.hc.Jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:  sessionCookieName,
		Value: sessionID,
		Path:  "/",
	}})
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	// Resolve as a relative reference rather than JoinPath: OData paths
	// like $crossjoin(...) carry literal slashes inside parentheses that
	// must not be percent-encoded.
	u, err := c.baseURL.Parse(path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// decodeError turns a non-2xx response into *APIError, keeping the
// structured body when one is present.
func (c *Client) decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		apiErr.Code = env.Error.Code.String()
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

// Login authenticates against /Login and returns the session identity.
// Nothing is persisted here; the session manager owns that.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "Login", nil, creds, &res); err != nil {
		return LoginResult{}, err
	}
	if res.SessionID == "" {
		return LoginResult{}, &APIError{StatusCode: http.StatusOK, Message: "login response missing session identity"}
	}
	return res, nil
}

// Logout terminates the remote session. The backend answers 204.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "Logout", nil, nil, nil)
}

// ItemsQuery selects a window of the item listing, optionally filtered.
type ItemsQuery struct {
	Skip   int
	Top    int
	Filter string
}

// Items fetches one window of articles ordered by the backend.
func (c *Client) Items(ctx context.Context, q ItemsQuery) ([]models.Article, error) {
	query := url.Values{}
	query.Set("$select", "ItemCode,ItemName")
	query.Set("$skip", fmt.Sprint(q.Skip))
	query.Set("$top", fmt.Sprint(q.Top))
	if q.Filter != "" {
		query.Set("$filter", q.Filter)
	}
	var env valueEnvelope[models.Article]
	if err := c.do(ctx, http.MethodGet, "Items", query, nil, &env); err != nil {
		return nil, err
	}
	return env.Value, nil
}

// crossjoinRow mirrors the shape of one $crossjoin result row.
type crossjoinRow struct {
	Items struct {
		ItemCode string `json:"ItemCode"`
		ItemName string `json:"ItemName"`
	} `json:"Items"`
	Warehouse struct {
		InStock float64 `json:"InStock"`
	} `json:"Items/ItemWarehouseInfoCollection"`
}

// InStockItems fetches the articles that have warehouse stock, joining
// the item master with its warehouse collection.
func (c *Client) InStockItems(ctx context.Context) ([]models.Article, error) {
	query := url.Values{}
	query.Set("$expand", "Items($select=ItemCode,ItemName),Items/ItemWarehouseInfoCollection($select=InStock)")
	query.Set("$filter", "Items/ItemCode eq Items/ItemWarehouseInfoCollection/ItemCode and Items/ItemWarehouseInfoCollection/InStock gt 0")
	var env valueEnvelope[crossjoinRow]
	if err := c.do(ctx, http.MethodGet, "$crossjoin(Items,Items/ItemWarehouseInfoCollection)", query, nil, &env); err != nil {
		return nil, err
	}
	articles := make([]models.Article, 0, len(env.Value))
	for _, row := range env.Value {
		articles = append(articles, models.Article{
			ItemCode: row.Items.ItemCode,
			ItemName: row.Items.ItemName,
			InStock:  row.Warehouse.InStock,
		})
	}
	return articles, nil
}

// OpenPostingPeriodDate returns the start date of the first posting
// period marked open, or an error when none is.
func (c *Client) OpenPostingPeriodDate(ctx context.Context) (string, error) {
	var env valueEnvelope[models.PostingPeriod]
	if err := c.do(ctx, http.MethodGet, "PostingPeriods", nil, nil, &env); err != nil {
		return "", err
	}
	for _, p := range env.Value {
		if p.Open() {
			return p.StartDate(), nil
		}
	}
	return "", fmt.Errorf("no open posting period")
}

// CreatePurchaseRequest posts a new purchase request and returns the
// created document. The call is not idempotent; retrying after a failure
// can create a duplicate on the backend.
func (c *Client) CreatePurchaseRequest(ctx context.Context, doc models.PurchaseRequest) (models.PurchaseRequest, error) {
	var created models.PurchaseRequest
	if err := c.do(ctx, http.MethodPost, "PurchaseRequests", nil, doc, &created); err != nil {
		return models.PurchaseRequest{}, err
	}
	return created, nil
}

// PurchaseRequests fetches the documents with the given DocEntry ids,
// newest first. An empty id list returns nothing without a network call.
func (c *Client) PurchaseRequests(ctx context.Context, docEntries []int) ([]models.PurchaseRequest, error) {
	if len(docEntries) == 0 {
		return nil, nil
	}
	query := url.Values{}
	query.Set("$filter", DocEntryFilter(docEntries))
	query.Set("$orderby", "DocEntry desc")
	var env valueEnvelope[models.PurchaseRequest]
	if err := c.do(ctx, http.MethodGet, "PurchaseRequests", query, nil, &env); err != nil {
		return nil, err
	}
	return env.Value, nil
}
