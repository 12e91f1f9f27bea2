package feedcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FetchParams describes one page request to a Source.
type FetchParams struct {
	// Page is the page to fetch; zero means FirstPage.
	Page PageToken

	// PageSize bounds the number of items returned.
	PageSize int

	// ExcludeID removes one item id from the results (e.g. the item a
	// "related" feed is built around).
	ExcludeID string

	// Subtitle restricts results to items with this subtitle/category.
	Subtitle string
}

// PageOrFirst returns Page, or FirstPage when Page is unset.
func (p FetchParams) PageOrFirst() PageToken {
	if p.Page < FirstPage {
		return FirstPage
	}
	return p.Page
}

// Source fetches pages from the remote feed.
//
// Fetch returns up to PageSize items in feed order. An empty slice with a
// nil error means there is no more data. Implementations perform no local
// mutation, must be safe for concurrent use, and do not retry.
type Source interface {
	Fetch(ctx context.Context, params FetchParams) ([]Item, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, params FetchParams) ([]Item, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, params FetchParams) ([]Item, error) {
	return f(ctx, params)
}

// remoteItem is the wire shape of one record returned by the feed API.
type remoteItem struct {
	ID          remoteID `json:"id"`
	Description string   `json:"description"`
	SourceURL   string   `json:"sourceUrl"`
	Subtitle    string   `json:"subtitle"`
	ThumbURL    string   `json:"thumbUrl"`
	Title       string   `json:"title"`
}

// remoteID accepts both numeric and string ids.
type remoteID string

func (r *remoteID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = remoteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*r = remoteID(n.String())
	return nil
}

// HTTPSource implements Source against the feed HTTP API.
type HTTPSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	debug      *DebugLogger
}

// NewHTTPSource creates a feed API client.
func NewHTTPSource(baseURL, apiKey string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom timeouts).
func (c *HTTPSource) WithHTTPClient(client *http.Client) *HTTPSource {
	c.httpClient = client
	return c
}

// WithDebugLogger enables request/response logging.
func (c *HTTPSource) WithDebugLogger(l *DebugLogger) *HTTPSource {
	c.debug = l
	return c
}

func (c *HTTPSource) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "feedcache-client/1.0")
}

func newFetchError(op string, statusCode int, body []byte) *FetchError {
	msg := ""
	if len(body) > 0 && statusCode >= 400 {
		if len(body) > 200 {
			msg = string(body[:200]) + "..."
		} else {
			msg = string(body)
		}
	}
	return &FetchError{
		Operation:  op,
		StatusCode: statusCode,
		Err:        fmt.Errorf("HTTP %d: %s", statusCode, msg),
	}
}

// pageURL builds GET /api/v1/items?page=&page_size=[&exclude_id=][&subtitle=].
func (c *HTTPSource) pageURL(params FetchParams) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(int(params.PageOrFirst())))
	q.Set("page_size", strconv.Itoa(ClampPageSize(params.PageSize)))
	if params.ExcludeID != "" {
		q.Set("exclude_id", params.ExcludeID)
	}
	if params.Subtitle != "" {
		q.Set("subtitle", params.Subtitle)
	}
	return c.baseURL + "/api/v1/items?" + q.Encode()
}

// Fetch retrieves one page of items.
func (c *HTTPSource) Fetch(ctx context.Context, params FetchParams) ([]Item, error) {
	const op = "fetch_page"
	reqURL := c.pageURL(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{Operation: op, Err: err}
	}
	c.setHeaders(req)
	c.debug.LogRequest(req.Method, reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.debug.LogError(op, err)
		return nil, &FetchError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Operation: op, StatusCode: resp.StatusCode, Err: err}
	}
	c.debug.LogResponse(resp.StatusCode, body)

	if resp.StatusCode != http.StatusOK {
		return nil, newFetchError(op, resp.StatusCode, body)
	}

	var page []remoteItem
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &FetchError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode page: %w", err)}
	}

	size := ClampPageSize(params.PageSize)
	if len(page) > size {
		page = page[:size]
	}

	items := make([]Item, len(page))
	for i, r := range page {
		items[i] = Item{
			ID:          string(r.ID),
			Title:       r.Title,
			Subtitle:    r.Subtitle,
			Description: r.Description,
			ThumbURL:    r.ThumbURL,
			SourceURL:   r.SourceURL,
		}
	}
	return items, nil
}

// Ping checks the feed API is reachable by requesting a one-item page.
func (c *HTTPSource) Ping(ctx context.Context) error {
	_, err := c.Fetch(ctx, FetchParams{Page: FirstPage, PageSize: 1})
	return err
}
