package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperengineering/feedcache"
	"github.com/hyperengineering/feedcache/internal/api"
)

// fakeFeeds implements api.Feeds with overridable behaviour.
type fakeFeeds struct {
	*feedcache.Client
	refreshFn func(ctx context.Context, label string) (feedcache.Result, error)
}

func (f *fakeFeeds) Refresh(ctx context.Context, label string) (feedcache.Result, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, label)
	}
	return f.Client.Refresh(ctx, label)
}

func pagedSource(total int) feedcache.SourceFunc {
	return func(_ context.Context, p feedcache.FetchParams) ([]feedcache.Item, error) {
		page := int(p.PageOrFirst())
		var items []feedcache.Item
		for i := (page-1)*p.PageSize + 1; i <= min(page*p.PageSize, total); i++ {
			items = append(items, feedcache.Item{ID: fmt.Sprintf("item-%d", i), Title: fmt.Sprintf("Item %d", i)})
		}
		return items, nil
	}
}

func newTestServer(t *testing.T, opts ...feedcache.Option) (*httptest.Server, *fakeFeeds) {
	t.Helper()
	client, err := feedcache.New(feedcache.Config{
		LocalPath: filepath.Join(t.TempDir(), "test.db"),
		Label:     "news",
		PageSize:  5,
	}, opts...)
	if err != nil {
		t.Fatalf("feedcache.New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	feeds := &fakeFeeds{Client: client}
	server := httptest.NewServer(api.NewRouter(feeds, api.Options{}))
	t.Cleanup(server.Close)
	return server, feeds
}

func do(t *testing.T, method, url string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
	}
	return resp, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestRouter_RefreshAppendItems(t *testing.T) {
	server, _ := newTestServer(t, feedcache.WithSource(pagedSource(8)))

	resp, body := do(t, http.MethodPost, server.URL+"/v1/feeds/news/refresh")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, body %v", resp.StatusCode, body)
	}
	if body["fetched"] != float64(5) || body["end_of_pagination"] != false {
		t.Errorf("refresh body = %v", body)
	}
	if id, _ := body["cycle_id"].(string); id == "" {
		t.Error("refresh response missing cycle_id")
	}

	resp, body = do(t, http.MethodPost, server.URL+"/v1/feeds/news/append")
	if resp.StatusCode != http.StatusOK || body["fetched"] != float64(3) {
		t.Fatalf("append = %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, server.URL+"/v1/feeds/news/items?limit=0")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("items status = %d", resp.StatusCode)
	}
	if body["count"] != float64(8) {
		t.Errorf("count = %v, want 8", body["count"])
	}
	items, _ := body["items"].([]any)
	if first, _ := items[0].(map[string]any); first["id"] != "item-1" {
		t.Errorf("first item = %v, want item-1", first)
	}

	resp, body = do(t, http.MethodGet, server.URL+"/v1/feeds/news/items?limit=2")
	if resp.StatusCode != http.StatusOK || body["count"] != float64(2) {
		t.Errorf("limited items = %d %v", resp.StatusCode, body["count"])
	}
}

func TestRouter_State(t *testing.T) {
	server, _ := newTestServer(t, feedcache.WithSource(pagedSource(3)))
	do(t, http.MethodPost, server.URL+"/v1/feeds/news/refresh")

	resp, body := do(t, http.MethodGet, server.URL+"/v1/feeds/news/state")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("state status = %d", resp.StatusCode)
	}
	if body["item_count"] != float64(3) || body["next_page"] != float64(2) || body["has_cursor"] != true {
		t.Errorf("state = %v", body)
	}
	if _, ok := body["loads"].(map[string]any); !ok {
		t.Errorf("state missing loads: %v", body)
	}
}

func TestRouter_FeedsAndClear(t *testing.T) {
	server, _ := newTestServer(t, feedcache.WithSource(pagedSource(3)))
	do(t, http.MethodPost, server.URL+"/v1/feeds/news/refresh")

	resp, body := do(t, http.MethodGet, server.URL+"/v1/feeds")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feeds status = %d", resp.StatusCode)
	}
	if feeds, _ := body["feeds"].([]any); len(feeds) != 1 {
		t.Errorf("feeds = %v, want one", body["feeds"])
	}

	resp, _ = do(t, http.MethodDelete, server.URL+"/v1/feeds/news")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}

	_, body = do(t, http.MethodGet, server.URL+"/v1/feeds/news/items")
	if body["count"] != float64(0) {
		t.Errorf("count after clear = %v", body["count"])
	}
}

func TestRouter_GetItem(t *testing.T) {
	server, _ := newTestServer(t, feedcache.WithSource(pagedSource(3)))
	do(t, http.MethodPost, server.URL+"/v1/feeds/news/refresh")

	resp, body := do(t, http.MethodGet, server.URL+"/v1/items/item-2")
	if resp.StatusCode != http.StatusOK || body["title"] != "Item 2" {
		t.Errorf("get item = %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, server.URL+"/v1/items/missing")
	if resp.StatusCode != http.StatusNotFound || errorCode(body) != "not_found" {
		t.Errorf("missing item = %d %v", resp.StatusCode, body)
	}
}

func TestRouter_NestedLabel(t *testing.T) {
	server, _ := newTestServer(t, feedcache.WithSource(pagedSource(2)))

	resp, body := do(t, http.MethodPost, server.URL+"/v1/feeds/news%2Ftech/refresh")
	if resp.StatusCode != http.StatusOK || body["label"] != "news/tech" {
		t.Errorf("nested refresh = %d %v", resp.StatusCode, body)
	}
}

func TestRouter_InvalidLabel(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, server.URL+"/v1/feeds/Bad%20Label/items")
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "invalid_label" {
		t.Errorf("invalid label = %d %v", resp.StatusCode, body)
	}
}

func TestRouter_Offline(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, server.URL+"/v1/feeds/news/refresh")
	if resp.StatusCode != http.StatusServiceUnavailable || errorCode(body) != "offline" {
		t.Errorf("offline refresh = %d %v", resp.StatusCode, body)
	}
}

func TestRouter_LoadErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{
			name:      "transient fetch",
			err:       &feedcache.LoadError{Label: "news", LoadType: feedcache.Refresh{}, Kind: feedcache.KindTransientFetch, Err: errors.New("503")},
			status:    http.StatusBadGateway,
			code:      "fetch_failed",
			retryable: true,
		},
		{
			name:   "storage",
			err:    &feedcache.LoadError{Label: "news", LoadType: feedcache.Refresh{}, Kind: feedcache.KindStorage, Err: errors.New("disk full")},
			status: http.StatusInternalServerError,
			code:   "storage_error",
		},
		{
			name:   "deadline",
			err:    &feedcache.LoadError{Label: "news", LoadType: feedcache.Refresh{}, Kind: feedcache.KindUnclassified, Err: context.DeadlineExceeded},
			status: http.StatusGatewayTimeout,
			code:   "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, feeds := newTestServer(t)
			feeds.refreshFn = func(context.Context, string) (feedcache.Result, error) {
				return feedcache.Result{}, tt.err
			}

			resp, body := do(t, http.MethodPost, server.URL+"/v1/feeds/news/refresh")
			if resp.StatusCode != tt.status || errorCode(body) != tt.code {
				t.Errorf("got %d %v, want %d %s", resp.StatusCode, body, tt.status, tt.code)
			}
			e, _ := body["error"].(map[string]any)
			if got, _ := e["retryable"].(bool); got != tt.retryable {
				t.Errorf("retryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestRouter_Export(t *testing.T) {
	server, _ := newTestServer(t, feedcache.WithSource(pagedSource(2)))
	do(t, http.MethodPost, server.URL+"/v1/feeds/news/refresh")

	resp, body := do(t, http.MethodGet, server.URL+"/v1/feeds/news/export")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if body["version"] != feedcache.ExportVersion || body["label"] != "news" {
		t.Errorf("export = %v", body)
	}
	if items, _ := body["items"].([]any); len(items) != 2 {
		t.Errorf("exported items = %d, want 2", len(items))
	}
}

func TestRouter_Health(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, server.URL+"/v1/health")
	if resp.StatusCode != http.StatusOK || body["healthy"] != true {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=0", 500},
		{"limit=9999", 500},
		{"limit=-3", 50},
		{"limit=abc", 50},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := api.ParseLimit(r, 50, 500); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteError(rec, http.StatusTeapot, "teapot", "short and stout")

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "teapot" || resp.Error.Message != "short and stout" {
		t.Errorf("error = %+v", resp.Error)
	}
}
