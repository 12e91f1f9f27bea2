package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperengineering/feedcache"
)

// testEnv points the CLI at a temporary database and resets global flags.
func testEnv(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	t.Setenv("FEEDCACHE_DB_PATH", dbPath)
	t.Setenv("FEEDCACHE_SOURCE_URL", "")
	t.Setenv("FEEDCACHE_API_KEY", "")
	t.Setenv("FEEDCACHE_LABEL", "")
	t.Setenv("FEEDCACHE_OTEL_ENDPOINT", "")

	reset := func() {
		cfgDBPath = ""
		cfgSourceURL = ""
		cfgAPIKey = ""
		cfgLabel = ""
		cfgPageSize = 0
		cfgDebug = false
		outputJSON = false
		loadRetries = 0
		loadBackoff = 500 * time.Millisecond
		loadExcludeID = ""
		loadSubtitle = ""
		itemsLimit = 20
		getWatch = false
		clearForce = false
		exportOutputPath = ""
		importReplace = false
		statsHealth = false
		versionShort = false
	}
	reset()
	t.Cleanup(reset)
	return dbPath
}

// feedServer serves total items in pages from /api/v1/items.
func feedServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		var items []map[string]any
		for i := (page-1)*size + 1; i <= min(page*size, total); i++ {
			items = append(items, map[string]any{"id": i, "title": fmt.Sprintf("Item %d", i)})
		}
		if items == nil {
			items = []map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	}))
	t.Cleanup(server.Close)
	return server
}

// execute runs the root command and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("%v: unexpected error: %v", args, err)
	}
	return out
}

func TestCLI_Help_ListsAllCommands(t *testing.T) {
	testEnv(t)

	output := mustExecute(t, "--help")
	for _, cmd := range []string{"refresh", "more", "items", "get", "clear", "stats", "export", "import", "serve", "mcp", "version"} {
		if !strings.Contains(output, cmd) {
			t.Errorf("--help output should contain %q command", cmd)
		}
	}
}

func TestCLI_RefreshMoreItems(t *testing.T) {
	testEnv(t)
	server := feedServer(t, 7)

	out := mustExecute(t, "refresh", "news", "--source-url", server.URL, "--page-size", "5")
	if !strings.Contains(out, "news: 5 items fetched") {
		t.Errorf("refresh output = %q", out)
	}

	out = mustExecute(t, "more", "news", "--json")
	var res LoadResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode more output %q: %v", out, err)
	}
	if res.Fetched != 2 || res.EndOfPagination || res.Attempts != 1 {
		t.Errorf("more result = %+v", res)
	}

	outputJSON = false
	out = mustExecute(t, "more", "news")
	if !strings.Contains(out, "End of feed reached") {
		t.Errorf("final more output = %q", out)
	}

	out = mustExecute(t, "items", "news", "--limit", "0", "--json")
	var items []feedcache.Item
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 7 || items[0].ID != "1" || items[6].ID != "7" {
		t.Errorf("items = %+v", items)
	}
}

func TestCLI_RefreshMore_Filters(t *testing.T) {
	testEnv(t)

	var mu sync.Mutex
	var queries []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query())
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1","title":"Item 1"}]`))
	}))
	t.Cleanup(server.Close)

	mustExecute(t, "refresh", "related/42", "--source-url", server.URL, "--exclude-id", "42", "--subtitle", "drama")
	mustExecute(t, "more", "related/42", "--exclude-id", "42", "--subtitle", "drama")

	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 2 {
		t.Fatalf("requests = %d, want 2", len(queries))
	}
	for i, q := range queries {
		if q.Get("exclude_id") != "42" || q.Get("subtitle") != "drama" {
			t.Errorf("request %d query = %v, want exclude_id=42 subtitle=drama", i, q)
		}
	}
	if queries[1].Get("page") != "2" {
		t.Errorf("more requested page %q, want 2", queries[1].Get("page"))
	}
}

func TestCLI_Refresh_Offline(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "refresh")
	if !errors.Is(err, feedcache.ErrOffline) {
		t.Errorf("error = %v, want ErrOffline", err)
	}
}

func TestCLI_Items_Empty(t *testing.T) {
	testEnv(t)

	out := mustExecute(t, "items")
	if !strings.Contains(out, "No cached items for default") {
		t.Errorf("output = %q", out)
	}
}

func TestCLI_Get(t *testing.T) {
	testEnv(t)
	server := feedServer(t, 3)
	mustExecute(t, "refresh", "--source-url", server.URL)

	out := mustExecute(t, "get", "2")
	if !strings.Contains(out, "Item 2") || !strings.Contains(out, "default") {
		t.Errorf("get output = %q", out)
	}

	if _, err := execute(t, "get", "99"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("get missing error = %v", err)
	}
}

func TestCLI_Clear(t *testing.T) {
	testEnv(t)
	server := feedServer(t, 3)
	mustExecute(t, "refresh", "news", "--source-url", server.URL)

	if _, err := execute(t, "clear", "news"); err == nil {
		t.Fatal("clear without --force should fail")
	}

	out := mustExecute(t, "clear", "news", "--force")
	if !strings.Contains(out, "Cleared feed news") {
		t.Errorf("clear output = %q", out)
	}

	out = mustExecute(t, "items", "news")
	if !strings.Contains(out, "No cached items") {
		t.Errorf("items after clear = %q", out)
	}
}

func TestCLI_Stats(t *testing.T) {
	testEnv(t)
	server := feedServer(t, 3)
	mustExecute(t, "refresh", "news", "--source-url", server.URL)

	out := mustExecute(t, "stats", "--json")
	var res StatsResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if res.Stats.ItemCount != 3 || len(res.Feeds) != 1 || res.Feeds[0].Label != "news" {
		t.Errorf("stats = %+v", res)
	}

	outputJSON = false
	out = mustExecute(t, "stats")
	if !strings.Contains(out, "Items:          3") || !strings.Contains(out, "news") {
		t.Errorf("stats output = %q", out)
	}
}

func TestCLI_ExportImport(t *testing.T) {
	testEnv(t)
	server := feedServer(t, 4)
	mustExecute(t, "refresh", "news", "--source-url", server.URL)

	path := filepath.Join(t.TempDir(), "news.json")
	out := mustExecute(t, "export", "news", "-o", path)
	if !strings.Contains(out, "Exported feed news") {
		t.Errorf("export output = %q", out)
	}

	// Import into a fresh database
	t.Setenv("FEEDCACHE_DB_PATH", filepath.Join(t.TempDir(), "other.db"))
	exportOutputPath = ""
	out = mustExecute(t, "import", path, "--replace", "--json")
	var res feedcache.ImportResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode import: %v", err)
	}
	if res.Label != "news" || res.Imported != 4 {
		t.Errorf("import = %+v", res)
	}
}

func TestCLI_Import_MissingFile(t *testing.T) {
	testEnv(t)

	if _, err := execute(t, "import", filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("import of missing file should fail")
	}
}

func TestRetryLoad_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	err := retryLoad(context.Background(), 3, time.Millisecond, func(context.Context) error {
		if calls.Add(1) < 3 {
			return &feedcache.LoadError{Kind: feedcache.KindTransientFetch, LoadType: feedcache.Refresh{}, Err: errors.New("503")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRetryLoad_StopsOnStorage(t *testing.T) {
	var calls atomic.Int32
	storageErr := &feedcache.LoadError{Kind: feedcache.KindStorage, LoadType: feedcache.Refresh{}, Err: errors.New("disk full")}
	err := retryLoad(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return storageErr
	})
	if !errors.Is(err, storageErr) {
		t.Errorf("error = %v, want storage error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRetryLoad_GivesUp(t *testing.T) {
	var calls atomic.Int32
	err := retryLoad(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return &feedcache.LoadError{Kind: feedcache.KindTransientFetch, LoadType: feedcache.Append{}, Err: errors.New("timeout")}
	})
	if !feedcache.IsRetryable(err) {
		t.Errorf("error = %v, want the last load error", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestScrubSensitiveData(t *testing.T) {
	testEnv(t)
	cfgAPIKey = "sekrit-key"

	got := scrubSensitiveData("request with sekrit-key failed")
	if strings.Contains(got, "sekrit-key") || !strings.Contains(got, "[REDACTED]") {
		t.Errorf("scrubSensitiveData = %q", got)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatBytes(512); got != "512 B" {
		t.Errorf("formatBytes(512) = %q", got)
	}
	if got := formatBytes(1536); got != "1.5 KB" {
		t.Errorf("formatBytes(1536) = %q", got)
	}

	two := feedcache.PageToken(2)
	if got := formatToken(&two, true); got != "2" {
		t.Errorf("formatToken(2) = %q", got)
	}
	if got := formatToken(nil, true); got != "end" {
		t.Errorf("formatToken(nil) = %q", got)
	}
	if got := formatToken(nil, false); got != "-" {
		t.Errorf("formatToken(no cursor) = %q", got)
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	testEnv(t)
	t.Setenv("FEEDCACHE_LABEL", "from-env")
	t.Setenv("FEEDCACHE_PAGE_SIZE", "30")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Label != "from-env" || cfg.PageSize != 30 {
		t.Errorf("env config = %+v", cfg)
	}

	cfgLabel = "from-flag"
	cfgPageSize = 10
	cfg, err = loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Label != "from-flag" || cfg.PageSize != 10 {
		t.Errorf("flag config = %+v", cfg)
	}
}

func TestLoadConfig_BadEnv(t *testing.T) {
	testEnv(t)
	t.Setenv("FEEDCACHE_PAGE_SIZE", "lots")

	if _, err := loadConfig(); err == nil {
		t.Error("expected parse error")
	}
}

