package feedcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Client is the main interface for reading and loading cached feeds.
type Client struct {
	store    *Store
	source   Source
	pinger   interface{ Ping(context.Context) error }
	mediator *Mediator
	debug    *DebugLogger
	config   Config

	pagersMu sync.Mutex
	pagers   map[string]*Pager

	mu          sync.Mutex
	closed      bool
	stopRefresh chan struct{}
	refreshDone chan struct{}
}

// Option customises a Client.
type Option func(*Client)

// WithSource replaces the HTTP feed source. Used by tests and by callers
// that fetch pages some other way.
func WithSource(src Source) Option {
	return func(c *Client) {
		c.source = src
		c.pinger = nil
		if p, ok := src.(interface{ Ping(context.Context) error }); ok {
			c.pinger = p
		}
	}
}

// New creates a new feedcache client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug, err := NewDebugLogger(cfg.Debug, cfg.DebugLogPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	store, err := NewStore(cfg.LocalPath)
	if err != nil {
		_ = debug.Close()
		return nil, fmt.Errorf("client: %w", err)
	}

	c := &Client{
		store:       store,
		debug:       debug,
		config:      cfg,
		pagers:      make(map[string]*Pager),
		stopRefresh: make(chan struct{}),
		refreshDone: make(chan struct{}),
	}

	if !cfg.IsOffline() {
		src := NewHTTPSource(cfg.SourceURL, cfg.APIKey).
			WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}).
			WithDebugLogger(debug)
		c.source = src
		c.pinger = src
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mediator = NewMediator(c.source, store).WithDebugLogger(debug)

	// Start background refresh if enabled
	if c.source != nil && cfg.AutoRefresh {
		go c.backgroundRefresh()
	} else {
		close(c.refreshDone)
	}

	return c, nil
}

// Config returns the resolved configuration.
func (c *Client) Config() Config {
	return c.config
}

// Store returns the underlying local store.
func (c *Client) Store() *Store {
	return c.store
}

// Feed returns the feed for label with the configured page size.
// An empty label selects the configured default label.
func (c *Client) Feed(label string) Feed {
	if label == "" {
		label = c.config.Label
	}
	return Feed{Label: label, PageSize: c.config.PageSize}
}

// Pager returns the pager for feed.Label, creating it on first use. One
// pager exists per label. Asking again for a label with different page size
// or filters returns a ValidationError.
func (c *Client) Pager(feed Feed) (*Pager, error) {
	if feed.Label == "" {
		feed.Label = c.config.Label
	}
	if feed.PageSize == 0 {
		feed.PageSize = c.config.PageSize
	}

	c.pagersMu.Lock()
	defer c.pagersMu.Unlock()

	if p, ok := c.pagers[feed.Label]; ok {
		if p.Feed() != feed {
			return nil, &ValidationError{
				Scope:   "feed",
				Field:   "Feed",
				Message: fmt.Sprintf("%q is already loading with different parameters", feed.Label),
			}
		}
		return p, nil
	}
	return c.newPagerLocked(feed)
}

// pager returns whichever pager is registered for label, creating an
// unfiltered one when there is none.
func (c *Client) pager(label string) (*Pager, error) {
	feed := c.Feed(label)

	c.pagersMu.Lock()
	defer c.pagersMu.Unlock()

	if p, ok := c.pagers[feed.Label]; ok {
		return p, nil
	}
	return c.newPagerLocked(feed)
}

func (c *Client) newPagerLocked(feed Feed) (*Pager, error) {
	p, err := NewPager(c.mediator, c.store, feed)
	if err != nil {
		return nil, err
	}
	c.pagers[feed.Label] = p
	return p, nil
}

// Refresh reloads label from the first page.
func (c *Client) Refresh(ctx context.Context, label string) (Result, error) {
	p, err := c.pager(label)
	if err != nil {
		return Result{}, err
	}
	return p.Refresh(ctx)
}

// LoadMore appends the next page of label.
func (c *Client) LoadMore(ctx context.Context, label string) (Result, error) {
	p, err := c.pager(label)
	if err != nil {
		return Result{}, err
	}
	return p.LoadMore(ctx)
}

// Items returns up to limit cached items of label (all when limit <= 0).
func (c *Client) Items(ctx context.Context, label string, limit int) ([]Item, error) {
	return c.store.ListItems(ctx, c.Feed(label).Label, limit)
}

// Get returns a cached item by id.
func (c *Client) Get(ctx context.Context, id string) (*Item, error) {
	return c.store.GetByID(ctx, id)
}

// WatchItem streams the cached value of an item. See Store.WatchItem.
func (c *Client) WatchItem(ctx context.Context, id string) <-chan *Item {
	return c.store.WatchItem(ctx, id)
}

// Clear deletes the cached items and cursor of label.
func (c *Client) Clear(ctx context.Context, label string) error {
	p, err := c.pager(label)
	if err != nil {
		return err
	}
	return p.Clear(ctx)
}

// FeedState describes the cursor and load states of one label.
type FeedState struct {
	Label     string     `json:"label"`
	ItemCount int        `json:"item_count"`
	NextPage  *PageToken `json:"next_page"`
	HasCursor bool       `json:"has_cursor"`
	Loads     LoadStates `json:"loads"`
}

// State returns the cursor and load states of label.
func (c *Client) State(ctx context.Context, label string) (*FeedState, error) {
	p, err := c.pager(label)
	if err != nil {
		return nil, err
	}
	label = p.Feed().Label

	st := &FeedState{Label: label, Loads: p.States()}
	cur, err := c.store.Cursor(ctx, label)
	switch {
	case err == nil:
		st.HasCursor = true
		st.NextPage = cur.NextPage
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	for _, err := range c.store.Items(ctx, label) {
		if err != nil {
			return nil, err
		}
		st.ItemCount++
	}
	return st, nil
}

// Partitions lists every label in the store.
func (c *Client) Partitions(ctx context.Context) ([]PartitionStats, error) {
	return c.store.Partitions(ctx)
}

// Stats returns store statistics.
func (c *Client) Stats(ctx context.Context) (*StoreStats, error) {
	return c.store.Stats(ctx)
}

// Export writes a snapshot of label to w.
func (c *Client) Export(ctx context.Context, label string, w io.Writer) error {
	return c.store.ExportJSON(ctx, c.Feed(label).Label, w)
}

// Import loads a snapshot from r. With refresh set, the label's cached
// state is replaced; otherwise the items are appended.
func (c *Client) Import(ctx context.Context, r io.Reader, refresh bool) (*ImportResult, error) {
	return c.store.ImportJSON(ctx, r, refresh)
}

// HealthCheck returns the health status of the client.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		StoreOK: true,
	}

	// Check store
	if _, err := c.store.Stats(ctx); err != nil {
		status.StoreOK = false
		status.Healthy = false
		status.Error = err.Error()
		return status
	}

	// Check feed API connectivity
	if c.pinger != nil {
		err := c.pinger.Ping(ctx)
		status.SourceReachable = err == nil
		if err != nil {
			status.Error = err.Error()
		}
	}

	return status
}

// Close stops background refreshing and closes the store.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	// Stop background refresh
	close(c.stopRefresh)

	// Wait for refresh to complete (with timeout)
	select {
	case <-c.refreshDone:
	case <-time.After(5 * time.Second):
	}

	err := c.store.Close()
	_ = c.debug.Close()
	return err
}

func (c *Client) backgroundRefresh() {
	defer close(c.refreshDone)

	ticker := time.NewTicker(c.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopRefresh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.RequestTimeout)
			if _, err := c.Refresh(ctx, ""); err != nil {
				c.debug.LogError("background_refresh", err)
			}
			cancel()
		}
	}
}
