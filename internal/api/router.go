// Package api serves a feedcache client over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hyperengineering/feedcache"
)

// Feeds is the client surface the router needs. *feedcache.Client
// satisfies it.
type Feeds interface {
	Feed(label string) feedcache.Feed
	Refresh(ctx context.Context, label string) (feedcache.Result, error)
	LoadMore(ctx context.Context, label string) (feedcache.Result, error)
	Items(ctx context.Context, label string, limit int) ([]feedcache.Item, error)
	Get(ctx context.Context, id string) (*feedcache.Item, error)
	Clear(ctx context.Context, label string) error
	State(ctx context.Context, label string) (*feedcache.FeedState, error)
	Partitions(ctx context.Context) ([]feedcache.PartitionStats, error)
	Export(ctx context.Context, label string, w io.Writer) error
	HealthCheck(ctx context.Context) feedcache.HealthStatus
}

// Options tunes the router.
type Options struct {
	// Timeout bounds each request, load cycles included.
	Timeout time.Duration
	// MaxItems caps the items returned by one listing.
	MaxItems int
}

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxItems = 500
	defaultLimit    = 50
)

// NewRouter creates the HTTP router with all v1 endpoints.
func NewRouter(feeds Feeds, opts Options) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = defaultMaxItems
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(opts.Timeout))

	h := &handlers{feeds: feeds, maxItems: opts.MaxItems}

	r.Get("/v1/health", h.GetHealth)
	r.Get("/v1/items/{id}", h.GetItem)

	r.Route("/v1/feeds", func(r chi.Router) {
		r.Get("/", h.ListFeeds)

		r.Route("/{label}", func(r chi.Router) {
			r.Delete("/", h.ClearFeed)
			r.Get("/items", h.ListItems)
			r.Get("/state", h.GetState)
			r.Get("/export", h.ExportFeed)
			r.Post("/refresh", h.PostRefresh)
			r.Post("/append", h.PostAppend)
		})
	})

	return r
}

type handlers struct {
	feeds    Feeds
	maxItems int
}
