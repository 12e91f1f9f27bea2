package feedcache

import (
	"time"

	"github.com/hyperengineering/feedcache/internal/store"
)

// Item is a single cached feed entry.
// Identity is (Label, ID); OrderIndex fixes its position within the label.
type Item struct {
	Label       string    `json:"label"`
	ID          string    `json:"id"`
	OrderIndex  int64     `json:"order_index"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Description string    `json:"description,omitempty"`
	ThumbURL    string    `json:"thumb_url,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PageToken numbers a page of the remote feed.
type PageToken int

// FirstPage is the token used by a refresh cycle.
const FirstPage PageToken = 1

// NextToken advances current by one page. It returns nil when the fetched
// page was empty, meaning the end of the feed was reached.
func NextToken(current PageToken, fetched int) *PageToken {
	if fetched == 0 {
		return nil
	}
	if current < FirstPage {
		current = FirstPage
	}
	next := current + 1
	return &next
}

// Cursor is the pagination state stored for one label.
// A nil NextPage means there are no further pages to append.
type Cursor struct {
	Label     string     `json:"label"`
	NextPage  *PageToken `json:"next_page"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Page size limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ClampPageSize applies the default and maximum page sizes.
func ClampPageSize(size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size
}

// Feed is a partition of the cache together with the parameters used to
// fetch its pages.
type Feed struct {
	Label     string `json:"label"`
	PageSize  int    `json:"page_size,omitempty"`
	ExcludeID string `json:"exclude_id,omitempty"`
	Subtitle  string `json:"subtitle,omitempty"`
}

// Validate checks the feed label and page size.
func (f Feed) Validate() error {
	if err := store.ValidateLabel(f.Label); err != nil {
		return &ValidationError{Scope: "feed", Field: "Label", Message: err.Error()}
	}
	if f.PageSize < 0 || f.PageSize > MaxPageSize {
		return &ValidationError{Scope: "feed", Field: "PageSize", Message: ErrInvalidPageSize.Error()}
	}
	return nil
}

// fetchParams builds the remote request for the given page.
func (f Feed) fetchParams(page PageToken) FetchParams {
	return FetchParams{
		Page:      page,
		PageSize:  ClampPageSize(f.PageSize),
		ExcludeID: f.ExcludeID,
		Subtitle:  f.Subtitle,
	}
}

// Result is the outcome of a successful load cycle.
type Result struct {
	CycleID         string `json:"cycle_id,omitempty"`
	EndOfPagination bool   `json:"end_of_pagination"`
	Fetched         int    `json:"fetched"`
}

// PartitionStats summarises one label in the store.
type PartitionStats struct {
	Label     string     `json:"label"`
	ItemCount int        `json:"item_count"`
	NextPage  *PageToken `json:"next_page"`
	HasCursor bool       `json:"has_cursor"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	ItemCount      int       `json:"item_count"`
	PartitionCount int       `json:"partition_count"`
	LastWrite      time.Time `json:"last_write"`
	SchemaVersion  string    `json:"schema_version"`
}

// HealthStatus represents the health of the client.
type HealthStatus struct {
	Healthy         bool   `json:"healthy"`
	StoreOK         bool   `json:"store_ok"`
	SourceReachable bool   `json:"source_reachable"`
	Error           string `json:"error,omitempty"`
}
