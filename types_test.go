package feedcache_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hyperengineering/feedcache"
)

func TestClampPageSize(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, feedcache.DefaultPageSize},
		{-3, feedcache.DefaultPageSize},
		{7, 7},
		{feedcache.MaxPageSize, feedcache.MaxPageSize},
		{feedcache.MaxPageSize + 1, feedcache.MaxPageSize},
	}
	for _, tt := range tests {
		if got := feedcache.ClampPageSize(tt.in); got != tt.want {
			t.Errorf("ClampPageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFeed_Validate(t *testing.T) {
	tests := []struct {
		name  string
		feed  feedcache.Feed
		field string
	}{
		{"valid", feedcache.Feed{Label: "news/tech", PageSize: 10}, ""},
		{"default page size", feedcache.Feed{Label: "news"}, ""},
		{"empty label", feedcache.Feed{}, "Label"},
		{"uppercase label", feedcache.Feed{Label: "News"}, "Label"},
		{"page size too large", feedcache.Feed{Label: "news", PageSize: 101}, "PageSize"},
		{"negative page size", feedcache.Feed{Label: "news", PageSize: -1}, "PageSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.feed.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var ve *feedcache.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestCursor_JSONNullNextPage(t *testing.T) {
	data, err := json.Marshal(feedcache.Cursor{Label: "news"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v, ok := decoded["next_page"]; !ok || v != nil {
		t.Errorf("next_page = %v, want null", v)
	}
}
