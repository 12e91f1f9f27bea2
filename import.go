package feedcache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ImportResult summarizes an import operation.
type ImportResult struct {
	Label    string   `json:"label"`
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportJSON imports one label from a JSON export.
//
// The export is decoded as a stream, then applied with a single ApplyPage so
// the label's items and cursor change together. With refresh set the label
// is replaced; otherwise the items are appended after the cached ones.
// Entries without an id are skipped and reported in Errors.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader, refresh bool) (*ImportResult, error) {
	dec := json.NewDecoder(r)
	result := &ImportResult{}

	// Parse the opening brace
	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected opening brace, got %v", token)
	}

	var (
		version string
		next    *PageToken
		items   []Item
	)
	for dec.More() {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		// Read field name
		token, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read field name: %w", err)
		}

		fieldName, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name, got %v", token)
		}

		switch fieldName {
		case "version":
			if err := dec.Decode(&version); err != nil {
				return nil, fmt.Errorf("decode version: %w", err)
			}
			if version != ExportVersion {
				return nil, fmt.Errorf("%w %q (expected %q)", ErrUnsupportedExport, version, ExportVersion)
			}

		case "label":
			if err := dec.Decode(&result.Label); err != nil {
				return nil, fmt.Errorf("decode label: %w", err)
			}

		case "next_page":
			if err := dec.Decode(&next); err != nil {
				return nil, fmt.Errorf("decode next_page: %w", err)
			}

		case "items":
			items, err = decodeItemArray(ctx, dec, result)
			if err != nil {
				return result, fmt.Errorf("import items: %w", err)
			}

		default:
			// Skip unknown fields
			var discard any
			if err := dec.Decode(&discard); err != nil {
				return nil, fmt.Errorf("decode unknown field %s: %w", fieldName, err)
			}
		}
	}

	if version == "" {
		return nil, fmt.Errorf("missing version field in export file")
	}
	if result.Label == "" {
		return nil, fmt.Errorf("missing label field in export file")
	}

	if err := s.ApplyPage(ctx, result.Label, items, next, refresh); err != nil {
		return result, fmt.Errorf("import items: %w", err)
	}
	result.Imported = len(items)

	return result, nil
}

// decodeItemArray reads the items array from the JSON stream.
func decodeItemArray(ctx context.Context, dec *json.Decoder, result *ImportResult) ([]Item, error) {
	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read items array start: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expected items array, got %v", token)
	}

	var items []Item
	for dec.More() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var e ExportItem
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		result.Total++

		if e.ID == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: missing id", result.Total))
			continue
		}

		items = append(items, Item{
			ID:          e.ID,
			Title:       e.Title,
			Subtitle:    e.Subtitle,
			Description: e.Description,
			ThumbURL:    e.ThumbURL,
			SourceURL:   e.SourceURL,
		})
	}

	// Read closing bracket
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read items array end: %w", err)
	}

	return items, nil
}
