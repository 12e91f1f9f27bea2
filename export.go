package feedcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ExportFormat is the top-level structure for JSON exports of one label.
type ExportFormat struct {
	Version    string       `json:"version"`
	ExportedAt time.Time    `json:"exported_at"`
	Label      string       `json:"label"`
	NextPage   *PageToken   `json:"next_page"`
	Items      []ExportItem `json:"items"`
}

// ExportItem is an item in export format. Position in the items array
// carries the order.
type ExportItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Description string    `json:"description,omitempty"`
	ThumbURL    string    `json:"thumb_url,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExportJSON streams the items and cursor of label as JSON to w.
// Cursor and items are read in one transaction so the snapshot is consistent.
func (s *Store) ExportJSON(ctx context.Context, label string, w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer tx.Rollback()

	var (
		nextPage sql.NullInt64
		next     any
	)
	err = tx.QueryRowContext(ctx, `SELECT next_page FROM cursors WHERE label = ?`, label).Scan(&nextPage)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read cursor: %w", err)
	}
	if nextPage.Valid {
		next = nextPage.Int64
	}
	nextJSON, _ := json.Marshal(next)

	// Write opening structure manually for streaming
	header := fmt.Sprintf(`{"version":"%s","exported_at":"%s","label":%s,"next_page":%s,"items":[`,
		ExportVersion,
		time.Now().UTC().Format(time.RFC3339),
		jsonString(label),
		nextJSON,
	)
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE label = ? ORDER BY order_index ASC`, label)
	if err != nil {
		return fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	enc := json.NewEncoder(w)
	first := true

	for rows.Next() {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, err := scanItem(rows)
		if err != nil {
			return err
		}

		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write separator: %w", err)
			}
		}
		first = false

		if err := enc.Encode(toExportItem(item)); err != nil {
			return fmt.Errorf("encode item: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate items: %w", err)
	}

	// Close JSON structure
	if _, err := io.WriteString(w, "]}"); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	return nil
}

func toExportItem(item *Item) ExportItem {
	return ExportItem{
		ID:          item.ID,
		Title:       item.Title,
		Subtitle:    item.Subtitle,
		Description: item.Description,
		ThumbURL:    item.ThumbURL,
		SourceURL:   item.SourceURL,
		UpdatedAt:   item.UpdatedAt,
	}
}

// jsonString returns a JSON-encoded string.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
