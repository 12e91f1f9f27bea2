package feedcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
)

const itemColumns = `label, id, order_index, title, subtitle, description, thumb_url, source_url, updated_at`

// Items returns the items of label in ascending order index.
//
// The sequence is lazy and restartable: each range runs one query, which
// observes a single committed snapshot, so a concurrent ApplyPage is seen
// either entirely or not at all. Iteration stops at the first error.
func (s *Store) Items(ctx context.Context, label string) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			yield(Item{}, ErrStoreClosed)
			return
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items WHERE label = ? ORDER BY order_index ASC`, label)
		s.mu.RUnlock()
		if err != nil {
			yield(Item{}, fmt.Errorf("store: query items: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				yield(Item{}, err)
				return
			}
			if !yield(*item, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Item{}, fmt.Errorf("store: iterate items: %w", err))
		}
	}
}

// ListItems collects up to limit items of label (all when limit <= 0).
func (s *Store) ListItems(ctx context.Context, label string, limit int) ([]Item, error) {
	var result []Item
	for item, err := range s.Items(ctx, label) {
		if err != nil {
			return nil, err
		}
		result = append(result, item)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// GetByID looks up an item by id across all labels. When the id is cached
// under several labels, the most recently written row is returned.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE id = ?
		ORDER BY updated_at DESC, label ASC LIMIT 1
	`, id)
	return scanItem(row)
}

// WatchItem emits the current value of the item with the given id, then the
// new value after every commit that changes it. A nil value means the item
// is not (or no longer) cached. The channel closes when ctx is done or the
// store is closed.
func (s *Store) WatchItem(ctx context.Context, id string) <-chan *Item {
	out := make(chan *Item, 1)
	changes, cancel := s.Watch("")

	go func() {
		defer close(out)
		defer cancel()

		var (
			last  *Item
			first = true
		)
		emit := func() bool {
			item, err := s.GetByID(ctx, id)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return false
			}
			if !first && sameItem(last, item) {
				return true
			}
			first = false
			last = item
			select {
			case out <- item:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok || !emit() {
					return
				}
			}
		}
	}()

	return out
}

func sameItem(a, b *Item) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanItem scans one item row. Returns ErrNotFound only for sql.ErrNoRows.
func scanItem(sc scanner) (*Item, error) {
	var (
		item      Item
		updatedAt int64
	)
	err := sc.Scan(
		&item.Label,
		&item.ID,
		&item.OrderIndex,
		&item.Title,
		&item.Subtitle,
		&item.Description,
		&item.ThumbURL,
		&item.SourceURL,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan item: %w", err)
	}
	item.UpdatedAt = fromMillis(updatedAt)
	return &item, nil
}
