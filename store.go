package feedcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperengineering/feedcache/internal/store"
	"github.com/hyperengineering/feedcache/internal/store/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// Store manages the local SQLite feed cache.
//
// Every mutation runs in one SQL transaction and writers are serialised
// inside the store, so callers that bypass a Pager still cannot interleave
// partial writes.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex // guards closed
	writeMu sync.Mutex
	closed  bool
	path    string
	watch   *notifier
	now     func() time.Time
}

// NewStore opens or creates a local feed cache.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode so readers keep a stable snapshot while a page commits
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{
		db:    db,
		path:  path,
		watch: newNotifier(),
		now:   time.Now,
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations.FS)
	if err != nil {
		return fmt.Errorf("store: create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, schemaVersion)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ApplyPage installs one fetched page for label as a single transaction.
//
// When refresh is set, every item and the cursor stored for label are
// deleted first. Items are then inserted in slice order with order indexes
// above anything previously assigned to label; an item whose (label, id)
// already exists keeps its position and takes the new payload. Finally the
// cursor is set to next (nil records the end of pagination).
func (s *Store) ApplyPage(ctx context.Context, label string, items []Item, next *PageToken, refresh bool) error {
	if err := store.ValidateLabel(label); err != nil {
		return fmt.Errorf("store: apply page: %w: %q", ErrInvalidLabel, label)
	}
	for i := range items {
		if items[i].ID == "" {
			return fmt.Errorf("store: apply page: item %d has no id", i)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	now := toMillis(s.now())

	if refresh {
		if err := deletePartition(ctx, tx, label); err != nil {
			return err
		}
	}

	last, err := lastOrderIndex(ctx, tx, label)
	if err != nil {
		return err
	}

	if len(items) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO items (label, id, order_index, title, subtitle, description, thumb_url, source_url, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(label, id) DO UPDATE SET
				title = excluded.title,
				subtitle = excluded.subtitle,
				description = excluded.description,
				thumb_url = excluded.thumb_url,
				source_url = excluded.source_url,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("store: prepare item upsert: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			last++
			if _, err := stmt.ExecContext(ctx,
				label,
				item.ID,
				last,
				item.Title,
				item.Subtitle,
				item.Description,
				item.ThumbURL,
				item.SourceURL,
				now,
			); err != nil {
				return fmt.Errorf("store: upsert item %s: %w", item.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_sequences (label, last_index) VALUES (?, ?)
			ON CONFLICT(label) DO UPDATE SET last_index = excluded.last_index
		`, label, last); err != nil {
			return fmt.Errorf("store: advance order sequence: %w", err)
		}
	}

	var nextPage any
	if next != nil {
		nextPage = int64(*next)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cursors (label, next_page, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET next_page = excluded.next_page, updated_at = excluded.updated_at
	`, label, nextPage, now); err != nil {
		return fmt.Errorf("store: upsert cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit page: %w", err)
	}

	s.watch.notify(label)
	return nil
}

// ClearPartition deletes every item and the cursor for label in one
// transaction. Clearing an empty partition succeeds and changes nothing.
func (s *Store) ClearPartition(ctx context.Context, label string) error {
	if err := store.ValidateLabel(label); err != nil {
		return fmt.Errorf("store: clear partition: %w: %q", ErrInvalidLabel, label)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deletePartition(ctx, tx, label); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit clear: %w", err)
	}

	s.watch.notify(label)
	return nil
}

// deletePartition removes items and cursor for label. The order sequence is
// kept so indexes are never reused.
func deletePartition(ctx context.Context, tx *sql.Tx, label string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE label = ?`, label); err != nil {
		return fmt.Errorf("store: delete items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cursors WHERE label = ?`, label); err != nil {
		return fmt.Errorf("store: delete cursor: %w", err)
	}
	return nil
}

func lastOrderIndex(ctx context.Context, tx *sql.Tx, label string) (int64, error) {
	var seq, maxItem int64
	err := tx.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT last_index FROM order_sequences WHERE label = ?), 0),
			COALESCE((SELECT MAX(order_index) FROM items WHERE label = ?), 0)
	`, label, label).Scan(&seq, &maxItem)
	if err != nil {
		return 0, fmt.Errorf("store: read order sequence: %w", err)
	}
	return max(seq, maxItem), nil
}

// Cursor returns the cursor record for label.
// Returns ErrNotFound when the label has never been loaded or was cleared.
func (s *Store) Cursor(ctx context.Context, label string) (*Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var (
		nextPage  sql.NullInt64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT next_page, updated_at FROM cursors WHERE label = ?
	`, label).Scan(&nextPage, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get cursor: %w", err)
	}

	c := &Cursor{Label: label, UpdatedAt: fromMillis(updatedAt)}
	if nextPage.Valid {
		token := PageToken(nextPage.Int64)
		c.NextPage = &token
	}
	return c, nil
}

// GetCursor returns the next page token for label, or nil when there is
// nothing further to append (no cursor, or end of pagination recorded).
func (s *Store) GetCursor(ctx context.Context, label string) (*PageToken, error) {
	c, err := s.Cursor(ctx, label)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.NextPage, nil
}

// Watch returns a channel that receives a signal after every committed write
// to label. An empty label watches all labels. Signals are coalesced; the
// channel is closed by the returned cancel function or by Close.
func (s *Store) Watch(label string) (<-chan struct{}, func()) {
	return s.watch.subscribe(label)
}

// metadata returns a metadata value, or "" if the key is unset. The caller
// holds s.mu.
func (s *Store) metadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get metadata: %w", err)
	}
	return value, nil
}

// Partitions returns one entry per label that has items or a cursor.
func (s *Store) Partitions(ctx context.Context) ([]PartitionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.label, COALESCE(i.cnt, 0), c.next_page, c.updated_at, c.label IS NOT NULL
		FROM (SELECT label FROM items UNION SELECT label FROM cursors) AS l
		LEFT JOIN (SELECT label, COUNT(*) AS cnt FROM items GROUP BY label) AS i ON i.label = l.label
		LEFT JOIN cursors AS c ON c.label = l.label
		ORDER BY l.label
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list partitions: %w", err)
	}
	defer rows.Close()

	var result []PartitionStats
	for rows.Next() {
		var (
			p         PartitionStats
			nextPage  sql.NullInt64
			updatedAt sql.NullInt64
		)
		if err := rows.Scan(&p.Label, &p.ItemCount, &nextPage, &updatedAt, &p.HasCursor); err != nil {
			return nil, fmt.Errorf("store: scan partition: %w", err)
		}
		if nextPage.Valid {
			token := PageToken(nextPage.Int64)
			p.NextPage = &token
		}
		if updatedAt.Valid {
			p.UpdatedAt = fromMillis(updatedAt.Int64)
		}
		result = append(result, p)
	}

	return result, rows.Err()
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var (
		stats     StoreStats
		lastWrite sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM items),
			(SELECT COUNT(*) FROM (SELECT label FROM items UNION SELECT label FROM cursors)),
			(SELECT MAX(updated_at) FROM cursors)
	`).Scan(&stats.ItemCount, &stats.PartitionCount, &lastWrite)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	if lastWrite.Valid {
		stats.LastWrite = fromMillis(lastWrite.Int64)
	}

	stats.SchemaVersion, err = s.metadata(ctx, "schema_version")
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// Close closes the store and every watch channel.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.watch.closeAll()
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
