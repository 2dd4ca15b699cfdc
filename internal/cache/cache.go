// Package cache persists fetched items in a local sqlite database so
// listing and analysis work across runs without refetching every feed.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lexwatch/lexwatch/internal/models"
)

// Cache keeps a single-writer connection and a read-only connection to the
// same database file. sqlite handles one writer at a time; funneling all
// writes through one connection avoids SQLITE_BUSY under concurrent use.
type Cache struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	c := &Cache{readDB: readDB, writeDB: writeDB}
	if err := c.init(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	_, err := c.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id         TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			url        TEXT NOT NULL,
			title      TEXT NOT NULL,
			summary    TEXT NOT NULL DEFAULT '',
			published  DATETIME NOT NULL,
			tags       TEXT NOT NULL DEFAULT '',
			categories TEXT NOT NULL DEFAULT '',
			fetched_at DATETIME NOT NULL,
			read       INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_items_published ON items(published DESC);
		CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);

		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
	}
	if c.writeDB != nil {
		errs = append(errs, c.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// UpsertItems inserts items, updating title, summary, labels, and fetch
// time on conflict. The read flag survives updates.
func (c *Cache) UpsertItems(items []models.DocumentItem) error {
	tx, err := c.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO items (id, source, url, title, summary, published, tags, categories, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			tags = excluded.tags,
			categories = excluded.categories,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, item := range items {
		_, err := stmt.Exec(item.ID, item.Source, item.URL, item.Title, item.Summary,
			item.Published, joinLabels(item.Tags), joinLabels(item.Categories), now)
		if err != nil {
			return fmt.Errorf("upserting item %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

type QueryOpts struct {
	Since      time.Time
	Sources    []string
	Search     string
	Category   string
	UnreadOnly bool
	Limit      int
}

func (c *Cache) GetItems(opts QueryOpts) ([]models.DocumentItem, error) {
	var (
		where []string
		args  []interface{}
	)

	if !opts.Since.IsZero() {
		where = append(where, "published >= ?")
		args = append(args, opts.Since)
	}

	if len(opts.Sources) > 0 {
		placeholders := make([]string, len(opts.Sources))
		for i, s := range opts.Sources {
			placeholders[i] = "?"
			args = append(args, s)
		}
		where = append(where, "source IN ("+strings.Join(placeholders, ",")+")")
	}

	if opts.Search != "" {
		where = append(where, "(title LIKE ? OR summary LIKE ?)")
		term := "%" + opts.Search + "%"
		args = append(args, term, term)
	}

	if opts.Category != "" {
		where = append(where, "(',' || categories || ',') LIKE ?")
		args = append(args, "%,"+opts.Category+",%")
	}

	if opts.UnreadOnly {
		where = append(where, "read = 0")
	}

	query := "SELECT id, source, url, title, summary, published, tags, categories FROM items"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY published DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := c.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []models.DocumentItem
	for rows.Next() {
		var (
			item             models.DocumentItem
			tags, categories string
		)
		if err := rows.Scan(&item.ID, &item.Source, &item.URL, &item.Title,
			&item.Summary, &item.Published, &tags, &categories); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.Tags = splitLabels(tags)
		item.Categories = splitLabels(categories)
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem looks up one item by id or by URL.
func (c *Cache) GetItem(key string) (models.DocumentItem, error) {
	row := c.readDB.QueryRow(`
		SELECT id, source, url, title, summary, published, tags, categories
		FROM items WHERE id = ? OR url = ? LIMIT 1
	`, key, key)

	var (
		item             models.DocumentItem
		tags, categories string
	)
	err := row.Scan(&item.ID, &item.Source, &item.URL, &item.Title,
		&item.Summary, &item.Published, &tags, &categories)
	if err == sql.ErrNoRows {
		return models.DocumentItem{}, fmt.Errorf("item not found: %s", key)
	}
	if err != nil {
		return models.DocumentItem{}, fmt.Errorf("querying item: %w", err)
	}
	item.Tags = splitLabels(tags)
	item.Categories = splitLabels(categories)
	return item, nil
}

func (c *Cache) MarkRead(id string) error {
	_, err := c.writeDB.Exec("UPDATE items SET read = 1 WHERE id = ?", id)
	return err
}

// Prune deletes items published longer ago than maxAge and returns the
// number deleted.
func (c *Cache) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res, err := c.writeDB.Exec("DELETE FROM items WHERE published < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning items: %w", err)
	}
	return res.RowsAffected()
}

func (c *Cache) NeedsRefresh(interval time.Duration) bool {
	var value string
	err := c.readDB.QueryRow("SELECT value FROM meta WHERE key = 'last_refresh'").Scan(&value)
	if err != nil {
		return true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return true
	}
	return time.Since(t) > interval
}

func (c *Cache) SetLastRefresh() error {
	_, err := c.writeDB.Exec(`
		INSERT INTO meta (key, value) VALUES ('last_refresh', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, time.Now().Format(time.RFC3339))
	return err
}

func joinLabels(labels []string) string {
	return strings.Join(labels, ",")
}

func splitLabels(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
