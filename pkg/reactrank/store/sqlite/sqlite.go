package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/reactrank/pkg/reactrank/internalerr"
	"github.com/cognicore/reactrank/pkg/reactrank/snapshot"
	"github.com/cognicore/reactrank/pkg/reactrank/store"
)

const snapshotVersionKey = "snapshot_version"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}

	// WAL lets readers proceed during a snapshot write
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %v: %w", err, internalerr.ErrStoreUnavailable)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	title TEXT,
	url TEXT,
	added_at TEXT
);

CREATE TABLE IF NOT EXISTS item_tags (
	item_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	tag TEXT NOT NULL,
	UNIQUE(item_id, tag),
	FOREIGN KEY(item_id) REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag);

CREATE TABLE IF NOT EXISTS totals (
	category TEXT PRIMARY KEY,
	count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tag_counts (
	tag TEXT NOT NULL,
	category TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(tag, category)
);

CREATE TABLE IF NOT EXISTS reactions (
	item_id TEXT PRIMARY KEY,
	category TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertItem inserts or updates an item and replaces its tags
func (s *sqliteStore) UpsertItem(ctx context.Context, it store.Item) error {
	if it.ID == "" {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO items (id, title, url, added_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title=excluded.title,
	url=excluded.url,
	added_at=excluded.added_at;
`
	if _, err := tx.ExecContext(ctx, stmt, it.ID, it.Title, it.URL, formatTime(it.AddedAt)); err != nil {
		return err
	}
	if err := replaceItemTags(ctx, tx, it.ID, uniqueStrings(it.Tags)); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceItemTags(ctx context.Context, tx *sql.Tx, itemID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id=?`, itemID); err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO item_tags (item_id, position, tag) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, tag := range tags {
		if _, err := stmt.ExecContext(ctx, itemID, i, tag); err != nil {
			return err
		}
	}
	return nil
}

// GetItem retrieves an item by ID
func (s *sqliteStore) GetItem(ctx context.Context, id string) (store.Item, bool, error) {
	var (
		it      store.Item
		addedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(title, ''), COALESCE(url, ''), COALESCE(added_at, '') FROM items WHERE id = ?`, id,
	).Scan(&it.ID, &it.Title, &it.URL, &addedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Item{}, false, nil
	}
	if err != nil {
		return store.Item{}, false, err
	}
	it.AddedAt = parseTime(addedAt)

	tags, err := s.loadStringColumn(ctx, `SELECT tag FROM item_tags WHERE item_id = ? ORDER BY position`, id)
	if err != nil {
		return store.Item{}, false, err
	}
	it.Tags = tags
	return it, true, nil
}

// ListItems returns every item ordered by ID
func (s *sqliteStore) ListItems(ctx context.Context) ([]store.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(title, ''), COALESCE(url, ''), COALESCE(added_at, '') FROM items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var (
		items []store.Item
		index = make(map[string]int)
	)
	for rows.Next() {
		var (
			it      store.Item
			addedAt string
		)
		if err := rows.Scan(&it.ID, &it.Title, &it.URL, &addedAt); err != nil {
			rows.Close()
			return nil, err
		}
		it.AddedAt = parseTime(addedAt)
		index[it.ID] = len(items)
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagRows, err := s.db.QueryContext(ctx, `SELECT item_id, tag FROM item_tags ORDER BY item_id, position`)
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var id, tag string
		if err := tagRows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			items[i].Tags = append(items[i].Tags, tag)
		}
	}
	return items, tagRows.Err()
}

// SaveSnapshot replaces counts and reactions in one transaction
func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap snapshot.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"totals", "tag_counts", "reactions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	totalStmt, err := tx.PrepareContext(ctx, `INSERT INTO totals (category, count) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer totalStmt.Close()
	for cat, n := range snap.Counts.Totals {
		if _, err := totalStmt.ExecContext(ctx, cat, n); err != nil {
			return err
		}
	}

	tagStmt, err := tx.PrepareContext(ctx, `INSERT INTO tag_counts (tag, category, count) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer tagStmt.Close()
	for tag, tally := range snap.Counts.Tags {
		if len(tally) == 0 {
			// Keep tags whose counts returned to zero so they stay known.
			if _, err := tagStmt.ExecContext(ctx, tag, "", 0); err != nil {
				return err
			}
			continue
		}
		for cat, n := range tally {
			if _, err := tagStmt.ExecContext(ctx, tag, cat, n); err != nil {
				return err
			}
		}
	}

	reactStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO reactions (item_id, category) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer reactStmt.Close()
	for cat, ids := range snap.Reacted {
		for _, id := range ids {
			if _, err := reactStmt.ExecContext(ctx, id, cat); err != nil {
				return err
			}
		}
	}

	for id, tags := range snap.Items {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, id); err != nil {
			return err
		}
		if err := replaceItemTags(ctx, tx, id, uniqueStrings(tags)); err != nil {
			return err
		}
	}

	version := snap.Version
	if version == 0 {
		version = snapshot.Version
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		snapshotVersionKey, strconv.Itoa(version),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadSnapshot reassembles the last saved snapshot with the tags of every stored item
func (s *sqliteStore) LoadSnapshot(ctx context.Context) (snapshot.Snapshot, bool, error) {
	var versionText string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, snapshotVersionKey).Scan(&versionText)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Snapshot{}, false, nil
	}
	if err != nil {
		return snapshot.Snapshot{}, false, err
	}
	version, _ := strconv.Atoi(versionText)

	snap := snapshot.Snapshot{
		Version: version,
		Counts: snapshot.Counts{
			Totals: snapshot.Tally{},
			Tags:   map[string]snapshot.Tally{},
		},
		Reacted: map[string]snapshot.IDList{},
		Items:   map[string][]string{},
	}

	if err := s.eachRow(ctx, `SELECT category, count FROM totals`, func(rows *sql.Rows) error {
		var (
			cat string
			n   int64
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return err
		}
		snap.Counts.Totals[cat] = n
		return nil
	}); err != nil {
		return snapshot.Snapshot{}, false, err
	}

	if err := s.eachRow(ctx, `SELECT tag, category, count FROM tag_counts`, func(rows *sql.Rows) error {
		var (
			tag, cat string
			n        int64
		)
		if err := rows.Scan(&tag, &cat, &n); err != nil {
			return err
		}
		tally, ok := snap.Counts.Tags[tag]
		if !ok {
			tally = snapshot.Tally{}
			snap.Counts.Tags[tag] = tally
		}
		if cat != "" {
			tally[cat] = n
		}
		return nil
	}); err != nil {
		return snapshot.Snapshot{}, false, err
	}

	if err := s.eachRow(ctx, `SELECT item_id, category FROM reactions ORDER BY item_id`, func(rows *sql.Rows) error {
		var id, cat string
		if err := rows.Scan(&id, &cat); err != nil {
			return err
		}
		snap.Reacted[cat] = append(snap.Reacted[cat], id)
		return nil
	}); err != nil {
		return snapshot.Snapshot{}, false, err
	}

	if err := s.eachRow(ctx, `SELECT item_id, tag FROM item_tags ORDER BY item_id, position`, func(rows *sql.Rows) error {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return err
		}
		snap.Items[id] = append(snap.Items[id], tag)
		return nil
	}); err != nil {
		return snapshot.Snapshot{}, false, err
	}

	return snap, true, nil
}

func (s *sqliteStore) eachRow(ctx context.Context, query string, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *sqliteStore) loadStringColumn(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
