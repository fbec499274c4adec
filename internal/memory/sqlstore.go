package memory

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key            TEXT PRIMARY KEY,
	url            TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL,
	content        TEXT NOT NULL,
	content_length INTEGER NOT NULL,
	tags           TEXT NOT NULL DEFAULT '[]',
	stored_by      TEXT NOT NULL,
	stored_at      INTEGER NOT NULL,
	access_count   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agents (
	name          TEXT PRIMARY KEY,
	id            TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	facts_url     TEXT NOT NULL DEFAULT '',
	mode          TEXT NOT NULL DEFAULT '',
	registered_at INTEGER NOT NULL,
	contributions INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_entries_stored_at ON entries(stored_at DESC);
`

// SQLStore implements Store over a SQLite database. Row atomicity is
// delegated to SQLite; the access-count increment is read-then-write and
// therefore a best-effort counter under concurrent readers.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (or creates) the database at path and ensures the schema.
func NewSQLStore(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection avoids writer lock contention with SQLite
	// under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Backend() string { return "sqlite" }

func (s *SQLStore) Write(ctx context.Context, entry Entry) error {
	entry = normalizeEntry(entry)

	tags, err := marshalTags(entry.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (key, url, title, content, content_length, tags, stored_by, stored_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			content = excluded.content,
			content_length = excluded.content_length,
			tags = excluded.tags,
			stored_by = excluded.stored_by,
			stored_at = excluded.stored_at,
			access_count = excluded.access_count`,
		entry.Key, entry.URL, entry.Title, entry.Content, entry.ContentLength,
		tags, entry.StoredBy, entry.StoredAt.UnixNano(), entry.AccessCount)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

func (s *SQLStore) Read(ctx context.Context, key string) (Entry, error) {
	entry, err := s.readEntry(ctx, key)
	if err != nil {
		return Entry{}, err
	}

	entry.AccessCount++
	if _, err := s.db.ExecContext(ctx,
		`UPDATE entries SET access_count = ? WHERE key = ?`,
		entry.AccessCount, key); err != nil {
		return Entry{}, fmt.Errorf("bump access count: %w", err)
	}

	return entry, nil
}

func (s *SQLStore) Search(ctx context.Context, query string) ([]Entry, error) {
	// SQLite's lower() folds ASCII only, so non-ASCII matching is
	// case-sensitive on this backend.
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, url, title, content, content_length, tags, stored_by, stored_at, access_count
		FROM entries
		WHERE lower(key) LIKE ? ESCAPE '\'
		   OR lower(title) LIKE ? ESCAPE '\'
		   OR lower(content) LIKE ? ESCAPE '\'
		   OR lower(tags) LIKE ? ESCAPE '\'
		ORDER BY stored_at DESC
		LIMIT ?`,
		pattern, pattern, pattern, pattern, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *SQLStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, url, title, content, content_length, tags, stored_by, stored_at, access_count
		FROM entries
		ORDER BY stored_at DESC
		LIMIT ?`, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(content_length), 0), COUNT(DISTINCT stored_by)
		FROM entries`).Scan(&st.TotalEntries, &st.TotalContentLength, &st.Contributors)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func (s *SQLStore) Delete(ctx context.Context, key, requestingAgent string) error {
	// Point lookup first so the ownership check happens before any delete.
	var storedBy string
	err := s.db.QueryRowContext(ctx,
		`SELECT stored_by FROM entries WHERE key = ?`, key).Scan(&storedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("lookup entry: %w", err)
	}

	if requestingAgent != storedBy && requestingAgent != AdminAgent {
		return fmt.Errorf("%w: entry %s is owned by %s", ErrUnauthorized, key, storedBy)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (s *SQLStore) RegisterAgent(ctx context.Context, rec AgentRecord) (AgentRecord, error) {
	if rec.RegisteredAt.IsZero() {
		rec.RegisteredAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (name, id, display_name, facts_url, mode, registered_at, contributions)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.ID, rec.DisplayName, rec.FactsURL, rec.Mode,
		rec.RegisteredAt.UnixNano(), rec.Contributions)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return AgentRecord{}, fmt.Errorf("%w: %s", ErrAgentExists, rec.Name)
		}
		return AgentRecord{}, fmt.Errorf("register agent: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) DeregisterAgent(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deregister agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: agent %s", ErrNotFound, name)
	}
	return nil
}

func (s *SQLStore) ListAgents(ctx context.Context) ([]AgentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, id, display_name, facts_url, mode, registered_at, contributions
		FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []AgentRecord
	for rows.Next() {
		var rec AgentRecord
		var registeredAt int64
		if err := rows.Scan(&rec.Name, &rec.ID, &rec.DisplayName, &rec.FactsURL,
			&rec.Mode, &registeredAt, &rec.Contributions); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		rec.RegisteredAt = time.Unix(0, registeredAt).UTC()
		agents = append(agents, rec)
	}
	return agents, rows.Err()
}

// RecordContribution is a no-op on the sqlite backend: only the file backend
// tracks per-agent contribution counts as a scrape side effect.
func (s *SQLStore) RecordContribution(ctx context.Context, agent string) error {
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) readEntry(ctx context.Context, key string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, url, title, content, content_length, tags, stored_by, stored_at, access_count
		FROM entries WHERE key = ?`, key)

	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read entry: %w", err)
	}
	return entry, nil
}

func scanEntry(scan func(dest ...any) error) (Entry, error) {
	var e Entry
	var tags string
	var storedAt int64
	if err := scan(&e.Key, &e.URL, &e.Title, &e.Content, &e.ContentLength,
		&tags, &e.StoredBy, &storedAt, &e.AccessCount); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return Entry{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	e.StoredAt = time.Unix(0, storedAt).UTC()
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// marshalTags encodes tags without HTML escaping; the tags column is matched
// by LIKE, so "&", "<" and ">" must be stored literally, not as &.
func marshalTags(tags []string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tags); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// escapeLike neutralizes LIKE wildcards in user queries.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
