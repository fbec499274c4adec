package memory

import (
	"context"
	"time"
)

// MaxContentChars is the hard cap on stored content. Content beyond the cap
// is truncated at write time, never rejected.
const MaxContentChars = 50000

// AdminAgent may delete any entry regardless of ownership.
const AdminAgent = "admin"

// DefaultAgent is the attribution used when a caller supplies none.
const DefaultAgent = "anonymous"

// Limits on result set sizes.
const (
	SearchLimit = 10
	ListLimit   = 50
)

// Entry is a single stored item, addressed by its key.
type Entry struct {
	Key     string `json:"key"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
	// ContentLength is the length of the source content as observed at
	// write time: for pasted text the pre-truncation length, for scraped
	// content the length of the already-extracted (capped) text.
	ContentLength int       `json:"content_length"`
	Tags          []string  `json:"tags,omitempty"`
	StoredBy      string    `json:"stored_by"`
	StoredAt      time.Time `json:"stored_at"`
	AccessCount   int       `json:"access_count"`
}

// AgentRecord is a registered agent. Created on register, deleted on
// deregister; only the contribution counter changes in between.
type AgentRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name,omitempty"`
	FactsURL      string    `json:"facts_url,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	RegisteredAt  time.Time `json:"registered_at"`
	Contributions int       `json:"contributions"`
}

// Stats holds aggregate counters for the whole store.
type Stats struct {
	TotalEntries       int `json:"total_entries"`
	TotalContentLength int `json:"total_content_length"`
	Contributors       int `json:"contributors"`
}

// Store is the storage contract shared by the file and sqlite backends.
// Exactly one backend is active per process, chosen at startup.
type Store interface {
	// Write upserts an entry by key. A write to an existing key fully
	// replaces the previous entry.
	Write(ctx context.Context, entry Entry) error

	// Read returns the entry for key and increments its access count as
	// an inseparable part of the read. The returned entry carries the
	// post-increment count. Returns ErrNotFound for an unknown key.
	Read(ctx context.Context, key string) (Entry, error)

	// Search matches query case-insensitively as a substring of key,
	// title, content, or any tag. At most SearchLimit results; ordering
	// is backend-defined.
	Search(ctx context.Context, query string) ([]Entry, error)

	// List returns the newest ListLimit entries, most recent first.
	List(ctx context.Context) ([]Entry, error)

	// Stats reports aggregate counters.
	Stats(ctx context.Context) (Stats, error)

	// Delete removes the entry for key. Fails with ErrUnauthorized unless
	// requestingAgent matches the entry's StoredBy or equals AdminAgent;
	// the authorization check happens before any deletion. Fails with
	// ErrNotFound for an unknown key.
	Delete(ctx context.Context, key, requestingAgent string) error

	// RegisterAgent records an agent by name. Fails with ErrAgentExists
	// if the name is already registered.
	RegisterAgent(ctx context.Context, rec AgentRecord) (AgentRecord, error)

	// DeregisterAgent removes the record for name, ErrNotFound if absent.
	DeregisterAgent(ctx context.Context, name string) error

	// ListAgents returns all registered agents.
	ListAgents(ctx context.Context) ([]AgentRecord, error)

	// RecordContribution bumps the named agent's contribution counter.
	// Best-effort: callers swallow and log failures rather than failing
	// the request. The sqlite backend treats this as a no-op.
	RecordContribution(ctx context.Context, agent string) error

	// Backend returns the backend name ("file" or "sqlite").
	Backend() string

	Close() error
}
