package api

import "time"

// Action names accepted by the dispatch endpoint. Several actions have a
// legacy alias that maps to the same operation.
const (
	ActionScrape    = "scrape"
	ActionStoreURL  = "store_url" // alias of scrape
	ActionStore     = "store"
	ActionStoreText = "store_text" // alias of store
	ActionGet       = "get"
	ActionRetrieve  = "retrieve" // alias of get
	ActionSearch    = "search"
	ActionList      = "list"
	ActionStats     = "stats"
	ActionDelete    = "delete"
)

// ActionRequest is the envelope consumed by POST /v1/actions. Only the
// fields relevant to the named action need to be set.
type ActionRequest struct {
	Action  string   `json:"action"`
	URL     string   `json:"url,omitempty"`
	Key     string   `json:"key,omitempty"`
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Query   string   `json:"query,omitempty"`
	Agent   string   `json:"agent,omitempty"`
}

// Entry is the wire form of a stored memory entry.
type Entry struct {
	Key           string    `json:"key"`
	URL           string    `json:"url,omitempty"`
	Title         string    `json:"title"`
	Content       string    `json:"content,omitempty"`
	ContentLength int       `json:"content_length"`
	Tags          []string  `json:"tags,omitempty"`
	StoredBy      string    `json:"stored_by"`
	StoredAt      time.Time `json:"stored_at"`
	AccessCount   int       `json:"access_count"`
}

// ScrapeRequest is the payload for POST /v1/memory/scrape.
type ScrapeRequest struct {
	URL   string   `json:"url"`
	Key   string   `json:"key,omitempty"`
	Title string   `json:"title,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Agent string   `json:"agent,omitempty"`
}

// ScrapeResponse is the success payload for a scrape.
type ScrapeResponse struct {
	Success       bool   `json:"success"`
	Key           string `json:"key"`
	Title         string `json:"title"`
	ContentLength int    `json:"content_length"`
	Preview       string `json:"preview"`
	Message       string `json:"message"`
}

// StoreRequest is the payload for POST /v1/memory/store.
type StoreRequest struct {
	Content string   `json:"content"`
	Key     string   `json:"key,omitempty"`
	Title   string   `json:"title,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Agent   string   `json:"agent,omitempty"`
}

// StoreResponse is the success payload for a direct text store.
type StoreResponse struct {
	Success       bool   `json:"success"`
	Key           string `json:"key"`
	ContentLength int    `json:"content_length"`
	Message       string `json:"message"`
}

// GetResponse is the success payload for an entry read. AccessCount in the
// embedded entry is the post-increment value.
type GetResponse struct {
	Success bool  `json:"success"`
	Entry   Entry `json:"entry"`
}

// SearchRequest is the payload for POST /v1/memory/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResult is one search hit with a shortened preview.
type SearchResult struct {
	Key      string    `json:"key"`
	Title    string    `json:"title"`
	Preview  string    `json:"preview"`
	StoredBy string    `json:"stored_by"`
	StoredAt time.Time `json:"stored_at"`
}

// SearchResponse is the success payload for a search.
type SearchResponse struct {
	Success bool           `json:"success"`
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// ListResponse is the success payload for a listing, newest first.
type ListResponse struct {
	Success bool    `json:"success"`
	Count   int     `json:"count"`
	Items   []Entry `json:"items"`
}

// StatsResponse reports aggregate store counters.
type StatsResponse struct {
	Success            bool   `json:"success"`
	Backend            string `json:"backend"`
	TotalEntries       int    `json:"total_entries"`
	TotalContentLength int    `json:"total_content_length"`
	Contributors       int    `json:"contributors"`
}

// DeleteRequest is the payload for a delete action.
type DeleteRequest struct {
	Key   string `json:"key"`
	Agent string `json:"agent"`
}

// MessageResponse is a generic success/failure payload. Business failures
// (missing field, not found, unauthorized) are reported with Success=false
// and HTTP 200; only transport faults use HTTP error codes.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AgentRecord is the wire form of a registered agent.
type AgentRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name,omitempty"`
	FactsURL      string    `json:"facts_url,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	RegisteredAt  time.Time `json:"registered_at"`
	Contributions int       `json:"contributions"`
}

// RegisterAgentRequest is the payload for POST /v1/agents/register.
type RegisterAgentRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	FactsURL    string `json:"facts_url,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

// RegisterAgentResponse is the success payload for agent registration.
type RegisterAgentResponse struct {
	Success bool        `json:"success"`
	Agent   AgentRecord `json:"agent"`
}

// ListAgentsResponse is the success payload for GET /v1/agents.
type ListAgentsResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Agents  []AgentRecord `json:"agents"`
}

// ErrorResponse is the transport-level error body written by writeError.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a transport-level error.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}
