package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"unicode/utf8"

	"github.com/commonplacehq/commonplace/internal/extract"
	"github.com/commonplacehq/commonplace/internal/memory"
	"github.com/commonplacehq/commonplace/internal/webfetch"
	"github.com/commonplacehq/commonplace/pkg/api"
)

// Preview length caps for scrape and search payloads.
const (
	scrapePreviewChars = 500
	searchPreviewChars = 200
)

// MemoryHandler handles the memory store endpoints: scrape, store, get,
// search, list, stats, delete.
type MemoryHandler struct {
	Store   memory.Store
	Fetcher *webfetch.Fetcher
}

// Scrape handles POST /v1/memory/scrape.
func (h *MemoryHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	var req api.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, h.doScrape(r.Context(), req))
}

// StoreEntry handles POST /v1/memory/store.
func (h *MemoryHandler) StoreEntry(w http.ResponseWriter, r *http.Request) {
	var req api.StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, h.doStore(r.Context(), req))
}

// Get handles GET /v1/memory/entry/{key}.
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.doGet(r.Context(), r.PathValue("key")))
}

// Search handles POST /v1/memory/search.
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, h.doSearch(r.Context(), req.Query))
}

// List handles GET /v1/memory/list.
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.doList(r.Context()))
}

// Stats handles GET /v1/memory/stats.
func (h *MemoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.doStats(r.Context()))
}

// Delete handles DELETE /v1/memory/entry/{key}?agent=NAME.
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.doDelete(r.Context(), api.DeleteRequest{
		Key:   r.PathValue("key"),
		Agent: r.URL.Query().Get("agent"),
	}))
}

// Dispatch handles POST /v1/actions: an action tag plus payload, routed to
// the same operations as the REST endpoints.
func (h *MemoryHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req api.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx := r.Context()
	switch req.Action {
	case api.ActionScrape, api.ActionStoreURL:
		writeJSON(w, h.doScrape(ctx, api.ScrapeRequest{
			URL: req.URL, Key: req.Key, Title: req.Title, Tags: req.Tags, Agent: req.Agent,
		}))
	case api.ActionStore, api.ActionStoreText:
		writeJSON(w, h.doStore(ctx, api.StoreRequest{
			Content: req.Content, Key: req.Key, Title: req.Title, Tags: req.Tags, Agent: req.Agent,
		}))
	case api.ActionGet, api.ActionRetrieve:
		writeJSON(w, h.doGet(ctx, req.Key))
	case api.ActionSearch:
		writeJSON(w, h.doSearch(ctx, req.Query))
	case api.ActionList:
		writeJSON(w, h.doList(ctx))
	case api.ActionStats:
		writeJSON(w, h.doStats(ctx))
	case api.ActionDelete:
		writeJSON(w, h.doDelete(ctx, api.DeleteRequest{Key: req.Key, Agent: req.Agent}))
	default:
		writeJSON(w, fail("unknown action: "+req.Action))
	}
}

// doScrape runs the full pipeline: validate, fetch, extract, derive a key,
// write, then bump the contributor counter best-effort.
func (h *MemoryHandler) doScrape(ctx context.Context, req api.ScrapeRequest) any {
	if req.URL == "" {
		return fail("url is required")
	}

	body, _, err := h.Fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return fail("fetch failed: " + err.Error())
	}

	content := extract.Text(body)

	title := req.Title
	if title == "" {
		title = extract.Title(body)
	}
	if title == "" {
		title = req.URL
	}

	key := req.Key
	if key == "" {
		key = memory.DeriveKey(req.URL)
	}

	agent := req.Agent
	if agent == "" {
		agent = memory.DefaultAgent
	}

	entry := memory.Entry{
		Key:     key,
		URL:     req.URL,
		Title:   title,
		Content: content,
		// Scraped content is already extracted and capped, so its
		// recorded length never exceeds the cap.
		ContentLength: utf8.RuneCountInString(content),
		Tags:          req.Tags,
		StoredBy:      agent,
	}
	if err := h.Store.Write(ctx, entry); err != nil {
		return fail("store failed: " + err.Error())
	}

	// Best-effort side effect: a failed counter bump never fails the
	// request. Only the file backend tracks contributions.
	if err := h.Store.RecordContribution(ctx, agent); err != nil {
		log.Printf("contribution count for %s not recorded: %v", agent, err)
	}

	return api.ScrapeResponse{
		Success:       true,
		Key:           key,
		Title:         title,
		ContentLength: entry.ContentLength,
		Preview:       memory.TruncateChars(content, scrapePreviewChars),
		Message:       "stored content from " + req.URL,
	}
}

func (h *MemoryHandler) doStore(ctx context.Context, req api.StoreRequest) any {
	if req.Content == "" {
		return fail("content is required")
	}

	key := req.Key
	if key == "" {
		key = memory.DeriveTextKey(req.Content)
	}

	entry := memory.Entry{
		Key:     key,
		Title:   req.Title,
		Content: req.Content,
		// For pasted text the recorded length is that of the supplied
		// string before truncation.
		ContentLength: utf8.RuneCountInString(req.Content),
		Tags:          req.Tags,
		StoredBy:      req.Agent,
	}
	if err := h.Store.Write(ctx, entry); err != nil {
		return fail("store failed: " + err.Error())
	}

	return api.StoreResponse{
		Success:       true,
		Key:           key,
		ContentLength: entry.ContentLength,
		Message:       "stored text as " + key,
	}
}

func (h *MemoryHandler) doGet(ctx context.Context, key string) any {
	if key == "" {
		return fail("key is required")
	}

	entry, err := h.Store.Read(ctx, key)
	if errors.Is(err, memory.ErrNotFound) {
		return fail("no entry for key " + key)
	}
	if err != nil {
		return fail("read failed: " + err.Error())
	}

	return api.GetResponse{Success: true, Entry: toAPIEntry(entry, true)}
}

func (h *MemoryHandler) doSearch(ctx context.Context, query string) any {
	if query == "" {
		return fail("query is required")
	}

	entries, err := h.Store.Search(ctx, query)
	if err != nil {
		return fail("search failed: " + err.Error())
	}

	results := make([]api.SearchResult, len(entries))
	for i, e := range entries {
		results[i] = api.SearchResult{
			Key:      e.Key,
			Title:    e.Title,
			Preview:  memory.TruncateChars(e.Content, searchPreviewChars),
			StoredBy: e.StoredBy,
			StoredAt: e.StoredAt,
		}
	}

	return api.SearchResponse{Success: true, Query: query, Count: len(results), Results: results}
}

func (h *MemoryHandler) doList(ctx context.Context) any {
	entries, err := h.Store.List(ctx)
	if err != nil {
		return fail("list failed: " + err.Error())
	}

	items := make([]api.Entry, len(entries))
	for i, e := range entries {
		items[i] = toAPIEntry(e, false)
	}

	return api.ListResponse{Success: true, Count: len(items), Items: items}
}

func (h *MemoryHandler) doStats(ctx context.Context) any {
	st, err := h.Store.Stats(ctx)
	if err != nil {
		return fail("stats failed: " + err.Error())
	}

	return api.StatsResponse{
		Success:            true,
		Backend:            h.Store.Backend(),
		TotalEntries:       st.TotalEntries,
		TotalContentLength: st.TotalContentLength,
		Contributors:       st.Contributors,
	}
}

func (h *MemoryHandler) doDelete(ctx context.Context, req api.DeleteRequest) any {
	if req.Key == "" {
		return fail("key is required")
	}
	if req.Agent == "" {
		return fail("agent is required")
	}

	err := h.Store.Delete(ctx, req.Key, req.Agent)
	switch {
	case errors.Is(err, memory.ErrNotFound):
		return fail("no entry for key " + req.Key)
	case errors.Is(err, memory.ErrUnauthorized):
		return fail("agent " + req.Agent + " may not delete " + req.Key)
	case err != nil:
		return fail("delete failed: " + err.Error())
	}

	return api.MessageResponse{Success: true, Message: "deleted " + req.Key}
}

// toAPIEntry converts a stored entry to its wire form. Listings omit the
// content body.
func toAPIEntry(e memory.Entry, withContent bool) api.Entry {
	out := api.Entry{
		Key:           e.Key,
		URL:           e.URL,
		Title:         e.Title,
		ContentLength: e.ContentLength,
		Tags:          e.Tags,
		StoredBy:      e.StoredBy,
		StoredAt:      e.StoredAt,
		AccessCount:   e.AccessCount,
	}
	if withContent {
		out.Content = e.Content
	}
	return out
}
