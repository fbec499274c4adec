package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore keeps the whole store in memory and rewrites two JSON files
// (entries-by-key and agents-by-name) on every mutation. Last disk write
// wins; single-process deployment is the assumed norm.
type FileStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	agents  map[string]AgentRecord
	dir     string
}

// NewFileStore opens (or initializes) a file-backed store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &FileStore{
		entries: make(map[string]Entry),
		agents:  make(map[string]AgentRecord),
		dir:     dir,
	}

	if err := loadJSON(s.entriesPath(), &s.entries); err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	if err := loadJSON(s.agentsPath(), &s.agents); err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}

	return s, nil
}

func (s *FileStore) Backend() string { return "file" }

func (s *FileStore) Write(ctx context.Context, entry Entry) error {
	entry = normalizeEntry(entry)

	s.mu.Lock()
	s.entries[entry.Key] = entry
	s.mu.Unlock()

	return s.saveEntries()
}

func (s *FileStore) Read(ctx context.Context, key string) (Entry, error) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	entry.AccessCount++
	s.entries[key] = entry
	s.mu.Unlock()

	// The counter bump is best-effort: a failed persist must not fail
	// the read.
	if err := s.saveEntries(); err != nil {
		log.Printf("filestore: persist after read of %s failed: %v", key, err)
	}

	return entry, nil
}

func (s *FileStore) Search(ctx context.Context, query string) ([]Entry, error) {
	q := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Entry
	for _, e := range s.entries {
		if entryMatches(e, q) {
			results = append(results, e)
			if len(results) >= SearchLimit {
				break
			}
		}
	}
	return results, nil
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StoredAt.After(entries[j].StoredAt)
	})
	if len(entries) > ListLimit {
		entries = entries[:ListLimit]
	}
	return entries, nil
}

func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contributors := make(map[string]struct{})
	st := Stats{TotalEntries: len(s.entries)}
	for _, e := range s.entries {
		st.TotalContentLength += e.ContentLength
		contributors[e.StoredBy] = struct{}{}
	}
	st.Contributors = len(contributors)
	return st, nil
}

func (s *FileStore) Delete(ctx context.Context, key, requestingAgent string) error {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if requestingAgent != entry.StoredBy && requestingAgent != AdminAgent {
		s.mu.Unlock()
		return fmt.Errorf("%w: entry %s is owned by %s", ErrUnauthorized, key, entry.StoredBy)
	}
	delete(s.entries, key)
	s.mu.Unlock()

	return s.saveEntries()
}

func (s *FileStore) RegisterAgent(ctx context.Context, rec AgentRecord) (AgentRecord, error) {
	if rec.RegisteredAt.IsZero() {
		rec.RegisteredAt = time.Now().UTC()
	}

	s.mu.Lock()
	if _, ok := s.agents[rec.Name]; ok {
		s.mu.Unlock()
		return AgentRecord{}, fmt.Errorf("%w: %s", ErrAgentExists, rec.Name)
	}
	s.agents[rec.Name] = rec
	s.mu.Unlock()

	if err := s.saveAgents(); err != nil {
		// Nothing was persisted, so the registration must not linger in
		// memory; a retry would otherwise hit ErrAgentExists.
		s.mu.Lock()
		delete(s.agents, rec.Name)
		s.mu.Unlock()
		return AgentRecord{}, err
	}
	return rec, nil
}

func (s *FileStore) DeregisterAgent(ctx context.Context, name string) error {
	s.mu.Lock()
	if _, ok := s.agents[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: agent %s", ErrNotFound, name)
	}
	delete(s.agents, name)
	s.mu.Unlock()

	return s.saveAgents()
}

func (s *FileStore) ListAgents(ctx context.Context) ([]AgentRecord, error) {
	s.mu.RLock()
	agents := make([]AgentRecord, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	s.mu.RUnlock()

	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

func (s *FileStore) RecordContribution(ctx context.Context, agent string) error {
	s.mu.Lock()
	rec, ok := s.agents[agent]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: agent %s", ErrNotFound, agent)
	}
	rec.Contributions++
	s.agents[agent] = rec
	s.mu.Unlock()

	return s.saveAgents()
}

func (s *FileStore) Close() error { return nil }

// Persistence — each mapping is a flat JSON file rewritten wholly on every
// mutation, written atomically via temp file + rename.

func (s *FileStore) entriesPath() string { return filepath.Join(s.dir, "entries.json") }
func (s *FileStore) agentsPath() string  { return filepath.Join(s.dir, "agents.json") }

func (s *FileStore) saveEntries() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	return writeAtomic(s.entriesPath(), data)
}

func (s *FileStore) saveAgents() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.agents, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal agents: %w", err)
	}
	return writeAtomic(s.agentsPath(), data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}
