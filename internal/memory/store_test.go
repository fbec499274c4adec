package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf8"
)

// forEachBackend runs the same contract test against both store
// implementations. The contract (including delete authorization) must hold
// identically regardless of backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Helper()

	t.Run("file", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()
		fn(t, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSQLStore(filepath.Join(t.TempDir(), "store.db"))
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()
		fn(t, store)
	})
}

func TestWriteThenRead(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		in := Entry{
			Key:      "notes",
			Title:    "My Notes",
			Content:  "remember the milk",
			Tags:     []string{"todo", "groceries"},
			StoredBy: "alice",
		}
		if err := store.Write(ctx, in); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		got, err := store.Read(ctx, "notes")
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if got.Content != in.Content || got.Title != in.Title {
			t.Errorf("Read() = %+v, want content/title from %+v", got, in)
		}
		if len(got.Tags) != 2 || got.Tags[0] != "todo" || got.Tags[1] != "groceries" {
			t.Errorf("Tags = %v, want [todo groceries]", got.Tags)
		}
		if got.AccessCount != 1 {
			t.Errorf("AccessCount after first read = %d, want 1", got.AccessCount)
		}

		// Two sequential reads increment twice.
		got, err = store.Read(ctx, "notes")
		if err != nil {
			t.Fatalf("second Read() error = %v", err)
		}
		if got.AccessCount != 2 {
			t.Errorf("AccessCount after second read = %d, want 2", got.AccessCount)
		}
	})
}

func TestReadUnknownKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		_, err := store.Read(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Read(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestWriteReplacesFully(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		first := Entry{Key: "k", Title: "old", Content: "old body", Tags: []string{"old"}, StoredBy: "alice"}
		if err := store.Write(ctx, first); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Read(ctx, "k"); err != nil {
			t.Fatal(err)
		}

		second := Entry{Key: "k", Title: "new", Content: "new body", StoredBy: "bob"}
		if err := store.Write(ctx, second); err != nil {
			t.Fatal(err)
		}

		got, err := store.Read(ctx, "k")
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "new" || got.Content != "new body" || got.StoredBy != "bob" {
			t.Errorf("after rewrite got %+v, want full replacement", got)
		}
		if len(got.Tags) != 0 {
			t.Errorf("Tags = %v, want none — no field-level merge", got.Tags)
		}
		// Replacement reset the counter; this read is the first access.
		if got.AccessCount != 1 {
			t.Errorf("AccessCount = %d, want 1", got.AccessCount)
		}
	})
}

func TestWriteDefaults(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		if err := store.Write(ctx, Entry{Key: "bare", Content: "x"}); err != nil {
			t.Fatal(err)
		}
		got, err := store.Read(ctx, "bare")
		if err != nil {
			t.Fatal(err)
		}
		if got.StoredBy != DefaultAgent {
			t.Errorf("StoredBy = %q, want %q", got.StoredBy, DefaultAgent)
		}
		if got.Title != "bare" {
			t.Errorf("Title = %q, want key fallback", got.Title)
		}
		if got.StoredAt.IsZero() {
			t.Error("StoredAt not set on write")
		}

		if err := store.Write(ctx, Entry{Key: "withurl", URL: "https://example.com/x", Content: "y"}); err != nil {
			t.Fatal(err)
		}
		got, err = store.Read(ctx, "withurl")
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "https://example.com/x" {
			t.Errorf("Title = %q, want URL fallback", got.Title)
		}
	})
}

func TestContentCap(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		long := make([]byte, MaxContentChars+123)
		for i := range long {
			long[i] = 'z'
		}
		in := Entry{Key: "big", Content: string(long), ContentLength: len(long)}
		if err := store.Write(ctx, in); err != nil {
			t.Fatal(err)
		}

		got, err := store.Read(ctx, "big")
		if err != nil {
			t.Fatal(err)
		}
		if n := utf8.RuneCountInString(got.Content); n != MaxContentChars {
			t.Errorf("stored content length = %d, want cap %d", n, MaxContentChars)
		}
		// The recorded source length survives the truncation.
		if got.ContentLength != MaxContentChars+123 {
			t.Errorf("ContentLength = %d, want %d", got.ContentLength, MaxContentChars+123)
		}
	})
}

func TestSearch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		entries := []Entry{
			{Key: "go-notes", Title: "Go", Content: "channels and goroutines"},
			{Key: "cooking", Title: "Pasta Recipes", Content: "boil water"},
			{Key: "misc", Title: "Misc", Content: "nothing here", Tags: []string{"golang", "links"}},
		}
		for _, e := range entries {
			if err := store.Write(ctx, e); err != nil {
				t.Fatal(err)
			}
		}

		tests := []struct {
			query string
			want  map[string]bool
		}{
			{"GOROUTINES", map[string]bool{"go-notes": true}}, // case-insensitive content match
			{"pasta", map[string]bool{"cooking": true}},       // title match
			{"golang", map[string]bool{"misc": true}},         // tag match
			{"go", map[string]bool{"go-notes": true, "misc": true}}, // key + tag substring
			{"zzz", map[string]bool{}},
		}

		for _, tt := range tests {
			results, err := store.Search(ctx, tt.query)
			if err != nil {
				t.Fatalf("Search(%q) error = %v", tt.query, err)
			}
			if len(results) != len(tt.want) {
				t.Errorf("Search(%q) returned %d results, want %d", tt.query, len(results), len(tt.want))
				continue
			}
			for _, r := range results {
				if !tt.want[r.Key] {
					t.Errorf("Search(%q) returned unexpected key %q", tt.query, r.Key)
				}
			}
		}
	})
}

func TestSearchTagSpecialChars(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		// Tags with HTML-special characters must stay searchable; the
		// sqlite backend matches against the stored tags column, so the
		// characters have to survive encoding literally.
		entries := []Entry{
			{Key: "amp", Content: "x", Tags: []string{"r&d"}},
			{Key: "angle", Content: "x", Tags: []string{"<draft>"}},
			{Key: "plain", Content: "x", Tags: []string{"rnd"}},
		}
		for _, e := range entries {
			if err := store.Write(ctx, e); err != nil {
				t.Fatal(err)
			}
		}

		tests := []struct {
			query string
			want  string
		}{
			{"r&d", "amp"},
			{"<draft>", "angle"},
		}
		for _, tt := range tests {
			results, err := store.Search(ctx, tt.query)
			if err != nil {
				t.Fatalf("Search(%q) error = %v", tt.query, err)
			}
			if len(results) != 1 || results[0].Key != tt.want {
				t.Errorf("Search(%q) = %d results, want only %q", tt.query, len(results), tt.want)
			}
		}
	})
}

func TestSearchLimit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for i := 0; i < SearchLimit+5; i++ {
			e := Entry{Key: fmt.Sprintf("common-%d", i), Content: "shared needle"}
			if err := store.Write(ctx, e); err != nil {
				t.Fatal(err)
			}
		}

		results, err := store.Search(ctx, "needle")
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != SearchLimit {
			t.Errorf("Search returned %d results, want %d", len(results), SearchLimit)
		}
	})
}

func TestListNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		base := time.Now().UTC().Add(-time.Hour)

		for i := 0; i < 3; i++ {
			e := Entry{
				Key:      fmt.Sprintf("e%d", i),
				Content:  "x",
				StoredAt: base.Add(time.Duration(i) * time.Minute),
			}
			if err := store.Write(ctx, e); err != nil {
				t.Fatal(err)
			}
		}

		entries, err := store.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 3 {
			t.Fatalf("List() returned %d entries, want 3", len(entries))
		}
		for i, want := range []string{"e2", "e1", "e0"} {
			if entries[i].Key != want {
				t.Errorf("List()[%d] = %q, want %q", i, entries[i].Key, want)
			}
		}
	})
}

func TestListLimit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		base := time.Now().UTC().Add(-time.Hour)
		for i := 0; i < ListLimit+5; i++ {
			e := Entry{
				Key:      fmt.Sprintf("e%03d", i),
				Content:  "x",
				StoredAt: base.Add(time.Duration(i) * time.Second),
			}
			if err := store.Write(ctx, e); err != nil {
				t.Fatal(err)
			}
		}

		entries, err := store.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != ListLimit {
			t.Errorf("List() returned %d entries, want %d", len(entries), ListLimit)
		}
		// Newest entry leads.
		if entries[0].Key != fmt.Sprintf("e%03d", ListLimit+4) {
			t.Errorf("List()[0] = %q, want newest", entries[0].Key)
		}
	})
}

func TestDeleteAuthorization(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		if err := store.Write(ctx, Entry{Key: "owned", Content: "x", StoredBy: "agentB"}); err != nil {
			t.Fatal(err)
		}

		// A non-owner may not delete, and the entry survives the attempt.
		if err := store.Delete(ctx, "owned", "agentA"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Delete by non-owner error = %v, want ErrUnauthorized", err)
		}
		if _, err := store.Read(ctx, "owned"); err != nil {
			t.Errorf("entry vanished after unauthorized delete: %v", err)
		}

		// The owner may.
		if err := store.Delete(ctx, "owned", "agentB"); err != nil {
			t.Errorf("Delete by owner error = %v", err)
		}

		// Admin may delete anything.
		if err := store.Write(ctx, Entry{Key: "owned2", Content: "x", StoredBy: "agentB"}); err != nil {
			t.Fatal(err)
		}
		if err := store.Delete(ctx, "owned2", AdminAgent); err != nil {
			t.Errorf("Delete by admin error = %v", err)
		}

		if err := store.Delete(ctx, "gone", AdminAgent); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestStats(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		writes := []Entry{
			{Key: "a", Content: "aaaa", ContentLength: 4, StoredBy: "alice"},
			{Key: "b", Content: "bb", ContentLength: 2, StoredBy: "bob"},
			{Key: "c", Content: "cc", ContentLength: 2, StoredBy: "alice"},
		}
		for _, e := range writes {
			if err := store.Write(ctx, e); err != nil {
				t.Fatal(err)
			}
		}

		st, err := store.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if st.TotalEntries != 3 {
			t.Errorf("TotalEntries = %d, want 3", st.TotalEntries)
		}
		if st.TotalContentLength != 8 {
			t.Errorf("TotalContentLength = %d, want 8", st.TotalContentLength)
		}
		if st.Contributors != 2 {
			t.Errorf("Contributors = %d, want 2", st.Contributors)
		}
	})
}

func TestAgentRegistry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		rec, err := store.RegisterAgent(ctx, AgentRecord{ID: "id-1", Name: "scout", DisplayName: "Scout", Mode: "contributor"})
		if err != nil {
			t.Fatalf("RegisterAgent() error = %v", err)
		}
		if rec.RegisteredAt.IsZero() {
			t.Error("RegisteredAt not set")
		}

		if _, err := store.RegisterAgent(ctx, AgentRecord{ID: "id-2", Name: "scout"}); !errors.Is(err, ErrAgentExists) {
			t.Errorf("duplicate RegisterAgent() error = %v, want ErrAgentExists", err)
		}

		agents, err := store.ListAgents(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(agents) != 1 || agents[0].Name != "scout" {
			t.Errorf("ListAgents() = %+v, want one scout", agents)
		}

		if err := store.DeregisterAgent(ctx, "scout"); err != nil {
			t.Errorf("DeregisterAgent() error = %v", err)
		}
		if err := store.DeregisterAgent(ctx, "scout"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second DeregisterAgent() error = %v, want ErrNotFound", err)
		}
	})
}
