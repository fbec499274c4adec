package memory

import (
	"strings"
	"time"
	"unicode/utf8"
)

// normalizeEntry applies write-time rules shared by both backends: the
// content cap, attribution and title defaults, and the write timestamp.
func normalizeEntry(e Entry) Entry {
	e.Content = TruncateChars(e.Content, MaxContentChars)
	if e.ContentLength == 0 {
		e.ContentLength = utf8.RuneCountInString(e.Content)
	}
	if e.StoredBy == "" {
		e.StoredBy = DefaultAgent
	}
	if e.Title == "" {
		if e.URL != "" {
			e.Title = e.URL
		} else {
			e.Title = e.Key
		}
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now().UTC()
	}
	return e
}

// entryMatches reports whether the lowercased query is a substring of the
// entry's key, title, content, or any tag.
func entryMatches(e Entry, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(e.Key), lowerQuery) ||
		strings.Contains(strings.ToLower(e.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(e.Content), lowerQuery) {
		return true
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			return true
		}
	}
	return false
}

// TruncateChars cuts s to at most n characters (runes, not bytes).
func TruncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
