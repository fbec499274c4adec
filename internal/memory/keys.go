package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// DeriveKey produces a stable storage key for a URL when the caller supplies
// none: the host with dots replaced by underscores, plus the first 8 hex
// characters of the URL's SHA-256. The short hash is for readability, not
// collision hardening.
func DeriveKey(rawURL string) string {
	host := "page"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = strings.ReplaceAll(u.Hostname(), ".", "_")
	}
	return host + "_" + shortHash(rawURL)
}

// DeriveTextKey produces a key for directly-pasted text from a hash of the
// content itself.
func DeriveTextKey(content string) string {
	return "text_" + shortHash(content)
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
