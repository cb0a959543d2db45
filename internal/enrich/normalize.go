package enrich

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName turns a scraped entity name into its cache key: percent
// decoding, then HTML entity decoding, then NFC composition and trimming.
// Invalid percent escapes leave the text as-is.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	clean := name
	if decoded, err := url.PathUnescape(clean); err == nil {
		clean = decoded
	}
	clean = html.UnescapeString(clean)
	clean = norm.NFC.String(clean)
	return strings.TrimSpace(clean)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// isPrivate reports whether addr starts with one of the private prefixes.
func isPrivate(addr string) bool {
	for _, prefix := range privatePrefixes {
		if strings.HasPrefix(addr, prefix) {
			return true
		}
	}
	return false
}
