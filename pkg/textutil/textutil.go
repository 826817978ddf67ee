// Package textutil provides content hashing, word counting, format
// detection, and id generation for the buffer pipeline.
package textutil

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Format classifies buffer text content.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// Hash returns the hex-encoded BLAKE3-256 digest of text.
// Identical text always yields an identical digest, so the hash
// doubles as a deduplication key across buffers.
func Hash(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// NewID generates a unique buffer/chain identifier.
func NewID() string {
	return uuid.NewString()
}

// DetectFormat classifies text as json, html, markdown, or plain text.
// The heuristic is deterministic: the same input always classifies the
// same way. Checks run strictest-first so ambiguous content degrades
// toward plain text.
func DetectFormat(text string) Format {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return FormatText
	}

	if looksLikeJSON(trimmed) {
		return FormatJSON
	}
	if looksLikeHTML(trimmed) {
		return FormatHTML
	}
	if looksLikeMarkdown(trimmed) {
		return FormatMarkdown
	}
	return FormatText
}

func looksLikeJSON(s string) bool {
	first := s[0]
	if first != '{' && first != '[' {
		return false
	}
	return json.Valid([]byte(s))
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html") {
		return true
	}
	// Paired tags like <p>...</p> anywhere in the body
	for _, tag := range []string{"p", "div", "span", "br", "h1", "h2", "h3", "li", "a", "em", "strong", "body"} {
		if strings.Contains(lower, "<"+tag+">") || strings.Contains(lower, "<"+tag+" ") || strings.Contains(lower, "</"+tag+">") {
			return true
		}
	}
	return false
}

func looksLikeMarkdown(s string) bool {
	if strings.Contains(s, "```") {
		return true
	}
	// Inline links: [label](target)
	if i := strings.Index(s, "]("); i > 0 && strings.Contains(s[:i], "[") {
		return true
	}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimLeftFunc(line, unicode.IsSpace)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") && strings.Contains(line, "# ") {
			return true
		}
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "> ") {
			return true
		}
	}
	return false
}
