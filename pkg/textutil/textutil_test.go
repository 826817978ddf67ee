package textutil

import (
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	h1 := Hash("Hello world")
	h2 := Hash("Hello world")
	if h1 != h2 {
		t.Errorf("identical text produced different hashes: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestHashDistinct(t *testing.T) {
	corpus := []string{"", "a", "A", "Hello world", "Hello world ", "hello world"}
	seen := make(map[string]string)
	for _, text := range corpus {
		h := Hash(text)
		if prev, ok := seen[h]; ok {
			t.Errorf("hash collision between %q and %q", prev, text)
		}
		seen[h] = text
	}
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"Hello world", 2},
		{"one\ttwo\nthree", 3},
		{"  leading and trailing  ", 3},
	}
	for _, c := range cases {
		if got := WordCount(c.text); got != c.want {
			t.Errorf("WordCount(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if id == "" {
			t.Fatal("empty id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Format
	}{
		{"plain", "Just a plain sentence.", FormatText},
		{"empty", "", FormatText},
		{"json object", `{"key": "value"}`, FormatJSON},
		{"json array", `[1, 2, 3]`, FormatJSON},
		{"invalid json braces", "{not json at all", FormatText},
		{"html doc", "<!DOCTYPE html><html><body>hi</body></html>", FormatHTML},
		{"html fragment", "some <p>paragraph</p> text", FormatHTML},
		{"markdown heading", "# Title\n\nBody text.", FormatMarkdown},
		{"markdown list", "- one\n- two", FormatMarkdown},
		{"markdown fence", "before\n```go\ncode\n```", FormatMarkdown},
		{"markdown link", "see [docs](https://example.com)", FormatMarkdown},
	}
	for _, c := range cases {
		if got := DetectFormat(c.text); got != c.want {
			t.Errorf("%s: DetectFormat = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestDetectFormatPrecedence(t *testing.T) {
	// JSON wins over markdown-ish content inside it
	text := `{"note": "# not markdown"}`
	if got := DetectFormat(text); got != FormatJSON {
		t.Errorf("expected json, got %q", got)
	}
	// HTML wins over markdown
	mixed := "# heading\n<div>block</div>"
	if got := DetectFormat(mixed); got != FormatHTML {
		t.Errorf("expected html, got %q", got)
	}
}
