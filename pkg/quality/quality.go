// Package quality computes heuristic quality metrics for buffer text:
// readability scores, voice signals, and AI-generation likelihood.
package quality

import (
	"math"
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

// Readability holds sentence-level heuristic scores.
type Readability struct {
	GradeLevel        float64 `json:"gradeLevel"`
	AvgSentenceLength float64 `json:"avgSentenceLength"`
	AvgWordLength     float64 `json:"avgWordLength"`
	SentenceCount     int     `json:"sentenceCount"`
	SyllableCount     int     `json:"syllableCount"`
}

// Voice holds lexical signals about the writing voice.
type Voice struct {
	// LexicalDensity is the share of content words (non-stopwords).
	LexicalDensity float64 `json:"lexicalDensity"`
	// TypeTokenRatio is distinct words over total words.
	TypeTokenRatio float64 `json:"typeTokenRatio"`
}

// AIDetection is the result of scanning for AI-typical phrasing.
type AIDetection struct {
	Probability float64  `json:"probability"`
	Tells       []string `json:"tells"`
	Confidence  float64  `json:"confidence"`
}

// Metrics is the full quality report attached to a buffer.
type Metrics struct {
	Readability Readability  `json:"readability"`
	Voice       Voice        `json:"voice"`
	AIDetection *AIDetection `json:"aiDetection,omitempty"`
}

// Clone returns a deep copy of the metrics.
func (m *Metrics) Clone() *Metrics {
	if m == nil {
		return nil
	}
	cp := *m
	if m.AIDetection != nil {
		det := *m.AIDetection
		det.Tells = append([]string(nil), m.AIDetection.Tells...)
		cp.AIDetection = &det
	}
	return &cp
}

// Analyzer computes readability and voice metrics.
type Analyzer struct {
	stops *stopwords.Stopwords
}

// NewAnalyzer creates an analyzer with the English stopword set.
func NewAnalyzer() *Analyzer {
	return &Analyzer{stops: stopwords.MustGet("en")}
}

// Analyze computes the full metric report for text. AI detection is not
// included here; see Detector.
func (a *Analyzer) Analyze(text string) Metrics {
	words := strings.Fields(text)
	sentences := SplitSentences(text)

	var syllables, letters int
	distinct := make(map[string]bool, len(words))
	var contentWords int
	for _, w := range words {
		syllables += estimateSyllables(w)
		norm := normalizeWord(w)
		if norm != "" {
			distinct[norm] = true
			if !a.stops.Contains(norm) {
				contentWords++
			}
		}
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
			}
		}
	}

	var read Readability
	read.SentenceCount = len(sentences)
	read.SyllableCount = syllables
	if len(words) > 0 {
		read.AvgWordLength = float64(letters) / float64(len(words))
	}
	if len(sentences) > 0 && len(words) > 0 {
		read.AvgSentenceLength = float64(len(words)) / float64(len(sentences))
		// Flesch-Kincaid grade level
		grade := 0.39*read.AvgSentenceLength + 11.8*(float64(syllables)/float64(len(words))) - 15.59
		read.GradeLevel = math.Max(0, math.Round(grade*10)/10)
	}

	var voice Voice
	if len(words) > 0 {
		voice.LexicalDensity = float64(contentWords) / float64(len(words))
		voice.TypeTokenRatio = float64(len(distinct)) / float64(len(words))
	}

	return Metrics{Readability: read, Voice: voice}
}

// SplitSentences splits text on sentence-terminal punctuation followed by
// whitespace, dropping empty results.
func SplitSentences(text string) []string {
	var out []string
	var start int
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		// Consume a run of terminal punctuation ("?!", "...")
		j := i
		for j+1 < len(runes) && isTerminal(runes[j+1]) {
			j++
		}
		if j+1 >= len(runes) || unicode.IsSpace(runes[j+1]) {
			s := strings.TrimSpace(string(runes[start : j+1]))
			if s != "" {
				out = append(out, s)
			}
			start = j + 1
		}
		i = j
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

// estimateSyllables counts vowel groups, with a silent-e adjustment.
// Every word counts as at least one syllable.
func estimateSyllables(word string) int {
	w := normalizeWord(word)
	if w == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range w {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && count > 1 {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	default:
		return false
	}
}
