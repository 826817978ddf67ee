package quality

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
)

// tellPhrases are phrasings that show up far more often in model output
// than in human prose. Matched case-insensitively after canonicalization.
var tellPhrases = []string{
	"as an ai language model",
	"delve into",
	"delves into",
	"it's important to note",
	"it is important to note",
	"it is worth noting",
	"in today's fast-paced world",
	"in the realm of",
	"navigate the complexities",
	"navigating the complexities",
	"unlock the potential",
	"harness the power",
	"embark on a journey",
	"a testament to",
	"treasure trove",
	"rich tapestry",
	"game-changer",
	"holistic approach",
	"seamlessly integrate",
	"in conclusion",
	"furthermore",
	"moreover",
	"additionally",
	"elevate your",
	"dive deep into",
	"ever-evolving landscape",
	"at the end of the day",
	"cannot be overstated",
}

// Detector scans text for AI-typical phrasing with a single Aho-Corasick
// automaton over the tell lexicon.
type Detector struct {
	ac       *ahocorasick.Automaton
	patterns []string
}

// NewDetector compiles the tell lexicon into an automaton.
func NewDetector() (*Detector, error) {
	patterns := make([]string, len(tellPhrases))
	for i, p := range tellPhrases {
		patterns[i] = canonicalize(p)
	}
	// LeftmostLongest so "dive deep into" wins over any shorter prefix.
	ac, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	return &Detector{ac: ac, patterns: patterns}, nil
}

// Detect scans text and estimates the probability that it was machine
// generated. The estimate combines tell density with sentence-length
// uniformity; confidence scales with how much text there was to judge.
func (d *Detector) Detect(text string) AIDetection {
	canonical := canonicalize(text)
	matches := d.ac.FindAllOverlapping([]byte(canonical))

	tellSet := make(map[string]bool)
	for _, m := range matches {
		if m.PatternID >= 0 && m.PatternID < len(d.patterns) {
			tellSet[d.patterns[m.PatternID]] = true
		}
	}
	tells := make([]string, 0, len(tellSet))
	for tell := range tellSet {
		tells = append(tells, tell)
	}
	sort.Strings(tells)

	wordCount := len(strings.Fields(text))
	density := 0.0
	if wordCount > 0 {
		density = float64(len(matches)) / float64(wordCount) * 100
	}

	// Tell density saturates at 5 matches per 100 words.
	tellSignal := math.Min(density/5.0, 1.0)
	uniformity := sentenceUniformity(text)

	probability := clamp01(0.7*tellSignal + 0.3*uniformity)

	// Short texts give the heuristic little to work with.
	confidence := clamp01(float64(wordCount) / 200.0)
	if confidence < 0.1 {
		confidence = 0.1
	}

	return AIDetection{
		Probability: math.Round(probability*100) / 100,
		Tells:       tells,
		Confidence:  math.Round(confidence*100) / 100,
	}
}

// sentenceUniformity returns a 0..1 signal that is high when sentence
// lengths are unusually even, a weak marker of generated text.
func sentenceUniformity(text string) float64 {
	sentences := SplitSentences(text)
	if len(sentences) < 3 {
		return 0
	}
	lengths := make([]float64, len(sentences))
	var sum float64
	for i, s := range sentences {
		lengths[i] = float64(len(strings.Fields(s)))
		sum += lengths[i]
	}
	mean := sum / float64(len(lengths))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))
	cv := math.Sqrt(variance) / mean

	// Coefficient of variation below ~0.25 is suspiciously even.
	if cv >= 0.5 {
		return 0
	}
	return (0.5 - cv) / 0.5
}

// canonicalize folds text the same way for patterns and haystacks:
// lowercase, apostrophes normalized, separators collapsed to one space.
func canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'' || c == '-' {
			out.WriteRune(c)
			lastWasSpace = false
			continue
		}
		if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}
	return strings.TrimRight(out.String(), " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
