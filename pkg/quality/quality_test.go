package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "One. Two. Three.", []string{"One.", "Two.", "Three."}},
		{"mixed terminals", "Really? Yes! Fine.", []string{"Really?", "Yes!", "Fine."}},
		{"ellipsis run", "Wait... then go.", []string{"Wait...", "then go."}},
		{"no terminal tail", "First. second without end", []string{"First.", "second without end"}},
		{"empty", "", nil},
		{"decimal not split", "Pi is 3.14 roughly. Next.", []string{"Pi is 3.14 roughly.", "Next."}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, SplitSentences(c.text))
		})
	}
}

func TestAnalyzeBasics(t *testing.T) {
	a := NewAnalyzer()
	m := a.Analyze("The quick brown fox jumps over the lazy dog. It runs fast.")

	assert.Equal(t, 2, m.Readability.SentenceCount)
	assert.InDelta(t, 6.0, m.Readability.AvgSentenceLength, 0.01)
	assert.Greater(t, m.Readability.AvgWordLength, 2.0)
	assert.Greater(t, m.Readability.SyllableCount, 10)
	assert.GreaterOrEqual(t, m.Readability.GradeLevel, 0.0)

	// "the", "it", "over" are stopwords, so density is below 1
	assert.Greater(t, m.Voice.LexicalDensity, 0.3)
	assert.Less(t, m.Voice.LexicalDensity, 1.0)
	assert.Greater(t, m.Voice.TypeTokenRatio, 0.5)
}

func TestAnalyzeEmpty(t *testing.T) {
	a := NewAnalyzer()
	m := a.Analyze("")
	assert.Zero(t, m.Readability.SentenceCount)
	assert.Zero(t, m.Readability.GradeLevel)
	assert.Zero(t, m.Voice.LexicalDensity)
}

func TestEstimateSyllables(t *testing.T) {
	cases := map[string]int{
		"cat":       1,
		"hello":     2,
		"beautiful": 3,
		"the":       1,
		"table":     2,
		"strength":  1,
	}
	for word, want := range cases {
		assert.Equal(t, want, estimateSyllables(word), "word %q", word)
	}
}

func TestDetectorFlagsTellHeavyText(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)

	text := "In today's fast-paced world, it's important to note that we must " +
		"delve into the ever-evolving landscape. Furthermore, this holistic " +
		"approach is a testament to innovation. Moreover, we unlock the potential " +
		"of every team. In conclusion, the benefits cannot be overstated."
	res := d.Detect(text)

	assert.Greater(t, res.Probability, 0.5)
	assert.NotEmpty(t, res.Tells)
	assert.Contains(t, res.Tells, "delve into")
	assert.Contains(t, res.Tells, "in conclusion")
}

func TestDetectorToleratesPlainProse(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)

	text := "We left before sunrise. The road was empty except for a fox that " +
		"crossed near the old mill bridge, quick and low. By noon the rain had " +
		"started again and nobody talked much, which suited me fine."
	res := d.Detect(text)

	assert.Less(t, res.Probability, 0.4)
	assert.Empty(t, res.Tells)
}

func TestDetectorConfidenceScalesWithLength(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)

	short := d.Detect("Delve into this.")
	long := d.Detect(repeatSentence("The harbor was quiet and the gulls circled the pier.", 40))
	assert.Less(t, short.Confidence, long.Confidence)
}

func TestMetricsClone(t *testing.T) {
	m := &Metrics{
		Readability: Readability{GradeLevel: 5},
		AIDetection: &AIDetection{Probability: 0.5, Tells: []string{"furthermore"}},
	}
	cp := m.Clone()
	cp.AIDetection.Tells[0] = "changed"
	cp.AIDetection.Probability = 0.9
	assert.Equal(t, "furthermore", m.AIDetection.Tells[0])
	assert.Equal(t, 0.5, m.AIDetection.Probability)
}

func repeatSentence(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s + " "
	}
	return out
}
