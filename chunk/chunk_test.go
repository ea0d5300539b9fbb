package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t\n", "\r\n\r\n"} {
		assert.Empty(t, Split(text, DefaultOptions()), "input %q", text)
	}
}

func TestSplit_SmallDocumentIsOneChunk(t *testing.T) {
	text := "# Title\n\nFirst paragraph.\n\nSecond paragraph."
	chunks := Split(text, DefaultOptions())
	require.Len(t, chunks, 1)
	assert.Equal(t, "# Title\n\nFirst paragraph.\n\nSecond paragraph.", chunks[0])
}

func TestSplit_NormalizesBlankLines(t *testing.T) {
	text := "\n\n  alpha  \n\n\n\n\nbeta\r\n\r\ngamma\n\n"
	chunks := Split(text, DefaultOptions())
	require.Len(t, chunks, 1)
	assert.Equal(t, "alpha\n\nbeta\n\ngamma", chunks[0])
}

func TestSplit_SectionsKeepHeadings(t *testing.T) {
	opts := Options{MaxChars: 30, MinChars: 10, ParagraphChars: 30}
	text := "# One\nalpha alpha alpha\n## Two\nbeta beta beta beta"
	chunks := Split(text, opts)
	require.Len(t, chunks, 2)
	assert.Equal(t, "# One\nalpha alpha alpha", chunks[0])
	assert.Equal(t, "## Two\nbeta beta beta beta", chunks[1])
}

func TestSplit_HeadingLevels(t *testing.T) {
	assert.True(t, isHeading("# a"))
	assert.True(t, isHeading("## a"))
	assert.True(t, isHeading("### a"))
	assert.True(t, isHeading("##"))
	assert.False(t, isHeading("#### a"))
	assert.False(t, isHeading("#hashtag"))
	assert.False(t, isHeading(" # indented"))
}

func TestSplit_GreedyPacking(t *testing.T) {
	opts := Options{MaxChars: 25, MinChars: 20, ParagraphChars: 25}
	// Each paragraph is 10 runes; two fit (10+2+10=22), three do not.
	text := "aaaaaaaaaa\n\nbbbbbbbbbb\n\ncccccccccc\n\ndddddddddd\n\neeeeeeeeee"
	chunks := Split(text, opts)
	assert.Equal(t, []string{
		"aaaaaaaaaa\n\nbbbbbbbbbb",
		"cccccccccc\n\ndddddddddd",
		"eeeeeeeeee",
	}, chunks)
}

func TestSplit_FlushesBelowMinimumOnOverflow(t *testing.T) {
	opts := Options{MaxChars: 20, MinChars: 15, ParagraphChars: 20}
	text := "short\n\n" + strings.Repeat("x", 18)
	chunks := Split(text, opts)
	assert.Equal(t, []string{"short", strings.Repeat("x", 18)}, chunks)
}

func TestSplit_LongParagraphSplitsAtSentences(t *testing.T) {
	opts := Options{MaxChars: 100, MinChars: 50, ParagraphChars: 30}
	para := "First sentence here. Second one follows! Third asks why? Fourth ends it."
	chunks := Split(para, opts)
	require.NotEmpty(t, chunks)

	joined := strings.Join(chunks, "\n\n")
	for _, s := range []string{"First sentence here.", "Second one follows!", "Third asks why?", "Fourth ends it."} {
		assert.Contains(t, joined, s)
	}
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), opts.MaxChars)
	}
}

func TestSentences(t *testing.T) {
	got := sentences("One. Two!  Three? Four.No split. End")
	assert.Equal(t, []string{"One.", "Two!", "Three?", "Four.No split.", "End"}, got)
}

func TestPackSentences_OversizedSentenceStaysWhole(t *testing.T) {
	long := strings.Repeat("w", 50) + "."
	got := packSentences([]string{"a.", long, "b."}, 20)
	assert.Equal(t, []string{"a.", long, "b."}, got)
}

func TestSplit_RespectsMaxChars(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("This is a reasonably long sentence about a library document. ")
		if i%7 == 0 {
			b.WriteString("\n\n")
		}
		if i%50 == 0 {
			b.WriteString("\n## Section\n")
		}
	}

	opts := DefaultOptions()
	chunks := Split(b.String(), opts)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), opts.MaxChars)
	}
}

func TestSplit_PreservesContent(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Overview\n\n")
	for i := 0; i < 60; i++ {
		b.WriteString("Sentence number one is here. Another follows it! Does a third? ")
		if i%9 == 0 {
			b.WriteString("\n\n## Part\n")
		}
	}
	text := b.String()

	chunks := Split(text, Options{MaxChars: 300, MinChars: 200, ParagraphChars: 120})
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, "\n\n")))
}

func TestSplit_CountsRunes(t *testing.T) {
	opts := Options{MaxChars: 10, MinChars: 5, ParagraphChars: 10}
	// Four runes but eight bytes per paragraph.
	text := "éééé\n\nüüüü"
	chunks := Split(text, opts)
	assert.Equal(t, []string{"éééé\n\nüüüü"}, chunks)
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("# H\n\nSome words. More words! Even more?\n\n", 300)
	first := Split(text, DefaultOptions())
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, Split(text, DefaultOptions()))
	}
}

func TestOptions_Normalized(t *testing.T) {
	o := Options{}.normalized()
	assert.Equal(t, DefaultOptions(), o)

	o = Options{MaxChars: 100, ParagraphChars: 500, MinChars: 200}.normalized()
	assert.Equal(t, 100, o.ParagraphChars)
	assert.Equal(t, 100, o.MinChars)
}
