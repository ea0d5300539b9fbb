// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chunk splits converted document text into retrieval-sized pieces.
//
// Splitting is structural first (markdown headings, then blank-line
// paragraphs, then sentences for oversized paragraphs) and then greedy:
// pieces are packed into chunks up to MaxChars. All lengths are counted in
// runes.
package chunk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMaxChars       = 7500
	DefaultMinChars       = 6000
	DefaultParagraphChars = 1200

	pieceSeparator    = "\n\n"
	sentenceSeparator = " "
)

// Options bounds the chunk sizes.
type Options struct {
	// MaxChars is the upper bound a chunk made of several pieces never exceeds.
	MaxChars int
	// MinChars is the lower target. A chunk is still flushed below it when
	// the next piece would overflow MaxChars.
	MinChars int
	// ParagraphChars is the size above which a paragraph is broken at
	// sentence boundaries.
	ParagraphChars int
}

// DefaultOptions returns the standard chunk sizes.
func DefaultOptions() Options {
	return Options{
		MaxChars:       DefaultMaxChars,
		MinChars:       DefaultMinChars,
		ParagraphChars: DefaultParagraphChars,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.MaxChars <= 0 {
		o.MaxChars = d.MaxChars
	}
	if o.ParagraphChars <= 0 {
		o.ParagraphChars = d.ParagraphChars
	}
	if o.ParagraphChars > o.MaxChars {
		o.ParagraphChars = o.MaxChars
	}
	if o.MinChars <= 0 {
		o.MinChars = d.MinChars
	}
	if o.MinChars > o.MaxChars {
		o.MinChars = o.MaxChars
	}
	return o
}

// Split returns the ordered chunks of text. The same input and options
// always produce the same output. Empty or whitespace-only text yields no
// chunks, and no returned chunk is empty.
func Split(text string, opts Options) []string {
	opts = opts.normalized()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var pieces []string
	for _, section := range sections(text) {
		for _, para := range paragraphs(section) {
			if runeLen(para) > opts.ParagraphChars {
				pieces = append(pieces, packSentences(sentences(para), opts.ParagraphChars)...)
				continue
			}
			pieces = append(pieces, para)
		}
	}
	return pack(pieces, opts.MaxChars, pieceSeparator)
}

// sections splits text before every markdown heading of level 1 to 3, so
// each section starts with its heading line.
func sections(text string) []string {
	var (
		out     []string
		current []string
	)
	for _, line := range strings.Split(text, "\n") {
		if isHeading(line) && len(current) > 0 {
			out = append(out, strings.Join(current, "\n"))
			current = current[:0]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, "\n"))
	}
	return out
}

func isHeading(line string) bool {
	for _, prefix := range []string{"# ", "## ", "### "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	trimmed := strings.TrimRight(line, " \t")
	return trimmed == "#" || trimmed == "##" || trimmed == "###"
}

// paragraphs splits a section at blank lines, dropping empty fragments.
func paragraphs(section string) []string {
	var (
		out     []string
		current []string
	)
	flush := func() {
		if p := strings.TrimSpace(strings.Join(current, "\n")); p != "" {
			out = append(out, p)
		}
		current = current[:0]
	}
	for _, line := range strings.Split(section, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}

// sentences splits a paragraph after '.', '!' or '?' followed by whitespace.
func sentences(para string) []string {
	var out []string
	start := 0
	for i, r := range para {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next >= len(para) {
			continue
		}
		nr, _ := utf8.DecodeRuneInString(para[next:])
		if !unicode.IsSpace(nr) {
			continue
		}
		if s := strings.TrimSpace(para[start:next]); s != "" {
			out = append(out, s)
		}
		start = next
	}
	if s := strings.TrimSpace(para[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// packSentences re-joins sentences into sub-paragraphs of at most limit
// runes. A single sentence longer than limit stays whole.
func packSentences(sents []string, limit int) []string {
	return pack(sents, limit, sentenceSeparator)
}

// pack greedily concatenates pieces with sep while the result stays within
// limit, flushing the current group when the next piece would overflow it.
func pack(pieces []string, limit int, sep string) []string {
	var (
		out     []string
		current strings.Builder
		size    int
	)
	sepLen := runeLen(sep)
	for _, p := range pieces {
		n := runeLen(p)
		if n == 0 {
			continue
		}
		if size > 0 && size+sepLen+n > limit {
			out = append(out, current.String())
			current.Reset()
			size = 0
		}
		if size > 0 {
			current.WriteString(sep)
			size += sepLen
		}
		current.WriteString(p)
		size += n
	}
	if size > 0 {
		out = append(out, current.String())
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
