// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/words"
)

// Chunk is a verbatim slice of the corpus.
type Chunk struct {
	Seq  int
	Text string
}

// Splitter cuts text into overlapping windows of words. Word boundaries
// follow Unicode UAX #29, so accented Portuguese text segments correctly.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter returns a splitter of size words per chunk with overlap words
// shared between consecutive chunks. Invalid values are corrected.
func NewSplitter(size, overlap int) *Splitter {
	if size < 1 {
		size = 200
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{Size: size, Overlap: overlap}
}

type span struct{ start, end int }

// Split returns the chunks of text in order. Each chunk is the exact
// substring between its first and last word.
func (s *Splitter) Split(text string) []Chunk {
	spans := wordSpans(text)
	if len(spans) == 0 {
		return nil
	}

	step := s.Size - s.Overlap
	var chunks []Chunk
	for i := 0; i < len(spans); i += step {
		j := min(i+s.Size, len(spans))
		chunks = append(chunks, Chunk{Seq: len(chunks), Text: text[spans[i].start:spans[j-1].end]})
		if j == len(spans) {
			break
		}
	}
	return chunks
}

// Words returns the lower-cased words of text.
func Words(text string) []string {
	spans := wordSpans(text)
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		out = append(out, strings.ToLower(text[sp.start:sp.end]))
	}
	return out
}

// CountWords counts UAX #29 words, ignoring whitespace and punctuation.
func CountWords(text string) int {
	return len(wordSpans(text))
}

func wordSpans(text string) []span {
	var spans []span
	seg := words.NewSegmenter([]byte(text))
	pos := 0
	for seg.Next() {
		tok := seg.Bytes()
		if isWord(tok) {
			spans = append(spans, span{start: pos, end: pos + len(tok)})
		}
		pos += len(tok)
	}
	return spans
}

func isWord(tok []byte) bool {
	for len(tok) > 0 {
		r, size := utf8.DecodeRune(tok)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
		tok = tok[size:]
	}
	return false
}
