// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package synth

import (
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/words"
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts model tokens in text.
type TokenCounter interface {
	Count(text string) int
}

// TikTokenCounter counts BPE tokens with tiktoken.
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

// NewTikTokenCounter loads encoding, e.g. "cl100k_base".
func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TikTokenCounter{tke: tke}, nil
}

func (c *TikTokenCounter) Count(text string) int {
	return len(c.tke.Encode(text, nil, nil))
}

// WordCounter approximates tokens with UAX #29 words.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	n := 0
	seg := words.NewSegmenter([]byte(text))
	for seg.Next() {
		if hasAlnum(seg.Bytes()) {
			n++
		}
	}
	return n
}

// NewTokenCounter returns a cl100k_base counter, or WordCounter when the
// encoding cannot be loaded.
func NewTokenCounter() TokenCounter {
	if c, err := NewTikTokenCounter("cl100k_base"); err == nil {
		return c
	}
	return WordCounter{}
}

// Truncate returns the longest word-aligned prefix of text that fits in
// budget tokens. ok is false when text had to be cut.
func Truncate(counter TokenCounter, text string, budget int) (string, bool) {
	if budget <= 0 {
		return "", text == ""
	}
	if counter.Count(text) <= budget {
		return text, true
	}

	var ends []int
	seg := words.NewSegmenter([]byte(text))
	pos := 0
	for seg.Next() {
		tok := seg.Bytes()
		pos += len(tok)
		if hasAlnum(tok) {
			ends = append(ends, pos)
		}
	}

	lo, hi := 0, len(ends)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(text[:ends[mid-1]]) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return "", false
	}
	return text[:ends[lo-1]], false
}

func hasAlnum(tok []byte) bool {
	for len(tok) > 0 {
		r, size := utf8.DecodeRune(tok)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
		tok = tok[size:]
	}
	return false
}
