// Package text prepares raw corpus text for tokenization: sentence
// normalization, sentence splitting and corpus file readers.
package text

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// Normalize prepares one raw sentence for tokenization.
// It drops a leading byte-order mark and other non-whitespace control
// characters, normalizes line endings to \n, composes the text to NFC, trims
// surrounding whitespace and rejects empty or whitespace-only input.
func Normalize(s string) (string, error) {
	s = strings.TrimPrefix(s, "\uFEFF")

	// Normalize line endings: CRLF → LF, then bare CR → LF.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	s = strings.TrimSpace(norm.NFC.String(s))

	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

// SplitSentences splits text on sentence-ending punctuation (., !, ?),
// keeping the terminator attached to its sentence. Runs of terminators
// ("?!", "...") stay with the sentence they end. Empty segments are dropped.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0

	runes := []rune(text)
	for i, r := range runes {
		if !isTerminator(r) {
			continue
		}
		if i+1 < len(runes) && isTerminator(runes[i+1]) {
			continue
		}
		s := strings.TrimSpace(string(runes[start : i+1]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	// Trailing text after the last terminator (if any).
	if start < len(runes) {
		s := strings.TrimSpace(string(runes[start:]))
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
