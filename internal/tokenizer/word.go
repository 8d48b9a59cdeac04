package tokenizer

import (
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// wordPattern approximates Penn Treebank word splitting: contractions are
// split off ("don't" -> "do", "n't"; "it's" -> "it", "'s"), hyphenated words
// and decimal numbers stay whole, every other symbol is its own token.
const wordPattern = `\p{L}+(?=n't\b)` +
	`|n't\b` +
	`|'(?:s|m|d|ll|re|ve)\b` +
	`|\p{L}[\p{L}\p{M}\p{N}_]*(?:-[\p{L}\p{N}]+)*` +
	`|\p{N}+(?:[.,]\p{N}+)*` +
	`|\.\.\.` +
	`|[^\s\p{L}\p{N}]`

var wordRegexp = regexp2.MustCompile(wordPattern, regexp2.IgnoreCase)

// Word is the default word tokenizer. Input is NFC-normalized before
// splitting. It holds no mutable state and is safe for concurrent use.
type Word struct {
	lowercase bool
}

// WordOption configures a Word tokenizer.
type WordOption func(*Word)

// WithLowercase folds tokens to lower case.
func WithLowercase(on bool) WordOption {
	return func(w *Word) { w.lowercase = on }
}

// NewWord returns a Word tokenizer.
func NewWord(opts ...WordOption) *Word {
	w := &Word{}
	for _, fn := range opts {
		fn(w)
	}
	return w
}

// Tokenize splits text into word and punctuation tokens.
func (w *Word) Tokenize(text string) []string {
	text = norm.NFC.String(text)
	if w.lowercase {
		// Casers are stateful; build one per call.
		text = cases.Lower(language.Und).String(text)
	}

	tokens := make([]string, 0, strings.Count(text, " ")+1)

	m, err := wordRegexp.FindStringMatch(text)
	for err == nil && m != nil {
		tokens = append(tokens, m.String())
		m, err = wordRegexp.FindNextMatch(m)
	}

	return tokens
}

// Whitespace splits on runs of Unicode whitespace.
type Whitespace struct {
	Lowercase bool
}

// Tokenize implements Tokenizer.
func (w Whitespace) Tokenize(text string) []string {
	if w.Lowercase {
		text = strings.ToLower(text)
	}
	return strings.Fields(text)
}
