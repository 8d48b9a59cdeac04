// Package vocab builds, queries and persists the token-to-index vocabulary.
//
// Every Vocabulary reserves index 0 for the padding token and index 1 for the
// unknown token. Lookup of any token not in the mapping returns the unknown
// index; that fallback is part of the type and cannot be switched off.
package vocab

import (
	"errors"
	"fmt"
)

// Reserved tokens and their indices.
const (
	PadToken = "<pad>"
	UnkToken = "<unk>"

	PadIndex = 0
	UnkIndex = 1

	// MinSize is the smallest legal vocabulary: the two reserved entries.
	MinSize = 2
)

var (
	// ErrInvalidConfig reports an unusable size or length setting.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidVocabulary reports a token list that breaks the reserved
	// index or uniqueness invariants.
	ErrInvalidVocabulary = errors.New("invalid vocabulary")
)

// Vocabulary is an immutable ordered token-to-index mapping. It is safe for
// concurrent use.
type Vocabulary struct {
	tokens []string
	counts []int
	index  map[string]int
}

// New builds a Vocabulary from an ordered token list where tokens[i] gets
// index i. counts may be nil; otherwise it must be as long as tokens.
func New(tokens []string, counts []int) (*Vocabulary, error) {
	if len(tokens) < MinSize {
		return nil, fmt.Errorf("%w: %d entries, need at least %d", ErrInvalidVocabulary, len(tokens), MinSize)
	}
	if tokens[PadIndex] != PadToken || tokens[UnkIndex] != UnkToken {
		return nil, fmt.Errorf("%w: reserved entries are %q, %q; want %q, %q",
			ErrInvalidVocabulary, tokens[PadIndex], tokens[UnkIndex], PadToken, UnkToken)
	}
	if counts != nil && len(counts) != len(tokens) {
		return nil, fmt.Errorf("%w: %d counts for %d tokens", ErrInvalidVocabulary, len(counts), len(tokens))
	}

	index := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if prev, dup := index[tok]; dup {
			return nil, fmt.Errorf("%w: token %q at index %d and %d", ErrInvalidVocabulary, tok, prev, i)
		}
		index[tok] = i
	}

	v := &Vocabulary{
		tokens: append([]string(nil), tokens...),
		index:  index,
	}
	if counts == nil {
		v.counts = make([]int, len(tokens))
	} else {
		v.counts = append([]int(nil), counts...)
	}

	return v, nil
}

// Len returns the number of entries, reserved ones included.
func (v *Vocabulary) Len() int { return len(v.tokens) }

// Lookup returns the index of token, or UnkIndex when it is absent.
func (v *Vocabulary) Lookup(token string) int {
	if i, ok := v.index[token]; ok {
		return i
	}
	return UnkIndex
}

// Contains reports whether token has its own entry.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.index[token]
	return ok
}

// Token returns the token at index i.
func (v *Vocabulary) Token(i int) (string, bool) {
	if i < 0 || i >= len(v.tokens) {
		return "", false
	}
	return v.tokens[i], true
}

// Count returns the corpus frequency recorded for index i. Reserved entries
// and vocabularies built without counts report 0.
func (v *Vocabulary) Count(i int) int {
	if i < 0 || i >= len(v.counts) {
		return 0
	}
	return v.counts[i]
}

// Tokens returns a copy of the ordered token list.
func (v *Vocabulary) Tokens() []string {
	return append([]string(nil), v.tokens...)
}

// Counts returns a copy of the per-index frequencies.
func (v *Vocabulary) Counts() []int {
	return append([]int(nil), v.counts...)
}

// Equal reports whether both vocabularies assign the same index to every token.
func (v *Vocabulary) Equal(o *Vocabulary) bool {
	if v == nil || o == nil {
		return v == o
	}
	if len(v.tokens) != len(o.tokens) {
		return false
	}
	for i := range v.tokens {
		if v.tokens[i] != o.tokens[i] {
			return false
		}
	}
	return true
}
