package vocab

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/example/go-seqprep/internal/tokenizer"
)

// TokenCount is one ranked entry produced by Counter.MostCommon.
type TokenCount struct {
	Token string
	Count int
}

// Counter accumulates token frequencies and remembers the order in which
// each distinct token was first seen.
type Counter struct {
	counts map[string]int
	order  []string
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add counts one occurrence of every token.
func (c *Counter) Add(tokens []string) {
	for _, tok := range tokens {
		if _, seen := c.counts[tok]; !seen {
			c.order = append(c.order, tok)
		}
		c.counts[tok]++
	}
}

// Distinct returns the number of distinct tokens seen.
func (c *Counter) Distinct() int { return len(c.order) }

// Count returns how often token was seen.
func (c *Counter) Count(token string) int { return c.counts[token] }

// MostCommon returns up to n entries ordered by descending count. Equal
// counts keep first-seen order. A negative n returns every entry.
func (c *Counter) MostCommon(n int) []TokenCount {
	ranked := make([]TokenCount, len(c.order))
	for i, tok := range c.order {
		ranked[i] = TokenCount{Token: tok, Count: c.counts[tok]}
	}

	slices.SortStableFunc(ranked, func(a, b TokenCount) int {
		return cmp.Compare(b.Count, a.Count)
	})

	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

type buildOptions struct {
	minFreq int
	logger  *slog.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithMinFrequency drops tokens seen fewer than n times.
func WithMinFrequency(n int) BuildOption {
	return func(o *buildOptions) { o.minFreq = n }
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

// Build tokenizes every sentence, ranks tokens by frequency and returns a
// vocabulary of at most maxSize entries: <pad>, <unk>, then the maxSize-2
// most frequent tokens. Ties are broken by first occurrence in the corpus.
func Build(sentences []string, tok tokenizer.Tokenizer, maxSize int, opts ...BuildOption) (*Vocabulary, error) {
	o := buildOptions{minFreq: 1, logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}

	if maxSize < MinSize {
		return nil, fmt.Errorf("%w: vocabulary size %d < %d", ErrInvalidConfig, maxSize, MinSize)
	}
	if tok == nil {
		return nil, fmt.Errorf("build vocabulary: %w", tokenizer.ErrMissingDependency)
	}

	counter := NewCounter()
	for _, s := range sentences {
		counter.Add(tok.Tokenize(s))
	}

	tokens := make([]string, MinSize, maxSize)
	tokens[PadIndex], tokens[UnkIndex] = PadToken, UnkToken
	counts := make([]int, MinSize, maxSize)

	for _, tc := range counter.MostCommon(-1) {
		if len(tokens) == maxSize || tc.Count < o.minFreq {
			break
		}
		// Reserved tokens already own their slots.
		if tc.Token == PadToken || tc.Token == UnkToken {
			continue
		}
		tokens = append(tokens, tc.Token)
		counts = append(counts, tc.Count)
	}

	o.logger.Debug("vocabulary built",
		slog.Int("sentences", len(sentences)),
		slog.Int("distinct_tokens", counter.Distinct()),
		slog.Int("size", len(tokens)),
		slog.Int("max_size", maxSize),
	)

	return New(tokens, counts)
}
