// Package encoder turns sentences into fixed-length id sequences against a
// vocabulary: short sequences are left-padded with the padding index, long
// ones keep their first L ids.
package encoder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/example/go-seqprep/internal/tokenizer"
	"github.com/example/go-seqprep/internal/vocab"
)

// DefaultSeqLen is the sequence length used when none is configured.
const DefaultSeqLen = 100

type options struct {
	fallback func() (tokenizer.Tokenizer, error)
	logger   *slog.Logger
}

// Option configures an Encoder.
type Option func(*options)

// WithDefaultTokenizer replaces the factory consulted when New is given a
// nil tokenizer.
func WithDefaultTokenizer(fn func() (tokenizer.Tokenizer, error)) Option {
	return func(o *options) { o.fallback = fn }
}

// WithLogger sets the logger used to report a missing tokenizer.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Encoder maps sentences to fixed-length id sequences. The vocabulary is
// only read, so one Encoder may serve concurrent Encode calls as long as
// SetTokenizer is not called at the same time.
type Encoder struct {
	vocab  *vocab.Vocabulary
	tok    tokenizer.Tokenizer
	seqLen int
}

// New returns an Encoder producing sequences of exactly seqLen ids.
//
// A nil tok falls back to tokenizer.Default (or the WithDefaultTokenizer
// factory). If that fails, the failure is logged and New returns the Encoder
// together with an error wrapping tokenizer.ErrMissingDependency; that
// Encoder rejects every Encode call until SetTokenizer is used.
func New(v *vocab.Vocabulary, tok tokenizer.Tokenizer, seqLen int, opts ...Option) (*Encoder, error) {
	o := options{fallback: tokenizer.Default, logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}

	if seqLen < 1 {
		return nil, fmt.Errorf("%w: sequence length %d < 1", vocab.ErrInvalidConfig, seqLen)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: nil vocabulary", vocab.ErrInvalidConfig)
	}

	e := &Encoder{vocab: v, tok: tok, seqLen: seqLen}
	if tok != nil {
		return e, nil
	}

	def, err := o.fallback()
	if err == nil && def == nil {
		err = fmt.Errorf("default tokenizer factory returned nil")
	}
	if err != nil {
		o.logger.Error("no tokenizer supplied and default tokenizer unavailable",
			slog.String("error", err.Error()))
		return e, fmt.Errorf("%w: %w", tokenizer.ErrMissingDependency, err)
	}

	e.tok = def
	return e, nil
}

// SetTokenizer installs tok, typically after New reported a missing one.
func (e *Encoder) SetTokenizer(tok tokenizer.Tokenizer) {
	e.tok = tok
}

// SeqLen returns the configured sequence length.
func (e *Encoder) SeqLen() int { return e.seqLen }

// Vocabulary returns the vocabulary used for lookups.
func (e *Encoder) Vocabulary() *vocab.Vocabulary { return e.vocab }

// Encode returns one sequence of length SeqLen per sentence, in input order.
func (e *Encoder) Encode(sentences []string) ([][]int64, error) {
	if e.tok == nil {
		return nil, tokenizer.ErrMissingDependency
	}

	out := make([][]int64, len(sentences))
	for i, s := range sentences {
		out[i] = e.encode(s)
	}

	return out, nil
}

// EncodeOne encodes a single sentence.
func (e *Encoder) EncodeOne(sentence string) ([]int64, error) {
	if e.tok == nil {
		return nil, tokenizer.ErrMissingDependency
	}
	return e.encode(sentence), nil
}

// EncodeParallel produces the same result as Encode, splitting the batch
// across at most workers goroutines.
func (e *Encoder) EncodeParallel(ctx context.Context, sentences []string, workers int) ([][]int64, error) {
	if e.tok == nil {
		return nil, tokenizer.ErrMissingDependency
	}
	if workers <= 1 || len(sentences) < 2 {
		return e.Encode(sentences)
	}

	out := make([][]int64, len(sentences))
	chunk := (len(sentences) + workers - 1) / workers

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for start := 0; start < len(sentences); start += chunk {
		end := min(start+chunk, len(sentences))
		p.Go(func(ctx context.Context) error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = e.encode(sentences[i])
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// Decode maps ids back to tokens, skipping padding. Ids outside the
// vocabulary decode to the unknown token.
func (e *Encoder) Decode(ids []int64) []string {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == vocab.PadIndex {
			continue
		}
		tok, ok := e.vocab.Token(int(id))
		if !ok {
			tok = vocab.UnkToken
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func (e *Encoder) encode(sentence string) []int64 {
	tokens := e.tok.Tokenize(sentence)

	// Right-truncate: only the first seqLen tokens are looked up.
	if len(tokens) > e.seqLen {
		tokens = tokens[:e.seqLen]
	}

	// Left-pad: content sits at the tail, padding (index 0) in front.
	seq := make([]int64, e.seqLen)
	offset := e.seqLen - len(tokens)
	for i, tok := range tokens {
		seq[offset+i] = int64(e.vocab.Lookup(tok))
	}

	return seq
}
