// Package tokenizer splits raw sentences into the string tokens that the
// vocabulary builder counts and the sequence encoder maps to ids.
//
// Several backends are provided: a whitespace splitter, a Treebank-style word
// tokenizer (the default), SentencePiece pieces and tiktoken BPE pieces.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingDependency is returned when no tokenizer was supplied and the
	// requested or default backend could not be made available.
	ErrMissingDependency = errors.New("tokenizer unavailable")

	// ErrUnknownKind is returned by New for an unrecognized backend name.
	ErrUnknownKind = errors.New("unknown tokenizer kind")
)

// Tokenizer maps a sentence to an ordered sequence of tokens.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Func adapts a plain function to the Tokenizer interface.
type Func func(text string) []string

// Tokenize calls f(text).
func (f Func) Tokenize(text string) []string { return f(text) }

// Backend names accepted by New.
const (
	KindWord          = "word"
	KindWhitespace    = "whitespace"
	KindSentencePiece = "sentencepiece"
	KindTikToken      = "tiktoken"
)

// Options selects and configures a tokenizer backend.
type Options struct {
	Kind      string
	Lowercase bool
	// ModelPath is the SentencePiece model file.
	ModelPath string
	// Encoding is the tiktoken encoding name, e.g. "cl100k_base".
	Encoding string
}

// NormalizeKind canonicalizes a backend name. An empty name means KindWord.
func NormalizeKind(raw string) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(raw))
	switch kind {
	case "":
		return KindWord, nil
	case KindWord, KindWhitespace, KindSentencePiece, KindTikToken:
		return kind, nil
	case "sp", "spm":
		return KindSentencePiece, nil
	case "bpe":
		return KindTikToken, nil
	default:
		return "", fmt.Errorf("%w %q (expected %s|%s|%s|%s)",
			ErrUnknownKind, raw, KindWord, KindWhitespace, KindSentencePiece, KindTikToken)
	}
}

// New builds the tokenizer described by opts.
func New(opts Options) (Tokenizer, error) {
	kind, err := NormalizeKind(opts.Kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindWhitespace:
		return Whitespace{Lowercase: opts.Lowercase}, nil
	case KindSentencePiece:
		sp, err := NewSentencePiece(opts.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMissingDependency, err)
		}
		return sp, nil
	case KindTikToken:
		tt, err := NewTikToken(opts.Encoding)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMissingDependency, err)
		}
		return tt, nil
	default:
		return NewWord(WithLowercase(opts.Lowercase)), nil
	}
}

// Default returns the tokenizer used when a caller supplies none.
func Default() (Tokenizer, error) {
	return NewWord(), nil
}
