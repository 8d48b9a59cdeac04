package config

import "github.com/example/go-seqprep/internal/tokenizer"

// TokenizerOptions maps the tokenizer and paths sections onto the options
// tokenizer.New accepts.
func (c Config) TokenizerOptions() tokenizer.Options {
	return tokenizer.Options{
		Kind:      c.Tokenizer.Kind,
		Lowercase: c.Tokenizer.Lowercase,
		ModelPath: c.Paths.TokenizerModel,
		Encoding:  c.Tokenizer.Encoding,
	}
}
