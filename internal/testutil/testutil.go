// Package testutil provides shared skip helpers and fixtures for tests.
//
// Each Require helper calls t.Skip with a clear human-readable reason when the
// named prerequisite is absent, so integration tests remain runnable in
// partial environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    model := testutil.RequireTokenizerModel(t)
//	    dir := testutil.WriteVocab(t, t.TempDir(), "a", "b")
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-seqprep/internal/vocab"
)

// TokenizerModelEnv overrides where RequireTokenizerModel looks for a
// SentencePiece model.
const TokenizerModelEnv = "SEQPREP_PATHS_TOKENIZER_MODEL"

// RequireTokenizerModel returns the path of a SentencePiece model and skips
// the test if none is available. It checks TokenizerModelEnv, then walks up
// from the working directory looking for models/tokenizer.model.
func RequireTokenizerModel(tb testing.TB) string {
	tb.Helper()

	if p := os.Getenv(TokenizerModelEnv); p != "" {
		if _, err := os.Stat(p); err != nil {
			tb.Skipf("tokenizer model not found at %s=%q", TokenizerModelEnv, p)
			return ""
		}
		return p
	}

	dir, err := filepath.Abs(".")
	if err != nil {
		tb.Skipf("resolve working directory: %v", err)
		return ""
	}

	for {
		candidate := filepath.Join(dir, "models", "tokenizer.model")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	tb.Skipf("models/tokenizer.model not found; set %s to override", TokenizerModelEnv)
	return ""
}

// NewVocab returns a vocabulary holding the reserved entries followed by
// tokens, in order. Counts descend so the fixture looks like a built one.
func NewVocab(tb testing.TB, tokens ...string) *vocab.Vocabulary {
	tb.Helper()

	all := append([]string{vocab.PadToken, vocab.UnkToken}, tokens...)
	counts := make([]int, len(all))
	for i := range tokens {
		counts[i+2] = len(tokens) - i
	}

	v, err := vocab.New(all, counts)
	if err != nil {
		tb.Fatalf("build vocabulary fixture: %v", err)
	}

	return v
}

// WriteVocab saves a NewVocab fixture into dir and returns the file path.
func WriteVocab(tb testing.TB, dir string, tokens ...string) string {
	tb.Helper()

	path, err := vocab.Save(NewVocab(tb, tokens...), dir)
	if err != nil {
		tb.Fatalf("save vocabulary fixture: %v", err)
	}

	return path
}
