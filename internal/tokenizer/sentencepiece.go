package tokenizer

import (
	"errors"
	"fmt"
	"os"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
)

// ErrEmptyPath is returned when NewSentencePiece is called with an empty path.
var ErrEmptyPath = errors.New("tokenizer model path must not be empty")

// SentencePiece tokenizes with a pure-Go UNIGRAM SentencePiece model and
// returns the piece strings (with the U+2581 word-start marker) rather than
// the model's own ids; ids come from the vocabulary built over those pieces.
type SentencePiece struct {
	proc gosp.Sentencepiece
}

// NewSentencePiece loads a SentencePiece model from the given path.
func NewSentencePiece(modelPath string) (*SentencePiece, error) {
	if modelPath == "" {
		return nil, ErrEmptyPath
	}

	proc, err := gosp.NewSentencepieceFromFile(modelPath, false)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model %q: %w", modelPath, err)
	}

	return &SentencePiece{proc: proc}, nil
}

// NewSentencePieceFromBytes loads a SentencePiece model from raw bytes.
// The upstream library only exposes a file-path API, so the data is staged
// in a temporary file.
func NewSentencePieceFromBytes(data []byte) (*SentencePiece, error) {
	if len(data) == 0 {
		return nil, errors.New("tokenizer model data must not be empty")
	}

	f, err := os.CreateTemp("", "sp-*.model")
	if err != nil {
		return nil, fmt.Errorf("create temp sentencepiece file: %w", err)
	}

	defer func() { _ = os.Remove(f.Name()) }() // best-effort temp file cleanup

	_, err = f.Write(data)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write tokenizer model bytes: %w", err)
	}

	path := f.Name()

	err = f.Close()
	if err != nil {
		return nil, fmt.Errorf("close tokenizer temp file: %w", err)
	}

	return NewSentencePiece(path)
}

// Tokenize returns the SentencePiece pieces of text.
func (t *SentencePiece) Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}

	pieces := t.proc.Tokenize(text)

	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.Text
	}

	return out
}
