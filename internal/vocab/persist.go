package vocab

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// FileName is the artifact name written by Save.
const FileName = "vocab.json"

// Version 2 added binary_tokens; version 1 files are still readable.
const (
	formatVersion        = 2
	minReadFormatVersion = 1
)

type fileFormat struct {
	Version      int      `json:"version"`
	PadToken     string   `json:"pad_token"`
	UnkToken     string   `json:"unk_token"`
	Tokens       []string `json:"tokens"`
	Counts       []int    `json:"counts,omitempty"`
	// BinaryTokens lists the indices whose tokens entry is base64 of a
	// token that is not valid UTF-8. JSON strings cannot carry such bytes.
	BinaryTokens []int    `json:"binary_tokens,omitempty"`
}

// Write serializes v as JSON. Token order is the index order.
func Write(w io.Writer, v *Vocabulary) error {
	if v == nil {
		return fmt.Errorf("%w: nil vocabulary", ErrInvalidVocabulary)
	}

	tokens := v.tokens
	var binary []int
	for i, tok := range v.tokens {
		if utf8.ValidString(tok) {
			continue
		}
		if binary == nil {
			tokens = append([]string(nil), v.tokens...)
		}
		tokens[i] = base64.StdEncoding.EncodeToString([]byte(tok))
		binary = append(binary, i)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(fileFormat{
		Version:      formatVersion,
		PadToken:     PadToken,
		UnkToken:     UnkToken,
		Tokens:       tokens,
		Counts:       v.counts,
		BinaryTokens: binary,
	})
}

// Read decodes a vocabulary written by Write and re-checks its invariants.
func Read(r io.Reader) (*Vocabulary, error) {
	var f fileFormat
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}

	if f.Version < minReadFormatVersion || f.Version > formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrInvalidVocabulary, f.Version)
	}
	if f.PadToken != PadToken || f.UnkToken != UnkToken {
		return nil, fmt.Errorf("%w: special tokens %q/%q; want %q/%q",
			ErrInvalidVocabulary, f.PadToken, f.UnkToken, PadToken, UnkToken)
	}

	for _, i := range f.BinaryTokens {
		if i < 0 || i >= len(f.Tokens) {
			return nil, fmt.Errorf("%w: binary token index %d out of range", ErrInvalidVocabulary, i)
		}
		raw, err := base64.StdEncoding.DecodeString(f.Tokens[i])
		if err != nil {
			return nil, fmt.Errorf("%w: binary token %d: %w", ErrInvalidVocabulary, i, err)
		}
		f.Tokens[i] = string(raw)
	}

	if len(f.Counts) == 0 {
		f.Counts = nil
	}

	return New(f.Tokens, f.Counts)
}

// Save writes v to dir/vocab.json and returns the file path. The file is
// replaced atomically.
func Save(v *Vocabulary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create vocabulary dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vocab-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp vocabulary file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after a successful rename

	if err := Write(tmp, v); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write vocabulary: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close vocabulary file: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("install vocabulary file: %w", err)
	}

	return path, nil
}

// Load reads a vocabulary from path, which may name the vocab.json file or
// the directory that contains it.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return nil, errors.New("vocabulary path must not be empty")
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}

	f, err := os.Open(path) //nolint:gosec // Loading from a user-specified path is intentional.
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer func() { _ = f.Close() }()

	v, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	return v, nil
}
