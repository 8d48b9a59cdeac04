package assets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/go-seqprep/internal/tokenizer"
)

// ErrChecksumMismatch reports a file whose sha256 differs from the pinned one.
var ErrChecksumMismatch = errors.New("checksum mismatch")

type VerifyOptions struct {
	Dir string
	// LoadModels additionally parses every *.model file as a sentencepiece
	// model.
	LoadModels bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// Verify rechecks every file recorded in Dir's lock manifest.
func Verify(opts VerifyOptions) error {
	if opts.Dir == "" {
		return errors.New("dir is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	lockPath := filepath.Join(opts.Dir, LockFileName)
	if _, err := os.Stat(lockPath); err != nil {
		return fmt.Errorf("lock manifest: %w", err)
	}

	lock := readLockManifest(lockPath)
	if len(lock.Files) == 0 {
		return fmt.Errorf("lock manifest %s lists no files", lockPath)
	}

	names := make([]string, 0, len(lock.Files))
	for name := range lock.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string

	for _, name := range names {
		if err := verifyFile(filepath.Join(opts.Dir, filepath.FromSlash(name)), lock.Files[name].SHA256, opts.LoadModels); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", name, err)
			failures = append(failures, name)

			continue
		}

		_, _ = fmt.Fprintf(opts.Stdout, "PASS %s\n", name)
	}

	if len(failures) > 0 {
		return fmt.Errorf("verify failed for %d file(s): %s", len(failures), strings.Join(failures, ", "))
	}

	return nil
}

func verifyFile(path, expected string, load bool) error {
	actual, err := fileSHA256(path)
	if err != nil {
		return err
	}
	if actual != strings.ToLower(expected) {
		return fmt.Errorf("%w: expected %s got %s", ErrChecksumMismatch, expected, actual)
	}

	if load && strings.HasSuffix(path, ".model") {
		if _, err := tokenizer.NewSentencePiece(path); err != nil {
			return fmt.Errorf("load sentencepiece model: %w", err)
		}
	}

	return nil
}
