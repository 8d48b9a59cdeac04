// Package doctor provides environment preflight checks for seqprep.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/example/go-seqprep/internal/vocab"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// TokenizerFunc builds the configured tokenizer and returns a short
// description of it, or an error if the backend is unavailable.
type TokenizerFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Tokenizer constructs the configured tokenizer backend.
	Tokenizer TokenizerFunc
	// TokenizerModelPath is the SentencePiece model to verify on disk.
	// Empty skips the check.
	TokenizerModelPath string
	// VocabPath is the vocabulary file or directory to load.
	VocabPath string
	// SkipVocab skips the vocabulary check, e.g. before build-vocab has run.
	SkipVocab bool
	// MaxVocabSize is the configured size cap; a loaded vocabulary larger
	// than this fails. Zero disables the comparison.
	MaxVocabSize int
	// WritableDirs are directories that must exist or be creatable and
	// accept new files.
	WritableDirs []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- tokenizer model file ---------------------------------------------
	if cfg.TokenizerModelPath != "" {
		if _, err := os.Stat(cfg.TokenizerModelPath); err != nil {
			res.fail(fmt.Sprintf("tokenizer model %q: %v", cfg.TokenizerModelPath, err))
			fmt.Fprintf(w, "%s tokenizer model %s: not found\n", FailMark, cfg.TokenizerModelPath)
		} else {
			fmt.Fprintf(w, "%s tokenizer model: %s\n", PassMark, cfg.TokenizerModelPath)
		}
	}

	// ---- tokenizer backend ------------------------------------------------
	if cfg.Tokenizer == nil {
		fmt.Fprintf(w, "%s tokenizer: skipped\n", PassMark)
	} else if desc, err := cfg.Tokenizer(); err != nil {
		res.fail(fmt.Sprintf("tokenizer: %v", err))
		fmt.Fprintf(w, "%s tokenizer: unavailable (%v)\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s tokenizer: %s\n", PassMark, desc)
	}

	// ---- vocabulary -------------------------------------------------------
	if cfg.SkipVocab {
		fmt.Fprintf(w, "%s vocabulary: skipped\n", PassMark)
	} else if summary, err := checkVocab(cfg.VocabPath, cfg.MaxVocabSize); err != nil {
		res.fail(fmt.Sprintf("vocabulary %q: %v", cfg.VocabPath, err))
		fmt.Fprintf(w, "%s vocabulary %s: %v\n", FailMark, cfg.VocabPath, err)
	} else {
		fmt.Fprintf(w, "%s vocabulary: %s\n", PassMark, summary)
	}

	// ---- writable directories ---------------------------------------------
	for _, dir := range cfg.WritableDirs {
		if err := checkWritable(dir); err != nil {
			res.fail(fmt.Sprintf("directory %q: %v", dir, err))
			fmt.Fprintf(w, "%s directory %s: not writable\n", FailMark, dir)
		} else {
			fmt.Fprintf(w, "%s directory writable: %s\n", PassMark, dir)
		}
	}

	return res
}

// checkVocab loads the vocabulary at path and describes it.
func checkVocab(path string, maxSize int) (string, error) {
	if path == "" {
		return "", errors.New("no vocabulary path configured")
	}

	v, err := vocab.Load(path)
	if err != nil {
		return "", err
	}

	if maxSize > 0 && v.Len() > maxSize {
		return "", fmt.Errorf("%d entries exceed configured max_size %d", v.Len(), maxSize)
	}

	return fmt.Sprintf("%s (%d entries)", path, v.Len()), nil
}

// checkWritable creates dir if needed and verifies a file can be created in it.
func checkWritable(dir string) error {
	if dir == "" {
		return errors.New("empty path")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".seqprep-doctor-*")
	if err != nil {
		return err
	}

	name := f.Name()
	_ = f.Close()

	return os.Remove(filepath.Clean(name))
}
