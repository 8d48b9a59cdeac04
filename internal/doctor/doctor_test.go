package doctor_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-seqprep/internal/doctor"
	"github.com/example/go-seqprep/internal/testutil"
)

func okTokenizer() (string, error) { return "word", nil }

// ---------------------------------------------------------------------------
// all-pass scenario
// ---------------------------------------------------------------------------

func TestRun_AllChecksPass(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteVocab(t, dir, "a", "b")

	cfg := doctor.Config{
		Tokenizer:    okTokenizer,
		VocabPath:    dir,
		MaxVocabSize: 10,
		WritableDirs: []string{filepath.Join(dir, "out")},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}

	body := out.String()
	for _, want := range []string{"tokenizer: word", "4 entries", "directory writable"} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
}

// ---------------------------------------------------------------------------
// tokenizer
// ---------------------------------------------------------------------------

func TestRun_TokenizerUnavailableFails(t *testing.T) {
	cfg := doctor.Config{
		Tokenizer: func() (string, error) { return "", errBackendMissing },
		SkipVocab: true,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when the tokenizer is unavailable")
	}

	if !hasFailureContaining(result.Failures(), "tokenizer") {
		t.Errorf("expected failure mentioning tokenizer, got: %v", result.Failures())
	}
}

func TestRun_TokenizerModelMissing(t *testing.T) {
	cfg := doctor.Config{
		TokenizerModelPath: "/nonexistent/tokenizer.model",
		SkipVocab:          true,
	}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if !result.Failed() {
		t.Fatal("expected failure for missing tokenizer model")
	}

	if !hasFailureContaining(result.Failures(), "tokenizer model") {
		t.Errorf("expected failure mentioning tokenizer model, got: %v", result.Failures())
	}
}

func TestRun_TokenizerModelPresent(t *testing.T) {
	cfg := doctor.Config{
		TokenizerModelPath: "doctor_test.go",
		SkipVocab:          true,
	}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if result.Failed() {
		t.Errorf("expected pass; failures: %v", result.Failures())
	}

	if !strings.Contains(out.String(), "tokenizer model: doctor_test.go") {
		t.Errorf("output should mention tokenizer model; got:\n%s", out.String())
	}
}

// ---------------------------------------------------------------------------
// vocabulary
// ---------------------------------------------------------------------------

func TestRun_MissingVocabularyFails(t *testing.T) {
	cfg := doctor.Config{
		Tokenizer: okTokenizer,
		VocabPath: filepath.Join(t.TempDir(), "absent"),
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure for missing vocabulary")
	}

	if !hasFailureContaining(result.Failures(), "vocabulary") {
		t.Errorf("expected failure mentioning vocabulary, got: %v", result.Failures())
	}
}

func TestRun_OversizedVocabularyFails(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteVocab(t, dir, "a", "b", "c")

	cfg := doctor.Config{
		Tokenizer:    okTokenizer,
		VocabPath:    dir,
		MaxVocabSize: 3,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !hasFailureContaining(result.Failures(), "max_size") {
		t.Errorf("expected failure mentioning max_size, got: %v", result.Failures())
	}
}

// ---------------------------------------------------------------------------
// output markers
// ---------------------------------------------------------------------------

func TestRun_OutputContainsPassAndFailMarkers(t *testing.T) {
	cfg := doctor.Config{
		Tokenizer: okTokenizer,
		VocabPath: filepath.Join(t.TempDir(), "absent"),
	}

	var out strings.Builder
	doctor.Run(cfg, &out)

	body := out.String()
	if !strings.Contains(body, doctor.PassMark) {
		t.Errorf("output missing pass marker %q:\n%s", doctor.PassMark, body)
	}

	if !strings.Contains(body, doctor.FailMark) {
		t.Errorf("output missing fail marker %q:\n%s", doctor.FailMark, body)
	}
}

func TestRun_SkippedChecks(t *testing.T) {
	var out strings.Builder

	result := doctor.Run(doctor.Config{SkipVocab: true}, &out)
	if result.Failed() {
		t.Fatalf("expected no failures when checks are skipped, got: %v", result.Failures())
	}

	body := out.String()
	if !strings.Contains(body, "tokenizer: skipped") {
		t.Fatalf("expected tokenizer skipped output, got:\n%s", body)
	}

	if !strings.Contains(body, "vocabulary: skipped") {
		t.Fatalf("expected vocabulary skipped output, got:\n%s", body)
	}
}

func TestResult_AddFailure(t *testing.T) {
	var out strings.Builder

	result := doctor.Run(doctor.Config{SkipVocab: true}, &out)
	result.AddFailure("server: unreachable")

	if !result.Failed() {
		t.Fatal("expected Failed() after AddFailure")
	}

	failures := result.Failures()
	failures[0] = "mutated"

	if result.Failures()[0] != "server: unreachable" {
		t.Error("Failures() returned a non-copy")
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

var errBackendMissing = sentinelError("backend missing")

func hasFailureContaining(failures []string, substr string) bool {
	substr = strings.ToLower(substr)
	for _, f := range failures {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}

	return false
}
