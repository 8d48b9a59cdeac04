package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/example/go-seqprep/internal/config"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	root := NewRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"build-vocab", "encode", "inspect", "bench", "serve", "health", "doctor", "model"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentFlags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"config", "env-file", "vocab-max-size", "encode-seq-len", "log-level"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag to be registered", name)
		}
	}
}

func TestRootCmd_RejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, "", "--encode-seq-len=0", "inspect")
	if err == nil || !strings.Contains(err.Error(), "seq_len") {
		t.Fatalf("err = %v; want seq_len validation error", err)
	}

	_, err = execute(t, "", "--vocab-max-size=1", "inspect")
	if err == nil || !strings.Contains(err.Error(), "max_size") {
		t.Fatalf("err = %v; want max_size validation error", err)
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		setupLogger(level)
	}
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(_ *testing.T) {
	setupLogger("not-a-level")
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{}

	if _, err := requireConfig(); err == nil {
		t.Fatal("expected error when config is not loaded")
	}
}

func TestRequireConfig_SucceedsWhenLoaded(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig returned unexpected error: %v", err)
	}

	if got.Encode.SeqLen != 100 {
		t.Errorf("Encode.SeqLen = %d; want 100", got.Encode.SeqLen)
	}
}

func TestFirstNonZero(t *testing.T) {
	if got := firstNonZero(0, 7); got != 7 {
		t.Errorf("firstNonZero(0, 7) = %d; want 7", got)
	}

	if got := firstNonZero(3, 7); got != 3 {
		t.Errorf("firstNonZero(3, 7) = %d; want 3", got)
	}

	if got := firstNonEmpty("", "b"); got != "b" {
		t.Errorf("firstNonEmpty(\"\", b) = %q; want b", got)
	}
}

func TestHealthAddr(t *testing.T) {
	tests := map[string]string{
		":8080":          "127.0.0.1:8080",
		"0.0.0.0:9000":   "0.0.0.0:9000",
		"localhost:8080": "localhost:8080",
	}

	for in, want := range tests {
		if got := healthAddr(in); got != want {
			t.Errorf("healthAddr(%q) = %q; want %q", in, got, want)
		}
	}
}
