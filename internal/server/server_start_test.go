package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/example/go-seqprep/internal/config"
	"github.com/example/go-seqprep/internal/testutil"
	"github.com/example/go-seqprep/internal/vocab"
)

// fakeEncoder is a fixed-output Encoder for package-internal tests.
type fakeEncoder struct{}

func (f *fakeEncoder) EncodeParallel(_ context.Context, sentences []string, _ int) ([][]int64, error) {
	out := make([][]int64, len(sentences))
	for i := range out {
		out[i] = []int64{0, 1}
	}
	return out, nil
}

func (f *fakeEncoder) Vocabulary() *vocab.Vocabulary { return nil }

func (f *fakeEncoder) SeqLen() int { return 2 }

func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	addr := ln.Addr().String()
	_ = ln.Close()

	return addr
}

func TestStart_LifecycleHealthEncodeAndShutdown(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteVocab(t, dir, "a", "b")

	addr := freeAddr(t)

	cfg := config.DefaultConfig()
	cfg.Paths.VocabDir = dir
	cfg.Encode.SeqLen = 5
	cfg.Tokenizer.Kind = "whitespace"
	cfg.Server.ListenAddr = addr

	s := New(cfg, nil).WithShutdownTimeout(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.Start(ctx)
	}()

	client := &http.Client{Timeout: 2 * time.Second}

	var (
		resp *http.Response
		err  error
	)

	for range 50 {
		resp, err = client.Get(fmt.Sprintf("http://%s/health", addr))
		if err == nil {
			break
		}

		time.Sleep(20 * time.Millisecond)
	}

	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}

	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode /health: %v", err)
	}
	_ = resp.Body.Close()

	if health["status"] != "ok" {
		t.Errorf("status = %q; want ok", health["status"])
	}

	resp, err = client.Post(fmt.Sprintf("http://%s/encode", addr), "application/json",
		strings.NewReader(`{"sentences":["a a x"]}`))
	if err != nil {
		t.Fatalf("POST /encode: %v", err)
	}

	var encoded struct {
		IDs [][]int64 `json:"ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&encoded); err != nil {
		t.Fatalf("decode /encode: %v", err)
	}
	_ = resp.Body.Close()

	testutil.AssertSequences(t, encoded.IDs, 1, 5, 4)

	if got := fmt.Sprint(encoded.IDs[0]); got != "[0 0 2 2 1]" {
		t.Errorf("ids = %s; want [0 0 2 2 1]", got)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return within 5s of context cancel")
	}
}
