package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/go-seqprep/internal/encoder"
	"github.com/example/go-seqprep/internal/server"
	"github.com/example/go-seqprep/internal/tokenizer"
	"github.com/example/go-seqprep/internal/vocab"
)

var errEncodeFailed = errors.New("encode failed")

func testVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()

	v, err := vocab.New([]string{vocab.PadToken, vocab.UnkToken, "a", "b"}, []int{0, 0, 3, 2})
	if err != nil {
		t.Fatalf("vocab.New: %v", err)
	}

	return v
}

func testEncoder(t *testing.T, seqLen int) *encoder.Encoder {
	t.Helper()

	enc, err := encoder.New(testVocab(t), tokenizer.Whitespace{}, seqLen)
	if err != nil {
		t.Fatalf("encoder.New: %v", err)
	}

	return enc
}

// stubEncoder implements server.Encoder for tests.
type stubEncoder struct {
	vocab *vocab.Vocabulary
	ids   [][]int64
	err   error
	// run, when set, replaces the canned result.
	run func(ctx context.Context) ([][]int64, error)
}

func (s *stubEncoder) EncodeParallel(ctx context.Context, _ []string, _ int) ([][]int64, error) {
	if s.run != nil {
		return s.run(ctx)
	}
	return s.ids, s.err
}

func (s *stubEncoder) Vocabulary() *vocab.Vocabulary { return s.vocab }

func (s *stubEncoder) SeqLen() int { return 5 }

func postEncode(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/encode", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}

	return body["error"]
}

// ---------------------------------------------------------------------------
// GET /health
// ---------------------------------------------------------------------------

func TestHealth_Returns200WithStatusOK(t *testing.T) {
	h := server.NewHandler(testEncoder(t, 5))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("want status=ok, got %q", body["status"])
	}

	if _, ok := body["version"]; !ok {
		t.Error("want version field in response")
	}
}

// ---------------------------------------------------------------------------
// GET /vocab
// ---------------------------------------------------------------------------

func TestVocab_ReturnsSummary(t *testing.T) {
	h := server.NewHandler(testEncoder(t, 7))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/vocab", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	var body map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	want := map[string]int{"size": 4, "seq_len": 7, "pad_index": 0, "unk_index": 1}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %d; want %d", k, body[k], v)
		}
	}
}

func TestVocabFile_StreamsLoadableVocabulary(t *testing.T) {
	v := testVocab(t)
	h := server.NewHandler(&stubEncoder{vocab: v})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/vocab/file", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	got, err := vocab.Read(rec.Body)
	if err != nil {
		t.Fatalf("vocab.Read: %v", err)
	}

	if !got.Equal(v) {
		t.Errorf("streamed vocabulary %v; want %v", got.Tokens(), v.Tokens())
	}
}

// ---------------------------------------------------------------------------
// POST /encode
// ---------------------------------------------------------------------------

func TestEncode_ReturnsPaddedSequences(t *testing.T) {
	h := server.NewHandler(testEncoder(t, 5))

	rec := postEncode(h, `{"sentences":["a a x","a a a a a a b"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}

	var body struct {
		IDs [][]int64 `json:"ids"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	want := [][]int64{{0, 0, 2, 2, 1}, {2, 2, 2, 2, 2}}
	if len(body.IDs) != len(want) {
		t.Fatalf("got %d rows; want %d", len(body.IDs), len(want))
	}

	for i := range want {
		for j := range want[i] {
			if body.IDs[i][j] != want[i][j] {
				t.Errorf("ids[%d] = %v; want %v", i, body.IDs[i], want[i])
				break
			}
		}
	}
}

func TestEncode_MethodNotAllowed(t *testing.T) {
	h := server.NewHandler(testEncoder(t, 5))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/encode", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("want 405, got %d", rec.Code)
	}
}

func TestEncode_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"sentences":`},
		{"missing sentences", `{}`},
		{"empty batch", `{"sentences":[]}`},
		{"wrong type", `{"sentences":"a b"}`},
	}

	h := server.NewHandler(testEncoder(t, 5))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postEncode(h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d", rec.Code)
			}

			if decodeError(t, rec) == "" {
				t.Error("want non-empty error field")
			}
		})
	}
}

func TestEncode_EncoderFailureReturns500(t *testing.T) {
	h := server.NewHandler(&stubEncoder{vocab: testVocab(t), err: errEncodeFailed})

	rec := postEncode(h, `{"sentences":["a"]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}

func TestEncode_MissingTokenizerReturns503(t *testing.T) {
	h := server.NewHandler(&stubEncoder{vocab: testVocab(t), err: tokenizer.ErrMissingDependency})

	rec := postEncode(h, `{"sentences":["a"]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
}
