package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-seqprep/internal/tokenizer"
	"github.com/example/go-seqprep/internal/vocab"
)

var ws = tokenizer.Whitespace{}

// abVocab is {<pad>:0, <unk>:1, a:2, b:3}.
func abVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()

	v, err := vocab.Build([]string{"a a a", "b b", "c"}, ws, 4)
	require.NoError(t, err)

	return v
}

func newEncoder(t *testing.T, seqLen int) *Encoder {
	t.Helper()

	e, err := New(abVocab(t), ws, seqLen)
	require.NoError(t, err)

	return e
}

func TestEncode_LeftPadsShortSentences(t *testing.T) {
	got, err := newEncoder(t, 5).Encode([]string{"a a c"})
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{0, 0, 2, 2, 1}}, got)
}

func TestEncode_TruncatesLongSentences(t *testing.T) {
	got, err := newEncoder(t, 2).Encode([]string{"a a a"})
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{2, 2}}, got)
}

func TestEncode_KeepsFirstTokensOnTruncation(t *testing.T) {
	got, err := newEncoder(t, 3).Encode([]string{"b a c a b"})
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{3, 2, 1}}, got)
}

func TestEncode_ExactLengthPassesThrough(t *testing.T) {
	got, err := newEncoder(t, 3).Encode([]string{"b c a"})
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{3, 1, 2}}, got)
}

func TestEncode_EmptySentenceIsAllPadding(t *testing.T) {
	got, err := newEncoder(t, 4).Encode([]string{""})
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{0, 0, 0, 0}}, got)
}

func TestEncode_PreservesOrderAndLength(t *testing.T) {
	sentences := []string{"a", "b b b b b b b b", "", "c d e", "a b a b"}

	for _, seqLen := range []int{1, 2, 3, 7, 64} {
		t.Run(fmt.Sprintf("L=%d", seqLen), func(t *testing.T) {
			e := newEncoder(t, seqLen)

			got, err := e.Encode(sentences)
			require.NoError(t, err)
			require.Len(t, got, len(sentences))

			for i, seq := range got {
				assert.Len(t, seq, seqLen, "sentence %d", i)

				single, err := e.EncodeOne(sentences[i])
				require.NoError(t, err)
				assert.Equal(t, single, seq, "sentence %d", i)
			}
		})
	}
}

func TestEncode_UnknownTokensMapToUnkIndex(t *testing.T) {
	got, err := newEncoder(t, 3).Encode([]string{"x y z"})
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{1, 1, 1}}, got)
}

func TestEncode_NoPaddingWhenTokensFillSequence(t *testing.T) {
	e := newEncoder(t, 3)

	got, err := e.Encode([]string{"a b c", "c c c c", "a a a a a"})
	require.NoError(t, err)

	for _, seq := range got {
		assert.NotContains(t, seq, int64(vocab.PadIndex))
	}
}

func TestEncode_ReturnsIndependentSlices(t *testing.T) {
	e := newEncoder(t, 3)

	got, err := e.Encode([]string{"a", "a"})
	require.NoError(t, err)

	got[0][2] = 99
	assert.Equal(t, int64(2), got[1][2])
}

func TestNew_InvalidSeqLen(t *testing.T) {
	for _, n := range []int{0, -3} {
		_, err := New(abVocab(t), ws, n)
		assert.ErrorIs(t, err, vocab.ErrInvalidConfig, "seqLen=%d", n)
	}
}

func TestNew_NilVocabulary(t *testing.T) {
	_, err := New(nil, ws, 4)
	assert.ErrorIs(t, err, vocab.ErrInvalidConfig)
}

func TestNew_NilTokenizerUsesDefault(t *testing.T) {
	e, err := New(abVocab(t), nil, 4)
	require.NoError(t, err)

	// The default word tokenizer splits the comma off.
	got, err := e.EncodeOne("a, b")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 2, 1, 3}, got)
}

func TestNew_MissingDefaultTokenizer(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	unavailable := func() (tokenizer.Tokenizer, error) {
		return nil, errors.New("word tokenizer not installed")
	}

	e, err := New(abVocab(t), nil, 4, WithDefaultTokenizer(unavailable), WithLogger(logger))
	require.ErrorIs(t, err, tokenizer.ErrMissingDependency)
	require.NotNil(t, e, "encoder stays constructed")
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "word tokenizer not installed")

	_, err = e.Encode([]string{"a"})
	assert.ErrorIs(t, err, tokenizer.ErrMissingDependency)

	_, err = e.EncodeOne("a")
	assert.ErrorIs(t, err, tokenizer.ErrMissingDependency)

	_, err = e.EncodeParallel(context.Background(), []string{"a", "b"}, 2)
	assert.ErrorIs(t, err, tokenizer.ErrMissingDependency)

	e.SetTokenizer(ws)
	got, err := e.EncodeOne("a b")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 2, 3}, got)
}

func TestNew_DefaultFactoryReturningNil(t *testing.T) {
	nilFactory := func() (tokenizer.Tokenizer, error) { return nil, nil }

	_, err := New(abVocab(t), nil, 4,
		WithDefaultTokenizer(nilFactory),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	assert.ErrorIs(t, err, tokenizer.ErrMissingDependency)
}

func TestEncodeParallel_MatchesEncode(t *testing.T) {
	e := newEncoder(t, 4)

	sentences := make([]string, 101)
	for i := range sentences {
		sentences[i] = strings.Repeat("a b c ", i%5)
	}

	want, err := e.Encode(sentences)
	require.NoError(t, err)

	for _, workers := range []int{0, 1, 3, 8, 200} {
		got, err := e.EncodeParallel(context.Background(), sentences, workers)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestEncodeParallel_Cancelled(t *testing.T) {
	e := newEncoder(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EncodeParallel(ctx, []string{"a", "b", "c", "d"}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecode(t *testing.T) {
	e := newEncoder(t, 5)

	assert.Equal(t, []string{"a", "a", vocab.UnkToken}, e.Decode([]int64{0, 0, 2, 2, 1}))
	assert.Equal(t, []string{vocab.UnkToken}, e.Decode([]int64{42}))
}

func TestAccessors(t *testing.T) {
	e := newEncoder(t, 7)

	assert.Equal(t, 7, e.SeqLen())
	assert.Equal(t, 4, e.Vocabulary().Len())
}
