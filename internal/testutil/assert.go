package testutil

import (
	"testing"

	"github.com/example/go-seqprep/internal/vocab"
)

// AssertSequences checks that ids is a rows x seqLen matrix whose entries are
// valid indices of a vocabulary of vocabSize entries, and that padding only
// appears as a prefix of each row.
func AssertSequences(tb testing.TB, ids [][]int64, rows, seqLen, vocabSize int) {
	tb.Helper()

	if len(ids) != rows {
		tb.Fatalf("got %d sequences; want %d", len(ids), rows)
	}

	for i, seq := range ids {
		if len(seq) != seqLen {
			tb.Fatalf("sequence %d has length %d; want %d", i, len(seq), seqLen)
		}

		padded := true
		for j, id := range seq {
			if id < 0 || id >= int64(vocabSize) {
				tb.Fatalf("sequence %d position %d: id %d outside vocabulary of %d", i, j, id, vocabSize)
			}
			if id != vocab.PadIndex {
				padded = false
				continue
			}
			if !padded {
				tb.Fatalf("sequence %d position %d: padding after content in %v", i, j, seq)
			}
		}
	}
}
