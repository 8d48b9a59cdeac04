// Package dataset writes and reads encoded batches: the (sentences x L) id
// matrix produced by the encoder.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/arrow"
	"github.com/apache/arrow/go/arrow/array"
	"github.com/apache/arrow/go/arrow/ipc"
	"github.com/apache/arrow/go/arrow/memory"
)

// Output formats.
const (
	FormatJSON        = "json"
	FormatArrow       = "arrow"
	FormatSafetensors = "safetensors"
)

// ErrUnknownFormat is returned for an unrecognized output format.
var ErrUnknownFormat = errors.New("unknown output format")

// NormalizeFormat canonicalizes an output format name. Empty means JSON.
func NormalizeFormat(raw string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(raw)); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatArrow, "ipc", "arrow-ipc":
		return FormatArrow, nil
	case FormatSafetensors, "st":
		return FormatSafetensors, nil
	default:
		return "", fmt.Errorf("%w %q (expected %s|%s|%s)", ErrUnknownFormat, raw, FormatJSON, FormatArrow, FormatSafetensors)
	}
}

// Write encodes ids in the given format.
func Write(w io.Writer, format string, ids [][]int64) error {
	f, err := NormalizeFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatArrow:
		return WriteArrow(w, ids)
	case FormatSafetensors:
		return WriteSafetensors(w, ids)
	default:
		return WriteJSON(w, ids)
	}
}

// WriteJSON writes ids as a JSON array of arrays followed by a newline.
func WriteJSON(w io.Writer, ids [][]int64) error {
	if ids == nil {
		ids = [][]int64{}
	}
	if err := json.NewEncoder(w).Encode(ids); err != nil {
		return fmt.Errorf("write json matrix: %w", err)
	}
	return nil
}

// Schema returns the Arrow schema of an encoded batch: the input row number
// and its id sequence.
func Schema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "row", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "ids", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64), Nullable: false},
	}, nil)
}

// WriteArrow writes ids as a single-record Arrow IPC stream.
func WriteArrow(w io.Writer, ids [][]int64) error {
	schema := Schema()
	iw := ipc.NewWriter(w, ipc.WithSchema(schema))

	rec := buildRecord(schema, ids, memory.NewGoAllocator())
	defer rec.Release()

	if err := iw.Write(rec); err != nil {
		_ = iw.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}

	if err := iw.Close(); err != nil {
		return fmt.Errorf("close arrow stream: %w", err)
	}

	return nil
}

func buildRecord(schema *arrow.Schema, ids [][]int64, mem memory.Allocator) array.Record {
	rowBuilder := array.NewInt32Builder(mem)
	defer rowBuilder.Release()

	listBuilder := array.NewListBuilder(mem, arrow.PrimitiveTypes.Int64)
	defer listBuilder.Release()

	valueBuilder := listBuilder.ValueBuilder().(*array.Int64Builder)

	for i, seq := range ids {
		rowBuilder.Append(int32(i)) //nolint:gosec // Batch sizes stay far below 2^31.
		listBuilder.Append(true)
		valueBuilder.AppendValues(seq, nil)
	}

	rowArr := rowBuilder.NewArray()
	defer rowArr.Release()

	listArr := listBuilder.NewArray()
	defer listArr.Release()

	return array.NewRecord(schema, []array.Interface{rowArr, listArr}, int64(len(ids)))
}

// ReadArrow reads every record of an Arrow IPC stream written by WriteArrow
// and returns the rows in order.
func ReadArrow(r io.Reader) ([][]int64, error) {
	ir, err := ipc.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open arrow stream: %w", err)
	}
	defer ir.Release()

	if fields := ir.Schema().Fields(); len(fields) != 2 || fields[0].Name != "row" || fields[1].Name != "ids" {
		return nil, fmt.Errorf("unexpected arrow schema: %s", ir.Schema())
	}

	var out [][]int64
	for ir.Next() {
		rows, err := recordRows(ir.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}

	if err := ir.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read arrow stream: %w", err)
	}

	return out, nil
}

func recordRows(rec array.Record) ([][]int64, error) {
	lists, ok := rec.Column(1).(*array.List)
	if !ok {
		return nil, fmt.Errorf("ids column is %T, want list", rec.Column(1))
	}

	values, ok := lists.ListValues().(*array.Int64)
	if !ok {
		return nil, fmt.Errorf("ids values are %T, want int64", lists.ListValues())
	}

	offsets := lists.Offsets()
	rows := make([][]int64, lists.Len())
	for i := range rows {
		start, end := int(offsets[i]), int(offsets[i+1])
		seq := make([]int64, end-start)
		for j := range seq {
			seq[j] = values.Value(start + j)
		}
		rows[i] = seq
	}

	return rows, nil
}
