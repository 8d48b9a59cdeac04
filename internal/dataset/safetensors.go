package dataset

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// IDsTensor is the tensor name WriteSafetensors stores the id matrix under.
const IDsTensor = "input_ids"

const (
	dtypeI64 = "I64"
	dtypeI32 = "I32"
)

// maxHeaderBytes bounds the JSON header ReadSafetensors accepts.
const maxHeaderBytes = 100 << 20

// maxEmptyRows bounds the row count of a zero-width tensor, which carries no
// data to check it against.
const maxEmptyRows = 1 << 20

type tensorHeader struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

// WriteSafetensors writes ids as a single I64 tensor of shape
// [rows, seq_len]. Every row must have the same length.
func WriteSafetensors(w io.Writer, ids [][]int64) error {
	cols := 0
	if len(ids) > 0 {
		cols = len(ids[0])
	}

	raw := make([]byte, 0, len(ids)*cols*8)
	for i, seq := range ids {
		if len(seq) != cols {
			return fmt.Errorf("safetensors: row %d has %d ids, want %d", i, len(seq), cols)
		}
		for _, id := range seq {
			raw = binary.LittleEndian.AppendUint64(raw, uint64(id)) //nolint:gosec // Two's complement round-trips.
		}
	}

	header := map[string]any{
		"__metadata__": map[string]string{"format": "seqprep"},
		IDsTensor: tensorHeader{
			DType:   dtypeI64,
			Shape:   []int64{int64(len(ids)), int64(cols)},
			Offsets: [2]int{0, len(raw)},
		},
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("safetensors: encode header: %w", err)
	}

	// The data section starts on an 8-byte boundary.
	if pad := len(headerJSON) % 8; pad != 0 {
		headerJSON = append(headerJSON, strings.Repeat(" ", 8-pad)...)
	}

	lenPrefix := binary.LittleEndian.AppendUint64(nil, uint64(len(headerJSON)))
	for _, chunk := range [][]byte{lenPrefix, headerJSON, raw} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("safetensors: write: %w", err)
		}
	}

	return nil
}

// ReadSafetensors reads the IDsTensor matrix from a safetensors stream.
// I32 tensors are widened to int64.
func ReadSafetensors(r io.Reader) ([][]int64, error) {
	var lenPrefix [8]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, fmt.Errorf("safetensors: read header length: %w", err)
	}

	headerLen := binary.LittleEndian.Uint64(lenPrefix[:])
	if headerLen > maxHeaderBytes {
		return nil, fmt.Errorf("safetensors: header length %d exceeds limit", headerLen)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("safetensors: read header: %w", err)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	raw, ok := header[IDsTensor]
	if !ok {
		return nil, fmt.Errorf("safetensors: tensor %q not found", IDsTensor)
	}

	var entry tensorHeader
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("safetensors: decode header entry %q: %w", IDsTensor, err)
	}

	elemBytes, err := validateEntry(entry)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read data: %w", err)
	}

	start, end := entry.Offsets[0], entry.Offsets[1]
	if end > len(data) {
		return nil, fmt.Errorf("safetensors: tensor %q data [%d:%d] exceeds %d bytes", IDsTensor, start, end, len(data))
	}

	// Bound both dimensions by the data actually present before multiplying.
	maxElems := int64((end - start) / elemBytes)
	rows64, cols64 := entry.Shape[0], entry.Shape[1]
	if cols64 > maxElems || (cols64 > 0 && rows64 > maxElems/cols64) || (cols64 == 0 && rows64 > maxEmptyRows) {
		return nil, fmt.Errorf("safetensors: tensor %q shape %v does not fit %d data bytes", IDsTensor, entry.Shape, end-start)
	}

	rows, cols := int(rows64), int(cols64)
	if end-start != rows*cols*elemBytes {
		return nil, fmt.Errorf("safetensors: tensor %q data [%d:%d] does not fit shape %v in %d bytes",
			IDsTensor, start, end, entry.Shape, len(data))
	}

	buf := data[start:end]
	out := make([][]int64, rows)
	for i := range out {
		seq := make([]int64, cols)
		for j := range seq {
			off := (i*cols + j) * elemBytes
			if elemBytes == 8 {
				seq[j] = int64(binary.LittleEndian.Uint64(buf[off:])) //nolint:gosec // Two's complement round-trips.
			} else {
				seq[j] = int64(int32(binary.LittleEndian.Uint32(buf[off:]))) //nolint:gosec // Two's complement round-trips.
			}
		}
		out[i] = seq
	}

	return out, nil
}

// validateEntry checks dtype, shape and offsets and returns the element
// width in bytes.
func validateEntry(entry tensorHeader) (int, error) {
	var elemBytes int
	switch strings.ToUpper(entry.DType) {
	case dtypeI64:
		elemBytes = 8
	case dtypeI32:
		elemBytes = 4
	default:
		return 0, fmt.Errorf("safetensors: tensor %q has unsupported dtype %q", IDsTensor, entry.DType)
	}

	if len(entry.Shape) != 2 {
		return 0, fmt.Errorf("safetensors: tensor %q has shape %v, want [rows, seq_len]", IDsTensor, entry.Shape)
	}
	for _, d := range entry.Shape {
		if d < 0 {
			return 0, fmt.Errorf("safetensors: tensor %q has negative shape dimension in %v", IDsTensor, entry.Shape)
		}
	}

	if entry.Offsets[0] < 0 || entry.Offsets[1] < entry.Offsets[0] {
		return 0, errors.New("safetensors: invalid data offsets")
	}

	return elemBytes, nil
}
