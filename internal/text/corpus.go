package text

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

// Corpus formats understood by ReadCorpus.
const (
	FormatText    = "text"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// DefaultField is the JSONL key holding the sentence text.
const DefaultField = "text"

// maxLineBytes bounds a single corpus line.
const maxLineBytes = 4 << 20

// ErrUnsupportedFormat is returned for corpus files ReadCorpus cannot parse.
var ErrUnsupportedFormat = errors.New("unsupported corpus format")

// CorpusOptions controls how a corpus is read.
type CorpusOptions struct {
	// Format overrides detection by file extension.
	Format string
	// Field is the JSONL key to read; empty means DefaultField.
	Field string
	// SplitSentences breaks each record into sentences before returning it.
	SplitSentences bool
	// KeepBlank returns blank records (and JSONL objects without Field) as
	// empty strings so results stay aligned with the input records.
	KeepBlank bool
}

// parquetSentence is the row layout of a parquet corpus: one UTF8 column
// named "text".
type parquetSentence struct {
	Text string `parquet:"name=text, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// DetectFormat maps a corpus path to its format by extension. Anything that
// is not .jsonl/.ndjson or .parquet is read as plain text.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".parquet":
		return FormatParquet
	default:
		return FormatText
	}
}

// ReadCorpus reads every sentence of the corpus at path. The path "-" reads
// plain text from stdin.
func ReadCorpus(path string, opts CorpusOptions) ([]string, error) {
	if path == "-" {
		return ReadLines(os.Stdin, opts)
	}

	format := opts.Format
	if format == "" {
		format = DetectFormat(path)
	}

	switch format {
	case FormatParquet:
		records, err := readParquet(path)
		if err != nil {
			return nil, err
		}
		return collect(records, opts), nil
	case FormatText, FormatJSONL:
		f, err := os.Open(path) //nolint:gosec // Reading a user-specified corpus is intentional.
		if err != nil {
			return nil, fmt.Errorf("open corpus: %w", err)
		}
		defer func() { _ = f.Close() }()

		if format == FormatJSONL {
			return ReadJSONL(f, opts)
		}
		return ReadLines(f, opts)
	default:
		return nil, fmt.Errorf("%w %q (expected %s|%s|%s)",
			ErrUnsupportedFormat, format, FormatText, FormatJSONL, FormatParquet)
	}
}

// ReadLines reads one sentence per line. Blank lines are dropped unless
// opts.KeepBlank is set.
func ReadLines(r io.Reader, opts CorpusOptions) ([]string, error) {
	var records []string

	err := scanLines(r, func(_ int, line string) error {
		records = append(records, line)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return collect(records, opts), nil
}

// ReadJSONL reads the opts.Field string of every JSON object line. Lines
// without the field are skipped.
func ReadJSONL(r io.Reader, opts CorpusOptions) ([]string, error) {
	field := opts.Field
	if field == "" {
		field = DefaultField
	}

	var records []string

	err := scanLines(r, func(lineNo int, line string) error {
		if strings.TrimSpace(line) == "" {
			return nil
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		raw, ok := obj[field]
		if !ok {
			if opts.KeepBlank {
				records = append(records, "")
			}
			return nil
		}

		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("line %d: field %q is not a string: %w", lineNo, field, err)
		}

		records = append(records, s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return collect(records, opts), nil
}

func readParquet(path string) ([]string, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet corpus: %w", err)
	}
	defer func() { _ = fr.Close() }()

	pr, err := reader.NewParquetReader(fr, new(parquetSentence), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]parquetSentence, pr.GetNumRows())
	if len(rows) == 0 {
		return nil, nil
	}

	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	records := make([]string, len(rows))
	for i, row := range rows {
		records[i] = row.Text
	}

	return records, nil
}

func scanLines(r io.Reader, fn func(lineNo int, line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := fn(lineNo, sc.Text()); err != nil {
			return err
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}

	return nil
}

// collect normalizes records, drops or keeps empty ones and optionally
// splits them.
func collect(records []string, opts CorpusOptions) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		s, err := Normalize(rec)
		if err != nil {
			if opts.KeepBlank {
				out = append(out, "")
			}
			continue
		}
		if opts.SplitSentences {
			out = append(out, SplitSentences(s)...)
			continue
		}
		out = append(out, s)
	}
	return out
}
