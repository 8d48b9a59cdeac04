package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/example/go-seqprep/internal/config"
	"github.com/example/go-seqprep/internal/dataset"
	"github.com/example/go-seqprep/internal/encoder"
	"github.com/example/go-seqprep/internal/text"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// defaultBatchSize is how many sentences one EncodeParallel call handles.
const defaultBatchSize = 1024

type encodeOptions struct {
	VocabPath string
	SeqLen    int
	Input     string
	Source    text.CorpusOptions
	Format    string
	Out       string
	Workers   int
	BatchSize int
	Progress  bool
	SkipBlank bool
}

func newEncodeCmd() *cobra.Command {
	var opts encodeOptions

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode sentences into fixed-length id sequences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return runEncode(cmd.Context(), cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.VocabPath, "vocab", "", "vocab.json or its directory (default paths.vocab_dir)")
	cmd.Flags().IntVar(&opts.SeqLen, "seq-len", 0, "Sequence length (default encode.seq_len)")
	cmd.Flags().StringVar(&opts.Input, "input", "-", "Sentences file (.txt, .jsonl, .parquet) or '-' for stdin")
	cmd.Flags().StringVar(&opts.Source.Format, "input-format", "", "Override input format detection (text|jsonl|parquet)")
	cmd.Flags().StringVar(&opts.Source.Field, "field", text.DefaultField, "JSONL field holding the sentence")
	cmd.Flags().StringVar(&opts.Format, "format", dataset.FormatJSON, "Output format (json|arrow|safetensors)")
	cmd.Flags().StringVar(&opts.Out, "out", "-", "Output path ('-' for stdout)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Encoding goroutines (default encode.workers)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", defaultBatchSize, "Sentences per encoding batch")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Show a progress bar on stderr")
	cmd.Flags().BoolVar(&opts.SkipBlank, "skip-blank", false, "Drop blank input lines instead of emitting all-padding rows")

	return cmd
}

func runEncode(ctx context.Context, cfg config.Config, opts encodeOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	format, err := dataset.NormalizeFormat(opts.Format)
	if err != nil {
		return err
	}

	enc, err := loadEncoder(cfg,
		firstNonEmpty(opts.VocabPath, cfg.Paths.VocabDir),
		firstNonZero(opts.SeqLen, cfg.Encode.SeqLen),
	)
	if err != nil {
		return err
	}

	// Rows stay aligned with input lines unless blank ones are skipped.
	source := opts.Source
	source.KeepBlank = !opts.SkipBlank

	sentences, err := readSentences(opts.Input, source, stdin)
	if err != nil {
		return err
	}

	var progress func(int)
	var bar *progressBar
	if opts.Progress {
		bar = newProgressBar(stderr, len(sentences))
		progress = bar.Add
	}

	start := time.Now()
	ids, err := encodeBatches(ctx, enc, sentences, firstNonZero(opts.Workers, cfg.Encode.Workers), opts.BatchSize, progress)
	if bar != nil {
		bar.Finish(err == nil)
	}
	if err != nil {
		return err
	}

	slog.Info("encoding complete",
		slog.Int("sentences", len(sentences)),
		slog.Int("seq_len", enc.SeqLen()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return writeOutput(opts.Out, stdout, func(w io.Writer) error {
		return dataset.Write(w, format, ids)
	})
}

// encodeBatches encodes sentences batchSize at a time, reporting each
// finished batch to progress when it is non-nil.
func encodeBatches(ctx context.Context, enc *encoder.Encoder, sentences []string, workers, batchSize int, progress func(int)) ([][]int64, error) {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}

	out := make([][]int64, 0, len(sentences))
	for start := 0; start < len(sentences); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+batchSize, len(sentences))
		ids, err := enc.EncodeParallel(ctx, sentences[start:end], workers)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)

		if progress != nil {
			progress(end - start)
		}
	}

	return out, nil
}

// progressBar renders encoding progress with mpb.
type progressBar struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

func newProgressBar(w io.Writer, total int) *progressBar {
	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(80))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Encoding: "),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
		),
	)

	return &progressBar{p: p, bar: bar}
}

// Add advances the bar by n sentences.
func (b *progressBar) Add(n int) { b.bar.IncrBy(n) }

// Finish completes the bar, or aborts it when ok is false, and waits for
// the final render.
func (b *progressBar) Finish(ok bool) {
	if ok {
		b.bar.SetTotal(-1, true)
	} else {
		b.bar.Abort(false)
	}
	b.p.Wait()
}

// writeOutput streams fn's output to outPath, or to stdout for "-".
func writeOutput(outPath string, stdout io.Writer, fn func(io.Writer) error) error {
	if outPath == "-" || outPath == "" {
		if stdout == nil {
			return fmt.Errorf("stdout writer is nil")
		}
		return fn(stdout)
	}

	f, err := os.Create(outPath) //nolint:gosec // Writing to a user-specified path is intentional.
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
