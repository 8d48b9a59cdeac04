package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/example/go-seqprep/internal/bench"
	"github.com/example/go-seqprep/internal/text"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		vocabPath     string
		input         string
		runs          int
		warmup        int
		format        string
		minThroughput float64
		cpuprofile    string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark encoding throughput",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if input == "" {
				return errors.New("--input is required for bench")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			enc, err := loadEncoder(cfg, firstNonEmpty(vocabPath, cfg.Paths.VocabDir), cfg.Encode.SeqLen)
			if err != nil {
				return err
			}

			sentences, err := readSentences(input, text.CorpusOptions{}, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if cpuprofile != "" {
				f, err := os.Create(cpuprofile) //nolint:gosec // Profile path is user supplied.
				if err != nil {
					return fmt.Errorf("create cpu profile: %w", err)
				}
				defer func() { _ = f.Close() }()

				if err := pprof.StartCPUProfile(f); err != nil {
					return fmt.Errorf("start cpu profile: %w", err)
				}
				defer pprof.StopCPUProfile()
			}

			results, err := bench.Run(cmd.Context(), runs, warmup, func(ctx context.Context) (int, error) {
				ids, err := enc.EncodeParallel(ctx, sentences, cfg.Encode.Workers)
				return len(ids), err
			})
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results))
			if format == "json" {
				bench.FormatJSON(results, stats, cmd.OutOrStdout())
			} else {
				bench.FormatTable(results, stats, cmd.OutOrStdout())
			}

			return bench.CheckThroughputThreshold(bench.MeanThroughput(results), minThroughput)
		},
	}

	cmd.Flags().StringVar(&vocabPath, "vocab", "", "vocab.json or its directory (default paths.vocab_dir)")
	cmd.Flags().StringVar(&input, "input", "", "Sentences file (.txt, .jsonl, .parquet) or '-' for stdin")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of measured runs")
	cmd.Flags().IntVar(&warmup, "warmup", 1, "Number of unmeasured warmup runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")
	cmd.Flags().Float64Var(&minThroughput, "min-throughput", 0, "Fail if mean sentences/s falls below this (0 disables)")
	cmd.Flags().StringVar(&cpuprofile, "cpuprofile", "", "Write a CPU profile of the measured runs")

	return cmd
}
