package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/go-seqprep/internal/config"
	"github.com/example/go-seqprep/internal/text"
	"github.com/example/go-seqprep/internal/tokenizer"
	"github.com/example/go-seqprep/internal/vocab"
	"github.com/spf13/cobra"
)

type buildVocabOptions struct {
	Corpus  string
	Source  text.CorpusOptions
	MaxSize int
	MinFreq int
	OutDir  string
}

func newBuildVocabCmd() *cobra.Command {
	var opts buildVocabOptions

	cmd := &cobra.Command{
		Use:   "build-vocab",
		Short: "Count corpus tokens and write vocab.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			path, v, err := runBuildVocab(cfg, opts, cmd.InOrStdin())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d entries)\n", path, v.Len())
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Corpus, "corpus", "", "Corpus file (.txt, .jsonl, .parquet) or '-' for stdin")
	cmd.Flags().StringVar(&opts.Source.Format, "corpus-format", "", "Override corpus format detection (text|jsonl|parquet)")
	cmd.Flags().StringVar(&opts.Source.Field, "field", text.DefaultField, "JSONL field holding the sentence")
	cmd.Flags().BoolVar(&opts.Source.SplitSentences, "split-sentences", false, "Split each record into sentences")
	cmd.Flags().IntVar(&opts.MaxSize, "max-size", 0, "Maximum vocabulary size (default vocab.max_size)")
	cmd.Flags().IntVar(&opts.MinFreq, "min-freq", 0, "Minimum token frequency (default vocab.min_freq)")
	cmd.Flags().StringVar(&opts.OutDir, "out", "", "Output directory (default paths.vocab_dir)")

	return cmd
}

func runBuildVocab(cfg config.Config, opts buildVocabOptions, stdin io.Reader) (string, *vocab.Vocabulary, error) {
	if opts.Corpus == "" {
		return "", nil, errors.New("--corpus is required")
	}

	sentences, err := readSentences(opts.Corpus, opts.Source, stdin)
	if err != nil {
		return "", nil, err
	}

	tok, err := tokenizer.New(cfg.TokenizerOptions())
	if err != nil {
		return "", nil, err
	}

	v, err := vocab.Build(sentences, tok, firstNonZero(opts.MaxSize, cfg.Vocab.MaxSize),
		vocab.WithMinFrequency(firstNonZero(opts.MinFreq, cfg.Vocab.MinFreq)),
		vocab.WithLogger(slog.Default()),
	)
	if err != nil {
		return "", nil, err
	}

	path, err := vocab.Save(v, firstNonEmpty(opts.OutDir, cfg.Paths.VocabDir))
	if err != nil {
		return "", nil, err
	}

	slog.Info("vocabulary written",
		slog.String("path", path),
		slog.Int("sentences", len(sentences)),
		slog.Int("size", v.Len()),
	)

	return path, v, nil
}

// readSentences reads a corpus, treating "-" as plain text on stdin.
func readSentences(path string, opts text.CorpusOptions, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return text.ReadLines(stdin, opts)
	}
	return text.ReadCorpus(path, opts)
}
