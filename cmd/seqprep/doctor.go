package main

import (
	"errors"
	"fmt"

	"github.com/example/go-seqprep/internal/config"
	"github.com/example/go-seqprep/internal/doctor"
	"github.com/example/go-seqprep/internal/tokenizer"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var skipVocab bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local tokenizer and vocabulary checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			kind, err := tokenizer.NormalizeKind(cfg.Tokenizer.Kind)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "tokenizer kind: %s\n", kind)

			dcfg := doctor.Config{
				Tokenizer:    tokenizerCheck(cfg),
				VocabPath:    cfg.Paths.VocabDir,
				SkipVocab:    skipVocab,
				MaxVocabSize: cfg.Vocab.MaxSize,
				WritableDirs: []string{cfg.Paths.VocabDir},
			}
			if kind == tokenizer.KindSentencePiece {
				dcfg.TokenizerModelPath = cfg.Paths.TokenizerModel
			}

			result := doctor.Run(dcfg, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipVocab, "skip-vocab", false, "Skip the vocabulary check (before build-vocab has run)")

	return cmd
}

// tokenizerCheck builds the configured tokenizer and describes it.
func tokenizerCheck(cfg config.Config) doctor.TokenizerFunc {
	return func() (string, error) {
		opts := cfg.TokenizerOptions()

		tok, err := tokenizer.New(opts)
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case *tokenizer.TikToken:
			return "tiktoken " + t.Name(), nil
		case *tokenizer.SentencePiece:
			return "sentencepiece " + opts.ModelPath, nil
		default:
			kind, _ := tokenizer.NormalizeKind(opts.Kind)
			return kind, nil
		}
	}
}
