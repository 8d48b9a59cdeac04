package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-seqprep/internal/config"
	"github.com/example/go-seqprep/internal/encoder"
	"github.com/example/go-seqprep/internal/server"
	"github.com/example/go-seqprep/internal/tokenizer"
	"github.com/example/go-seqprep/internal/vocab"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	envFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "seqprep",
		Short:         "Vocabulary building and fixed-length sequence encoding",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				EnvFile:    envFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Optional dotenv file (default ./.env when present)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newBuildVocabCmd())
	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newModelCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Vocab.MaxSize == 0 || activeCfg.Encode.SeqLen == 0 {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// loadEncoder loads the vocabulary at vocabPath and pairs it with the
// configured tokenizer.
func loadEncoder(cfg config.Config, vocabPath string, seqLen int) (*encoder.Encoder, error) {
	v, err := vocab.Load(vocabPath)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.New(cfg.TokenizerOptions())
	if err != nil {
		return nil, err
	}

	return encoder.New(v, tok, seqLen)
}

// firstNonZero returns override unless it is zero.
func firstNonZero(override, fallback int) int {
	if override != 0 {
		return override
	}
	return fallback
}

func firstNonEmpty(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
