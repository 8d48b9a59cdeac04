package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/go-seqprep/internal/assets"
	"github.com/example/go-seqprep/internal/config"
	"github.com/spf13/cobra"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Tokenizer model acquisition and verification commands",
	}

	cmd.AddCommand(newModelDownloadCmd())
	cmd.AddCommand(newModelVerifyCmd())
	return cmd
}

func newModelDownloadCmd() *cobra.Command {
	var (
		repo    string
		outDir  string
		token   string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a sentencepiece tokenizer model from Hugging Face",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if token == "" {
				token = os.Getenv("HF_TOKEN")
			}

			err = assets.Download(cmd.Context(), assets.DownloadOptions{
				Repo:    repo,
				OutDir:  firstNonEmpty(outDir, modelDir(cfg)),
				Token:   token,
				BaseURL: baseURL,
				Stdout:  cmd.OutOrStdout(),
			})
			if err != nil {
				return fmt.Errorf("model download failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "hf-repo", assets.DefaultRepo, "Hugging Face repository holding the tokenizer model")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for model files (default: directory of paths.tokenizer_model, else models)")
	cmd.Flags().StringVar(&token, "hf-token", "", "Hugging Face token (falls back to HF_TOKEN env var)")
	cmd.Flags().StringVar(&baseURL, "base-url", assets.DefaultBaseURL, "Hugging Face endpoint")

	return cmd
}

func newModelVerifyCmd() *cobra.Command {
	var (
		dir       string
		checkOnly bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recheck downloaded tokenizer models against the lock manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return assets.Verify(assets.VerifyOptions{
				Dir:        firstNonEmpty(dir, modelDir(cfg)),
				LoadModels: !checkOnly,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding the lock manifest (default: as for download)")
	cmd.Flags().BoolVar(&checkOnly, "checksum-only", false, "Skip parsing sentencepiece models")

	return cmd
}

// modelDir is where tokenizer models live by default.
func modelDir(cfg config.Config) string {
	if cfg.Paths.TokenizerModel != "" {
		return filepath.Dir(cfg.Paths.TokenizerModel)
	}
	return "models"
}
