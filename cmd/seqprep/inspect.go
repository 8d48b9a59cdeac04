package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/example/go-seqprep/internal/vocab"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var (
		vocabPath string
		top       int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print vocabulary size and its most frequent entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			v, err := vocab.Load(firstNonEmpty(vocabPath, cfg.Paths.VocabDir))
			if err != nil {
				return err
			}

			return writeInspect(cmd.OutOrStdout(), v, top)
		},
	}

	cmd.Flags().StringVar(&vocabPath, "vocab", "", "vocab.json or its directory (default paths.vocab_dir)")
	cmd.Flags().IntVar(&top, "top", 20, "Number of entries to list (0 lists all)")

	return cmd
}

func writeInspect(w io.Writer, v *vocab.Vocabulary, top int) error {
	if _, err := fmt.Fprintf(w, "size: %d\n", v.Len()); err != nil {
		return err
	}

	n := v.Len()
	if top > 0 && top < n {
		n = top
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTOKEN\tCOUNT")
	for i := range n {
		tok, _ := v.Token(i)
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i, tok, v.Count(i))
	}

	return tw.Flush()
}
