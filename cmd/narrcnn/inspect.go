package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kratzket/try-git/internal/engine/sequence"
	"github.com/kratzket/try-git/internal/pipeline"
)

var vocabOut string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load and preprocess the data, then print corpus statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyDataFlags(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		p := pipeline.New(cfg, nil, pipeline.WithLogger(logger))
		prep, st, err := p.Inspect(cmd.Context())
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), st, cfg.Prep.MaxLen)

		if vocabOut == "" {
			return nil
		}
		f, err := os.Create(vocabOut)
		if err != nil {
			return fmt.Errorf("inspect: create vocabulary file: %w", err)
		}
		if err := prep.Engine.Tokenizer().WriteVocab(f); err != nil {
			f.Close()
			return fmt.Errorf("inspect: write vocabulary: %w", err)
		}
		return f.Close()
	},
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&trainPath, "train", "", "training split (overrides data.train_path)")
	f.StringVar(&validPath, "valid", "", "validation split (overrides data.valid_path)")
	f.StringVar(&vocabOut, "vocab-out", "", "write the fitted vocabulary to this file")
}

func printStats(w io.Writer, st pipeline.Stats, maxLen int) {
	fmt.Fprintf(w, "train records:  %s\n", humanize.Comma(int64(st.TrainRecords)))
	fmt.Fprintf(w, "valid records:  %s\n", humanize.Comma(int64(st.ValidRecords)))
	fmt.Fprintf(w, "blank labels:   %s (dropped)\n", humanize.Comma(int64(st.DroppedBlank)))
	fmt.Fprintf(w, "vocabulary:     %s words\n", humanize.Comma(int64(st.Vocabulary)))
	printLengths(w, "train", st.TrainLengths, maxLen)
	printLengths(w, "valid", st.ValidLengths, maxLen)

	if len(st.Unseen) > 0 {
		fmt.Fprintln(w, "validation labels unseen in training (dropped):")
		for _, label := range sortedLabels(st.Unseen) {
			fmt.Fprintf(w, "  %s: %d\n", label, st.Unseen[label])
		}
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tTRAIN\tVALID")
	for _, c := range st.Classes {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Label, c.Train, c.Valid)
	}
	tw.Flush()
}

func printLengths(w io.Writer, split string, ls sequence.LengthStats, maxLen int) {
	fmt.Fprintf(w, "%s lengths:  min %d, max %d, mean %.1f, empty %d, truncated at %d: %d\n",
		split, ls.Min, ls.Max, ls.Mean, ls.Empty, maxLen, ls.Truncated)
}

func sortedLabels(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
