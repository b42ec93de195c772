package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lawkhoj/lawkhoj/internal/embedder"
	"github.com/lawkhoj/lawkhoj/internal/transition"
	"github.com/lawkhoj/lawkhoj/internal/vecindex"
)

func newActivateCmd() *cobra.Command {
	var skipSpotCheck bool

	cmd := &cobra.Command{
		Use:   "activate <old-act> <new-act>",
		Short: "Activate the transition mappings between two acts",
		Long: `Activate verifies the pending transition mappings of one act pair
against the safety assertions and, only if every assertion holds,
activates all of them in a single transaction. Any failed assertion
aborts the run with zero activations.

The similarity spot-check needs an embedding provider; it flags
suspicious pairs for review but never blocks activation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			logger := newLogger()

			var emb embedder.Embedder
			var index *vecindex.Index
			if !skipSpotCheck {
				emb, err = embedder.NewFromEnv()
				if err != nil {
					logger.Warn("no embedding provider, skipping similarity spot-check", "error", err)
				}
				// Indexed vectors spare the spot-check its embedding calls
				index, err = vecindex.New(flagIndex)
				if err != nil {
					logger.Warn("index unavailable, spot-check will embed section texts", "error", err)
				} else {
					defer func() { _ = index.Close() }()
				}
			}

			activator := transition.New(store, index, emb, logger)
			report, err := activator.Activate(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("activated %d mappings %s -> %s (%s)\n",
				report.TotalActive, args[0], args[1], report.Duration.Round(timeUnit))
			for tier, n := range report.PerTier {
				fmt.Printf("  %-12s %d\n", tier, n)
			}
			for _, flag := range report.SimilarityFlags {
				fmt.Printf("  spot-check: %s\n", flag)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipSpotCheck, "skip-spot-check", false, "skip the embedding similarity spot-check")
	return cmd
}
