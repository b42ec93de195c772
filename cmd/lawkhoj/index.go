package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lawkhoj/lawkhoj/internal/embedder"
	"github.com/lawkhoj/lawkhoj/internal/indexer"
	"github.com/lawkhoj/lawkhoj/internal/vecindex"
)

func newIndexCmd() *cobra.Command {
	var caselawFiles []string

	cmd := &cobra.Command{
		Use:   "index <act>...",
		Short: "Populate the vector index from the canonical store",
		Long: `Index chunks and embeds every eligible stored section of the named
acts. Sections below the write threshold or already indexed are
skipped; a section is marked indexed only after its points are written,
so an interrupted run resumes where it stopped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			index, err := vecindex.New(flagIndex)
			if err != nil {
				return err
			}
			defer func() { _ = index.Close() }()

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return err
			}
			defer func() { _ = emb.Close() }()

			ix := indexer.New(cfg, store, index, emb, newLogger())
			for _, code := range args {
				report, err := ix.IndexAct(cmd.Context(), code)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %d eligible, %d indexed, %d points (%s)\n",
					report.ActCode, report.Eligible, report.Indexed,
					report.PointsCreated, report.Duration.Round(timeUnit))
				for _, e := range report.Errors {
					fmt.Printf("  error: %s\n", e)
				}
			}

			for _, path := range caselawFiles {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				var doc indexer.CaselawDocument
				if err := json.Unmarshal(data, &doc); err != nil {
					return fmt.Errorf("parse caselaw %s: %w", path, err)
				}
				points, err := ix.IndexCaselaw(cmd.Context(), &doc)
				if err != nil {
					return err
				}
				fmt.Printf("caselaw %s: %d points\n", doc.Citation, points)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&caselawFiles, "caselaw", nil, "case-law JSON files to index")
	return cmd
}
