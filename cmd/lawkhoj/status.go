package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lawkhoj/lawkhoj/internal/vecindex"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the canonical store and vector index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			acts, err := store.ListActs(ctx)
			if err != nil {
				return err
			}
			for _, act := range acts {
				sections, err := store.ListSectionsByAct(ctx, act.ID)
				if err != nil {
					return err
				}
				indexed := 0
				for _, s := range sections {
					if s.Indexed {
						indexed++
					}
				}
				reviews, err := store.ListPendingReviews(ctx, act.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%-5s %-36s %4d sections, %4d indexed, %3d pending review\n",
					act.Code, act.Name, len(sections), indexed, len(reviews))
			}

			inactive, err := store.ListInactiveMappings(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("transition mappings pending activation: %d\n", len(inactive))

			index, err := vecindex.New(flagIndex)
			if err != nil {
				return err
			}
			defer func() { _ = index.Close() }()

			for _, coll := range []string{
				vecindex.CollectionStatutes,
				vecindex.CollectionSubSections,
				vecindex.CollectionCaselaw,
			} {
				n, err := index.Count(ctx, coll)
				if err != nil {
					return err
				}
				fmt.Printf("index %-18s %d points\n", coll, n)
			}
			return nil
		},
	}
}
