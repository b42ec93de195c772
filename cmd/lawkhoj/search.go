package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lawkhoj/lawkhoj/internal/embedder"
	"github.com/lawkhoj/lawkhoj/internal/retrieval"
	"github.com/lawkhoj/lawkhoj/internal/vecindex"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

func newSearchCmd() *cobra.Command {
	var (
		queryType     string
		limit         int
		acts          []string
		era           string
		domains       []string
		offenceOnly   bool
		caselaw       bool
		diversity     float64
		preferCurrent bool
		rerank        bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Run a hybrid query against the vector index",
		Long: `Search fuses a dense semantic leg and a sparse keyword leg over the
index. The query type picks the fusion weight profile; when no --type
is given it is inferred from the query surface. A degraded response
means one retrieval leg was unavailable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
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

			query := strings.Join(args, " ")
			qt := types.QueryType(queryType)
			if queryType == "" {
				qt = retrieval.DetectQueryType(query)
			}

			var filter *vecindex.Filter
			if era != "" {
				filter = vecindex.EraFilter(types.Era(era))
			}
			if len(acts) > 0 || len(domains) > 0 || offenceOnly {
				if filter == nil {
					filter = &vecindex.Filter{}
				}
				filter.ActCodes = acts
				filter.Domains = domains
				filter.OffenceOnly = offenceOnly
			}

			engine := retrieval.New(cfg, index, emb, embedder.NewJinaReranker(""), newLogger())
			resp, err := engine.Search(cmd.Context(), retrieval.Request{
				Query:          query,
				Type:           qt,
				Limit:          limit,
				Filter:         filter,
				PreferCurrent:  preferCurrent,
				IncludeCaselaw: caselaw,
				Diversity:      diversity,
				Rerank:         rerank,
			})
			if err != nil {
				return err
			}

			if resp.Degraded {
				fmt.Println("warning: one retrieval leg was unavailable, results are degraded")
			}
			fmt.Printf("%d results (type %s, dense %d, sparse %d, reranked %t, %s)\n",
				len(resp.Results), qt, resp.DenseHits, resp.SparseHit,
				resp.Reranked, resp.Duration.Round(timeUnit))

			for _, r := range resp.Results {
				p := r.Payload
				head := fmt.Sprintf("%s %s", p.ActCode, p.SectionNumber)
				if r.Caselaw {
					head = "caselaw " + p.Title
				}
				fmt.Printf("%2d. [%.4f] %s — %s\n", r.Rank, r.Score, head, p.Title)
				if p.Supersedes != "" {
					fmt.Printf("      supersedes %s\n", p.Supersedes)
				}
				if p.SupersededBy != "" {
					fmt.Printf("      superseded by %s\n", p.SupersededBy)
				}
				fmt.Printf("      %s\n", snippet(r.Text, 160))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&queryType, "type", "", "query type: section_lookup, conceptual, offence, general (inferred when empty)")
	cmd.Flags().IntVarP(&limit, "limit", "n", retrieval.DefaultLimit, "maximum results")
	cmd.Flags().StringSliceVar(&acts, "acts", nil, "restrict to act codes")
	cmd.Flags().StringVar(&era, "era", "", "restrict to an era: legacy or current")
	cmd.Flags().StringSliceVar(&domains, "domains", nil, "restrict to legal domains, e.g. offences_against_body")
	cmd.Flags().BoolVar(&offenceOnly, "offence-only", false, "restrict to offence sections")
	cmd.Flags().BoolVar(&caselaw, "caselaw", false, "include case-law results")
	cmd.Flags().Float64Var(&diversity, "diversity", 0, "act-level diversification in [0,1]")
	cmd.Flags().BoolVar(&preferCurrent, "prefer-current", false, "boost current-era statutes")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "apply the cross-encoder reranker when available")
	return cmd
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	cut := strings.LastIndex(text[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return text[:cut] + "..."
}
