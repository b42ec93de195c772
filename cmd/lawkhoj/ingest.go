package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lawkhoj/lawkhoj/internal/enrich"
	"github.com/lawkhoj/lawkhoj/internal/ingest"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// knownActs registers the law bodies the pipeline handles. Documents
// must declare one of these codes; attributes like the replaced act are
// fixed facts of the legislation, not document content.
var knownActs = map[string]types.Act{
	"IPC":  {Code: "IPC", Name: "Indian Penal Code", Year: 1860, Era: types.EraLegacy, Status: types.ActRepealed},
	"CRPC": {Code: "CRPC", Name: "Code of Criminal Procedure", Year: 1973, Era: types.EraLegacy, Status: types.ActRepealed},
	"IEA":  {Code: "IEA", Name: "Indian Evidence Act", Year: 1872, Era: types.EraLegacy, Status: types.ActRepealed},
	"BNS":  {Code: "BNS", Name: "Bharatiya Nyaya Sanhita", Year: 2023, Era: types.EraCurrent, Status: types.ActActive, Replaces: "IPC"},
	"BNSS": {Code: "BNSS", Name: "Bharatiya Nagarik Suraksha Sanhita", Year: 2023, Era: types.EraCurrent, Status: types.ActActive, Replaces: "CRPC"},
	"BSA":  {Code: "BSA", Name: "Bharatiya Sakshya Adhiniyam", Year: 2023, Era: types.EraCurrent, Status: types.ActActive, Replaces: "IEA"},
}

func newIngestCmd() *cobra.Command {
	var metadataDir string

	cmd := &cobra.Command{
		Use:   "ingest <document.json>...",
		Short: "Ingest block-extraction documents into the canonical store",
		Long: `Ingest runs the extraction pipeline on one or more block-extraction
JSON documents: block classification, cleaning, section parsing,
enrichment merge, validation, and the confidence-gated canonical write.
Documents are processed concurrently.

Enrichment metadata is looked up per act as <code>.yaml (lower-cased)
in the --metadata directory; a missing file skips the merge for that
act.`,
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

			inputs := make([]ingest.DocumentInput, 0, len(args))
			for _, path := range args {
				doc, err := ingest.LoadDocument(path)
				if err != nil {
					return err
				}
				act, ok := knownActs[strings.ToUpper(doc.ActCode)]
				if !ok {
					return fmt.Errorf("document %s declares unknown act %q", path, doc.ActCode)
				}

				input := ingest.DocumentInput{Act: &act, Document: doc}
				if metadataDir != "" {
					metaPath := filepath.Join(metadataDir, strings.ToLower(act.Code)+".yaml")
					if _, err := os.Stat(metaPath); err == nil {
						meta, err := enrich.Load(metaPath)
						if err != nil {
							return err
						}
						input.Metadata = meta
					}
				}
				inputs = append(inputs, input)
			}

			orch := ingest.New(cfg, store, newLogger())
			reports, err := orch.IngestAll(cmd.Context(), inputs)
			if err != nil {
				return err
			}

			for _, r := range reports {
				fmt.Printf("%s: %d sections found, %d stored, %d queued for review, %d skipped, %d sub-sections, %d mappings (%s)\n",
					r.ActCode, r.SectionsFound, r.SectionsStored, r.SectionsQueued,
					r.SectionsSkipped, r.SubSections, r.Mappings, r.Duration.Round(timeUnit))
				for _, e := range r.Errors {
					fmt.Printf("  error: %s\n", e)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metadataDir, "metadata", "", "directory of per-act enrichment metadata files")
	return cmd
}
