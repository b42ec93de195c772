// Package ingest orchestrates the document-to-store pipeline: block
// classification, text cleaning, section parsing, enrichment merge,
// offence classification, validation, and the gated canonical write.
// Extraction defects surface as lowered confidence and review-queue
// entries, never as pipeline errors; only infrastructure failures abort
// a document.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lawkhoj/lawkhoj/internal/cleaner"
	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/internal/enrich"
	"github.com/lawkhoj/lawkhoj/internal/extractor"
	"github.com/lawkhoj/lawkhoj/internal/secparser"
	"github.com/lawkhoj/lawkhoj/internal/storage"
	"github.com/lawkhoj/lawkhoj/internal/validator"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// DocumentInput is one document handed to the orchestrator
type DocumentInput struct {
	Act      *types.Act
	Document *types.Document
	Metadata *enrich.Metadata // Optional enrichment; nil skips the merge
}

// Orchestrator runs the ingestion pipeline
type Orchestrator struct {
	cfg       *config.Config
	store     storage.Store
	extractor *extractor.Extractor
	cleaner   *cleaner.Cleaner
	validator *validator.Validator
	merger    *enrich.Merger
	logger    *slog.Logger
}

// New creates an orchestrator
func New(cfg *config.Config, store storage.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		extractor: extractor.New(cfg),
		cleaner:   cleaner.New(),
		validator: validator.New(cfg),
		merger:    enrich.New(),
		logger:    logger,
	}
}

// IngestAll ingests several documents concurrently. Documents are
// independent; the store serializes the actual writes.
func (o *Orchestrator) IngestAll(ctx context.Context, inputs []DocumentInput) ([]*types.IngestionReport, error) {
	reports := make([]*types.IngestionReport, len(inputs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			report, err := o.Ingest(gctx, input)
			if err != nil {
				return fmt.Errorf("document %s: %w", input.Act.Code, err)
			}
			mu.Lock()
			reports[i] = report
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Ingest runs the full pipeline for one document
func (o *Orchestrator) Ingest(ctx context.Context, input DocumentInput) (*types.IngestionReport, error) {
	start := time.Now()
	runID := uuid.NewString()
	report := &types.IngestionReport{ActCode: input.Act.Code}

	if err := o.store.UpsertAct(ctx, input.Act); err != nil {
		return nil, err
	}

	blocks := o.extractor.Classify(input.Document)
	rawBody := extractor.BodyText(blocks)
	cleanBody := o.cleaner.Clean(rawBody)

	parser := secparser.New()
	parsed := parser.Parse(cleanBody)
	report.SectionsFound = len(parsed.Sections)

	// Raw bodies per section for the audit trail and the review-queue
	// snapshots, matched by number from a parse of the uncleaned body.
	rawSections := make(map[string]string)
	for _, s := range parser.Parse(rawBody).Sections {
		rawSections[s.Number] = s.Body
	}

	chapterIDs, err := o.seedChapters(ctx, input.Act, parsed.Chapters, o.chapterEnrichment(parsed, input.Metadata))
	if err != nil {
		return nil, err
	}

	// Transition rows accumulate document-wide so the split override
	// can see every claim on an old reference before anything persists.
	var pendingMappings []*types.TransitionMapping
	claims := make(map[string]int)

	for _, ps := range parsed.Sections {
		stored, queued, subCount, refs, err := o.ingestSection(ctx, input, ps, chapterIDs, runID, rawSections[ps.Number])
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("section %s: %v", ps.Number, err))
			continue
		}
		if stored {
			report.SectionsStored++
			report.SubSections += subCount
		} else {
			report.SectionsSkipped++
		}
		if queued {
			report.SectionsQueued++
		}
		for _, m := range refs {
			pendingMappings = append(pendingMappings, m)
			claims[m.OldSection]++
		}
	}

	for _, m := range pendingMappings {
		if claims[m.OldSection] > 1 {
			m.Type = types.TransitionSplit
		}
		if err := o.store.UpsertMapping(ctx, m); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("mapping %s -> %s: %v", m.OldSection, m.NewSection, err))
			continue
		}
		report.Mappings++
	}

	report.Duration = time.Since(start)
	o.logger.Info("document ingested",
		"act", input.Act.Code,
		"run", runID,
		"found", report.SectionsFound,
		"stored", report.SectionsStored,
		"queued", report.SectionsQueued,
		"skipped", report.SectionsSkipped,
		"mappings", report.Mappings,
		"errors", len(report.Errors),
		"duration", report.Duration)
	return report, nil
}

func (o *Orchestrator) seedChapters(ctx context.Context, act *types.Act, chapters []secparser.ParsedChapter, meta map[string]enrich.SectionMeta) (map[string]int64, error) {
	ids := make(map[string]int64, len(chapters))
	for _, pc := range chapters {
		ch := &types.Chapter{
			ActID:   act.ID,
			Number:  pc.Number,
			Ordinal: pc.Ordinal,
			Title:   pc.Title,
		}
		if m, ok := meta[pc.Number]; ok {
			ch.Domain = m.Domain
			if ch.Title == "" {
				ch.Title = m.ChapterTitle
			}
		}
		if err := o.store.UpsertChapter(ctx, ch); err != nil {
			return nil, err
		}
		ids[pc.Number] = ch.ID
	}
	return ids, nil
}

// chapterEnrichment lifts the chapter-level fields carried on the
// per-section enrichment records up to their chapters. The first
// section in a chapter that carries a value wins; the parsed chapter
// title is never overwritten by metadata.
func (o *Orchestrator) chapterEnrichment(parsed *secparser.Result, meta *enrich.Metadata) map[string]enrich.SectionMeta {
	out := make(map[string]enrich.SectionMeta)
	if meta == nil {
		return out
	}
	for _, ps := range parsed.Sections {
		if ps.Chapter == "" {
			continue
		}
		rec, ok := o.merger.Lookup(meta, ps.Number)
		if !ok || (rec.ChapterTitle == "" && rec.Domain == "") {
			continue
		}
		cur := out[ps.Chapter]
		if cur.ChapterTitle == "" {
			cur.ChapterTitle = rec.ChapterTitle
		}
		if cur.Domain == "" {
			cur.Domain = rec.Domain
		}
		out[ps.Chapter] = cur
	}
	return out
}

// ingestSection validates one parsed section and writes its bundle.
// Returns whether the section entered the canonical store, whether it
// was queued for review, the sub-section count, and the inactive
// transition rows implied by its enrichment references.
func (o *Orchestrator) ingestSection(
	ctx context.Context,
	input DocumentInput,
	ps secparser.ParsedSection,
	chapterIDs map[string]int64,
	runID string,
	rawText string,
) (stored bool, queued bool, subCount int, mappings []*types.TransitionMapping, err error) {
	// The raw parse may miss a section the clean parse found; the
	// cleaned body is then the best available pre-clean snapshot.
	if rawText == "" {
		rawText = ps.Body
	}
	var meta enrich.SectionMeta
	var hasMeta bool
	if input.Metadata != nil {
		meta, hasMeta = o.merger.Lookup(input.Metadata, ps.Number)
	}

	offence := ClassifyOffence(ps.Body)

	vreport := o.validator.Validate(validator.Input{
		Number:           ps.Number,
		Title:            ps.Title,
		Body:             ps.Body,
		NumberedClauses:  countNumbered(ps.Subs),
		Flags:            ps.Flags,
		StructureSignals: cleaner.VerifyStructure(ps.Body, ps.Flags),
		Offence:          offence,
	})

	section := &types.Section{
		ActID:      input.Act.ID,
		Number:     ps.Number,
		Title:      ps.Title,
		Text:       ps.Body,
		Status:     types.SectionActive,
		Era:        input.Act.Era,
		ChapterID:  chapterIDs[ps.Chapter],
		Offence:    offence,
		Structure:  ps.Flags,
		Confidence: vreport.Confidence,
	}
	if n, sfx, ok := types.ParseSectionNumber(ps.Number); ok {
		section.NumberInt = n
		section.NumberSfx = sfx
	}

	bundle := &storage.SectionBundle{
		Section: section,
		Stored:  vreport.Confidence >= o.cfg.Validation.WriteThreshold,
		Audit: &storage.AuditRecord{
			RunID:            runID,
			ActID:            input.Act.ID,
			SectionNumber:    ps.Number,
			ChecksRun:        len(vreport.Checks),
			ChecksPassed:     len(vreport.Checks) - len(vreport.NoiseCategories),
			Confidence:       vreport.Confidence,
			NoiseCategories:  vreport.NoiseCategories,
			RawLength:        len(rawText),
			CleanLength:      len(ps.Body),
			FlaggedForReview: vreport.NeedsReview,
		},
	}

	if bundle.Stored {
		for i, sub := range ps.Subs {
			bundle.Subs = append(bundle.Subs, types.SubSection{
				Label:    sub.Label,
				Kind:     sub.Kind,
				Text:     sub.Text,
				Position: i,
			})
		}
	}

	if vreport.NeedsReview {
		reason := "confidence below review threshold"
		if len(vreport.NoiseCategories) > 0 {
			reason = vreport.NoiseCategories[0]
		}
		bundle.Review = &storage.ReviewEntry{
			ActID:         input.Act.ID,
			SectionNumber: ps.Number,
			RawText:       rawText,
			CleanText:     ps.Body,
			Reason:        reason,
			Confidence:    vreport.Confidence,
			Status:        storage.ReviewPending,
		}
	}

	if err := o.store.WriteSectionBundle(ctx, bundle); err != nil {
		return false, false, 0, nil, err
	}

	// Transition rows only for sections that made it into the store,
	// and only when enrichment names old-law references.
	if bundle.Stored && hasMeta && input.Act.Replaces != "" && len(meta.OldRefs) > 0 {
		oldAct, err := o.store.GetActByCode(ctx, input.Act.Replaces)
		if err == nil {
			for _, ref := range meta.OldRefs {
				mappings = append(mappings, &types.TransitionMapping{
					OldActID:     oldAct.ID,
					OldSection:   ref,
					NewActID:     input.Act.ID,
					NewSectionID: section.ID,
					NewSection:   section.Number,
					Type:         types.TransitionEquivalent,
				})
			}
		} else {
			o.logger.Warn("old act not ingested yet, skipping transition rows",
				"act", input.Act.Code, "replaces", input.Act.Replaces)
		}
	}

	return bundle.Stored, bundle.Review != nil, len(bundle.Subs), mappings, nil
}

func countNumbered(subs []secparser.ParsedSub) int {
	n := 0
	for _, s := range subs {
		if s.Kind == types.SubNumbered {
			n++
		}
	}
	return n
}
