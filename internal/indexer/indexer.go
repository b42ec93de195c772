// Package indexer moves stored sections into the vector index. It
// selects eligible sections, chunks them, embeds chunk texts in
// batches, and upserts the resulting points. A section is marked
// indexed in the canonical store only after its points land, so an
// interrupted run resumes from the unmarked sections.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lawkhoj/lawkhoj/internal/chunker"
	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/internal/embedder"
	"github.com/lawkhoj/lawkhoj/internal/storage"
	"github.com/lawkhoj/lawkhoj/internal/vecindex"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// Indexer drives the store-to-index pipeline
type Indexer struct {
	cfg     *config.Config
	store   storage.Store
	index   *vecindex.Index
	emb     embedder.Embedder
	chunker *chunker.Chunker
	logger  *slog.Logger
}

// New creates an indexer
func New(cfg *config.Config, store storage.Store, index *vecindex.Index, emb embedder.Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		cfg:     cfg,
		store:   store,
		index:   index,
		emb:     emb,
		chunker: chunker.New(cfg),
		logger:  logger,
	}
}

// IndexAct indexes every eligible, not-yet-indexed section of one act.
// Eligibility is the same confidence gate that admitted the section to
// the canonical store; sections that slipped below it after a
// re-extraction are skipped.
func (ix *Indexer) IndexAct(ctx context.Context, actCode string) (*types.IndexingReport, error) {
	start := time.Now()
	report := &types.IndexingReport{ActCode: actCode}

	act, err := ix.store.GetActByCode(ctx, actCode)
	if err != nil {
		return nil, err
	}

	sections, err := ix.store.ListSectionsByAct(ctx, act.ID)
	if err != nil {
		return nil, err
	}

	for _, section := range sections {
		if section.Confidence < ix.cfg.Validation.WriteThreshold {
			continue
		}
		report.Eligible++
		if section.Indexed {
			continue
		}

		points, err := ix.indexSection(ctx, act, section)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("section %s: %v", section.Number, err))
			ix.logger.Warn("section indexing failed",
				"act", actCode, "section", section.Number, "error", err)
			continue
		}

		if err := ix.store.MarkIndexed(ctx, section.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("section %s: mark indexed: %v", section.Number, err))
			continue
		}

		report.Indexed++
		report.PointsCreated += points
	}

	report.Duration = time.Since(start)
	ix.logger.Info("indexing run complete",
		"act", actCode,
		"eligible", report.Eligible,
		"indexed", report.Indexed,
		"points", report.PointsCreated,
		"errors", len(report.Errors),
		"duration", report.Duration)
	return report, nil
}

func (ix *Indexer) indexSection(ctx context.Context, act *types.Act, section *types.Section) (int, error) {
	subs, err := ix.store.ListSubSections(ctx, section.ID)
	if err != nil {
		return 0, fmt.Errorf("list sub-sections: %w", err)
	}

	payload, err := ix.buildPayload(ctx, act, section)
	if err != nil {
		return 0, fmt.Errorf("build payload: %w", err)
	}

	chunks := ix.chunker.Chunk(section, subs, payload)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced")
	}

	points := make([]vecindex.Point, len(chunks))
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		collection := vecindex.CollectionStatutes
		if ch.SubSectionID != 0 {
			collection = vecindex.CollectionSubSections
		}
		points[i] = vecindex.Point{
			ID:         vecindex.PointID(collection, ch.SectionID, ch.ChunkIndex),
			Collection: collection,
			Text:       ch.Text,
			Payload:    ch.Payload,
		}
		texts[i] = ch.Text
	}

	if err := ix.embedInto(ctx, texts, points); err != nil {
		return 0, err
	}

	// A re-extraction can shrink a section's chunk count; points beyond
	// the new count keep their old IDs and would survive the upsert.
	for _, coll := range []string{vecindex.CollectionStatutes, vecindex.CollectionSubSections} {
		if err := ix.index.DeleteSectionPoints(ctx, coll, act.Code, section.Number); err != nil {
			return 0, fmt.Errorf("delete stale points: %w", err)
		}
	}

	if err := ix.index.UpsertPoints(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert points: %w", err)
	}
	return len(points), nil
}

// embedInto fills point vectors by embedding texts in batches
func (ix *Indexer) embedInto(ctx context.Context, texts []string, points []vecindex.Point) error {
	batchSize := ix.cfg.Indexing.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	for offset := 0; offset < len(texts); offset += batchSize {
		end := offset + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := ix.emb.EmbedBatch(ctx, embedder.BatchRequest{
			Texts: texts[offset:end],
			Task:  embedder.TaskDocument,
		})
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", offset, err)
		}
		if len(resp.Embeddings) != end-offset {
			return fmt.Errorf("embed batch at %d: got %d vectors for %d texts",
				offset, len(resp.Embeddings), end-offset)
		}
		for i, emb := range resp.Embeddings {
			points[offset+i].Vector = emb.Vector
		}
	}
	return nil
}

// buildPayload denormalizes everything retrieval needs onto the point
func (ix *Indexer) buildPayload(ctx context.Context, act *types.Act, section *types.Section) (types.ChunkPayload, error) {
	payload := types.ChunkPayload{
		ActCode:       act.Code,
		Era:           act.Era,
		SectionNumber: section.Number,
		Title:         section.Title,
		IsOffence:     section.Offence.IsOffence,
		Cognizable:    section.Offence.Cognizable,
		Bailable:      section.Offence.Bailable,
		Punishment:    section.Offence.Punishment,
		Confidence:    section.Confidence,
	}

	if section.ChapterID != 0 {
		// Chapter context is optional; a missing chapter is not an
		// indexing failure.
		if sections, err := ix.store.LookupSection(ctx, act.Code, section.Number); err == nil && sections.Chapter != nil {
			payload.ChapterNumber = sections.Chapter.Number
			payload.ChapterTitle = sections.Chapter.Title
			payload.Domain = sections.Chapter.Domain
		}
	}

	// Supersession context from the best active mapping targeting this
	// section. Legacy sections instead record what superseded them.
	if act.Era == types.EraCurrent {
		if m, err := ix.store.BestActiveMapping(ctx, section.ID); err == nil {
			if oldAct := ix.actCodeByID(ctx, m.OldActID); oldAct != "" {
				payload.Supersedes = oldAct + " " + m.OldSection
				payload.TransitionTyp = m.Type
			}
		}
	} else if act.Era == types.EraLegacy {
		if mappings, err := ix.store.ActiveMappings(ctx, act.Code, section.Number); err == nil && len(mappings) > 0 {
			best := mappings[0]
			if newAct := ix.actCodeByID(ctx, best.NewActID); newAct != "" && best.NewSection != "" {
				payload.SupersededBy = newAct + " " + best.NewSection
				payload.TransitionTyp = best.Type
			}
		}
	}

	return payload, nil
}

func (ix *Indexer) actCodeByID(ctx context.Context, actID int64) string {
	acts, err := ix.store.ListActs(ctx)
	if err != nil {
		return ""
	}
	for _, a := range acts {
		if a.ID == actID {
			return a.Code
		}
	}
	return ""
}

// CaselawDocument is one judgment or order indexed into the case-law
// collection. Case law bypasses the statute pipeline: no section
// parsing, no confidence gate, chunked by paragraphs only.
type CaselawDocument struct {
	ID       int64  `json:"id"`
	Citation string `json:"citation"`
	Court    string `json:"court"`
	Title    string `json:"title"`
	Text     string `json:"text"`
}

// IndexCaselaw chunks and indexes one case-law document
func (ix *Indexer) IndexCaselaw(ctx context.Context, doc *CaselawDocument) (int, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return 0, fmt.Errorf("empty case-law document")
	}

	payload := types.ChunkPayload{
		ActCode:       doc.Court,
		Era:           types.EraOther,
		SectionNumber: doc.Citation,
		Title:         doc.Title,
		Confidence:    1.0,
	}

	var texts []string
	header := doc.Title + " (" + doc.Citation + ")\n"
	var current []string
	currentTokens := 0
	maxTokens := ix.cfg.Chunking.ChunkMaxTokens
	for _, p := range strings.Split(doc.Text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pTokens := types.EstimateTokens(p)
		if currentTokens > 0 && currentTokens+pTokens > maxTokens {
			texts = append(texts, header+strings.Join(current, "\n"))
			current = current[:0]
			currentTokens = 0
		}
		current = append(current, p)
		currentTokens += pTokens
	}
	if len(current) > 0 {
		texts = append(texts, header+strings.Join(current, "\n"))
	}

	points := make([]vecindex.Point, len(texts))
	for i, text := range texts {
		points[i] = vecindex.Point{
			ID:         vecindex.PointID(vecindex.CollectionCaselaw, doc.ID, i),
			Collection: vecindex.CollectionCaselaw,
			Text:       text,
			Payload:    payload,
		}
	}

	if err := ix.embedInto(ctx, texts, points); err != nil {
		return 0, err
	}
	if err := ix.index.UpsertPoints(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert caselaw points: %w", err)
	}
	return len(points), nil
}
