// Package transition activates statute-transition mappings. Mappings
// enter the store inactive; activation assigns tiered confidence and
// flips them visible to collaborators, but only after a battery of
// corpus assertions passes. A citation layer that silently equated an
// old section with an unrelated new one would be worse than no mapping
// at all, so any failed assertion aborts the entire run before a single
// edge activates.
package transition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lawkhoj/lawkhoj/internal/embedder"
	"github.com/lawkhoj/lawkhoj/internal/storage"
	"github.com/lawkhoj/lawkhoj/internal/vecindex"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// Tier confidences by transition type. Modified and merged mappings
// carry a scope caveat because the target covers different ground than
// the source.
var tierConfidence = map[types.TransitionType]float64{
	types.TransitionEquivalent: 0.95,
	types.TransitionModified:   0.85,
	types.TransitionMerged:     0.85,
	types.TransitionNew:        0.90,
	types.TransitionDeleted:    0.90,
	types.TransitionSplit:      0.80,
}

// ScopeCaveat is attached to modified and merged mappings that arrive
// without their own scope note.
const ScopeCaveat = "scope differs from source provision; verify before citing"

const autoApprover = "auto:tier-table"

// Similarity spot-check bounds. An "equivalent" pair scoring below the
// floor, or a "modified" pair scoring above the ceiling, is suspicious
// enough to flag for human review, but embedding similarity is far too
// blunt to gate activation on.
const (
	equivalentSimilarityFloor = 0.35
	modifiedSimilarityCeiling = 0.97
)

// Activator runs mapping activation
type Activator struct {
	store  storage.Store
	index  *vecindex.Index   // Optional; lets the spot-check reuse indexed vectors
	emb    embedder.Embedder // Optional; nil disables the similarity spot-check
	logger *slog.Logger
}

// New creates an activator
func New(store storage.Store, index *vecindex.Index, emb embedder.Embedder, logger *slog.Logger) *Activator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activator{store: store, index: index, emb: emb, logger: logger}
}

// Activate runs the corpus assertions and, on success, activates every
// inactive mapping with its tier confidence in one transaction.
func (a *Activator) Activate(ctx context.Context, oldActCode, newActCode string) (*types.ActivationReport, error) {
	start := time.Now()

	oldAct, err := a.store.GetActByCode(ctx, oldActCode)
	if err != nil {
		return nil, fmt.Errorf("old act: %w", err)
	}
	newAct, err := a.store.GetActByCode(ctx, newActCode)
	if err != nil {
		return nil, fmt.Errorf("new act: %w", err)
	}

	inactive, err := a.store.ListInactiveMappings(ctx)
	if err != nil {
		return nil, err
	}

	// Assertions inspect the full edge set as it will stand after the
	// commit: freshly activated plus already active.
	pending := make([]*types.TransitionMapping, 0, len(inactive))
	for _, m := range inactive {
		if m.OldActID == oldAct.ID && m.NewActID == newAct.ID {
			pending = append(pending, m)
		}
	}
	if err := a.assertCorpus(ctx, oldAct, newAct, pending); err != nil {
		return nil, err
	}

	report := &types.ActivationReport{PerTier: make(map[types.TransitionType]int)}

	activations := make([]storage.MappingActivation, 0, len(pending))
	for _, m := range pending {
		confidence, ok := tierConfidence[m.Type]
		if !ok {
			return nil, fmt.Errorf("%w: mapping %d has unknown type %q", types.ErrInvariant, m.ID, m.Type)
		}
		act := storage.MappingActivation{
			MappingID:  m.ID,
			Confidence: confidence,
			ApprovedBy: autoApprover,
		}
		if (m.Type == types.TransitionModified || m.Type == types.TransitionMerged) && m.ScopeChange == "" {
			act.Note = ScopeCaveat
		}
		activations = append(activations, act)
		report.PerTier[m.Type]++
	}

	if err := a.store.ActivateMappings(ctx, activations); err != nil {
		return nil, fmt.Errorf("activation transaction: %w", err)
	}
	report.TotalActive = len(activations)

	if a.emb != nil {
		report.SimilarityFlags = a.spotCheck(ctx, oldAct, newAct, pending)
	}

	report.Duration = time.Since(start)
	a.logger.Info("mapping activation complete",
		"old_act", oldActCode,
		"new_act", newActCode,
		"activated", report.TotalActive,
		"flags", len(report.SimilarityFlags),
		"duration", report.Duration)
	return report, nil
}

// assertCorpus verifies the known ground-truth edges of the criminal-law
// transition and the structural invariants of every pending mapping.
// Any failure aborts activation wholesale.
func (a *Activator) assertCorpus(ctx context.Context, oldAct, newAct *types.Act, pending []*types.TransitionMapping) error {
	for _, m := range pending {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: mapping %s -> %s: %v", types.ErrInvariant, m.OldSection, m.NewSection, err)
		}
	}

	// The ground-truth battery applies to the IPC -> BNS transition;
	// other act pairs get only the structural checks above.
	if oldAct.Code != "IPC" || newAct.Code != "BNS" {
		return nil
	}

	all, err := a.edgeSet(ctx, oldAct.ID, pending)
	if err != nil {
		return err
	}

	// Murder: IPC 302 must map to BNS 103 and must not map to BNS 302,
	// which is "Snatching", the classic false-friend number collision.
	if !all["302->103"] {
		return fmt.Errorf("%w: IPC 302 (murder) is not mapped to BNS 103", types.ErrInvariant)
	}
	if all["302->302"] {
		return fmt.Errorf("%w: IPC 302 (murder) maps to BNS 302 (snatching)", types.ErrInvariant)
	}
	if sec, err := a.store.GetSection(ctx, newAct.ID, "302"); err == nil {
		if strings.Contains(strings.ToLower(sec.Title), "murder") {
			return fmt.Errorf("%w: BNS 302 title %q mentions murder; extraction is suspect", types.ErrInvariant, sec.Title)
		}
	}

	// Sedition: IPC 124A must reach BNS 152
	if !all["124A->152"] {
		return fmt.Errorf("%w: IPC 124A (sedition) is not mapped to BNS 152", types.ErrInvariant)
	}

	// Rape provisions split: IPC 376 must fan out to at least two rows
	if n := a.fanout(ctx, oldAct.ID, "376", pending); n < 2 {
		return fmt.Errorf("%w: IPC 376 has %d mapping rows, split requires at least 2", types.ErrInvariant, n)
	}

	return nil
}

// edgeSet collects "old->new" keys for the pending mappings plus every
// edge already active for the old act's known anchor sections.
func (a *Activator) edgeSet(ctx context.Context, oldActID int64, pending []*types.TransitionMapping) (map[string]bool, error) {
	edges := make(map[string]bool)
	for _, m := range pending {
		edges[m.OldSection+"->"+m.NewSection] = true
	}
	for _, anchor := range []string{"302", "124A", "376"} {
		existing, err := a.store.ListMappingsByOldRef(ctx, oldActID, anchor)
		if err != nil {
			return nil, err
		}
		for _, m := range existing {
			if m.Active {
				edges[m.OldSection+"->"+m.NewSection] = true
			}
		}
	}
	return edges, nil
}

func (a *Activator) fanout(ctx context.Context, oldActID int64, oldSection string, pending []*types.TransitionMapping) int {
	targets := make(map[string]bool)
	for _, m := range pending {
		if m.OldSection == oldSection {
			targets[m.NewSection] = true
		}
	}
	if existing, err := a.store.ListMappingsByOldRef(ctx, oldActID, oldSection); err == nil {
		for _, m := range existing {
			targets[m.NewSection] = true
		}
	}
	return len(targets)
}

// spotCheck compares the old and new section vectors of each activated
// mapping and flags pairs whose cosine similarity contradicts the
// claimed tier. Advisory only: flags go into the report, activation
// stands.
func (a *Activator) spotCheck(ctx context.Context, oldAct, newAct *types.Act, activated []*types.TransitionMapping) []string {
	var flags []string
	for _, m := range activated {
		if m.Type != types.TransitionEquivalent && m.Type != types.TransitionModified {
			continue
		}
		if m.NewSectionID == 0 {
			continue
		}

		oldSec, err := a.store.GetSection(ctx, oldAct.ID, m.OldSection)
		if err != nil {
			continue
		}
		newSec, err := a.store.GetSection(ctx, newAct.ID, m.NewSection)
		if err != nil {
			continue
		}

		oldVec, err := a.sectionVector(ctx, oldSec)
		if err != nil {
			a.logger.Warn("similarity spot-check skipped", "mapping", m.ID, "error", err)
			continue
		}
		newVec, err := a.sectionVector(ctx, newSec)
		if err != nil {
			a.logger.Warn("similarity spot-check skipped", "mapping", m.ID, "error", err)
			continue
		}

		sim := vecindex.CosineSimilarity(oldVec, newVec)
		switch {
		case m.Type == types.TransitionEquivalent && sim < equivalentSimilarityFloor:
			flags = append(flags, fmt.Sprintf(
				"%s %s -> %s %s: equivalent but similarity %.2f below %.2f",
				oldAct.Code, m.OldSection, newAct.Code, m.NewSection, sim, equivalentSimilarityFloor))
		case m.Type == types.TransitionModified && sim > modifiedSimilarityCeiling:
			flags = append(flags, fmt.Sprintf(
				"%s %s -> %s %s: modified but similarity %.2f above %.2f",
				oldAct.Code, m.OldSection, newAct.Code, m.NewSection, sim, modifiedSimilarityCeiling))
		}
	}
	return flags
}

// sectionVector prefers the vector already indexed for the section's
// first chunk and falls back to embedding the stored text.
func (a *Activator) sectionVector(ctx context.Context, sec *types.Section) ([]float32, error) {
	if a.index != nil {
		id := vecindex.PointID(vecindex.CollectionStatutes, sec.ID, 0)
		if p, err := a.index.GetPoint(ctx, id); err == nil && len(p.Vector) > 0 {
			return p.Vector, nil
		}
	}
	emb, err := a.emb.Embed(ctx, embedder.Request{Text: sec.Text, Task: embedder.TaskDocument})
	if err != nil {
		return nil, err
	}
	return emb.Vector, nil
}

// TierConfidence exposes the tier table for reporting
func TierConfidence(t types.TransitionType) (float64, bool) {
	c, ok := tierConfidence[t]
	return c, ok
}
