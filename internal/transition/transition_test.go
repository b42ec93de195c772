package transition

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawkhoj/lawkhoj/internal/embedder"
	"github.com/lawkhoj/lawkhoj/internal/storage"
	"github.com/lawkhoj/lawkhoj/internal/vecindex"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

type fixture struct {
	store  storage.Store
	ipc    *types.Act
	bns    *types.Act
	bns103 *types.Section
	bns152 *types.Section
	bns64  *types.Section
	bns65  *types.Section
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{store: store}

	f.ipc = &types.Act{Code: "IPC", Name: "Indian Penal Code", Year: 1860, Era: types.EraLegacy, Status: types.ActRepealed}
	f.bns = &types.Act{Code: "BNS", Name: "Bharatiya Nyaya Sanhita", Year: 2023, Era: types.EraCurrent, Status: types.ActActive, Replaces: "IPC"}
	require.NoError(t, store.UpsertAct(ctx, f.ipc))
	require.NoError(t, store.UpsertAct(ctx, f.bns))

	f.seedSection(t, f.ipc.ID, "302", "Punishment for murder",
		"Whoever commits murder shall be punished with death, or imprisonment for life, and shall also be liable to fine.", types.EraLegacy)
	f.seedSection(t, f.ipc.ID, "124A", "Sedition",
		"Whoever by words brings or attempts to bring into hatred or contempt the Government established by law shall be punished.", types.EraLegacy)
	f.seedSection(t, f.ipc.ID, "376", "Punishment for rape",
		"Whoever commits rape shall be punished with rigorous imprisonment of either description.", types.EraLegacy)

	f.bns103 = f.seedSection(t, f.bns.ID, "103", "Punishment for murder",
		"Whoever commits murder shall be punished with death or imprisonment for life, and shall also be liable to fine.", types.EraCurrent)
	f.seedSection(t, f.bns.ID, "302", "Snatching",
		"Theft is snatching if, in order to commit theft, the offender suddenly or quickly or forcibly seizes any movable property.", types.EraCurrent)
	f.bns152 = f.seedSection(t, f.bns.ID, "152", "Act endangering sovereignty, unity and integrity of India",
		"Whoever purposely excites or attempts to excite secession or armed rebellion shall be punished.", types.EraCurrent)
	f.bns64 = f.seedSection(t, f.bns.ID, "64", "Punishment for rape",
		"Whoever commits rape shall be punished with rigorous imprisonment for a term not less than ten years.", types.EraCurrent)
	f.bns65 = f.seedSection(t, f.bns.ID, "65", "Punishment for rape in certain cases",
		"Whoever commits rape on a woman under sixteen years of age shall be punished with rigorous imprisonment for not less than twenty years.", types.EraCurrent)

	return f
}

func (f *fixture) seedSection(t *testing.T, actID int64, number, title, text string, era types.Era) *types.Section {
	t.Helper()
	section := &types.Section{
		ActID: actID, Number: number, Title: title, Text: text,
		Status: types.SectionActive, Era: era, Confidence: 0.95,
	}
	if n, sfx, ok := types.ParseSectionNumber(number); ok {
		section.NumberInt = n
		section.NumberSfx = sfx
	}
	require.NoError(t, f.store.WriteSectionBundle(context.Background(), &storage.SectionBundle{
		Section: section, Stored: true,
	}))
	return section
}

func (f *fixture) seedMapping(t *testing.T, oldSection string, newSectionID int64, newSection string, typ types.TransitionType) *types.TransitionMapping {
	t.Helper()
	m := &types.TransitionMapping{
		OldActID: f.ipc.ID, OldSection: oldSection,
		NewActID: f.bns.ID, NewSectionID: newSectionID, NewSection: newSection,
		Type: typ,
	}
	require.NoError(t, f.store.UpsertMapping(context.Background(), m))
	return m
}

// seedHappyCorpus creates the minimal edge set that satisfies every
// ground-truth assertion.
func (f *fixture) seedHappyCorpus(t *testing.T) {
	f.seedMapping(t, "302", f.bns103.ID, "103", types.TransitionEquivalent)
	f.seedMapping(t, "124A", f.bns152.ID, "152", types.TransitionModified)
	f.seedMapping(t, "376", f.bns64.ID, "64", types.TransitionSplit)
	f.seedMapping(t, "376", f.bns65.ID, "65", types.TransitionSplit)
}

func newActivator(store storage.Store) *Activator {
	return New(store, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestActivateHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHappyCorpus(t)

	report, err := newActivator(f.store).Activate(ctx, "IPC", "BNS")
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalActive)
	assert.Equal(t, 1, report.PerTier[types.TransitionEquivalent])
	assert.Equal(t, 1, report.PerTier[types.TransitionModified])
	assert.Equal(t, 2, report.PerTier[types.TransitionSplit])

	// Tier confidences landed
	mappings, err := f.store.ActiveMappings(ctx, "IPC", "302")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.InDelta(t, 0.95, mappings[0].Confidence, 1e-9)
	assert.Equal(t, "103", mappings[0].NewSection)

	split, err := f.store.ActiveMappings(ctx, "IPC", "376")
	require.NoError(t, err)
	require.Len(t, split, 2)
	for _, m := range split {
		assert.InDelta(t, 0.80, m.Confidence, 1e-9)
	}

	// Modified mapping without its own scope note gets the caveat
	sedition, err := f.store.ActiveMappings(ctx, "IPC", "124A")
	require.NoError(t, err)
	require.Len(t, sedition, 1)
	assert.InDelta(t, 0.85, sedition[0].Confidence, 1e-9)
	assert.Equal(t, ScopeCaveat, sedition[0].ScopeChange)
}

func TestActivateAbortsWithoutMurderMapping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedMapping(t, "124A", f.bns152.ID, "152", types.TransitionModified)
	f.seedMapping(t, "376", f.bns64.ID, "64", types.TransitionSplit)
	f.seedMapping(t, "376", f.bns65.ID, "65", types.TransitionSplit)

	_, err := newActivator(f.store).Activate(ctx, "IPC", "BNS")
	require.ErrorIs(t, err, types.ErrInvariant)

	// Nothing activated
	active, err := f.store.ActiveMappings(ctx, "IPC", "124A")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestActivateAbortsOnFalseFriendEdge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHappyCorpus(t)

	// The number-identity trap: IPC 302 (murder) -> BNS 302 (snatching)
	bns302, err := f.store.GetSection(ctx, f.bns.ID, "302")
	require.NoError(t, err)
	f.seedMapping(t, "302", bns302.ID, "302", types.TransitionEquivalent)

	_, err = newActivator(f.store).Activate(ctx, "IPC", "BNS")
	require.ErrorIs(t, err, types.ErrInvariant)
	assert.Contains(t, err.Error(), "snatching")
}

func TestActivateAbortsWhenSnatchingTitleClaimsMurder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHappyCorpus(t)

	// A contaminated extraction that labeled BNS 302 as murder
	f.seedSection(t, f.bns.ID, "302", "Punishment for murder",
		"Theft is snatching if the offender suddenly seizes movable property.", types.EraCurrent)

	_, err := newActivator(f.store).Activate(ctx, "IPC", "BNS")
	require.ErrorIs(t, err, types.ErrInvariant)
}

func TestActivateAbortsWithoutSeditionMapping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedMapping(t, "302", f.bns103.ID, "103", types.TransitionEquivalent)
	f.seedMapping(t, "376", f.bns64.ID, "64", types.TransitionSplit)
	f.seedMapping(t, "376", f.bns65.ID, "65", types.TransitionSplit)

	_, err := newActivator(f.store).Activate(ctx, "IPC", "BNS")
	require.ErrorIs(t, err, types.ErrInvariant)
	assert.Contains(t, err.Error(), "124A")
}

func TestActivateAbortsOnUnsplitRapeProvision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedMapping(t, "302", f.bns103.ID, "103", types.TransitionEquivalent)
	f.seedMapping(t, "124A", f.bns152.ID, "152", types.TransitionModified)
	f.seedMapping(t, "376", f.bns64.ID, "64", types.TransitionSplit)

	_, err := newActivator(f.store).Activate(ctx, "IPC", "BNS")
	require.ErrorIs(t, err, types.ErrInvariant)
	assert.Contains(t, err.Error(), "376")
}

func TestActivateOtherActPairSkipsGroundTruth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	crpc := &types.Act{Code: "CrPC", Name: "Code of Criminal Procedure", Year: 1973, Era: types.EraLegacy, Status: types.ActRepealed}
	bnss := &types.Act{Code: "BNSS", Name: "Bharatiya Nagarik Suraksha Sanhita", Year: 2023, Era: types.EraCurrent, Status: types.ActActive, Replaces: "CrPC"}
	require.NoError(t, f.store.UpsertAct(ctx, crpc))
	require.NoError(t, f.store.UpsertAct(ctx, bnss))

	target := &types.Section{
		ActID: bnss.ID, Number: "187", NumberInt: 187, Title: "Procedure when investigation cannot be completed in twenty-four hours",
		Text: "Whenever any person is arrested and detained in custody.", Status: types.SectionActive,
		Era: types.EraCurrent, Confidence: 0.9,
	}
	require.NoError(t, f.store.WriteSectionBundle(ctx, &storage.SectionBundle{Section: target, Stored: true}))

	m := &types.TransitionMapping{
		OldActID: crpc.ID, OldSection: "167",
		NewActID: bnss.ID, NewSectionID: target.ID, NewSection: "187",
		Type: types.TransitionEquivalent,
	}
	require.NoError(t, f.store.UpsertMapping(ctx, m))

	report, err := newActivator(f.store).Activate(ctx, "CrPC", "BNSS")
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalActive)
}

func TestSpotCheckIsAdvisoryOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHappyCorpus(t)

	// The local embedder derives vectors from content hashes, so the
	// non-identical texts of IPC 302 and BNS 103 score near zero and
	// the equivalent edge gets flagged. The point of the test: flags
	// are advisory, every mapping still activates.
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	activator := New(f.store, nil, emb, slog.New(slog.NewTextHandler(io.Discard, nil)))

	report, err := activator.Activate(ctx, "IPC", "BNS")
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalActive)
	require.NotEmpty(t, report.SimilarityFlags)
	assert.Contains(t, report.SimilarityFlags[0], "302")

	active, err := f.store.ActiveMappings(ctx, "IPC", "302")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSpotCheckPrefersIndexedVectors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedHappyCorpus(t)

	index, err := vecindex.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	// Identical vectors already indexed for the IPC 302 and BNS 103
	// chunks: the spot-check reads those instead of re-embedding the
	// differing stored texts, so the equivalent edge is not flagged.
	ipc302, err := f.store.GetSection(ctx, f.ipc.ID, "302")
	require.NoError(t, err)
	vec := []float32{0.2, 0.4, 0.6, 0.8}
	for _, sec := range []*types.Section{ipc302, f.bns103} {
		require.NoError(t, index.UpsertPoints(ctx, []vecindex.Point{{
			ID:         vecindex.PointID(vecindex.CollectionStatutes, sec.ID, 0),
			Collection: vecindex.CollectionStatutes,
			Text:       sec.Text,
			Vector:     vec,
			Payload:    types.ChunkPayload{SectionNumber: sec.Number},
		}}))
	}

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	activator := New(f.store, index, emb, slog.New(slog.NewTextHandler(io.Discard, nil)))

	report, err := activator.Activate(ctx, "IPC", "BNS")
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalActive)
	for _, flag := range report.SimilarityFlags {
		assert.NotContains(t, flag, "IPC 302")
	}
}

func TestTierConfidence(t *testing.T) {
	c, ok := TierConfidence(types.TransitionEquivalent)
	require.True(t, ok)
	assert.InDelta(t, 0.95, c, 1e-9)

	_, ok = TierConfidence(types.TransitionType("unknown"))
	assert.False(t, ok)
}
