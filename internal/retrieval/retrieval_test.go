package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/internal/embedder"
	"github.com/lawkhoj/lawkhoj/internal/vecindex"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

func newTestEngine(t *testing.T) (*Engine, *vecindex.Index, embedder.Embedder) {
	t.Helper()
	ix, err := vecindex.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	return New(config.Default(), ix, emb, nil, slog.New(slog.NewTextHandler(io.Discard, nil))), ix, emb
}

// docVector embeds text document-side so seeded points look like the
// indexer produced them.
func docVector(t *testing.T, emb embedder.Embedder, text string) []float32 {
	t.Helper()
	e, err := emb.Embed(context.Background(), embedder.Request{Text: text, Task: embedder.TaskDocument})
	require.NoError(t, err)
	return e.Vector
}

func seedPoint(t *testing.T, ix *vecindex.Index, collection, id, text string, vector []float32, payload types.ChunkPayload) {
	t.Helper()
	require.NoError(t, ix.UpsertPoints(context.Background(), []vecindex.Point{
		{ID: id, Collection: collection, Text: text, Vector: vector, Payload: payload},
	}))
}

func statutePayload(act string, era types.Era, section string, conf float64) types.ChunkPayload {
	return types.ChunkPayload{
		ActCode:       act,
		Era:           era,
		SectionNumber: section,
		Confidence:    conf,
	}
}

func TestFuseWeightsPerQueryType(t *testing.T) {
	cfg := config.Default()
	dense := []legHit{{
		hit:        vecindex.Hit{PointID: "A", Payload: statutePayload("BNS", types.EraCurrent, "103", 0.9)},
		collection: vecindex.CollectionStatutes,
	}}
	sparse := []legHit{{
		hit:        vecindex.Hit{PointID: "B", Payload: statutePayload("BNS", types.EraCurrent, "101", 0.9)},
		collection: vecindex.CollectionStatutes,
	}}

	// Section lookups lean on the sparse leg
	lookup := fuse(dense, sparse, cfg.FusionFor(types.QuerySectionLookup), cfg.Retrieval.RRFConstant)
	assert.Greater(t, lookup["B"].fused, lookup["A"].fused)

	// Conceptual queries lean on the dense leg
	conceptual := fuse(dense, sparse, cfg.FusionFor(types.QueryConceptual), cfg.Retrieval.RRFConstant)
	assert.Greater(t, conceptual["A"].fused, conceptual["B"].fused)

	// A point ranked by both legs accumulates both contributions
	both := fuse(dense, dense, cfg.FusionFor(types.QueryGeneral), cfg.Retrieval.RRFConstant)
	assert.Equal(t, 1, both["A"].denseRank)
	assert.Equal(t, 1, both["A"].sparseRank)
	single := fuse(dense, nil, cfg.FusionFor(types.QueryGeneral), cfg.Retrieval.RRFConstant)
	assert.Greater(t, both["A"].fused, single["A"].fused)
}

func TestApplyBoosts(t *testing.T) {
	e := New(config.Default(), nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	base := 0.02

	mk := func(p types.ChunkPayload) map[string]*candidate {
		return map[string]*candidate{"x": {hit: vecindex.Hit{PointID: "x", Payload: p}, fused: base}}
	}

	// Confidence dampening scales toward the floor
	low := mk(statutePayload("BNS", types.EraLegacy, "103", 0.5))
	e.applyBoosts(low, Request{Type: types.QueryGeneral})
	assert.InDelta(t, base*(0.7+0.3*0.5), low["x"].fused, 1e-12)

	full := mk(statutePayload("BNS", types.EraLegacy, "103", 1.0))
	e.applyBoosts(full, Request{Type: types.QueryGeneral})
	assert.InDelta(t, base, full["x"].fused, 1e-12)

	// Era bonus only applies when the caller prefers current law
	era := mk(statutePayload("BNS", types.EraCurrent, "103", 1.0))
	e.applyBoosts(era, Request{Type: types.QueryGeneral, PreferCurrent: true})
	assert.InDelta(t, base+0.05, era["x"].fused, 1e-12)

	noPref := mk(statutePayload("BNS", types.EraCurrent, "103", 1.0))
	e.applyBoosts(noPref, Request{Type: types.QueryGeneral})
	assert.InDelta(t, base, noPref["x"].fused, 1e-12)

	// Offence bonus keys on query intent and the offence flag together
	offPayload := statutePayload("BNS", types.EraLegacy, "103", 1.0)
	offPayload.IsOffence = true
	off := mk(offPayload)
	e.applyBoosts(off, Request{Type: types.QueryOffence})
	assert.InDelta(t, base+0.03, off["x"].fused, 1e-12)

	offWrongType := mk(offPayload)
	e.applyBoosts(offWrongType, Request{Type: types.QueryConceptual})
	assert.InDelta(t, base, offWrongType["x"].fused, 1e-12)
}

func TestDedupCollapsesSectionAcrossCollections(t *testing.T) {
	section := statutePayload("BNS", types.EraCurrent, "103", 0.9)
	sub := section
	sub.IsSubSection = true
	sub.SubLabel = "(1)"

	cands := map[string]*candidate{
		"p1": {hit: vecindex.Hit{PointID: "p1", Payload: section}, collection: vecindex.CollectionStatutes, fused: 0.02},
		"p2": {hit: vecindex.Hit{PointID: "p2", Payload: sub}, collection: vecindex.CollectionSubSections, fused: 0.03},
		"p3": {hit: vecindex.Hit{PointID: "p3", Payload: statutePayload("IPC", types.EraLegacy, "302", 0.9)}, collection: vecindex.CollectionStatutes, fused: 0.01},
	}

	out := dedup(cands)
	require.Len(t, out, 2)

	byAct := map[string]*candidate{}
	for _, c := range out {
		byAct[c.hit.Payload.ActCode] = c
	}
	// The better-scoring sub-section point won the BNS 103 slot
	assert.Equal(t, "p2", byAct["BNS"].hit.PointID)
	assert.Equal(t, "p3", byAct["IPC"].hit.PointID)
}

func TestDedupKeepsCaselawChunksDistinct(t *testing.T) {
	payload := types.ChunkPayload{ActCode: "", SectionNumber: ""}
	cands := map[string]*candidate{
		"c1": {hit: vecindex.Hit{PointID: "c1", Payload: payload}, collection: vecindex.CollectionCaselaw, fused: 0.02},
		"c2": {hit: vecindex.Hit{PointID: "c2", Payload: payload}, collection: vecindex.CollectionCaselaw, fused: 0.01},
	}
	assert.Len(t, dedup(cands), 2)
}

func TestMMRDiversifiesAcrossActs(t *testing.T) {
	e := New(config.Default(), nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ranked := []*candidate{
		{hit: vecindex.Hit{PointID: "a1", Payload: statutePayload("BNS", types.EraCurrent, "103", 1)}, fused: 0.030},
		{hit: vecindex.Hit{PointID: "a2", Payload: statutePayload("BNS", types.EraCurrent, "101", 1)}, fused: 0.029},
		{hit: vecindex.Hit{PointID: "b1", Payload: statutePayload("IPC", types.EraLegacy, "302", 1)}, fused: 0.020},
	}

	out := e.mmrSelect(ranked, 3, 0.5)
	require.Len(t, out, 3)
	assert.Equal(t, "a1", out[0].hit.PointID)
	// The other-act result jumps the same-act near-duplicate
	assert.Equal(t, "b1", out[1].hit.PointID)
	assert.Equal(t, "a2", out[2].hit.PointID)

	// Pure relevance keeps the fused order
	flat := e.mmrSelect(ranked, 3, 1.0)
	assert.Equal(t, "a1", flat[0].hit.PointID)
	assert.Equal(t, "a2", flat[1].hit.PointID)
}

func TestSearchPrefersCurrentEra(t *testing.T) {
	ctx := context.Background()
	e, ix, emb := newTestEngine(t)

	bnsText := "Section 103. Punishment for murder\nWhoever commits murder shall be punished with death or imprisonment for life."
	ipcText := "Section 302. Punishment for murder\nWhoever commits murder shall be punished with death, or imprisonment for life."

	bns := statutePayload("BNS", types.EraCurrent, "103", 0.95)
	bns.IsOffence = true
	ipc := statutePayload("IPC", types.EraLegacy, "302", 0.95)
	ipc.IsOffence = true

	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 1, 0), bnsText, docVector(t, emb, bnsText), bns)
	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 2, 0), ipcText, docVector(t, emb, ipcText), ipc)

	resp, err := e.Search(ctx, Request{
		Query:         "punishment for murder",
		Type:          types.QueryOffence,
		PreferCurrent: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	assert.False(t, resp.Degraded)
	assert.Equal(t, types.EraCurrent, resp.Results[0].Payload.Era)
	assert.Equal(t, "103", resp.Results[0].Payload.SectionNumber)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
	assert.Positive(t, resp.DenseHits)
	assert.Positive(t, resp.SparseHit)
}

func TestSearchDeduplicatesSubSectionPoints(t *testing.T) {
	ctx := context.Background()
	e, ix, emb := newTestEngine(t)

	section := statutePayload("BNS", types.EraCurrent, "103", 0.95)
	sub := section
	sub.IsSubSection = true
	sub.SubLabel = "(1)"

	fullText := "Section 103. Punishment for murder\nWhoever commits murder shall be punished with death."
	subText := "Section 103. Punishment for murder\n(1) Whoever commits murder shall be punished with death."

	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 1, 0), fullText, docVector(t, emb, fullText), section)
	seedPoint(t, ix, vecindex.CollectionSubSections, vecindex.PointID(vecindex.CollectionSubSections, 1, 0), subText, docVector(t, emb, subText), sub)

	resp, err := e.Search(ctx, Request{Query: "murder punishment", Type: types.QueryGeneral})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "103", resp.Results[0].Payload.SectionNumber)
}

func TestSearchFiltersApplyToBothLegs(t *testing.T) {
	ctx := context.Background()
	e, ix, emb := newTestEngine(t)

	bnsText := "Section 103. Punishment for murder\nWhoever commits murder shall be punished with death."
	ipcText := "Section 302. Punishment for murder\nWhoever commits murder shall be punished with death."
	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 1, 0), bnsText, docVector(t, emb, bnsText), statutePayload("BNS", types.EraCurrent, "103", 0.95))
	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 2, 0), ipcText, docVector(t, emb, ipcText), statutePayload("IPC", types.EraLegacy, "302", 0.95))

	resp, err := e.Search(ctx, Request{
		Query:  "murder",
		Type:   types.QueryGeneral,
		Filter: &vecindex.Filter{Eras: []types.Era{types.EraLegacy}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "IPC", resp.Results[0].Payload.ActCode)
}

func TestSearchDegradesWhenSparseLegFails(t *testing.T) {
	ctx := context.Background()
	e, ix, emb := newTestEngine(t)

	text := "Section 103. Punishment for murder\nWhoever commits murder shall be punished with death."
	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 1, 0), text, docVector(t, emb, text), statutePayload("BNS", types.EraCurrent, "103", 0.95))

	// Every term is an FTS metacharacter, so the sanitized sparse query
	// is empty and that leg errors while the dense leg still serves.
	resp, err := e.Search(ctx, Request{Query: "(((***)))", Type: types.QueryGeneral})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Zero(t, resp.SparseHit)
	assert.Positive(t, resp.DenseHits)
	require.Len(t, resp.Results, 1)
}

func TestSearchUnavailableWhenBothLegsFail(t *testing.T) {
	ctx := context.Background()
	e, ix, _ := newTestEngine(t)
	require.NoError(t, ix.Close())

	_, err := e.Search(ctx, Request{Query: "murder", Type: types.QueryGeneral})
	assert.ErrorIs(t, err, types.ErrUnavailable)
}

func TestSearchServesRepeatQueriesFromCache(t *testing.T) {
	ctx := context.Background()
	e, ix, emb := newTestEngine(t)

	text := "Section 103. Punishment for murder\nWhoever commits murder shall be punished with death."
	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 1, 0), text, docVector(t, emb, text), statutePayload("BNS", types.EraCurrent, "103", 0.95))

	req := Request{Query: "murder", Type: types.QueryGeneral}
	first, err := e.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Results, 1)

	// Remove the backing point; the repeat query is answered anyway
	require.NoError(t, ix.DeleteSectionPoints(ctx, vecindex.CollectionStatutes, "BNS", "103"))
	second, err := e.Search(ctx, req)
	require.NoError(t, err)
	assert.Len(t, second.Results, 1)
	assert.Equal(t, first.Results[0].PointID, second.Results[0].PointID)
}

func TestSearchDoesNotCacheDegradedResponses(t *testing.T) {
	ctx := context.Background()
	e, ix, emb := newTestEngine(t)

	text := "Section 103. Punishment for murder\nWhoever commits murder shall be punished with death."
	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 1, 0), text, docVector(t, emb, text), statutePayload("BNS", types.EraCurrent, "103", 0.95))

	// The metacharacter query fails the sparse leg, so this response is
	// degraded and must not enter the cache.
	req := Request{Query: "(((***)))", Type: types.QueryGeneral}
	first, err := e.Search(ctx, req)
	require.NoError(t, err)
	require.True(t, first.Degraded)
	require.Len(t, first.Results, 1)

	// With the backing point gone, a cached response would still carry
	// the old result; a recomputed one comes back empty.
	require.NoError(t, ix.DeleteSectionPoints(ctx, vecindex.CollectionStatutes, "BNS", "103"))
	second, err := e.Search(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, second.Results)
}

// stubReranker scripts reranker behavior for fallback tests
type stubReranker struct {
	err     error
	reverse bool
}

func (s *stubReranker) Available() bool { return true }

func (s *stubReranker) Rerank(_ context.Context, _ string, candidates []string) ([]embedder.RerankResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	results := make([]embedder.RerankResult, len(candidates))
	for i := range candidates {
		idx := i
		if s.reverse {
			idx = len(candidates) - 1 - i
		}
		results[i] = embedder.RerankResult{Index: idx, Score: float64(len(candidates) - i)}
	}
	return results, nil
}

func TestSearchRerankReordersResults(t *testing.T) {
	ctx := context.Background()
	ix, err := vecindex.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	bnsText := "Section 103. Punishment for murder\nWhoever commits murder shall be punished with death."
	ipcText := "Section 302. Punishment for murder\nWhoever commits murder shall be punished with death."
	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 1, 0), bnsText, docVector(t, emb, bnsText), statutePayload("BNS", types.EraCurrent, "103", 0.95))
	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 2, 0), ipcText, docVector(t, emb, ipcText), statutePayload("IPC", types.EraLegacy, "302", 0.95))

	e := New(config.Default(), ix, emb, &stubReranker{reverse: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	baseline, err := e.Search(ctx, Request{Query: "murder", Type: types.QueryGeneral})
	require.NoError(t, err)
	require.Len(t, baseline.Results, 2)
	assert.False(t, baseline.Reranked)

	reranked, err := e.Search(ctx, Request{Query: "murder", Type: types.QueryGeneral, Rerank: true})
	require.NoError(t, err)
	require.Len(t, reranked.Results, 2)
	assert.True(t, reranked.Reranked)
	assert.Equal(t, baseline.Results[0].PointID, reranked.Results[1].PointID)
	assert.Equal(t, baseline.Results[1].PointID, reranked.Results[0].PointID)
}

func TestSearchRerankFailureFallsBackSilently(t *testing.T) {
	ctx := context.Background()
	e, ix, emb := newTestEngine(t)
	e.reranker = &stubReranker{err: errors.New("upstream 503")}

	text := "Section 103. Punishment for murder\nWhoever commits murder shall be punished with death."
	seedPoint(t, ix, vecindex.CollectionStatutes, vecindex.PointID(vecindex.CollectionStatutes, 1, 0), text, docVector(t, emb, text), statutePayload("BNS", types.EraCurrent, "103", 0.95))

	resp, err := e.Search(ctx, Request{Query: "murder", Type: types.QueryGeneral, Rerank: true})
	require.NoError(t, err)
	assert.False(t, resp.Reranked)
	require.Len(t, resp.Results, 1)
}

func TestDetectQueryType(t *testing.T) {
	tests := []struct {
		query string
		want  types.QueryType
	}{
		{"section 302", types.QuerySectionLookup},
		{"Section 124A of the penal code", types.QuerySectionLookup},
		{"103", types.QuerySectionLookup},
		{"punishment for snatching", types.QueryOffence},
		{"is theft a cognizable offence", types.QueryOffence},
		{"what is the doctrine of mens rea", types.QueryConceptual},
		{"culpable homicide murder distinction", types.QueryGeneral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectQueryType(tt.query), "query %q", tt.query)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.Search(context.Background(), Request{Query: "   "})
	assert.Error(t, err)
}
