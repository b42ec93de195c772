package vecindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func statutePoint(sectionID int64, chunkIdx int, number, title, text string, vector []float32) Point {
	return Point{
		ID:         PointID(CollectionStatutes, sectionID, chunkIdx),
		Collection: CollectionStatutes,
		Text:       text,
		Vector:     vector,
		Payload: types.ChunkPayload{
			ActCode:       "BNS",
			Era:           types.EraCurrent,
			SectionNumber: number,
			Title:         title,
			IsOffence:     true,
			Confidence:    0.95,
		},
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := PointID(CollectionStatutes, 42, 0)
	b := PointID(CollectionStatutes, 42, 0)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, PointID(CollectionStatutes, 42, 1))
	assert.NotEqual(t, a, PointID(CollectionStatutes, 43, 0))
	assert.NotEqual(t, a, PointID(CollectionSubSections, 42, 0))
}

func TestUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	points := []Point{
		statutePoint(1, 0, "103", "Punishment for murder", "Whoever commits murder shall be punished with death", []float32{1, 0, 0}),
		statutePoint(1, 1, "103", "Punishment for murder", "or imprisonment for life, and shall also be liable to fine", []float32{0, 1, 0}),
	}
	require.NoError(t, ix.UpsertPoints(ctx, points))

	n, err := ix.Count(ctx, CollectionStatutes)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-indexing the same section must not grow the collection
	points[0].Text = "Whoever commits murder shall be punished with death or imprisonment for life"
	require.NoError(t, ix.UpsertPoints(ctx, points))

	n, err = ix.Count(ctx, CollectionStatutes)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := ix.GetPoint(ctx, points[0].ID)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "imprisonment for life")
}

func TestDenseSearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.UpsertPoints(ctx, []Point{
		statutePoint(1, 0, "103", "Punishment for murder", "murder punishment death", []float32{1, 0, 0}),
		statutePoint(2, 0, "303", "Theft", "theft movable property", []float32{0, 1, 0}),
		statutePoint(3, 0, "318", "Cheating", "cheating deception", []float32{0.7, 0.7, 0}),
	}))

	hits, err := ix.DenseSearch(ctx, CollectionStatutes, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "103", hits[0].Payload.SectionNumber)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "318", hits[1].Payload.SectionNumber)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestDenseSearchDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.UpsertPoints(ctx, []Point{
		statutePoint(1, 0, "103", "Punishment for murder", "murder", []float32{1, 0, 0}),
	}))

	_, err := ix.DenseSearch(ctx, CollectionStatutes, []float32{1, 0}, 10, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSparseSearchMatchesText(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.UpsertPoints(ctx, []Point{
		statutePoint(1, 0, "103", "Punishment for murder", "Whoever commits murder shall be punished with death or imprisonment for life", []float32{1, 0, 0}),
		statutePoint(2, 0, "303", "Theft", "Whoever intending to take dishonestly any movable property commits theft", []float32{0, 1, 0}),
	}))

	hits, err := ix.SparseSearch(ctx, CollectionStatutes, "punishment for murder", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "103", hits[0].Payload.SectionNumber)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.LessOrEqual(t, hits[0].Score, 1.0)
}

func TestSparseSearchSurvivesOperators(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.UpsertPoints(ctx, []Point{
		statutePoint(1, 0, "103", "Punishment for murder", "murder and culpable homicide", []float32{1, 0, 0}),
	}))

	// Raw FTS5 syntax in a user query must not break the search
	_, err := ix.SparseSearch(ctx, CollectionStatutes, `murder AND "homicide" (NOT theft)*`, 10, nil)
	assert.NoError(t, err)

	_, err = ix.SparseSearch(ctx, CollectionStatutes, "   ", 10, nil)
	assert.Error(t, err)
}

func TestFiltersApplyToBothLegs(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	legacy := statutePoint(1, 0, "302", "Punishment for murder", "murder punishment legacy text", []float32{1, 0, 0})
	legacy.Payload.ActCode = "IPC"
	legacy.Payload.Era = types.EraLegacy

	current := statutePoint(2, 0, "103", "Punishment for murder", "murder punishment current text", []float32{1, 0, 0})

	require.NoError(t, ix.UpsertPoints(ctx, []Point{legacy, current}))

	filter := &Filter{Eras: []types.Era{types.EraCurrent}}

	dense, err := ix.DenseSearch(ctx, CollectionStatutes, []float32{1, 0, 0}, 10, filter)
	require.NoError(t, err)
	require.Len(t, dense, 1)
	assert.Equal(t, "BNS", dense[0].Payload.ActCode)

	sparse, err := ix.SparseSearch(ctx, CollectionStatutes, "murder punishment", 10, filter)
	require.NoError(t, err)
	require.Len(t, sparse, 1)
	assert.Equal(t, "BNS", sparse[0].Payload.ActCode)
}

func TestDeleteSectionPoints(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.UpsertPoints(ctx, []Point{
		statutePoint(1, 0, "103", "Punishment for murder", "chunk one", []float32{1, 0, 0}),
		statutePoint(1, 1, "103", "Punishment for murder", "chunk two", []float32{0, 1, 0}),
		statutePoint(2, 0, "303", "Theft", "theft", []float32{0, 0, 1}),
	}))

	require.NoError(t, ix.DeleteSectionPoints(ctx, CollectionStatutes, "BNS", "103"))

	n, err := ix.Count(ctx, CollectionStatutes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// FTS stays in sync through the delete trigger
	hits, err := ix.SparseSearch(ctx, CollectionStatutes, "chunk", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 0, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{0, 0}))
}
