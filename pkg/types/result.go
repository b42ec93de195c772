package types

import "time"

// QueryType tags the intent of a retrieval query; the engine looks up
// its rank-fusion weights per tag.
type QueryType string

const (
	QuerySectionLookup QueryType = "section_lookup"
	QueryConceptual    QueryType = "conceptual"
	QueryOffence       QueryType = "offence"
	QueryGeneral       QueryType = "general"
)

// RetrievedUnit is one ranked retrieval result.
type RetrievedUnit struct {
	PointID string
	Score   float64
	Rank    int
	Text    string
	Payload ChunkPayload
	Caselaw bool // True for non-statutory long-form results
}

// RetrievalResponse carries the ranked results plus degradation
// markers. Degraded=true means one retrieval leg was unavailable and
// the results came from the surviving leg, which is distinct from
// zero matches.
type RetrievalResponse struct {
	Results   []RetrievedUnit
	Degraded  bool
	Reranked  bool
	Duration  time.Duration
	DenseHits int
	SparseHit int
}

// IngestionReport summarizes a one-shot document ingestion.
type IngestionReport struct {
	ActCode         string
	SectionsFound   int
	SectionsStored  int
	SectionsQueued  int
	SectionsSkipped int
	SubSections     int
	Mappings        int
	Errors          []string
	Duration        time.Duration
}

// ActivationReport summarizes a one-shot mapping activation run.
type ActivationReport struct {
	PerTier         map[TransitionType]int
	TotalActive     int
	SimilarityFlags []string
	Duration        time.Duration
}

// IndexingReport summarizes a one-shot law-body indexing run.
type IndexingReport struct {
	ActCode       string
	Eligible      int
	Indexed       int
	PointsCreated int
	Errors        []string
	Duration      time.Duration
}
