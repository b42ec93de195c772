// Package retrieval implements hybrid statute search: a dense cosine
// leg and a sparse BM25 leg run concurrently over the point index and
// are merged by weighted Reciprocal Rank Fusion, followed by domain
// boosts, act-level diversification, and an optional cross-encoder
// rerank. A single failed leg degrades the response; it never fails it.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/internal/embedder"
	"github.com/lawkhoj/lawkhoj/internal/vecindex"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// DefaultLimit caps result counts when the caller does not set one
const DefaultLimit = 10

// Request is one retrieval query.
type Request struct {
	Query string
	Type  types.QueryType
	Limit int

	// Filter narrows both legs server-side before ranking
	Filter *vecindex.Filter

	// PreferCurrent boosts current-era statutes over their repealed
	// predecessors when both match.
	PreferCurrent bool

	// IncludeCaselaw adds the case-law collection to both legs
	IncludeCaselaw bool

	// Diversity in [0,1] trades relevance for act-level variety via
	// maximal marginal relevance; 0 disables the pass.
	Diversity float64

	// Rerank requests a second-stage cross-encoder pass when one is
	// available. Reranker failures fall back to fused order silently.
	Rerank bool
}

// Engine runs hybrid queries against the point index
type Engine struct {
	cfg      *config.Config
	index    *vecindex.Index
	embedder embedder.Embedder
	reranker embedder.Reranker
	cache    *lru.Cache[string, *types.RetrievalResponse]
	logger   *slog.Logger
}

// New creates a retrieval engine. The reranker may be nil.
func New(cfg *config.Config, index *vecindex.Index, emb embedder.Embedder, reranker embedder.Reranker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.Retrieval.CacheSize
	if size <= 0 {
		size = 1000
	}
	cache, _ := lru.New[string, *types.RetrievalResponse](size)
	return &Engine{
		cfg:      cfg,
		index:    index,
		embedder: emb,
		reranker: reranker,
		cache:    cache,
		logger:   logger,
	}
}

// legHit pairs a raw hit with the collection it came from
type legHit struct {
	hit        vecindex.Hit
	collection string
}

// candidate accumulates fusion state for one point
type candidate struct {
	hit        vecindex.Hit
	collection string
	fused      float64
	denseRank  int // 0 means absent from the leg
	sparseRank int
}

// Search runs one hybrid query.
func (e *Engine) Search(ctx context.Context, req Request) (*types.RetrievalResponse, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if req.Type == "" {
		req.Type = types.QueryGeneral
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	key := cacheKey(req)
	if resp, ok := e.cache.Get(key); ok {
		return resp, nil
	}

	overfetch := req.Limit * e.cfg.Retrieval.OverfetchMultiplier
	collections := []string{vecindex.CollectionStatutes, vecindex.CollectionSubSections}
	if req.IncludeCaselaw {
		collections = append(collections, vecindex.CollectionCaselaw)
	}

	// Both legs run concurrently. One failed leg degrades the
	// response; errgroup is deliberately not used here because it
	// would cancel the surviving leg.
	var (
		wg        sync.WaitGroup
		dense     []legHit
		sparse    []legHit
		denseErr  error
		sparseErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		dense, denseErr = e.denseLeg(ctx, req, collections, overfetch)
	}()
	go func() {
		defer wg.Done()
		sparse, sparseErr = e.sparseLeg(ctx, req, collections, overfetch)
	}()
	wg.Wait()

	if denseErr != nil && sparseErr != nil {
		return nil, fmt.Errorf("%w: dense: %v; sparse: %v", types.ErrUnavailable, denseErr, sparseErr)
	}
	degraded := denseErr != nil || sparseErr != nil
	if denseErr != nil {
		e.logger.Warn("dense leg failed, serving sparse only", "error", denseErr)
	}
	if sparseErr != nil {
		e.logger.Warn("sparse leg failed, serving dense only", "error", sparseErr)
	}

	weights := e.cfg.FusionFor(req.Type)
	cands := fuse(dense, sparse, weights, e.cfg.Retrieval.RRFConstant)
	e.applyBoosts(cands, req)
	ranked := dedup(cands)

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].fused > ranked[j].fused })

	if req.Diversity > 0 {
		ranked = e.mmrSelect(ranked, req.Limit, 1.0-req.Diversity)
	}
	if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	reranked := false
	if req.Rerank && e.reranker != nil && e.reranker.Available() {
		reranked = e.rerank(ctx, req.Query, ranked)
	}

	resp := &types.RetrievalResponse{
		Results:   make([]types.RetrievedUnit, 0, len(ranked)),
		Degraded:  degraded,
		Reranked:  reranked,
		DenseHits: len(dense),
		SparseHit: len(sparse),
		Duration:  time.Since(start),
	}
	for i, c := range ranked {
		resp.Results = append(resp.Results, types.RetrievedUnit{
			PointID: c.hit.PointID,
			Score:   c.fused,
			Rank:    i + 1,
			Text:    c.hit.Text,
			Payload: c.hit.Payload,
			Caselaw: c.collection == vecindex.CollectionCaselaw,
		})
	}

	// A degraded response reflects a transient leg failure; cached, it
	// would keep being served after the leg recovers.
	if !degraded {
		e.cache.Add(key, resp)
	}
	return resp, nil
}

func (e *Engine) denseLeg(ctx context.Context, req Request, collections []string, overfetch int) ([]legHit, error) {
	emb, err := e.embedder.Embed(ctx, embedder.Request{Text: req.Query, Task: embedder.TaskQuery})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []legHit
	for _, coll := range collections {
		collHits, err := e.index.DenseSearch(ctx, coll, emb.Vector, overfetch, req.Filter)
		if err != nil {
			return nil, fmt.Errorf("dense search %s: %w", coll, err)
		}
		for _, h := range collHits {
			hits = append(hits, legHit{hit: h, collection: coll})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].hit.Score > hits[j].hit.Score })
	if len(hits) > overfetch {
		hits = hits[:overfetch]
	}
	return hits, nil
}

func (e *Engine) sparseLeg(ctx context.Context, req Request, collections []string, overfetch int) ([]legHit, error) {
	var hits []legHit
	for _, coll := range collections {
		collHits, err := e.index.SparseSearch(ctx, coll, req.Query, overfetch, req.Filter)
		if err != nil {
			return nil, fmt.Errorf("sparse search %s: %w", coll, err)
		}
		for _, h := range collHits {
			hits = append(hits, legHit{hit: h, collection: coll})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].hit.Score > hits[j].hit.Score })
	if len(hits) > overfetch {
		hits = hits[:overfetch]
	}
	return hits, nil
}

// fuse merges both legs by weighted Reciprocal Rank Fusion: each leg
// contributes weight/(k+rank) for every point it ranked.
func fuse(dense, sparse []legHit, weights config.FusionWeights, k float64) map[string]*candidate {
	cands := make(map[string]*candidate, len(dense)+len(sparse))

	ensure := func(lh legHit) *candidate {
		c, ok := cands[lh.hit.PointID]
		if !ok {
			c = &candidate{hit: lh.hit, collection: lh.collection}
			cands[lh.hit.PointID] = c
		}
		return c
	}

	for i, lh := range dense {
		c := ensure(lh)
		c.denseRank = i + 1
		c.fused += weights.Dense / (k + float64(i+1))
	}
	for i, lh := range sparse {
		c := ensure(lh)
		c.sparseRank = i + 1
		c.fused += weights.Sparse / (k + float64(i+1))
	}
	return cands
}

// applyBoosts adjusts fused scores with domain signals: extraction
// confidence dampens, era preference and offence intent add flat
// bonuses.
func (e *Engine) applyBoosts(cands map[string]*candidate, req Request) {
	floor := e.cfg.Retrieval.ConfidenceFloor
	for _, c := range cands {
		if conf := c.hit.Payload.Confidence; conf > 0 {
			c.fused *= floor + (1.0-floor)*conf
		}
		if req.PreferCurrent && c.hit.Payload.Era == types.EraCurrent {
			c.fused += e.cfg.Retrieval.CurrentEraBonus
		}
		if req.Type == types.QueryOffence && c.hit.Payload.IsOffence {
			c.fused += e.cfg.Retrieval.OffenceBonus
		}
	}
}

// dedup collapses candidates that resolve to the same legal unit: a
// statute section keeps only its best-scoring point across the section
// and sub-section collections, while case-law chunks stay distinct.
func dedup(cands map[string]*candidate) []*candidate {
	best := make(map[string]*candidate, len(cands))
	for _, c := range cands {
		key := "cl:" + c.hit.PointID
		if c.collection != vecindex.CollectionCaselaw {
			key = "st:" + c.hit.Payload.ActCode + ":" + c.hit.Payload.SectionNumber
		}
		if prev, ok := best[key]; !ok || c.fused > prev.fused {
			best[key] = c
		}
	}
	out := make([]*candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out
}

// mmrSelect greedily re-ranks by maximal marginal relevance. Similarity
// is act identity: two results from the same act are near-duplicates
// for diversification purposes, results from different acts are not.
func (e *Engine) mmrSelect(ranked []*candidate, limit int, lambda float64) []*candidate {
	if len(ranked) <= 1 || lambda >= 1.0 {
		return ranked
	}

	selected := make([]*candidate, 0, len(ranked))
	remaining := append([]*candidate(nil), ranked...)

	for len(remaining) > 0 && len(selected) < limit {
		bestIdx := 0
		bestScore := mmrScore(remaining[0], selected, lambda, e.cfg.Retrieval)
		for i := 1; i < len(remaining); i++ {
			if s := mmrScore(remaining[i], selected, lambda, e.cfg.Retrieval); s > bestScore {
				bestIdx, bestScore = i, s
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func mmrScore(c *candidate, selected []*candidate, lambda float64, cfg config.Retrieval) float64 {
	maxSim := 0.0
	for _, s := range selected {
		sim := cfg.OtherActSimilarity
		if s.hit.Payload.ActCode == c.hit.Payload.ActCode {
			sim = cfg.SameActSimilarity
		}
		if sim > maxSim {
			maxSim = sim
		}
	}
	return lambda*c.fused - (1.0-lambda)*maxSim
}

// rerank reorders the final slate with the cross-encoder. Any failure
// leaves the fused order untouched; a degraded ordering beats a failed
// query.
func (e *Engine) rerank(ctx context.Context, query string, ranked []*candidate) bool {
	if len(ranked) == 0 {
		return false
	}
	texts := make([]string, len(ranked))
	for i, c := range ranked {
		texts[i] = c.hit.Text
	}

	results, err := e.reranker.Rerank(ctx, query, texts)
	if err != nil {
		if !errors.Is(err, embedder.ErrRerankerUnavailable) {
			e.logger.Warn("rerank failed, keeping fused order", "error", err)
		}
		return false
	}
	if len(results) != len(ranked) {
		e.logger.Warn("rerank returned partial results, keeping fused order",
			"want", len(ranked), "got", len(results))
		return false
	}

	reordered := make([]*candidate, 0, len(ranked))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(ranked) {
			e.logger.Warn("rerank returned out-of-range index, keeping fused order", "index", r.Index)
			return false
		}
		reordered = append(reordered, ranked[r.Index])
	}
	copy(ranked, reordered)
	return true
}

var (
	sectionRefPattern  = regexp.MustCompile(`(?i)\bsection\s+\d{1,3}[a-z]?\b|^\s*\d{1,3}[a-z]?\s*$`)
	offenceTermPattern = regexp.MustCompile(`(?i)\b(punishment|punishable|offence|imprisonment|bailable|cognizable|sentence)\b`)
	conceptTermPattern = regexp.MustCompile(`(?i)\b(what|when|whether|meaning|difference|principle|doctrine)\b`)
)

// DetectQueryType infers the fusion-weight profile from the query
// surface: bare citations lean sparse, natural-language questions lean
// dense, punishment vocabulary marks offence intent.
func DetectQueryType(query string) types.QueryType {
	switch {
	case sectionRefPattern.MatchString(query):
		return types.QuerySectionLookup
	case offenceTermPattern.MatchString(query):
		return types.QueryOffence
	case conceptTermPattern.MatchString(query):
		return types.QueryConceptual
	default:
		return types.QueryGeneral
	}
}

func cacheKey(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%d|%.3f|%t|%t|%t", req.Query, req.Type, req.Limit,
		req.Diversity, req.PreferCurrent, req.IncludeCaselaw, req.Rerank)
	if f := req.Filter; f != nil {
		fmt.Fprintf(&b, "|a=%s", strings.Join(f.ActCodes, ","))
		for _, era := range f.Eras {
			fmt.Fprintf(&b, "|e=%s", era)
		}
		fmt.Fprintf(&b, "|d=%s|o=%t", strings.Join(f.Domains, ","), f.OffenceOnly)
	}
	return b.String()
}
