package vecindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// DenseSearch ranks a collection by cosine similarity against the query
// vector. Filters apply in SQL before any similarity is computed.
func (ix *Index) DenseSearch(ctx context.Context, collection string, queryVector []float32, limit int, filter *Filter) ([]Hit, error) {
	query := "SELECT point_id, text, payload, vector FROM points WHERE collection = ?"
	args := []interface{}{collection}
	query, args = applyFilter(query, args, filter)

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dense candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var payloadJSON string
		var vectorBlob []byte
		if err := rows.Scan(&hit.PointID, &hit.Text, &payloadJSON, &vectorBlob); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			return nil, fmt.Errorf("%w: point has %d dims, query has %d",
				ErrDimensionMismatch, len(vector), len(queryVector))
		}
		hit.Score = cosineSimilarity(queryVector, vector)
		if err := json.Unmarshal([]byte(payloadJSON), &hit.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SparseSearch ranks a collection by BM25 over the chunk text. The raw
// BM25 score (negative, lower is better) is normalized to (0,1].
func (ix *Index) SparseSearch(ctx context.Context, collection string, queryText string, limit int, filter *Filter) ([]Hit, error) {
	sanitized := sanitizeFTSQuery(queryText)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}

	query := `
		SELECT p.point_id, p.text, p.payload, bm25(points_fts) AS score
		FROM points_fts
		INNER JOIN points p ON points_fts.rowid = p.id
		WHERE points_fts MATCH ? AND p.collection = ?
	`
	args := []interface{}{sanitized, collection}
	query, args = applyFilter(query, args, filter)
	query += " ORDER BY score LIMIT ?"
	args = append(args, searchLimit(limit))

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute sparse search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var payloadJSON string
		var raw float64
		if err := rows.Scan(&hit.PointID, &hit.Text, &payloadJSON, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan sparse hit: %w", err)
		}
		hit.Score = 1.0 / (1.0 + math.Abs(raw)/50.0)
		if err := json.Unmarshal([]byte(payloadJSON), &hit.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func searchLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

// applyFilter appends the filterable-column conditions. The filter
// columns are denormalized from the payload at upsert time precisely so
// this stays a plain WHERE clause.
func applyFilter(query string, args []interface{}, filter *Filter) (string, []interface{}) {
	if filter == nil {
		return query, args
	}

	prefix := columnPrefix(query)

	if len(filter.ActCodes) > 0 {
		query += " AND " + prefix + "act_code IN (" + placeholders(len(filter.ActCodes)) + ")"
		for _, code := range filter.ActCodes {
			args = append(args, code)
		}
	}
	if len(filter.Eras) > 0 {
		query += " AND " + prefix + "era IN (" + placeholders(len(filter.Eras)) + ")"
		for _, era := range filter.Eras {
			args = append(args, string(era))
		}
	}
	if len(filter.Domains) > 0 {
		query += " AND " + prefix + "domain IN (" + placeholders(len(filter.Domains)) + ")"
		for _, d := range filter.Domains {
			args = append(args, d)
		}
	}
	if filter.OffenceOnly {
		query += " AND " + prefix + "is_offence = 1"
	}
	return query, args
}

func columnPrefix(query string) string {
	if strings.Contains(query, "points_fts") {
		return "p."
	}
	return ""
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// FTS5 operator pattern for escaping Boolean operators
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery quotes each term so user queries cannot inject FTS5
// syntax. Section citations like "302" or "124A" pass through as plain
// terms.
func sanitizeFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	escaped := strings.NewReplacer(
		`"`, ` `,
		`*`, ` `,
		`(`, ` `,
		`)`, ` `,
		`:`, ` `,
		`^`, ` `,
	).Replace(query)

	escaped = ftsOperatorPattern.ReplaceAllStringFunc(escaped, strings.ToLower)

	terms := strings.Fields(escaped)
	if len(terms) == 0 {
		return ""
	}
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " ")
}

// serializeVector converts a float32 slice to a little-endian byte blob
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineSimilarity is an exported helper for scoring outside the index,
// e.g. the transition activator's similarity spot-check.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}

// EraFilter builds the common current-era statute filter
func EraFilter(era types.Era) *Filter {
	return &Filter{Eras: []types.Era{era}}
}
