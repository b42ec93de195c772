// Package vecindex stores and searches indexed statute chunks as
// points: a deterministic ID, a dense vector, the chunk text, and a
// denormalized payload. Dense ranking uses cosine similarity computed
// in Go over BLOB-serialized vectors; sparse ranking uses SQLite FTS5
// BM25 over the chunk text. Both legs accept the same server-side
// filters so filtering never happens after ranking.
package vecindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lawkhoj/lawkhoj/internal/storage"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// Collection names. Statute and sub-section points are kept apart from
// case-law points so the retrieval engine can weight and deduplicate
// them differently.
const (
	CollectionStatutes    = "statute_points"
	CollectionSubSections = "subsection_points"
	CollectionCaselaw     = "caselaw_points"
)

// ErrDimensionMismatch is returned when a query vector's dimension
// disagrees with the stored points.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// pointNamespace seeds the UUIDv5 derivation of point IDs
var pointNamespace = uuid.MustParse("8f14e45f-ceea-467f-a0e6-4b8a2d5c9e01")

// PointID derives the deterministic ID for one chunk of one section.
// Re-indexing the same chunk always yields the same ID, which makes
// upserts idempotent instead of duplicating points.
func PointID(collection string, sectionID int64, chunkIndex int) string {
	name := fmt.Sprintf("%s:%d:%d", collection, sectionID, chunkIndex)
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

// Point is one indexed chunk
type Point struct {
	ID         string
	Collection string
	Text       string
	Vector     []float32
	Payload    types.ChunkPayload
}

// Hit is one search result from either leg
type Hit struct {
	PointID string
	Score   float64
	Text    string
	Payload types.ChunkPayload
}

// Filter narrows a search server-side before ranking
type Filter struct {
	ActCodes    []string
	Eras        []types.Era
	Domains     []string
	OffenceOnly bool
}

// Index is the SQLite-backed point store
type Index struct {
	db *sql.DB
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS points (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    point_id TEXT NOT NULL UNIQUE,
    collection TEXT NOT NULL,
    text TEXT NOT NULL,
    vector BLOB NOT NULL,
    payload TEXT NOT NULL,
    act_code TEXT NOT NULL DEFAULT '',
    era TEXT NOT NULL DEFAULT '',
    domain TEXT NOT NULL DEFAULT '',
    is_offence BOOLEAN NOT NULL DEFAULT 0,
    section_number TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_points_collection ON points(collection);
CREATE INDEX IF NOT EXISTS idx_points_act ON points(act_code);
CREATE INDEX IF NOT EXISTS idx_points_era ON points(era);
CREATE INDEX IF NOT EXISTS idx_points_offence ON points(is_offence);

CREATE VIRTUAL TABLE IF NOT EXISTS points_fts USING fts5(
    text,
    content='points',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS points_ai AFTER INSERT ON points BEGIN
    INSERT INTO points_fts(rowid, text) VALUES (new.id, new.text);
END;

CREATE TRIGGER IF NOT EXISTS points_ad AFTER DELETE ON points BEGIN
    INSERT INTO points_fts(points_fts, rowid, text) VALUES ('delete', old.id, old.text);
END;

CREATE TRIGGER IF NOT EXISTS points_au AFTER UPDATE ON points BEGIN
    INSERT INTO points_fts(points_fts, rowid, text) VALUES ('delete', old.id, old.text);
    INSERT INTO points_fts(rowid, text) VALUES (new.id, new.text);
END;
`

// New opens (or creates) a point index at the given path
func New(path string) (*Index, error) {
	db, err := sql.Open(storage.DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(indexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the index database
func (ix *Index) Close() error {
	return ix.db.Close()
}

// UpsertPoints writes a batch of points in one transaction. Existing
// point IDs are overwritten, so re-indexing a section updates its
// points in place.
func (ix *Index) UpsertPoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO points (point_id, collection, text, vector, payload, act_code, era, domain, is_offence, section_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(point_id) DO UPDATE SET
			collection = excluded.collection,
			text = excluded.text,
			vector = excluded.vector,
			payload = excluded.payload,
			act_code = excluded.act_code,
			era = excluded.era,
			domain = excluded.domain,
			is_offence = excluded.is_offence,
			section_number = excluded.section_number,
			updated_at = CURRENT_TIMESTAMP
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload for point %s: %w", p.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			p.ID, p.Collection, p.Text, serializeVector(p.Vector), string(payload),
			p.Payload.ActCode, string(p.Payload.Era), p.Payload.Domain,
			p.Payload.IsOffence, p.Payload.SectionNumber,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit point batch: %w", err)
	}
	return nil
}

// DeleteSectionPoints removes every point of one section from a
// collection, for re-indexing after a section shrinks.
func (ix *Index) DeleteSectionPoints(ctx context.Context, collection, actCode, sectionNumber string) error {
	_, err := ix.db.ExecContext(ctx,
		"DELETE FROM points WHERE collection = ? AND act_code = ? AND section_number = ?",
		collection, actCode, sectionNumber)
	if err != nil {
		return fmt.Errorf("failed to delete section points: %w", err)
	}
	return nil
}

// Count returns the number of points in a collection
func (ix *Index) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM points WHERE collection = ?", collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return n, nil
}

// GetPoint retrieves one point by ID
func (ix *Index) GetPoint(ctx context.Context, pointID string) (*Point, error) {
	var p Point
	var vectorBlob []byte
	var payloadJSON string
	err := ix.db.QueryRowContext(ctx,
		"SELECT point_id, collection, text, vector, payload FROM points WHERE point_id = ?",
		pointID).Scan(&p.ID, &p.Collection, &p.Text, &vectorBlob, &payloadJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("point %s: %w", pointID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get point: %w", err)
	}
	p.Vector = deserializeVector(vectorBlob)
	if err := json.Unmarshal([]byte(payloadJSON), &p.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &p, nil
}
