// Package storage implements the canonical statute store over SQLite.
// All writes use natural-key upserts (INSERT ... ON CONFLICT) so that
// re-ingesting a document is idempotent, and the store supports safe
// concurrent upsert from parallel per-document pipelines.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// AuditRecord is the append-only per-section-per-run extraction audit
// row. Records are only ever inserted, never updated.
type AuditRecord struct {
	ID               int64
	RunID            string
	ActID            int64
	SectionNumber    string
	ChecksRun        int
	ChecksPassed     int
	Confidence       float64
	NoiseCategories  []string
	RawLength        int
	CleanLength      int
	FlaggedForReview bool
	CreatedAt        time.Time
}

// ReviewStatus is the lifecycle state of a review-queue entry.
type ReviewStatus string

const (
	ReviewPending           ReviewStatus = "pending"
	ReviewApproved          ReviewStatus = "approved"
	ReviewRejected          ReviewStatus = "rejected"
	ReviewNeedsReextraction ReviewStatus = "needs_reextraction"
)

// ReviewEntry is a section flagged for human attention, with raw and
// cleaned text snapshots.
type ReviewEntry struct {
	ID            int64
	ActID         int64
	SectionNumber string
	RawText       string
	CleanText     string
	Reason        string
	Confidence    float64
	Status        ReviewStatus
	CreatedAt     time.Time
}

// SectionBundle groups the writes that must land atomically for one
// section: the section row, its sub-sections, the audit record, and
// the review entry when one is required. Stored=false bundles write
// only the audit record and review entry (the confidence gate rejected
// the section).
type SectionBundle struct {
	Section *types.Section
	Subs    []types.SubSection
	Audit   *AuditRecord
	Review  *ReviewEntry
	Stored  bool
}

// MappingActivation is one activation decision applied by the
// transition activator.
type MappingActivation struct {
	MappingID  int64
	Confidence float64
	ApprovedBy string
	Note       string
}

// SectionLookup is the payload of the citation-verification
// collaborator's existence+completeness lookup.
type SectionLookup struct {
	Section  *types.Section
	ActCode  string
	ActName  string
	Era      types.Era
	Chapter  *types.Chapter
	Complete bool // Text present and confidence above the write gate
}

// Store is the canonical-store interface consumed by the pipeline and
// by read-only collaborators. The citation and normalization
// collaborators use LookupSection and ActiveMappings only; they must
// never activate mappings themselves.
type Store interface {
	// Acts and chapters
	UpsertAct(ctx context.Context, act *types.Act) error
	GetActByCode(ctx context.Context, code string) (*types.Act, error)
	ListActs(ctx context.Context) ([]*types.Act, error)
	UpsertChapter(ctx context.Context, ch *types.Chapter) error
	GetChapter(ctx context.Context, actID int64, number string) (*types.Chapter, error)

	// Sections
	WriteSectionBundle(ctx context.Context, bundle *SectionBundle) error
	GetSection(ctx context.Context, actID int64, number string) (*types.Section, error)
	ListSectionsByAct(ctx context.Context, actID int64) ([]*types.Section, error)
	ListSubSections(ctx context.Context, sectionID int64) ([]*types.SubSection, error)
	MarkIndexed(ctx context.Context, sectionID int64) error

	// Transition mappings
	UpsertMapping(ctx context.Context, m *types.TransitionMapping) error
	GetMapping(ctx context.Context, id int64) (*types.TransitionMapping, error)
	ListInactiveMappings(ctx context.Context) ([]*types.TransitionMapping, error)
	ListMappingsByOldRef(ctx context.Context, oldActID int64, oldSection string) ([]*types.TransitionMapping, error)
	ActivateMappings(ctx context.Context, activations []MappingActivation) error
	RecordMappingVote(ctx context.Context, mappingID int64, correct bool) (*types.TransitionMapping, error)
	BestActiveMapping(ctx context.Context, newSectionID int64) (*types.TransitionMapping, error)

	// Audit and review
	ListAuditRecords(ctx context.Context, actID int64, sectionNumber string) ([]*AuditRecord, error)
	ListPendingReviews(ctx context.Context, actID int64) ([]*ReviewEntry, error)
	UpdateReviewStatus(ctx context.Context, reviewID int64, status ReviewStatus) error

	// Read-only collaborator interfaces
	LookupSection(ctx context.Context, actCode, number string) (*SectionLookup, error)
	ActiveMappings(ctx context.Context, oldActCode, oldSection string) ([]*types.TransitionMapping, error)

	Close() error
}
