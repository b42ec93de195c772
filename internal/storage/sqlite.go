package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store and applies migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Act operations

// UpsertAct inserts or updates an act by its unique code, filling the ID
// back into the struct.
func (s *SQLiteStore) UpsertAct(ctx context.Context, act *types.Act) error {
	query := `
		INSERT INTO acts (code, name, year, era, status, replaces)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			year = excluded.year,
			era = excluded.era,
			status = excluded.status,
			replaces = excluded.replaces
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		act.Code, act.Name, act.Year, string(act.Era), string(act.Status), act.Replaces,
	).Scan(&act.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert act %s: %w", act.Code, err)
	}
	return nil
}

// GetActByCode retrieves an act by its unique code
func (s *SQLiteStore) GetActByCode(ctx context.Context, code string) (*types.Act, error) {
	query := `
		SELECT id, code, name, year, era, status, COALESCE(replaces, '')
		FROM acts WHERE code = ?
	`
	act := &types.Act{}
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&act.ID, &act.Code, &act.Name, &act.Year, &act.Era, &act.Status, &act.Replaces,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("act %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get act %s: %w", code, err)
	}
	return act, nil
}

// ListActs returns all acts ordered by era then code
func (s *SQLiteStore) ListActs(ctx context.Context) ([]*types.Act, error) {
	query := `
		SELECT id, code, name, year, era, status, COALESCE(replaces, '')
		FROM acts ORDER BY era, code
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list acts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var acts []*types.Act
	for rows.Next() {
		act := &types.Act{}
		if err := rows.Scan(&act.ID, &act.Code, &act.Name, &act.Year, &act.Era, &act.Status, &act.Replaces); err != nil {
			return nil, fmt.Errorf("failed to scan act: %w", err)
		}
		acts = append(acts, act)
	}
	return acts, rows.Err()
}

// Chapter operations

// UpsertChapter inserts or updates a chapter by (act, number)
func (s *SQLiteStore) UpsertChapter(ctx context.Context, ch *types.Chapter) error {
	query := `
		INSERT INTO chapters (act_id, number, ordinal, title, domain)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(act_id, number) DO UPDATE SET
			ordinal = excluded.ordinal,
			title = excluded.title,
			domain = excluded.domain
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		ch.ActID, ch.Number, ch.Ordinal, ch.Title, ch.Domain,
	).Scan(&ch.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert chapter %s: %w", ch.Number, err)
	}
	return nil
}

// GetChapter retrieves a chapter by act and number
func (s *SQLiteStore) GetChapter(ctx context.Context, actID int64, number string) (*types.Chapter, error) {
	query := `
		SELECT id, act_id, number, ordinal, COALESCE(title, ''), COALESCE(domain, '')
		FROM chapters WHERE act_id = ? AND number = ?
	`
	ch := &types.Chapter{}
	err := s.db.QueryRowContext(ctx, query, actID, number).Scan(
		&ch.ID, &ch.ActID, &ch.Number, &ch.Ordinal, &ch.Title, &ch.Domain,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chapter %s: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chapter %s: %w", number, err)
	}
	return ch, nil
}

// Section operations

// WriteSectionBundle writes one section's canonical rows atomically.
// Bundles with Stored=false persist only the audit record and review
// entry: the section failed the confidence gate and its text must not
// enter the canonical tables.
func (s *SQLiteStore) WriteSectionBundle(ctx context.Context, bundle *SectionBundle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if bundle.Stored {
		if err := bundle.Section.Validate(); err != nil {
			return fmt.Errorf("invalid section: %w", err)
		}
		if err := s.upsertSection(ctx, tx, bundle.Section); err != nil {
			return err
		}
		// Sub-sections are replaced wholesale; a re-extraction may
		// change their count or labels.
		if _, err := tx.ExecContext(ctx, "DELETE FROM sub_sections WHERE section_id = ?", bundle.Section.ID); err != nil {
			return fmt.Errorf("failed to clear sub-sections: %w", err)
		}
		for i := range bundle.Subs {
			sub := &bundle.Subs[i]
			sub.SectionID = bundle.Section.ID
			if err := sub.Validate(); err != nil {
				return fmt.Errorf("invalid sub-section %q: %w", sub.Label, err)
			}
			if err := s.insertSubSection(ctx, tx, sub); err != nil {
				return err
			}
		}
	}

	if bundle.Audit != nil {
		if err := s.insertAudit(ctx, tx, bundle.Audit); err != nil {
			return err
		}
	}
	if bundle.Review != nil {
		if err := s.insertReview(ctx, tx, bundle.Review); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit section bundle: %w", err)
	}
	return nil
}

func (s *SQLiteStore) upsertSection(ctx context.Context, q querier, sec *types.Section) error {
	query := `
		INSERT INTO sections (
			act_id, number, number_int, number_sfx, title, text, status, era, chapter_id,
			is_offence, cognizable, bailable, triable_by, punishment, max_term_days,
			has_subsections, has_illustrations, has_explanations, has_provisos,
			confidence, indexed
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(act_id, number) DO UPDATE SET
			number_int = excluded.number_int,
			number_sfx = excluded.number_sfx,
			title = excluded.title,
			text = excluded.text,
			status = excluded.status,
			era = excluded.era,
			chapter_id = excluded.chapter_id,
			is_offence = excluded.is_offence,
			cognizable = excluded.cognizable,
			bailable = excluded.bailable,
			triable_by = excluded.triable_by,
			punishment = excluded.punishment,
			max_term_days = excluded.max_term_days,
			has_subsections = excluded.has_subsections,
			has_illustrations = excluded.has_illustrations,
			has_explanations = excluded.has_explanations,
			has_provisos = excluded.has_provisos,
			confidence = excluded.confidence,
			indexed = 0,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`
	var chapterID interface{}
	if sec.ChapterID != 0 {
		chapterID = sec.ChapterID
	}
	err := q.QueryRowContext(ctx, query,
		sec.ActID, sec.Number, sec.NumberInt, sec.NumberSfx, sec.Title, sec.Text,
		string(sec.Status), string(sec.Era), chapterID,
		sec.Offence.IsOffence, sec.Offence.Cognizable, sec.Offence.Bailable,
		string(sec.Offence.TriableBy), sec.Offence.Punishment, sec.Offence.MaxTermDays,
		sec.Structure.HasSubsections, sec.Structure.HasIllustrations,
		sec.Structure.HasExplanations, sec.Structure.HasProvisos,
		sec.Confidence,
	).Scan(&sec.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert section %s: %w", sec.Number, err)
	}
	return nil
}

func (s *SQLiteStore) insertSubSection(ctx context.Context, q querier, sub *types.SubSection) error {
	query := `
		INSERT INTO sub_sections (section_id, label, kind, text, position)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		sub.SectionID, sub.Label, string(sub.Kind), sub.Text, sub.Position,
	).Scan(&sub.ID)
	if err != nil {
		return fmt.Errorf("failed to insert sub-section %q: %w", sub.Label, err)
	}
	return nil
}

const sectionColumns = `
	id, act_id, number, number_int, number_sfx, COALESCE(title, ''), text, status, era,
	COALESCE(chapter_id, 0), is_offence, cognizable, bailable, triable_by, punishment,
	max_term_days, has_subsections, has_illustrations, has_explanations, has_provisos,
	confidence, indexed
`

func scanSection(row interface{ Scan(...interface{}) error }) (*types.Section, error) {
	sec := &types.Section{}
	err := row.Scan(
		&sec.ID, &sec.ActID, &sec.Number, &sec.NumberInt, &sec.NumberSfx,
		&sec.Title, &sec.Text, &sec.Status, &sec.Era, &sec.ChapterID,
		&sec.Offence.IsOffence, &sec.Offence.Cognizable, &sec.Offence.Bailable,
		&sec.Offence.TriableBy, &sec.Offence.Punishment, &sec.Offence.MaxTermDays,
		&sec.Structure.HasSubsections, &sec.Structure.HasIllustrations,
		&sec.Structure.HasExplanations, &sec.Structure.HasProvisos,
		&sec.Confidence, &sec.Indexed,
	)
	if err != nil {
		return nil, err
	}
	return sec, nil
}

// GetSection retrieves a section by act and number
func (s *SQLiteStore) GetSection(ctx context.Context, actID int64, number string) (*types.Section, error) {
	query := "SELECT " + sectionColumns + " FROM sections WHERE act_id = ? AND number = ?"
	sec, err := scanSection(s.db.QueryRowContext(ctx, query, actID, number))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("section %s: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section %s: %w", number, err)
	}
	return sec, nil
}

// ListSectionsByAct returns all sections of an act in document order
func (s *SQLiteStore) ListSectionsByAct(ctx context.Context, actID int64) ([]*types.Section, error) {
	query := "SELECT " + sectionColumns + " FROM sections WHERE act_id = ? ORDER BY number_int, number_sfx, number"
	rows, err := s.db.QueryContext(ctx, query, actID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sections []*types.Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// ListSubSections returns a section's sub-sections in document order
func (s *SQLiteStore) ListSubSections(ctx context.Context, sectionID int64) ([]*types.SubSection, error) {
	query := `
		SELECT id, section_id, label, kind, text, position
		FROM sub_sections WHERE section_id = ? ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sub-sections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []*types.SubSection
	for rows.Next() {
		sub := &types.SubSection{}
		if err := rows.Scan(&sub.ID, &sub.SectionID, &sub.Label, &sub.Kind, &sub.Text, &sub.Position); err != nil {
			return nil, fmt.Errorf("failed to scan sub-section: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// MarkIndexed records that a section's chunks landed in the vector
// index. Called only after the index write succeeds.
func (s *SQLiteStore) MarkIndexed(ctx context.Context, sectionID int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sections SET indexed = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?", sectionID)
	if err != nil {
		return fmt.Errorf("failed to mark section indexed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("section %d: %w", sectionID, ErrNotFound)
	}
	return nil
}

// Transition mapping operations

const mappingColumns = `
	id, old_act_id, old_section, new_act_id, COALESCE(new_section_id, 0), new_section,
	type, confidence, active, approved_by, scope_change, correct_votes, wrong_votes
`

func scanMapping(row interface{ Scan(...interface{}) error }) (*types.TransitionMapping, error) {
	m := &types.TransitionMapping{}
	err := row.Scan(
		&m.ID, &m.OldActID, &m.OldSection, &m.NewActID, &m.NewSectionID, &m.NewSection,
		&m.Type, &m.Confidence, &m.Active, &m.ApprovedBy, &m.ScopeChange,
		&m.CorrectVotes, &m.WrongVotes,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpsertMapping inserts or updates a mapping by its natural key.
// Activation state is deliberately not touched on conflict: re-ingestion
// must never reactivate or deactivate an edge.
func (s *SQLiteStore) UpsertMapping(ctx context.Context, m *types.TransitionMapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}
	var newSectionID interface{}
	if m.NewSectionID != 0 {
		newSectionID = m.NewSectionID
	}
	query := `
		INSERT INTO transition_mappings (
			old_act_id, old_section, new_act_id, new_section_id, new_section,
			type, confidence, active, approved_by, scope_change
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(old_act_id, old_section, new_act_id, new_section) DO UPDATE SET
			new_section_id = excluded.new_section_id,
			type = excluded.type,
			scope_change = excluded.scope_change,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		m.OldActID, m.OldSection, m.NewActID, newSectionID, m.NewSection,
		string(m.Type), m.Confidence, m.Active, m.ApprovedBy, m.ScopeChange,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert mapping %s->%s: %w", m.OldSection, m.NewSection, err)
	}
	return nil
}

// GetMapping retrieves a mapping by ID
func (s *SQLiteStore) GetMapping(ctx context.Context, id int64) (*types.TransitionMapping, error) {
	query := "SELECT " + mappingColumns + " FROM transition_mappings WHERE id = ?"
	m, err := scanMapping(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("mapping %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping %d: %w", id, err)
	}
	return m, nil
}

// ListInactiveMappings returns every mapping awaiting activation
func (s *SQLiteStore) ListInactiveMappings(ctx context.Context) ([]*types.TransitionMapping, error) {
	query := "SELECT " + mappingColumns + " FROM transition_mappings WHERE active = 0 ORDER BY old_act_id, old_section"
	return s.queryMappings(ctx, query)
}

// ListMappingsByOldRef returns all mappings from one old-law section
func (s *SQLiteStore) ListMappingsByOldRef(ctx context.Context, oldActID int64, oldSection string) ([]*types.TransitionMapping, error) {
	query := "SELECT " + mappingColumns + " FROM transition_mappings WHERE old_act_id = ? AND old_section = ? ORDER BY new_section"
	return s.queryMappings(ctx, query, oldActID, oldSection)
}

func (s *SQLiteStore) queryMappings(ctx context.Context, query string, args ...interface{}) ([]*types.TransitionMapping, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []*types.TransitionMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// ActivateMappings applies a batch of activation decisions in a single
// transaction. Either every mapping activates or none does.
func (s *SQLiteStore) ActivateMappings(ctx context.Context, activations []MappingActivation) error {
	if len(activations) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE transition_mappings
		SET active = 1, confidence = ?, approved_by = ?,
			scope_change = CASE WHEN ? != '' THEN ? ELSE scope_change END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	for _, a := range activations {
		result, err := tx.ExecContext(ctx, query, a.Confidence, a.ApprovedBy, a.Note, a.Note, a.MappingID)
		if err != nil {
			return fmt.Errorf("failed to activate mapping %d: %w", a.MappingID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("mapping %d: %w", a.MappingID, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activations: %w", err)
	}
	return nil
}

// RecordMappingVote records one community vote on a mapping and returns
// the updated row. Reaching the wrong-vote threshold deactivates the
// mapping and pins its confidence at the demoted level.
func (s *SQLiteStore) RecordMappingVote(ctx context.Context, mappingID int64, correct bool) (*types.TransitionMapping, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	column := "wrong_votes"
	if correct {
		column = "correct_votes"
	}
	result, err := tx.ExecContext(ctx,
		"UPDATE transition_mappings SET "+column+" = "+column+" + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		mappingID)
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("mapping %d: %w", mappingID, ErrNotFound)
	}

	if !correct {
		_, err = tx.ExecContext(ctx, `
			UPDATE transition_mappings
			SET active = 0, confidence = ?
			WHERE id = ? AND wrong_votes >= ?
		`, types.DemotedConfidence, mappingID, types.WrongVoteDemotionThreshold)
		if err != nil {
			return nil, fmt.Errorf("failed to apply vote demotion: %w", err)
		}
	}

	m, err := scanMapping(tx.QueryRowContext(ctx,
		"SELECT "+mappingColumns+" FROM transition_mappings WHERE id = ?", mappingID))
	if err != nil {
		return nil, fmt.Errorf("failed to reread mapping: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}
	return m, nil
}

// BestActiveMapping returns the highest-confidence active mapping whose
// target is the given section. Used to fill supersession context on
// indexed chunks.
func (s *SQLiteStore) BestActiveMapping(ctx context.Context, newSectionID int64) (*types.TransitionMapping, error) {
	query := "SELECT " + mappingColumns + ` FROM transition_mappings
		WHERE new_section_id = ? AND active = 1
		ORDER BY confidence DESC, id LIMIT 1`
	m, err := scanMapping(s.db.QueryRowContext(ctx, query, newSectionID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no active mapping for section %d: %w", newSectionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active mapping: %w", err)
	}
	return m, nil
}

// Audit and review operations

func (s *SQLiteStore) insertAudit(ctx context.Context, q querier, rec *AuditRecord) error {
	query := `
		INSERT INTO extraction_audit (
			run_id, act_id, section_number, checks_run, checks_passed,
			confidence, noise_categories, raw_length, clean_length, flagged_for_review
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		rec.RunID, rec.ActID, rec.SectionNumber, rec.ChecksRun, rec.ChecksPassed,
		rec.Confidence, strings.Join(rec.NoiseCategories, ","),
		rec.RawLength, rec.CleanLength, rec.FlaggedForReview,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) insertReview(ctx context.Context, q querier, entry *ReviewEntry) error {
	if entry.Status == "" {
		entry.Status = ReviewPending
	}
	query := `
		INSERT INTO review_queue (act_id, section_number, raw_text, clean_text, reason, confidence, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		entry.ActID, entry.SectionNumber, entry.RawText, entry.CleanText,
		entry.Reason, entry.Confidence, string(entry.Status),
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert review entry: %w", err)
	}
	return nil
}

// ListAuditRecords returns the audit trail of one section, newest first
func (s *SQLiteStore) ListAuditRecords(ctx context.Context, actID int64, sectionNumber string) ([]*AuditRecord, error) {
	query := `
		SELECT id, run_id, act_id, section_number, checks_run, checks_passed,
			confidence, noise_categories, raw_length, clean_length, flagged_for_review, created_at
		FROM extraction_audit
		WHERE act_id = ? AND section_number = ?
		ORDER BY id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, actID, sectionNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*AuditRecord
	for rows.Next() {
		rec := &AuditRecord{}
		var noise string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.ActID, &rec.SectionNumber,
			&rec.ChecksRun, &rec.ChecksPassed, &rec.Confidence, &noise,
			&rec.RawLength, &rec.CleanLength, &rec.FlaggedForReview, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if noise != "" {
			rec.NoiseCategories = strings.Split(noise, ",")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListPendingReviews returns pending review entries, optionally filtered
// by act (actID=0 means all acts).
func (s *SQLiteStore) ListPendingReviews(ctx context.Context, actID int64) ([]*ReviewEntry, error) {
	query := `
		SELECT id, act_id, section_number, raw_text, clean_text, reason, confidence, status, created_at
		FROM review_queue
		WHERE status = 'pending' AND (? = 0 OR act_id = ?)
		ORDER BY confidence ASC
	`
	rows, err := s.db.QueryContext(ctx, query, actID, actID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*ReviewEntry
	for rows.Next() {
		e := &ReviewEntry{}
		if err := rows.Scan(&e.ID, &e.ActID, &e.SectionNumber, &e.RawText, &e.CleanText,
			&e.Reason, &e.Confidence, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateReviewStatus transitions a review entry
func (s *SQLiteStore) UpdateReviewStatus(ctx context.Context, reviewID int64, status ReviewStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE review_queue SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(status), reviewID)
	if err != nil {
		return fmt.Errorf("failed to update review status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("review %d: %w", reviewID, ErrNotFound)
	}
	return nil
}

// Read-only collaborator operations

// LookupSection resolves a citation to a stored section with its act and
// chapter context. Completeness means the text landed in the canonical
// store, not merely that a row exists.
func (s *SQLiteStore) LookupSection(ctx context.Context, actCode, number string) (*SectionLookup, error) {
	act, err := s.GetActByCode(ctx, actCode)
	if err != nil {
		return nil, err
	}
	sec, err := s.GetSection(ctx, act.ID, number)
	if err != nil {
		return nil, err
	}
	lookup := &SectionLookup{
		Section:  sec,
		ActCode:  act.Code,
		ActName:  act.Name,
		Era:      act.Era,
		Complete: strings.TrimSpace(sec.Text) != "",
	}
	if sec.ChapterID != 0 {
		ch := &types.Chapter{}
		err := s.db.QueryRowContext(ctx,
			"SELECT id, act_id, number, ordinal, COALESCE(title, ''), COALESCE(domain, '') FROM chapters WHERE id = ?",
			sec.ChapterID,
		).Scan(&ch.ID, &ch.ActID, &ch.Number, &ch.Ordinal, &ch.Title, &ch.Domain)
		if err == nil {
			lookup.Chapter = ch
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to load chapter: %w", err)
		}
	}
	return lookup, nil
}

// ActiveMappings resolves an old-law citation to its active current-law
// edges. Only active mappings are visible to collaborators.
func (s *SQLiteStore) ActiveMappings(ctx context.Context, oldActCode, oldSection string) ([]*types.TransitionMapping, error) {
	act, err := s.GetActByCode(ctx, oldActCode)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + mappingColumns + ` FROM transition_mappings
		WHERE old_act_id = ? AND old_section = ? AND active = 1
		ORDER BY confidence DESC, new_section`
	return s.queryMappings(ctx, query, act.ID, oldSection)
}
