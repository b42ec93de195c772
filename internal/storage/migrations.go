package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Acts: bodies of law, seeded at bootstrap
CREATE TABLE IF NOT EXISTS acts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    year INTEGER,
    era TEXT NOT NULL,
    status TEXT NOT NULL,
    replaces TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_acts_era ON acts(era);

-- Chapters: numbering kept in two parallel forms because source
-- documents mix Roman and Arabic conventions
CREATE TABLE IF NOT EXISTS chapters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    act_id INTEGER NOT NULL,
    number TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    title TEXT,
    domain TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (act_id) REFERENCES acts(id) ON DELETE CASCADE,
    UNIQUE(act_id, number)
);

CREATE INDEX IF NOT EXISTS idx_chapters_act ON chapters(act_id);

-- Sections: the central entity; number is TEXT and never coerced
CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    act_id INTEGER NOT NULL,
    number TEXT NOT NULL,
    number_int INTEGER DEFAULT 0,
    number_sfx TEXT DEFAULT '',
    title TEXT,
    text TEXT NOT NULL,
    status TEXT NOT NULL,
    era TEXT NOT NULL,
    chapter_id INTEGER,
    is_offence BOOLEAN DEFAULT 0,
    cognizable BOOLEAN DEFAULT 0,
    bailable BOOLEAN DEFAULT 0,
    triable_by TEXT DEFAULT '',
    punishment TEXT DEFAULT '',
    max_term_days INTEGER DEFAULT 0,
    has_subsections BOOLEAN DEFAULT 0,
    has_illustrations BOOLEAN DEFAULT 0,
    has_explanations BOOLEAN DEFAULT 0,
    has_provisos BOOLEAN DEFAULT 0,
    confidence REAL NOT NULL,
    indexed BOOLEAN DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (act_id) REFERENCES acts(id) ON DELETE CASCADE,
    FOREIGN KEY (chapter_id) REFERENCES chapters(id) ON DELETE SET NULL,
    UNIQUE(act_id, number)
);

CREATE INDEX IF NOT EXISTS idx_sections_act ON sections(act_id);
CREATE INDEX IF NOT EXISTS idx_sections_number ON sections(number);
CREATE INDEX IF NOT EXISTS idx_sections_offence ON sections(is_offence);
CREATE INDEX IF NOT EXISTS idx_sections_indexed ON sections(indexed);

-- Sub-sections
CREATE TABLE IF NOT EXISTS sub_sections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    section_id INTEGER NOT NULL,
    label TEXT NOT NULL,
    kind TEXT NOT NULL,
    text TEXT NOT NULL,
    position INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (section_id) REFERENCES sections(id) ON DELETE CASCADE,
    UNIQUE(section_id, label)
);

CREATE INDEX IF NOT EXISTS idx_sub_sections_section ON sub_sections(section_id);

-- Transition mappings: directed old-law -> current-law edges.
-- new_section_id is NULL for deleted provisions.
CREATE TABLE IF NOT EXISTS transition_mappings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    old_act_id INTEGER NOT NULL,
    old_section TEXT NOT NULL,
    new_act_id INTEGER NOT NULL,
    new_section_id INTEGER,
    new_section TEXT DEFAULT '',
    type TEXT NOT NULL,
    confidence REAL DEFAULT 0,
    active BOOLEAN DEFAULT 0,
    approved_by TEXT DEFAULT '',
    scope_change TEXT DEFAULT '',
    correct_votes INTEGER DEFAULT 0,
    wrong_votes INTEGER DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (old_act_id) REFERENCES acts(id) ON DELETE CASCADE,
    FOREIGN KEY (new_act_id) REFERENCES acts(id) ON DELETE CASCADE,
    FOREIGN KEY (new_section_id) REFERENCES sections(id) ON DELETE SET NULL,
    UNIQUE(old_act_id, old_section, new_act_id, new_section),
    CHECK (old_act_id != new_act_id)
);

CREATE INDEX IF NOT EXISTS idx_mappings_old ON transition_mappings(old_act_id, old_section);
CREATE INDEX IF NOT EXISTS idx_mappings_new ON transition_mappings(new_section_id);
CREATE INDEX IF NOT EXISTS idx_mappings_active ON transition_mappings(active);

-- Extraction audit: append-only, one row per section per run
CREATE TABLE IF NOT EXISTS extraction_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    act_id INTEGER NOT NULL,
    section_number TEXT NOT NULL,
    checks_run INTEGER NOT NULL,
    checks_passed INTEGER NOT NULL,
    confidence REAL NOT NULL,
    noise_categories TEXT DEFAULT '',
    raw_length INTEGER DEFAULT 0,
    clean_length INTEGER DEFAULT 0,
    flagged_for_review BOOLEAN DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (act_id) REFERENCES acts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_audit_section ON extraction_audit(act_id, section_number);
CREATE INDEX IF NOT EXISTS idx_audit_run ON extraction_audit(run_id);

-- Review queue
CREATE TABLE IF NOT EXISTS review_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    act_id INTEGER NOT NULL,
    section_number TEXT NOT NULL,
    raw_text TEXT NOT NULL,
    clean_text TEXT NOT NULL,
    reason TEXT NOT NULL,
    confidence REAL NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (act_id) REFERENCES acts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_review_status ON review_queue(status);
CREATE INDEX IF NOT EXISTS idx_review_section ON review_queue(act_id, section_number);
`

const migrationV1Down = `
DROP TABLE IF EXISTS review_queue;
DROP TABLE IF EXISTS extraction_audit;
DROP TABLE IF EXISTS transition_mappings;
DROP TABLE IF EXISTS sub_sections;
DROP TABLE IF EXISTS sections;
DROP TABLE IF EXISTS chapters;
DROP TABLE IF EXISTS acts;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		var currentVersionStr string
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersionStr)
		if err == sql.ErrNoRows || currentVersionStr == "" {
			currentVersion = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_version: %w", err)
		} else {
			currentVersion, err = semver.NewVersion(currentVersionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
			}
		}
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}
