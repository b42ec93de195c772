// Package enrich merges externally authored per-section metadata
// (chapter title, legal domain, legacy-law references) onto parsed
// sections. The metadata source is independently maintained and is
// never a source of legal text; only the document extraction is.
//
// Two classes of known data-quality defects in the source metadata are
// handled explicitly rather than silently: a deny-list of (section →
// old-reference) pairs known to be erroneous noise, and a seed-list
// correcting cases where the metadata omits a reference documented only
// in free-text notes.
package enrich

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SectionMeta is the enrichment record for one section.
type SectionMeta struct {
	ChapterTitle string   `yaml:"chapter_title"`
	Domain       string   `yaml:"domain"`
	OldRefs      []string `yaml:"old_sections"`
}

// Metadata is the per-law-body enrichment file, keyed by section
// number.
type Metadata struct {
	ActCode     string                 `yaml:"act"`
	ReplacesAct string                 `yaml:"replaces_act"`
	Sections    map[string]SectionMeta `yaml:"sections"`
}

// Load reads a per-act enrichment metadata file.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read enrichment metadata: %w", err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse enrichment metadata: %w", err)
	}
	if meta.ActCode == "" {
		return nil, fmt.Errorf("enrichment metadata missing act code")
	}
	return &meta, nil
}

type refPair struct {
	section string
	oldRef  string
}

// defaultDenyList holds (section → old-ref) pairs present in the
// upstream metadata but documented as erroneous. They are removed
// before any merge.
var defaultDenyList = map[refPair]bool{
	{"303", "378"}: true, // snatching wrongly linked to theft definition
	{"3", "34"}:    true, // general-explanations section noise row
	{"2", "52"}:    true,
}

// defaultSeedList adds references the upstream metadata omits; each is
// documented only in the source's free-text notes.
var defaultSeedList = map[string][]string{
	"106": {"304A"}, // death by negligence carried over from notes
	"104": {"303"},
}

// subClauseSuffix matches an old reference with a sub-clause suffix,
// e.g. "376(1)"; references collapse to the base section number so that
// multiple sub-clause references form one edge for split detection.
var subClauseSuffix = regexp.MustCompile(`^(\d+[A-Z]{0,2})\(\d+\)$`)

// Merger applies enrichment metadata with the correction tables.
type Merger struct {
	deny map[refPair]bool
	seed map[string][]string
}

// New creates a merger with the default correction tables.
func New() *Merger {
	return &Merger{deny: defaultDenyList, seed: defaultSeedList}
}

// NewWithTables creates a merger with explicit tables, used by tests.
func NewWithTables(deny map[refPair]bool, seed map[string][]string) *Merger {
	if deny == nil {
		deny = map[refPair]bool{}
	}
	if seed == nil {
		seed = map[string][]string{}
	}
	return &Merger{deny: deny, seed: seed}
}

// DenyPair builds a deny-list key; exported for test table setup.
func DenyPair(section, oldRef string) refPair {
	return refPair{section: section, oldRef: oldRef}
}

// Lookup returns the corrected enrichment record for a section number.
// The boolean reports whether the metadata had any record at all; a
// seeded reference alone still yields ok=true.
func (m *Merger) Lookup(meta *Metadata, sectionNumber string) (SectionMeta, bool) {
	rec, ok := meta.Sections[sectionNumber]
	seeded := m.seed[sectionNumber]
	if !ok && len(seeded) == 0 {
		return SectionMeta{}, false
	}

	refs := make([]string, 0, len(rec.OldRefs)+len(seeded))
	refs = append(refs, rec.OldRefs...)
	refs = append(refs, seeded...)

	out := SectionMeta{
		ChapterTitle: rec.ChapterTitle,
		Domain:       rec.Domain,
		OldRefs:      m.normalizeRefs(sectionNumber, refs),
	}
	return out, true
}

// normalizeRefs applies the deny-list, collapses sub-clause suffixes to
// the base section number, and de-duplicates while preserving order.
func (m *Merger) normalizeRefs(sectionNumber string, refs []string) []string {
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if sm := subClauseSuffix.FindStringSubmatch(ref); sm != nil {
			ref = sm[1]
		}
		if m.deny[refPair{section: sectionNumber, oldRef: ref}] {
			continue
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}
