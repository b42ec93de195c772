package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Era classifies a law body as currently in force or superseded.
type Era string

const (
	EraLegacy  Era = "legacy"
	EraCurrent Era = "current"
	EraOther   Era = "other"
)

// ActStatus is the lifecycle state of an act.
type ActStatus string

const (
	ActActive   ActStatus = "active"
	ActRepealed ActStatus = "repealed"
)

// SectionStatus is the lifecycle state of a section.
type SectionStatus string

const (
	SectionActive   SectionStatus = "active"
	SectionRepealed SectionStatus = "repealed"
	SectionOmitted  SectionStatus = "omitted"
)

// TriableBy enumerates which court tier tries an offence.
type TriableBy string

const (
	TriableMagistrate TriableBy = "magistrate"
	TriableSessions   TriableBy = "sessions"
	TriableAnyCourt   TriableBy = "any"
)

// PunishmentLife is the sentinel punishment descriptor for life
// imprisonment; it is stored instead of a year count.
const PunishmentLife = "imprisonment_for_life"

// Act is a named body of law, created once at bootstrap.
type Act struct {
	ID       int64
	Code     string // e.g. "IPC", "BNS"; unique
	Name     string
	Year     int
	Era      Era
	Status   ActStatus
	Replaces string // Code of the act this one supersedes, if any
}

// Chapter groups sections within an act. Numbering is stored in two
// parallel forms because source documents mix Roman and Arabic
// conventions: Number is the canonical Roman form, Ordinal the integer
// used for sort order.
type Chapter struct {
	ID      int64
	ActID   int64
	Number  string // Canonical Roman numeral, e.g. "XVI"
	Ordinal int
	Title   string
	Domain  string // From enrichment metadata, e.g. "offences_against_body"
}

// OffenceClass carries the procedural classification of an offence
// section. Sections that are not offences leave it zero-valued.
type OffenceClass struct {
	IsOffence   bool
	Cognizable  bool
	Bailable    bool
	TriableBy   TriableBy
	Punishment  string // Free-text descriptor or PunishmentLife
	MaxTermDays int    // 0 when unspecified or life
}

// StructureFlags records which sub-structures a section is known to
// contain; the cleaner's non-mutating verification pass and the
// validator's clause-count check both consume them.
type StructureFlags struct {
	HasSubsections   bool
	HasIllustrations bool
	HasExplanations  bool
	HasProvisos      bool
}

// Section is the central entity of the canonical store. Unique per
// (act, section number). Number is a string and must tolerate
// alphanumeric suffixes ("124A", "5.1"); it is never coerced to an
// integer.
type Section struct {
	ID         int64
	ActID      int64
	Number     string
	NumberInt  int    // Parsed integer part, 0 when non-numeric
	NumberSfx  string // Letter suffix, e.g. "A" for "124A"
	Title      string
	Text       string // Sourced exclusively from document extraction
	Status     SectionStatus
	Era        Era
	ChapterID  int64
	Offence    OffenceClass
	Structure  StructureFlags
	Confidence float64 // Extraction confidence in [0,1]
	Indexed    bool    // Set only after a successful vector-index write
}

// SubSectionKind tags the structural role of a sub-section.
type SubSectionKind string

const (
	SubNumbered     SubSectionKind = "numbered"
	SubLettered     SubSectionKind = "lettered"
	SubExplanation  SubSectionKind = "explanation"
	SubProviso      SubSectionKind = "proviso"
	SubIllustration SubSectionKind = "illustration"
)

// SubSection is a child of a Section, unique per (section, label).
type SubSection struct {
	ID        int64
	SectionID int64
	Label     string // "(1)", "(a)", "Explanation 2", "Proviso 1"
	Kind      SubSectionKind
	Text      string
	Position  int
}

var sectionNumberPattern = regexp.MustCompile(`^(\d+)([A-Z]{0,2})$`)

// ParseSectionNumber splits a section number into its integer part and
// letter suffix. Compound ("5.1") and disambiguated ("12_2") numbers
// return ok=false and keep the string form only.
func ParseSectionNumber(num string) (n int, suffix string, ok bool) {
	m := sectionNumberPattern.FindStringSubmatch(strings.TrimSpace(num))
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return n, m[2], true
}

// Validate checks the construction invariants of a section record.
func (s *Section) Validate() error {
	if s.ActID == 0 {
		return errors.New("section requires an act reference")
	}
	if strings.TrimSpace(s.Number) == "" {
		return errors.New("section number cannot be empty")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %f outside [0,1]", s.Confidence)
	}
	return nil
}

// Validate checks the construction invariants of a sub-section record.
func (ss *SubSection) Validate() error {
	if ss.Label == "" {
		return errors.New("sub-section label cannot be empty")
	}
	switch ss.Kind {
	case SubNumbered, SubLettered, SubExplanation, SubProviso, SubIllustration:
		return nil
	default:
		return fmt.Errorf("invalid sub-section kind %q", ss.Kind)
	}
}

// RomanNumeral converts 1..3999 to its Roman numeral form. Chapter
// numbering is normalized through it.
func RomanNumeral(n int) string {
	if n <= 0 || n > 3999 {
		return ""
	}
	vals := []struct {
		v int
		s string
	}{
		{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
		{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
		{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
	}
	var b strings.Builder
	for _, p := range vals {
		for n >= p.v {
			b.WriteString(p.s)
			n -= p.v
		}
	}
	return b.String()
}

var romanValues = map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}

// ParseRoman converts a Roman numeral to its integer value.
func ParseRoman(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0, false
		}
		if i+1 < len(s) && romanValues[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total, true
}
