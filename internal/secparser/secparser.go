// Package secparser detects section and chapter boundaries in cleaned
// statute text and extracts each section's sub-structure.
//
// The primary boundary heuristic is a heading line of the form
// "<number><optional letter>. <title>" terminated by a dash-class
// separator (em dash, en dash, horizontal bar, or U+FFFD when the dash
// glyph failed to decode). The separator is the discriminator that a
// pure table-of-contents line lacks: a TOC repeats the same numbered
// headings without a body separator, and must never parse as sections.
package secparser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// ParsedChapter is a detected chapter heading.
type ParsedChapter struct {
	Number  string // Canonical Roman form
	Ordinal int
	Title   string
	Offset  int
}

// ParsedSub is a detected sub-structure of a section.
type ParsedSub struct {
	Label    string
	Kind     types.SubSectionKind
	Text     string
	Position int
}

// ParsedSection is one detected section with its body slice.
type ParsedSection struct {
	Number  string
	Title   string
	Body    string
	Offset  int
	Chapter string // Roman chapter number, "" when unmatched
	Subs    []ParsedSub
	Flags   types.StructureFlags
}

// Result is the full parse of one document's body text.
type Result struct {
	Sections []ParsedSection
	Chapters []ParsedChapter
}

var (
	// Primary: a numbered heading whose title ends at a dash separator,
	// as in "302. Punishment for murder." followed by the body. The dash
	// class includes U+FFFD for scans where the dash glyph failed to
	// decode.
	primaryHeading = regexp.MustCompile(`(?m)^(\d{1,3})([A-Z]?)\.\s+(.{1,200}?)\.?[—–―\x{FFFD}]`)

	// Secondary: an all-caps heading with no separator, used by some
	// typographic conventions.
	capsHeading = regexp.MustCompile(`(?m)^(\d{1,3})([A-Z]?)\.\s+([A-Z][A-Z ,'()-]{3,120})$`)

	// Tertiary: plain-hyphen separator convention "12. Title.-Body".
	hyphenHeading = regexp.MustCompile(`(?m)^(\d{1,3})([A-Z]?)\.\s+(.{1,200}?)\.-`)

	chapterHeading = regexp.MustCompile(`(?m)^CHAPTER\s+([IVXLC]+|\d+)\b[\s—–-]*([^\n]*)`)

	orderHeading = regexp.MustCompile(`(?m)^ORDER\s+([IVXLC]+|\d+)\b[^\n]*`)
)

// Parser detects sections, chapters and sub-structure.
type Parser struct{}

// New creates a parser.
func New() *Parser {
	return &Parser{}
}

type headingMatch struct {
	number  string
	title   string
	offset  int
	bodyOff int // Offset where the body begins (end of heading match)
}

// Parse runs boundary detection over cleaned body text.
func (p *Parser) Parse(text string) *Result {
	chapters := findChapters(text)

	// Order-rule composites go first: de-duplication keeps the earliest
	// entry per offset, and a rule heading inside an Order must win over
	// the plain heading match at the same position.
	matches := findOrderRules(text)
	matches = append(matches, findHeadings(text)...)
	matches = dedupeByOffset(matches)
	sort.Slice(matches, func(i, j int) bool { return matches[i].offset < matches[j].offset })

	sections := make([]ParsedSection, 0, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1].offset
		}
		body := strings.TrimSpace(text[m.bodyOff:end])
		sec := ParsedSection{
			Number:  m.number,
			Title:   strings.TrimSpace(m.title),
			Body:    body,
			Offset:  m.offset,
			Chapter: chapterFor(chapters, m.offset),
		}
		sec.Subs = extractSubs(body)
		sec.Flags = flagsFrom(sec.Subs)
		sections = append(sections, sec)
	}

	disambiguateDuplicates(sections)

	return &Result{Sections: sections, Chapters: chapters}
}

func findHeadings(text string) []headingMatch {
	var out []headingMatch
	for _, pat := range []*regexp.Regexp{primaryHeading, hyphenHeading, capsHeading} {
		for _, m := range pat.FindAllStringSubmatchIndex(text, -1) {
			num := text[m[2]:m[3]] + text[m[4]:m[5]]
			out = append(out, headingMatch{
				number:  num,
				title:   text[m[6]:m[7]],
				offset:  m[0],
				bodyOff: m[1],
			})
		}
	}
	return out
}

// findOrderRules handles schedules organized into "Orders" containing
// "Rules" that restart numbering from 1 inside each Order. Rules get
// the composite identifier "<order>.<rule>".
func findOrderRules(text string) []headingMatch {
	orders := orderHeading.FindAllStringSubmatchIndex(text, -1)
	if len(orders) == 0 {
		return nil
	}

	var out []headingMatch
	for i, om := range orders {
		ordNum := text[om[2]:om[3]]
		ordinal, ok := types.ParseRoman(ordNum)
		if !ok {
			ordinal, _ = strconv.Atoi(ordNum)
		}
		end := len(text)
		if i+1 < len(orders) {
			end = orders[i+1][0]
		}
		segment := text[om[1]:end]
		for _, rm := range primaryHeading.FindAllStringSubmatchIndex(segment, -1) {
			rule := segment[rm[2]:rm[3]]
			out = append(out, headingMatch{
				number:  fmt.Sprintf("%d.%s", ordinal, rule),
				title:   segment[rm[6]:rm[7]],
				offset:  om[1] + rm[0],
				bodyOff: om[1] + rm[1],
			})
		}
	}
	return out
}

func dedupeByOffset(matches []headingMatch) []headingMatch {
	seen := make(map[int]bool, len(matches))
	out := matches[:0]
	for _, m := range matches {
		if seen[m.offset] {
			continue
		}
		seen[m.offset] = true
		out = append(out, m)
	}
	return out
}

// disambiguateDuplicates suffixes residual duplicate section numbers
// with an occurrence index. This is a last-resort safety net applied as
// a deterministic post-processing step over the ordered list; upstream
// de-duplication should already have removed pattern overlaps.
func disambiguateDuplicates(sections []ParsedSection) {
	count := make(map[string]int, len(sections))
	for i := range sections {
		n := sections[i].Number
		count[n]++
		if count[n] > 1 {
			sections[i].Number = fmt.Sprintf("%s_%d", n, count[n])
		}
	}
}

func findChapters(text string) []ParsedChapter {
	var out []ParsedChapter
	for _, m := range chapterHeading.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[2]:m[3]]
		title := strings.TrimSpace(text[m[4]:m[5]])
		ordinal, ok := types.ParseRoman(raw)
		if !ok {
			n, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			ordinal = n
		}
		out = append(out, ParsedChapter{
			Number:  types.RomanNumeral(ordinal),
			Ordinal: ordinal,
			Title:   title,
			Offset:  m[0],
		})
	}
	return out
}

// chapterFor assigns a section to the nearest preceding chapter heading
// by text offset.
func chapterFor(chapters []ParsedChapter, offset int) string {
	best := ""
	for _, ch := range chapters {
		if ch.Offset < offset {
			best = ch.Number
		}
	}
	return best
}

func flagsFrom(subs []ParsedSub) types.StructureFlags {
	var f types.StructureFlags
	for _, s := range subs {
		switch s.Kind {
		case types.SubNumbered:
			f.HasSubsections = true
		case types.SubExplanation:
			f.HasExplanations = true
		case types.SubProviso:
			f.HasProvisos = true
		case types.SubIllustration:
			f.HasIllustrations = true
		}
	}
	return f
}
