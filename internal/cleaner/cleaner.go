// Package cleaner removes extraction noise from concatenated body text.
// The rules form a fixed, ordered pipeline of idempotent pure functions
// (text in, text out); order matters because later rules assume the
// residue classes of earlier ones are already gone. No rule keeps state
// between passes.
package cleaner

import (
	"regexp"
	"strings"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// Rule is one named cleaning pass.
type Rule struct {
	Name  string
	Apply func(string) string
}

var (
	headerLinePattern = regexp.MustCompile(`(?m)^\s*THE\s+[A-Z][A-Z ,]*(CODE|ACT|SANHITA|ADHINIYAM)[,.]?(\s+\d{4})?\s*$`)

	pageNumberLinePattern = regexp.MustCompile(`(?m)^\s*\[?\s*\d{1,4}\s*\]?\s*$`)

	footnoteLinePattern = regexp.MustCompile(`(?m)^\d{1,2}\.\s+(Subs\.|Ins\.|Omitted|Added|Substituted|Inserted)\b[^\n]*$`)

	// Superscript-style footnote digits glued to a word: "thereof1 " or
	// "punishment12,". Single or double digits only; larger numbers are
	// real content.
	gluedDigitPattern = regexp.MustCompile(`([a-z])\d{1,2}([\s,.;)])`)

	// A spurious leading digit prepended to an oversized section
	// number, e.g. "1302." for "302.", an artifact of footnote markers
	// colliding with headings. Only 4-digit numbers whose tail is a
	// plausible section number are repaired.
	spuriousDigitPattern = regexp.MustCompile(`(?m)^([1-9])([1-9]\d{2}[A-Z]?)\.\s`)

	// Missing space between a section number's period and the title:
	// "302.Punishment" -> "302. Punishment".
	missingSpacePattern = regexp.MustCompile(`(?m)^(\d{1,3}[A-Z]?)\.([A-Z])`)

	// Bracketed old-law comparison annotations: numeric amounts,
	// spelled-out amounts, date annotations.
	bracketAmountPattern = regexp.MustCompile(`\s*\[(?:[^\[\]]*\b(?:rupees|Rs\.?|w\.e\.f\.?|\d{1,2}-\d{1,2}-\d{4})\b[^\[\]]*|(?:one|two|three|five|ten|fifty|hundred|thousand)[^\[\]]*)\]`)

	commentaryTriggerPattern = regexp.MustCompile(`(?im)^(COMPARISON WITH|CORRESPONDING (?:SECTION|PROVISION)|CHANGES? AT A GLANCE)[^\n]*$`)

	// A heading line that terminates a commentary block: either dash
	// style or plain-hyphen style (see secparser).
	headingLinePattern = regexp.MustCompile(`(?m)^\d{1,3}[A-Z]?\.\s+[^\n]*[—–―\x{FFFD}-]`)

	hyphenBreakPattern = regexp.MustCompile(`([a-z])-\n([a-z])`)

	multiSpacePattern = regexp.MustCompile(`[ \t]{2,}`)
	multiBlankPattern = regexp.MustCompile(`\n{3,}`)
)

// mojibake maps UTF-8 byte sequences reinterpreted as Windows-1252 back
// to the intended characters. Only sequences actually observed in the
// source scans are listed.
var mojibake = strings.NewReplacer(
	"â€”", "—",
	"â€“", "–",
	"â€œ", "“",
	"â€", "”",
	"â€™", "’",
	"â€˜", "‘",
	"Â ", " ",
)

// Cleaner applies the ordered rule pipeline.
type Cleaner struct {
	rules []Rule
}

// New creates the cleaner with the fixed rule ordering.
func New() *Cleaner {
	return &Cleaner{rules: []Rule{
		{Name: "strip_header_lines", Apply: stripHeaderLines},
		{Name: "strip_page_numbers", Apply: stripPageNumbers},
		{Name: "strip_footnotes", Apply: stripFootnotes},
		{Name: "repair_ocr_artifacts", Apply: repairOCRArtifacts},
		{Name: "strip_bracket_annotations", Apply: stripBracketAnnotations},
		{Name: "strip_commentary_blocks", Apply: stripCommentaryBlocks},
		{Name: "fix_encoding", Apply: fixEncoding},
		{Name: "rejoin_hyphen_breaks", Apply: rejoinHyphenBreaks},
	}}
}

// Clean runs the full pipeline over the text.
func (c *Cleaner) Clean(text string) string {
	for _, r := range c.rules {
		text = r.Apply(text)
	}
	return strings.TrimSpace(text)
}

// Rules exposes the ordered rule list, mainly for per-rule tests.
func (c *Cleaner) Rules() []Rule {
	return c.rules
}

func stripHeaderLines(text string) string {
	return headerLinePattern.ReplaceAllString(text, "")
}

func stripPageNumbers(text string) string {
	return pageNumberLinePattern.ReplaceAllString(text, "")
}

func stripFootnotes(text string) string {
	text = footnoteLinePattern.ReplaceAllString(text, "")
	return gluedDigitPattern.ReplaceAllString(text, "$1$2")
}

func repairOCRArtifacts(text string) string {
	text = spuriousDigitPattern.ReplaceAllString(text, "$2. ")
	return missingSpacePattern.ReplaceAllString(text, "$1. $2")
}

func stripBracketAnnotations(text string) string {
	return bracketAmountPattern.ReplaceAllString(text, "")
}

// stripCommentaryBlocks removes editorial comparison blocks from their
// trigger line up to (but not including) the next section heading. A
// trigger with no following heading drops everything to end of text.
func stripCommentaryBlocks(text string) string {
	for {
		loc := commentaryTriggerPattern.FindStringIndex(text)
		if loc == nil {
			return text
		}
		rest := text[loc[1]:]
		end := headingLinePattern.FindStringIndex(rest)
		if end == nil {
			return text[:loc[0]]
		}
		text = text[:loc[0]] + rest[end[0]:]
	}
}

func fixEncoding(text string) string {
	text = mojibake.Replace(text)
	text = multiSpacePattern.ReplaceAllString(text, " ")
	return multiBlankPattern.ReplaceAllString(text, "\n\n")
}

func rejoinHyphenBreaks(text string) string {
	return hyphenBreakPattern.ReplaceAllString(text, "$1$2")
}

// Structural markers used by the verification pass.
var (
	numberedClauseMarker = regexp.MustCompile(`\(\d+\)`)
	explanationMarker    = regexp.MustCompile(`\bExplanation\b`)
	provisoMarker        = regexp.MustCompile(`\bProvided that\b`)
	illustrationMarker   = regexp.MustCompile(`\bIllustrations?\b`)
)

// VerifyStructure confirms, without mutating the text, that a section
// known to contain sub-structures still shows at least one recognizable
// marker for each after cleaning. Missing markers are returned as
// signals for the validator, not errors: a cleaning rule that ate a
// structural marker is an extraction-quality problem, not a crash.
func VerifyStructure(text string, flags types.StructureFlags) []string {
	var signals []string
	if flags.HasSubsections && !numberedClauseMarker.MatchString(text) {
		signals = append(signals, "expected numbered sub-clauses, none found after cleaning")
	}
	if flags.HasExplanations && !explanationMarker.MatchString(text) {
		signals = append(signals, "expected explanation marker, none found after cleaning")
	}
	if flags.HasProvisos && !provisoMarker.MatchString(text) {
		signals = append(signals, "expected proviso marker, none found after cleaning")
	}
	if flags.HasIllustrations && !illustrationMarker.MatchString(text) {
		signals = append(signals, "expected illustration marker, none found after cleaning")
	}
	return signals
}
