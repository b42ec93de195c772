// Package validator scores the trustworthiness of each extracted
// section. A fixed battery of checks runs per section; confidence
// starts at 1.0 and every failing check subtracts its own penalty,
// clamped to [0,1]. Recoverable extraction defects are captured here as
// penalties and review routing, never raised as errors.
package validator

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// Check-specific penalties. Cross-section contamination is large
// enough alone to force review: a body that opens with another
// section's heading means the boundary detection sliced wrong, and
// every downstream assertion about that text is suspect.
const (
	PenaltyFootnoteResidue   = 0.15
	PenaltyCommentaryResidue = 0.20
	PenaltyContamination     = 0.40
	PenaltyBracketResidue    = 0.10
	PenaltyShortBody         = 0.30
	PenaltyClauseMismatch    = 0.15
	PenaltyMissingOffence    = 0.10
)

var (
	footnoteResiduePattern   = regexp.MustCompile(`(?m)^\d{1,2}\.\s+(Subs\.|Ins\.|Omitted|Added)\b`)
	commentaryResiduePattern = regexp.MustCompile(`(?i)(COMPARISON WITH|CORRESPONDING (SECTION|PROVISION)|CHANGES? AT A GLANCE)`)
	bracketResiduePattern    = regexp.MustCompile(`\[[^\[\]]*\b(rupees|Rs\.?|w\.e\.f\.?)\b[^\[\]]*\]`)
	headingStartPattern      = regexp.MustCompile(`^(\d{1,3}[A-Z]?)\.\s+.{1,200}?[—–―\x{FFFD}]`)
	numberedClausePattern    = regexp.MustCompile(`\((\d+)\)`)
)

// CheckResult is one pass/fail entry of the battery.
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
	Penalty float64
}

// Report is the validator output for one section.
type Report struct {
	Checks          []CheckResult
	Confidence      float64
	NeedsReview     bool
	NoiseCategories []string
}

// Input bundles everything the battery inspects for one section.
type Input struct {
	Number           string
	Title            string
	Body             string
	NumberedClauses  int // Count extracted by the parser
	Flags            types.StructureFlags
	StructureSignals []string // From the cleaner's verification pass
	Offence          types.OffenceClass
}

// Validator runs the check battery.
type Validator struct {
	cfg *config.Config
}

// New creates a validator.
func New(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate runs every check and accumulates the confidence score.
func (v *Validator) Validate(in Input) *Report {
	r := &Report{Confidence: 1.0}

	v.check(r, "footnote_residue", PenaltyFootnoteResidue,
		!footnoteResiduePattern.MatchString(in.Body),
		"footnote-definition text survived cleaning")

	v.check(r, "commentary_residue", PenaltyCommentaryResidue,
		!commentaryResiduePattern.MatchString(in.Body),
		"editorial comparison text survived cleaning")

	v.check(r, "cross_section_contamination", PenaltyContamination,
		!v.contaminated(in),
		"body begins with a different section's heading")

	v.check(r, "bracket_residue", PenaltyBracketResidue,
		!bracketResiduePattern.MatchString(in.Body),
		"bracketed comparison annotation survived cleaning")

	v.check(r, "body_length", PenaltyShortBody,
		len(in.Body) >= v.cfg.Validation.MinBodyChars,
		fmt.Sprintf("body shorter than %d characters", v.cfg.Validation.MinBodyChars))

	v.check(r, "subclause_count", PenaltyClauseMismatch,
		v.clausesConsistent(in),
		"extracted sub-clause count disagrees with the text")

	v.check(r, "offence_classification", PenaltyMissingOffence,
		v.offenceComplete(in),
		"offence section missing procedural classification")

	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	r.NeedsReview = r.Confidence < v.cfg.Validation.ReviewThreshold
	return r
}

func (v *Validator) check(r *Report, name string, penalty float64, passed bool, failMsg string) {
	res := CheckResult{Name: name, Passed: passed, Penalty: penalty}
	if !passed {
		res.Message = failMsg
		r.Confidence -= penalty
		r.NoiseCategories = append(r.NoiseCategories, name)
	}
	r.Checks = append(r.Checks, res)
}

// contaminated reports whether the body opens with a heading line whose
// number differs from the section being validated.
func (v *Validator) contaminated(in Input) bool {
	m := headingStartPattern.FindStringSubmatch(in.Body)
	if m == nil {
		return false
	}
	return m[1] != in.Number
}

// clausesConsistent compares the extracted numbered-clause count with
// the highest clause numeral visible in the text, and folds in the
// cleaner's structure-verification signals.
func (v *Validator) clausesConsistent(in Input) bool {
	if len(in.StructureSignals) > 0 {
		return false
	}
	if !in.Flags.HasSubsections {
		return true
	}
	highest := 0
	for _, m := range numberedClausePattern.FindAllStringSubmatch(in.Body, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest == in.NumberedClauses
}

func (v *Validator) offenceComplete(in Input) bool {
	if !in.Offence.IsOffence {
		return true
	}
	return in.Offence.TriableBy != "" && in.Offence.Punishment != ""
}
