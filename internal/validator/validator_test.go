package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

func newValidator() *Validator {
	return New(config.Default())
}

func cleanInput() Input {
	return Input{
		Number: "103",
		Title:  "Punishment for murder",
		Body:   "Whoever commits murder shall be punished with death or imprisonment for life, and shall also be liable to fine.",
		Offence: types.OffenceClass{
			IsOffence:  true,
			TriableBy:  types.TriableSessions,
			Punishment: "death",
		},
	}
}

func TestValidateCleanSection(t *testing.T) {
	r := newValidator().Validate(cleanInput())
	assert.InDelta(t, 1.0, r.Confidence, 1e-9)
	assert.False(t, r.NeedsReview)
	assert.Empty(t, r.NoiseCategories)
	assert.Len(t, r.Checks, 7)
	for _, c := range r.Checks {
		assert.True(t, c.Passed, c.Name)
	}
}

func TestValidatePenalties(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Input)
		category string
		penalty  float64
	}{
		{
			name: "footnote residue",
			mutate: func(in *Input) {
				in.Body += "\n1. Subs. by Act 26 of 1955, for the former section."
			},
			category: "footnote_residue",
			penalty:  PenaltyFootnoteResidue,
		},
		{
			name: "commentary residue",
			mutate: func(in *Input) {
				in.Body += "\nCOMPARISON WITH IPC: the provision corresponds to section 302."
			},
			category: "commentary_residue",
			penalty:  PenaltyCommentaryResidue,
		},
		{
			name: "cross-section contamination",
			mutate: func(in *Input) {
				in.Body = "104. Punishment for culpable homicide.—" + in.Body
			},
			category: "cross_section_contamination",
			penalty:  PenaltyContamination,
		},
		{
			name: "bracket residue",
			mutate: func(in *Input) {
				in.Body += " [five hundred rupees w.e.f. 1-1-1956]"
			},
			category: "bracket_residue",
			penalty:  PenaltyBracketResidue,
		},
		{
			name: "short body",
			mutate: func(in *Input) {
				in.Body = "x"
			},
			category: "body_length",
			penalty:  PenaltyShortBody,
		},
		{
			name: "missing offence classification",
			mutate: func(in *Input) {
				in.Offence = types.OffenceClass{IsOffence: true}
			},
			category: "offence_classification",
			penalty:  PenaltyMissingOffence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := cleanInput()
			tt.mutate(&in)
			r := newValidator().Validate(in)
			assert.Contains(t, r.NoiseCategories, tt.category)
			assert.InDelta(t, 1.0-tt.penalty, r.Confidence, 1e-9)
		})
	}
}

func TestValidateOwnHeadingIsNotContamination(t *testing.T) {
	in := cleanInput()
	in.Body = "103. Punishment for murder.—" + in.Body
	r := newValidator().Validate(in)
	assert.NotContains(t, r.NoiseCategories, "cross_section_contamination")
}

func TestValidateContaminationForcesReview(t *testing.T) {
	in := cleanInput()
	in.Body = "104. Punishment for culpable homicide.—" + in.Body
	r := newValidator().Validate(in)
	assert.InDelta(t, 0.60, r.Confidence, 1e-9)
	assert.True(t, r.NeedsReview)
}

func TestValidateClauseMismatch(t *testing.T) {
	in := cleanInput()
	in.Body = "(1) Whoever commits murder shall be punished with death.\n(2) Whoever commits murder while under a life sentence shall be punished with death."
	in.Flags.HasSubsections = true
	in.NumberedClauses = 1
	r := newValidator().Validate(in)
	assert.Contains(t, r.NoiseCategories, "subclause_count")

	in.NumberedClauses = 2
	r = newValidator().Validate(in)
	assert.NotContains(t, r.NoiseCategories, "subclause_count")
}

func TestValidateStructureSignalsFailClauseCheck(t *testing.T) {
	in := cleanInput()
	in.StructureSignals = []string{"expected proviso marker, none found after cleaning"}
	r := newValidator().Validate(in)
	assert.Contains(t, r.NoiseCategories, "subclause_count")
}

func TestValidateConfidenceClampsAtZero(t *testing.T) {
	in := Input{
		Number: "103",
		Body:   "104. Other.—1. Subs. by Act 26 of 1955\nCOMPARISON WITH IPC [Rs. 500]",
		Offence: types.OffenceClass{
			IsOffence: true,
		},
		Flags:            types.StructureFlags{HasSubsections: true},
		NumberedClauses:  3,
		StructureSignals: []string{"marker lost"},
	}
	r := newValidator().Validate(in)
	assert.GreaterOrEqual(t, r.Confidence, 0.0)
	assert.True(t, r.NeedsReview)
}
