package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

func TestCleanStripsHeaderLines(t *testing.T) {
	in := "THE INDIAN PENAL CODE, 1860\n302. Punishment for murder.—Whoever commits murder shall be punished with death."
	out := New().Clean(in)
	assert.NotContains(t, out, "THE INDIAN PENAL CODE")
	assert.Contains(t, out, "302. Punishment for murder")
}

func TestCleanStripsPageNumberLines(t *testing.T) {
	in := "Whoever commits theft\n[ 142 ]\nshall be punished."
	out := New().Clean(in)
	assert.NotContains(t, out, "142")
}

func TestCleanStripsFootnoteLines(t *testing.T) {
	in := "Whoever commits murder shall be punished.\n1. Subs. by Act 26 of 1955, s. 117, for the former section.\nNext line."
	out := New().Clean(in)
	assert.NotContains(t, out, "Subs. by Act 26")
	assert.Contains(t, out, "Next line.")
}

func TestCleanRemovesGluedFootnoteDigits(t *testing.T) {
	out := New().Clean("imprisonment for life1 and shall also be liable to fine.")
	assert.Equal(t, "imprisonment for life and shall also be liable to fine.", out)
}

func TestCleanRepairsSpuriousLeadingDigit(t *testing.T) {
	out := New().Clean("1302. Punishment for murder.—Whoever commits murder.")
	assert.Contains(t, out, "302. Punishment for murder")
	assert.NotContains(t, out, "1302")
}

func TestCleanRepairsMissingHeadingSpace(t *testing.T) {
	out := New().Clean("302.Punishment for murder.—Whoever commits murder.")
	assert.Contains(t, out, "302. Punishment for murder")
}

func TestCleanStripsBracketAnnotations(t *testing.T) {
	out := New().Clean("shall be punished with fine which may extend to [five hundred rupees] one thousand rupees.")
	assert.NotContains(t, out, "[five hundred rupees]")
	assert.Contains(t, out, "one thousand rupees")
}

func TestCleanStripsCommentaryBlock(t *testing.T) {
	in := "302. Punishment for murder.—Whoever commits murder.\n" +
		"COMPARISON WITH BNS\nThe corresponding provision is section 103.\nFurther editorial notes.\n" +
		"303. Punishment for murder by life-convict.—Whoever, being under sentence."
	out := New().Clean(in)
	assert.NotContains(t, out, "COMPARISON WITH")
	assert.NotContains(t, out, "editorial notes")
	assert.Contains(t, out, "302. Punishment for murder")
	assert.Contains(t, out, "303. Punishment for murder by life-convict")
}

func TestCleanDropsTrailingCommentary(t *testing.T) {
	in := "302. Punishment for murder.—Whoever commits murder.\nCHANGES AT A GLANCE\nTrailing editorial matter."
	out := New().Clean(in)
	assert.NotContains(t, out, "Trailing editorial matter")
	assert.Contains(t, out, "Whoever commits murder")
}

func TestCleanFixesMojibake(t *testing.T) {
	out := New().Clean("302. Punishment for murder.â€”Whoever commits murder.")
	assert.Contains(t, out, "murder.—Whoever")
}

func TestCleanRejoinsHyphenBreaks(t *testing.T) {
	out := New().Clean("shall be punished with imprison-\nment for life.")
	assert.Contains(t, out, "imprisonment for life")
}

func TestCleanPreservesLineStructure(t *testing.T) {
	in := "302. Punishment for murder.—Whoever commits murder.\n303. Next section.—Body text here."
	out := New().Clean(in)
	assert.Contains(t, out, "\n303. Next section")
}

func TestCleanIsIdempotent(t *testing.T) {
	in := "THE INDIAN PENAL CODE\n1302.Punishment for murder.â€”Whoever commits murder1 shall be punished.\n" +
		"1. Subs. by Act 26 of 1955.\n[ 99 ]\n303. Another.—More text."
	once := New().Clean(in)
	assert.Equal(t, once, New().Clean(once))
}

func TestRulesAreOrderedAndNamed(t *testing.T) {
	rules := New().Rules()
	assert.Equal(t, "strip_header_lines", rules[0].Name)
	assert.Equal(t, "rejoin_hyphen_breaks", rules[len(rules)-1].Name)
}

func TestVerifyStructure(t *testing.T) {
	flags := types.StructureFlags{
		HasSubsections:  true,
		HasExplanations: true,
		HasProvisos:     true,
	}

	intact := "(1) First clause.\nExplanation 1.—For the purposes of this section.\nProvided that nothing herein applies."
	assert.Empty(t, VerifyStructure(intact, flags))

	damaged := "First clause without any markers left."
	signals := VerifyStructure(damaged, flags)
	assert.Len(t, signals, 3)

	assert.Empty(t, VerifyStructure(damaged, types.StructureFlags{}))
}
