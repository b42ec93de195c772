package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// page builds an 800-unit-tall page; the default margin fraction puts
// the header band above y=64 and the footer band below y=736.
func page(blocks []types.Block, separatorYs ...float64) *types.Document {
	return &types.Document{
		ActCode: "IPC",
		Title:   "The Indian Penal Code",
		Pages: []types.Page{
			{Number: 1, Width: 600, Height: 800, Blocks: blocks, SeparatorYs: separatorYs},
		},
	}
}

func classify(t *testing.T, doc *types.Document) []types.ClassifiedBlock {
	t.Helper()
	blocks := New(config.Default()).Classify(doc)
	require.Len(t, blocks, len(doc.Pages[0].Blocks))
	return blocks
}

func TestClassifyRunningHeader(t *testing.T) {
	doc := page([]types.Block{
		{Text: "THE INDIAN PENAL CODE, 1860", Y0: 10, Y1: 30},
		{Text: "Whoever commits murder shall be punished with death.", Y0: 200, Y1: 220},
	})
	blocks := classify(t, doc)
	assert.Equal(t, types.BlockHeader, blocks[0].Type)
	assert.Equal(t, types.BlockBody, blocks[1].Type)
}

func TestClassifySpatialBeforeTextual(t *testing.T) {
	// The same all-caps text mid-page is body, not a header
	doc := page([]types.Block{
		{Text: "OF OFFENCES AFFECTING THE HUMAN BODY", Y0: 400, Y1: 420},
	})
	blocks := classify(t, doc)
	assert.Equal(t, types.BlockBody, blocks[0].Type)
}

func TestClassifyPageNumber(t *testing.T) {
	doc := page([]types.Block{
		{Text: "[ 142 ]", Y0: 770, Y1: 790},
	})
	blocks := classify(t, doc)
	assert.Equal(t, types.BlockPageNumber, blocks[0].Type)
}

func TestClassifyTitleCaseFooter(t *testing.T) {
	doc := page([]types.Block{
		{Text: "Of Offences Against the State", Y0: 760, Y1: 780},
	})
	blocks := classify(t, doc)
	assert.Equal(t, types.BlockFooter, blocks[0].Type)
}

func TestClassifyMarginBodyTextStaysBody(t *testing.T) {
	// A lowercase sentence running into the margin band is kept as body
	doc := page([]types.Block{
		{Text: "and shall also be liable to fine.", Y0: 760, Y1: 780},
	})
	blocks := classify(t, doc)
	assert.Equal(t, types.BlockBody, blocks[0].Type)
}

func TestClassifyFootnoteBelowSeparator(t *testing.T) {
	doc := page([]types.Block{
		{Text: "Whoever commits murder shall be punished.", Y0: 200, Y1: 220},
		{Text: "This text sits below the separator line.", Y0: 660, Y1: 680},
	}, 640)
	blocks := classify(t, doc)
	assert.Equal(t, types.BlockBody, blocks[0].Type)
	assert.Equal(t, types.BlockFootnote, blocks[1].Type)
}

func TestClassifyFootnoteDefinitionText(t *testing.T) {
	doc := page([]types.Block{
		{Text: "1. Subs. by Act 26 of 1955, s. 117, for the former section.", Y0: 300, Y1: 320},
	})
	blocks := classify(t, doc)
	assert.Equal(t, types.BlockFootnote, blocks[0].Type)
}

func TestClassifyCommentary(t *testing.T) {
	doc := page([]types.Block{
		{Text: "COMPARISON WITH BNS: corresponding provision is section 103.", Y0: 300, Y1: 320},
	})
	blocks := classify(t, doc)
	assert.Equal(t, types.BlockCommentary, blocks[0].Type)
}

func TestBodyTextConcatenatesInOrder(t *testing.T) {
	doc := page([]types.Block{
		{Text: "THE INDIAN PENAL CODE", Y0: 10, Y1: 30},
		{Text: "302. Punishment for murder.—Whoever commits murder", Y0: 100, Y1: 120},
		{Text: "shall be punished with death.", Y0: 130, Y1: 150},
		{Text: "[ 99 ]", Y0: 770, Y1: 790},
	})
	body := BodyText(classify(t, doc))
	assert.Equal(t, "302. Punishment for murder.—Whoever commits murder\nshall be punished with death.", body)
}
