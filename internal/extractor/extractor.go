// Package extractor classifies the positioned text blocks of a
// page-structured document by structural role. Classification is
// spatial first and textual second: block position on the page is the
// more reliable discriminator, and testing it before any text pattern
// prevents body text that happens to start with a capitalized word
// from being misread as a running header.
package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

var (
	pageNumberPattern = regexp.MustCompile(`^\[?\s*\d{1,4}\s*\]?$`)

	// Lines that define a footnote body: "1. Subs. by Act 26 of 1955 …"
	footnoteDefPattern = regexp.MustCompile(`^\d{1,2}\.\s+(Subs\.|Ins\.|Omitted|Added|Substituted|Inserted)\b`)

	// Editorial comparison headers introduced by annotated editions.
	commentaryPattern = regexp.MustCompile(`(?i)^(COMPARISON WITH|CORRESPONDING (SECTION|PROVISION)|CHANGES? AT A GLANCE|STATE AMENDMENT)`)

	knownTitlePattern = regexp.MustCompile(`(?i)^THE\s+.*(CODE|ACT|SANHITA|ADHINIYAM)[,.]?(\s+\d{4})?$`)
)

// Extractor labels document blocks as header, footer, page number,
// body, footnote or editorial commentary.
type Extractor struct {
	marginFraction float64
}

// New creates an extractor with the configured margin fraction.
func New(cfg *config.Config) *Extractor {
	return &Extractor{marginFraction: cfg.Extraction.MarginFraction}
}

// Classify labels every block of the document.
func (e *Extractor) Classify(doc *types.Document) []types.ClassifiedBlock {
	out := make([]types.ClassifiedBlock, 0)
	for i := range doc.Pages {
		out = append(out, e.classifyPage(&doc.Pages[i])...)
	}
	return out
}

// classifyPage labels the blocks of one page. Footnote detection keys
// off the lowest horizontal separator; a page without separators
// yields zero footnotes and relies on the cleaner to catch residue.
func (e *Extractor) classifyPage(page *types.Page) []types.ClassifiedBlock {
	topBand := page.Height * e.marginFraction
	bottomBand := page.Height * (1 - e.marginFraction)
	separatorY := lowestSeparator(page)

	out := make([]types.ClassifiedBlock, 0, len(page.Blocks))
	for _, b := range page.Blocks {
		out = append(out, types.ClassifiedBlock{
			Block: b,
			Page:  page.Number,
			Type:  e.classifyBlock(b, topBand, bottomBand, separatorY),
		})
	}
	return out
}

func (e *Extractor) classifyBlock(b types.Block, topBand, bottomBand, separatorY float64) types.BlockType {
	text := strings.TrimSpace(b.Text)

	// Spatial pass: margin bands.
	if b.Y1 <= topBand || b.Y0 >= bottomBand {
		if pageNumberPattern.MatchString(text) {
			return types.BlockPageNumber
		}
		if isHeaderText(text) {
			if b.Y1 <= topBand {
				return types.BlockHeader
			}
			return types.BlockFooter
		}
		// A margin block that looks like neither stays body; statutes
		// occasionally run section text into the margins.
	}

	// Spatial pass: below the lowest separator graphic.
	if separatorY > 0 && b.Y0 > separatorY {
		return types.BlockFootnote
	}

	// Textual pass: short trigger phrases only.
	if footnoteDefPattern.MatchString(text) {
		return types.BlockFootnote
	}
	if commentaryPattern.MatchString(text) {
		return types.BlockCommentary
	}

	return types.BlockBody
}

// BodyText concatenates the body blocks of a classified document in
// page and position order, the input expected by the cleaner.
func BodyText(blocks []types.ClassifiedBlock) string {
	var b strings.Builder
	for _, cb := range blocks {
		if cb.Type != types.BlockBody {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(cb.Block.Text)
	}
	return b.String()
}

func lowestSeparator(page *types.Page) float64 {
	lowest := 0.0
	for _, y := range page.SeparatorYs {
		if y > lowest {
			lowest = y
		}
	}
	return lowest
}

// isHeaderText confirms a margin block as header/footer: running
// headers in statute scans are all-caps act names, title-case chapter
// names, or known act-title lines.
func isHeaderText(text string) bool {
	if text == "" {
		return false
	}
	if knownTitlePattern.MatchString(text) {
		return true
	}
	if isAllCaps(text) {
		return true
	}
	return isTitleCase(text)
}

func isAllCaps(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isTitleCase(text string) bool {
	words := strings.Fields(text)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		r := []rune(w)[0]
		if unicode.IsLetter(r) && unicode.IsLower(r) && !smallWord(w) {
			return false
		}
	}
	return true
}

func smallWord(w string) bool {
	switch strings.ToLower(w) {
	case "of", "the", "and", "to", "in", "for", "on":
		return true
	}
	return false
}
