// Package chunker decomposes stored sections into retrievable units.
// The scenario depends on section length and structure: short sections
// index whole, medium sections additionally index each sub-section,
// long sections split into overlapping chunks at sub-section
// boundaries, and definitions sections always index per definition
// regardless of length.
package chunker

import (
	"strings"

	"github.com/lawkhoj/lawkhoj/internal/config"
	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// Chunker turns sections into index chunks
type Chunker struct {
	cfg *config.Config
}

// New creates a chunker
func New(cfg *config.Config) *Chunker {
	return &Chunker{cfg: cfg}
}

// SelectScenario decides how a section should be decomposed
func (c *Chunker) SelectScenario(section *types.Section, subs []*types.SubSection) types.ChunkScenario {
	if c.isDefinitions(section) && len(subs) > 0 {
		return types.ScenarioDefinitions
	}

	tokens := types.EstimateTokens(section.Text)
	switch {
	case tokens <= c.cfg.Chunking.ShortMaxTokens:
		return types.ScenarioFull
	case tokens <= c.cfg.Chunking.MediumMaxTokens:
		if len(subs) > 0 {
			return types.ScenarioFullPlusSubs
		}
		return types.ScenarioFull
	default:
		return types.ScenarioSplit
	}
}

func (c *Chunker) isDefinitions(section *types.Section) bool {
	title := strings.ToLower(section.Title)
	for _, t := range c.cfg.Chunking.DefinitionTitles {
		if strings.Contains(title, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// Chunk produces the index chunks for one section. The payload is
// shared across the section's chunks; sub-section chunks override the
// sub-specific fields.
func (c *Chunker) Chunk(section *types.Section, subs []*types.SubSection, payload types.ChunkPayload) []types.IndexChunk {
	scenario := c.SelectScenario(section, subs)

	switch scenario {
	case types.ScenarioFull:
		return []types.IndexChunk{c.sectionChunk(section, payload, scenario, 0)}

	case types.ScenarioFullPlusSubs:
		chunks := []types.IndexChunk{c.sectionChunk(section, payload, scenario, 0)}
		for i, sub := range subs {
			chunks = append(chunks, c.subChunk(section, sub, payload, scenario, i+1))
		}
		return chunks

	case types.ScenarioDefinitions:
		// One point per definition; no whole-section point, which would
		// dominate every query that mentions a defined term.
		chunks := make([]types.IndexChunk, 0, len(subs))
		for i, sub := range subs {
			chunks = append(chunks, c.subChunk(section, sub, payload, scenario, i))
		}
		return chunks

	case types.ScenarioSplit:
		chunks := c.split(section, subs, payload)
		for _, sub := range subs {
			chunks = append(chunks, c.subChunk(section, sub, payload, scenario, len(chunks)))
		}
		return chunks

	default:
		return nil
	}
}

func (c *Chunker) sectionChunk(section *types.Section, payload types.ChunkPayload, scenario types.ChunkScenario, idx int) types.IndexChunk {
	text := c.header(section) + section.Text
	return types.IndexChunk{
		SectionID:  section.ID,
		ChunkIndex: idx,
		Scenario:   scenario,
		Text:       text,
		TokenCount: types.EstimateTokens(text),
		Payload:    payload,
	}
}

func (c *Chunker) subChunk(section *types.Section, sub *types.SubSection, payload types.ChunkPayload, scenario types.ChunkScenario, idx int) types.IndexChunk {
	text := c.header(section) + sub.Label + " " + sub.Text
	payload.IsSubSection = true
	payload.SubLabel = sub.Label
	return types.IndexChunk{
		SectionID:    section.ID,
		SubSectionID: sub.ID,
		ChunkIndex:   idx,
		Scenario:     scenario,
		Text:         text,
		TokenCount:   types.EstimateTokens(text),
		Payload:      payload,
	}
}

// header is the context prefix carried by every chunk so a fragment
// remains attributable when retrieved alone.
func (c *Chunker) header(section *types.Section) string {
	var b strings.Builder
	b.WriteString("Section ")
	b.WriteString(section.Number)
	if section.Title != "" {
		b.WriteString(". ")
		b.WriteString(section.Title)
	}
	b.WriteString("\n")
	return b.String()
}

// split breaks a long section into chunks of at most ChunkMaxTokens,
// preferring sub-section boundaries and carrying OverlapTokens of
// trailing context into the next chunk.
func (c *Chunker) split(section *types.Section, subs []*types.SubSection, payload types.ChunkPayload) []types.IndexChunk {
	segments := c.segments(section, subs)

	maxTokens := c.cfg.Chunking.ChunkMaxTokens
	var chunks []types.IndexChunk
	var current []string
	currentTokens := 0

	flush := func(overlap string) {
		if len(current) == 0 {
			return
		}
		text := c.header(section) + strings.Join(current, "\n")
		chunks = append(chunks, types.IndexChunk{
			SectionID:  section.ID,
			ChunkIndex: len(chunks),
			Scenario:   types.ScenarioSplit,
			Text:       text,
			TokenCount: types.EstimateTokens(text),
			Payload:    payload,
		})
		current = current[:0]
		currentTokens = 0
		if overlap != "" {
			current = append(current, overlap)
			currentTokens = types.EstimateTokens(overlap)
		}
	}

	for _, seg := range segments {
		segTokens := types.EstimateTokens(seg)
		if currentTokens > 0 && currentTokens+segTokens > maxTokens {
			flush(c.tail(strings.Join(current, "\n")))
		}
		// A single oversized segment still becomes its own chunk; a
		// proviso running past the limit is not split mid-sentence.
		current = append(current, seg)
		currentTokens += segTokens
	}
	flush("")

	return chunks
}

// segments returns the split units: sub-section texts when the parser
// found structure, paragraphs otherwise.
func (c *Chunker) segments(section *types.Section, subs []*types.SubSection) []string {
	if len(subs) > 0 {
		out := make([]string, 0, len(subs))
		for _, sub := range subs {
			out = append(out, sub.Label+" "+sub.Text)
		}
		return out
	}

	var out []string
	for _, p := range strings.Split(section.Text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{section.Text}
	}
	return out
}

// tail returns the last OverlapTokens worth of words of a text, used as
// the overlap prefix of the next chunk.
func (c *Chunker) tail(text string) string {
	words := strings.Fields(text)
	keep := int(float64(c.cfg.Chunking.OverlapTokens) / types.TokensPerWord)
	if keep <= 0 || len(words) <= keep {
		return ""
	}
	return strings.Join(words[len(words)-keep:], " ")
}
