package types

import (
	"errors"
	"strings"
)

// ChunkScenario selects how a section is decomposed into retrievable
// units.
type ChunkScenario string

const (
	// ScenarioFull indexes the whole section as one point.
	ScenarioFull ChunkScenario = "full"
	// ScenarioFullPlusSubs indexes the whole section plus each
	// sub-section as its own point for granular retrieval.
	ScenarioFullPlusSubs ChunkScenario = "full_plus_subs"
	// ScenarioSplit splits the section into overlapping chunks at
	// sub-section boundaries, each carrying the section header prefix.
	ScenarioSplit ChunkScenario = "split"
	// ScenarioDefinitions forces sub-section-granular indexing for
	// definitions sections regardless of length.
	ScenarioDefinitions ChunkScenario = "definitions"
)

// TokensPerWord is the heuristic multiplier for estimating token counts
// from word counts, intentionally avoiding a full tokenizer.
const TokensPerWord = 1.3

// EstimateTokens approximates the token count of a text.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * TokensPerWord)
}

// IndexChunk is one retrievable unit produced by the chunker, not
// always 1:1 with a section. ChunkIndex distinguishes the pieces of a
// split section; the deterministic point identifier derives from
// (section id, chunk index) so re-indexing is idempotent.
type IndexChunk struct {
	SectionID    int64
	SubSectionID int64 // 0 for section-level chunks
	ChunkIndex   int
	Scenario     ChunkScenario
	Text         string
	TokenCount   int
	Payload      ChunkPayload
}

// ChunkPayload is the denormalized metadata carried on every index
// point so retrieval never needs a secondary store lookup.
type ChunkPayload struct {
	ActCode       string         `json:"act_code"`
	Era           Era            `json:"era"`
	SectionNumber string         `json:"section_number"`
	Title         string         `json:"title"`
	ChapterNumber string         `json:"chapter_number,omitempty"`
	ChapterTitle  string         `json:"chapter_title,omitempty"`
	Domain        string         `json:"domain,omitempty"`
	IsOffence     bool           `json:"is_offence"`
	Cognizable    bool           `json:"cognizable,omitempty"`
	Bailable      bool           `json:"bailable,omitempty"`
	Punishment    string         `json:"punishment,omitempty"`
	Confidence    float64        `json:"confidence"`
	Supersedes    string         `json:"supersedes,omitempty"`    // "IPC 302"
	SupersededBy  string         `json:"superseded_by,omitempty"` // "BNS 103"
	TransitionTyp TransitionType `json:"transition_type,omitempty"`
	IsSubSection  bool           `json:"is_sub_section,omitempty"`
	SubLabel      string         `json:"sub_label,omitempty"`
}

// Validate checks chunk construction invariants.
func (c *IndexChunk) Validate() error {
	if c.SectionID == 0 {
		return errors.New("chunk requires a section reference")
	}
	if strings.TrimSpace(c.Text) == "" {
		return errors.New("chunk text cannot be empty")
	}
	switch c.Scenario {
	case ScenarioFull, ScenarioFullPlusSubs, ScenarioSplit, ScenarioDefinitions:
		return nil
	default:
		return errors.New("invalid chunk scenario")
	}
}
