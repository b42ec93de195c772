// Package config holds the tuning knobs of the pipeline. The values
// here are empirically tuned domain constants, deliberately kept as
// configuration rather than hard-coded logic; defaults can be overlaid
// from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// Extraction configures the structural extractor.
type Extraction struct {
	// MarginFraction is the fraction of page height treated as the
	// header/footer candidate band.
	MarginFraction float64 `yaml:"margin_fraction"`
}

// Validation configures the extraction validator and the orchestrator's
// confidence gates.
type Validation struct {
	WriteThreshold  float64 `yaml:"write_threshold"`
	ReviewThreshold float64 `yaml:"review_threshold"`
	MinBodyChars    int     `yaml:"min_body_chars"`
}

// Chunking configures the token-budget scenarios.
type Chunking struct {
	ShortMaxTokens   int      `yaml:"short_max_tokens"`
	MediumMaxTokens  int      `yaml:"medium_max_tokens"`
	ChunkMaxTokens   int      `yaml:"chunk_max_tokens"`
	OverlapTokens    int      `yaml:"overlap_tokens"`
	DefinitionTitles []string `yaml:"definition_titles"`
}

// FusionWeights is the per-query-type dense/sparse weight pair used by
// weighted Reciprocal Rank Fusion.
type FusionWeights struct {
	Dense  float64 `yaml:"dense"`
	Sparse float64 `yaml:"sparse"`
}

// Retrieval configures the hybrid retrieval engine.
type Retrieval struct {
	RRFConstant         float64                           `yaml:"rrf_constant"`
	OverfetchMultiplier int                               `yaml:"overfetch_multiplier"`
	Weights             map[types.QueryType]FusionWeights `yaml:"weights"`
	CurrentEraBonus     float64                           `yaml:"current_era_bonus"`
	OffenceBonus        float64                           `yaml:"offence_bonus"`
	ConfidenceFloor     float64                           `yaml:"confidence_floor"`
	SameActSimilarity   float64                           `yaml:"same_act_similarity"`
	OtherActSimilarity  float64                           `yaml:"other_act_similarity"`
	CacheSize           int                               `yaml:"cache_size"`
}

// Indexing configures index population.
type Indexing struct {
	EmbedBatchSize int `yaml:"embed_batch_size"`
}

// Config is the root configuration object.
type Config struct {
	Extraction Extraction `yaml:"extraction"`
	Validation Validation `yaml:"validation"`
	Chunking   Chunking   `yaml:"chunking"`
	Retrieval  Retrieval  `yaml:"retrieval"`
	Indexing   Indexing   `yaml:"indexing"`
}

// Default returns the tuned default configuration.
func Default() *Config {
	return &Config{
		Extraction: Extraction{
			MarginFraction: 0.08,
		},
		Validation: Validation{
			WriteThreshold:  0.50,
			ReviewThreshold: 0.70,
			MinBodyChars:    25,
		},
		Chunking: Chunking{
			ShortMaxTokens:   450,
			MediumMaxTokens:  1200,
			ChunkMaxTokens:   400,
			OverlapTokens:    60,
			DefinitionTitles: []string{"Definitions", "Interpretation"},
		},
		Retrieval: Retrieval{
			RRFConstant:         60,
			OverfetchMultiplier: 3,
			Weights: map[types.QueryType]FusionWeights{
				types.QuerySectionLookup: {Dense: 0.3, Sparse: 1.0},
				types.QueryConceptual:    {Dense: 1.0, Sparse: 0.5},
				types.QueryOffence:       {Dense: 0.8, Sparse: 0.8},
				types.QueryGeneral:       {Dense: 0.7, Sparse: 0.7},
			},
			CurrentEraBonus:    0.05,
			OffenceBonus:       0.03,
			ConfidenceFloor:    0.7,
			SameActSimilarity:  1.0,
			OtherActSimilarity: 0.2,
			CacheSize:          1000,
		},
		Indexing: Indexing{
			EmbedBatchSize: 32,
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would break pipeline invariants.
func (c *Config) Validate() error {
	if c.Extraction.MarginFraction <= 0 || c.Extraction.MarginFraction >= 0.5 {
		return fmt.Errorf("margin_fraction %f outside (0, 0.5)", c.Extraction.MarginFraction)
	}
	if c.Validation.WriteThreshold > c.Validation.ReviewThreshold {
		return fmt.Errorf("write_threshold %f above review_threshold %f",
			c.Validation.WriteThreshold, c.Validation.ReviewThreshold)
	}
	if c.Chunking.ShortMaxTokens >= c.Chunking.MediumMaxTokens {
		return fmt.Errorf("short_max_tokens must be below medium_max_tokens")
	}
	if c.Retrieval.RRFConstant <= 0 {
		return fmt.Errorf("rrf_constant must be positive")
	}
	if c.Retrieval.OverfetchMultiplier < 1 {
		return fmt.Errorf("overfetch_multiplier must be at least 1")
	}
	for qt, w := range c.Retrieval.Weights {
		if w.Dense < 0 || w.Sparse < 0 {
			return fmt.Errorf("negative fusion weight for query type %s", qt)
		}
	}
	return nil
}

// FusionFor returns the weight pair for a query type, falling back to
// the general weights for unknown tags.
func (c *Config) FusionFor(qt types.QueryType) FusionWeights {
	if w, ok := c.Retrieval.Weights[qt]; ok {
		return w
	}
	return c.Retrieval.Weights[types.QueryGeneral]
}
