package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
validation:
  write_threshold: 0.40
retrieval:
  cache_size: 50
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.40, cfg.Validation.WriteThreshold, 1e-9)
	assert.Equal(t, 50, cfg.Retrieval.CacheSize)
	// Untouched values keep their defaults
	assert.InDelta(t, 0.70, cfg.Validation.ReviewThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Retrieval.OverfetchMultiplier)
}

func TestLoadRejectsInvalidOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("validation:\n  write_threshold: 0.9\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "write_threshold")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"margin out of range", func(c *Config) { c.Extraction.MarginFraction = 0.6 }},
		{"thresholds inverted", func(c *Config) { c.Validation.WriteThreshold = 0.9 }},
		{"token budgets inverted", func(c *Config) { c.Chunking.ShortMaxTokens = 2000 }},
		{"non-positive rrf constant", func(c *Config) { c.Retrieval.RRFConstant = 0 }},
		{"overfetch below one", func(c *Config) { c.Retrieval.OverfetchMultiplier = 0 }},
		{"negative fusion weight", func(c *Config) {
			c.Retrieval.Weights[types.QueryGeneral] = FusionWeights{Dense: -1, Sparse: 0.5}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFusionForFallsBackToGeneral(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Retrieval.Weights[types.QuerySectionLookup], cfg.FusionFor(types.QuerySectionLookup))
	assert.Equal(t, cfg.Retrieval.Weights[types.QueryGeneral], cfg.FusionFor(types.QueryType("unknown")))
}
