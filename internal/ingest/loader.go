package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// LoadDocument reads a block-extraction JSON file produced by the
// upstream PDF layout stage: pages of positioned text blocks plus
// per-page separator line positions.
func LoadDocument(path string) (*types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document %s: %w", path, err)
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("document %s has no pages", path)
	}
	return &doc, nil
}
