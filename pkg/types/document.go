package types

// BlockType classifies the structural role of a positioned text block.
type BlockType string

const (
	BlockHeader     BlockType = "header"
	BlockFooter     BlockType = "footer"
	BlockPageNumber BlockType = "page_number"
	BlockBody       BlockType = "body"
	BlockFootnote   BlockType = "footnote"
	BlockCommentary BlockType = "commentary"
)

// Block is a positioned text block from the document-intelligence front
// end. Coordinates use a top-left origin with Y growing downward, in
// the same units as the page dimensions.
type Block struct {
	Text     string  `json:"text"`
	X0       float64 `json:"x0"` // Top-left corner
	Y0       float64 `json:"y0"`
	X1       float64 `json:"x1"` // Bottom-right corner
	Y1       float64 `json:"y1"`
	FontSize float64 `json:"font_size"`
}

// Page is one page of a structured source document.
type Page struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Blocks []Block `json:"blocks"`
	// SeparatorYs holds the Y positions of horizontal separator
	// graphics on the page. Footnote detection keys off the lowest one;
	// an empty slice means no footnotes are detected on this page.
	SeparatorYs []float64 `json:"separator_ys,omitempty"`
}

// Document is a page-structured source document, the input contract of
// the structural extractor.
type Document struct {
	ActCode string `json:"act_code"`
	Title   string `json:"title"`
	Pages   []Page `json:"pages"`
}

// ClassifiedBlock pairs a block with its assigned structural role.
type ClassifiedBlock struct {
	Block Block
	Page  int
	Type  BlockType
}
