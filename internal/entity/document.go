// Package entity holds the serializable data model shared by the capture,
// parsing, validation and artifact layers. Derived entities point back into
// the raw layers with arena-style indices (document id, page number, row or
// line index) so every value in the output remains traceable.
package entity

import (
	"strings"

	"github.com/google/uuid"
)

// Document is one source PDF with all of its captured layers. It is immutable
// once capture completes.
type Document struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"file"`
	Path      string    `json:"path"`
	HashHex   string    `json:"hash"`
	PageCount int       `json:"pages"`
	Metadata  Metadata  `json:"metadata"`
	OCRMode   string    `json:"ocr_mode"`
	Pages     []Page    `json:"page_layers"`
}

// Metadata carries document-level properties read from the PDF catalog.
type Metadata struct {
	Title        string `json:"title,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	Encrypted    bool   `json:"is_encrypted"`
	ParsedAt     string `json:"parse_timestamp"`
}

// Page is one captured page with its ordered text and table layers.
type Page struct {
	Number   int     `json:"page"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`

	// TextDensity is the native character count used for the OCR decision.
	TextDensity int  `json:"text_chars"`
	UsedOCR     bool `json:"used_ocr"`
	// Degraded marks a page whose capture failed (corrupt page, OCR timeout).
	// The page record is kept so raw evidence is never silently dropped.
	Degraded      bool   `json:"degraded,omitempty"`
	DegradedCause string `json:"degraded_cause,omitempty"`

	Text   string         `json:"-"`
	Words  []Word         `json:"words"`
	Lines  []Line         `json:"lines"`
	Chars  []Char         `json:"chars,omitempty"`
	Tables []RawTableCell `json:"tables_raw"`
	Links  []LinkRecord   `json:"links"`
	Images []ImageRecord  `json:"images"`
}

// Word is a text span with page-relative bounding box coordinates.
type Word struct {
	Index  int     `json:"word_index"`
	X0     float64 `json:"x0"`
	Top    float64 `json:"top"`
	X1     float64 `json:"x1"`
	Bottom float64 `json:"bottom"`
	Text   string  `json:"text"`
	Source string  `json:"source"` // constants.SourceNative | constants.SourceOCR
}

// Line aggregates the words sharing a baseline, in reading order.
type Line struct {
	Index  int     `json:"line_index"`
	X0     float64 `json:"x0"`
	Top    float64 `json:"top"`
	X1     float64 `json:"x1"`
	Bottom float64 `json:"bottom"`
	Text   string  `json:"text"`
}

// Char is the optional character layer, only populated on request.
type Char struct {
	Index    int     `json:"char_index"`
	X0       float64 `json:"x0"`
	Top      float64 `json:"top"`
	X1       float64 `json:"x1"`
	Bottom   float64 `json:"bottom"`
	Text     string  `json:"text"`
	FontName string  `json:"fontname,omitempty"`
	Size     float64 `json:"size,omitempty"`
	Source   string  `json:"source"`
}

// RawTableCell is one grid cell of a detected table. Every (row, col) pair of
// a table is present exactly once, empty cells included.
type RawTableCell struct {
	TableIndex int     `json:"table_index"`
	RowIndex   int     `json:"row_index"`
	ColIndex   int     `json:"col_index"`
	X0         float64 `json:"x0,omitempty"`
	Top        float64 `json:"top,omitempty"`
	X1         float64 `json:"x1,omitempty"`
	Bottom     float64 `json:"bottom,omitempty"`
	Text       string  `json:"cell_text"`
}

// LinkRecord is a hyperlink annotation captured from a page.
type LinkRecord struct {
	Index  int     `json:"link_index"`
	URI    string  `json:"uri,omitempty"`
	RectX0 float64 `json:"rect_x0"`
	RectY0 float64 `json:"rect_y0"`
	RectX1 float64 `json:"rect_x1"`
	RectY1 float64 `json:"rect_y1"`
}

// ImageRecord is an embedded image's placement metadata.
type ImageRecord struct {
	Index      int     `json:"image_index"`
	X0         float64 `json:"x0"`
	Top        float64 `json:"top"`
	X1         float64 `json:"x1"`
	Bottom     float64 `json:"bottom"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Bits       int     `json:"bits,omitempty"`
	Colorspace string  `json:"colorspace,omitempty"`
}

// FullText joins the selected per-page text in page order.
func (d *Document) FullText() string {
	var parts []string
	for i := range d.Pages {
		if d.Pages[i].Text != "" {
			parts = append(parts, d.Pages[i].Text)
		}
	}
	return strings.Join(parts, "\n")
}

// OCRPages lists the numbers of pages whose layers came from OCR.
func (d *Document) OCRPages() []int {
	var pages []int
	for i := range d.Pages {
		if d.Pages[i].UsedOCR {
			pages = append(pages, d.Pages[i].Number)
		}
	}
	return pages
}
