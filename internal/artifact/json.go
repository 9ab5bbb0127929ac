package artifact

import (
	"encoding/json"
	"time"

	"github.com/quotestack/quote-extractor/internal/entity"
	"github.com/quotestack/quote-extractor/internal/template"
)

// UploadSummary carries the batch counters reported back to the caller.
type UploadSummary struct {
	UploadedFiles     int  `json:"uploaded_files"`
	ProcessedFiles    int  `json:"processed_files"`
	DuplicatesSkipped int  `json:"duplicates_skipped"`
	DedupeEnabled     bool `json:"dedupe_enabled"`
	RowsWritten       int  `json:"rows_written"`
}

// FilePayload is one document's slice of the JSON artifact. It always carries
// the best-effort extraction, even for strict-blocked or failed documents.
type FilePayload struct {
	File             string                     `json:"file"`
	Path             string                     `json:"path"`
	Metadata         entity.Metadata            `json:"metadata"`
	PageCount        int                        `json:"pages"`
	OCRMode          string                     `json:"ocr_mode,omitempty"`
	OCRPages         []int                      `json:"ocr_pages,omitempty"`
	PageLayers       []entity.Page              `json:"page_layers,omitempty"`
	LineItems        []entity.LineItem          `json:"line_items_parsed"`
	BusinessSummary  *entity.BusinessSummary    `json:"business_summary,omitempty"`
	ValidationReport []entity.ValidationFinding `json:"validation_report"`
	StrictBlocked    bool                       `json:"strict_blocked,omitempty"`
	Error            string                     `json:"error,omitempty"`
}

// Payload is the whole JSON artifact for a batch run.
type Payload struct {
	GeneratedAt    string           `json:"generated_at"`
	Input          []string         `json:"input"`
	FileCount      int              `json:"file_count"`
	Files          []FilePayload    `json:"files"`
	UploadSummary  UploadSummary    `json:"upload_summary"`
	TemplateOutput *template.Result `json:"template_output,omitempty"`
}

// NewPayload assembles the JSON artifact from per-document results, in input
// order.
func NewPayload(inputs []string, results []entity.DocumentResult, summary UploadSummary, templateResult *template.Result, now time.Time) *Payload {
	payload := &Payload{
		GeneratedAt:    now.UTC().Format("2006-01-02T15:04:05Z"),
		Input:          inputs,
		FileCount:      len(results),
		Files:          make([]FilePayload, 0, len(results)),
		UploadSummary:  summary,
		TemplateOutput: templateResult,
	}
	for i := range results {
		r := &results[i]
		file := FilePayload{
			File:             r.FileName,
			Path:             r.Path,
			LineItems:        r.Items,
			BusinessSummary:  r.Summary,
			ValidationReport: r.Findings,
			StrictBlocked:    r.StrictBlocked,
			Error:            r.Error,
		}
		if r.Document != nil {
			file.Metadata = r.Document.Metadata
			file.PageCount = r.Document.PageCount
			file.OCRMode = r.Document.OCRMode
			file.OCRPages = r.Document.OCRPages()
			file.PageLayers = r.Document.Pages
		}
		payload.Files = append(payload.Files, file)
	}
	return payload
}

// Marshal renders the payload with stable two-space indentation.
func (p *Payload) Marshal() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
