// Package pipeline orchestrates a batch run end to end: gather, capture,
// parse, validate, and assemble the audit workbook, JSON payload and optional
// template output. One bad document never aborts the batch; it is recorded as
// a failed result and the remaining documents keep flowing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quotestack/quote-extractor/constants"
	"github.com/quotestack/quote-extractor/internal/artifact"
	"github.com/quotestack/quote-extractor/internal/capture"
	"github.com/quotestack/quote-extractor/internal/config"
	"github.com/quotestack/quote-extractor/internal/entity"
	"github.com/quotestack/quote-extractor/internal/ingest"
	"github.com/quotestack/quote-extractor/internal/parse"
	"github.com/quotestack/quote-extractor/internal/template"
	"github.com/quotestack/quote-extractor/internal/validate"
)

// Request describes one batch run.
type Request struct {
	Inputs []ingest.Input
	// InputArgs holds the raw paths the caller asked for, echoed into the
	// JSON payload.
	InputArgs []string

	OCRMode          constants.OCRMode
	Strict           bool
	IncludeCharLayer bool
	DisableTables    bool

	// Dedupe skips documents whose content hash was already processed in
	// this batch.
	Dedupe bool

	// Template, when non-nil, fills the given spreadsheet template from the
	// parsed line items. TemplateOnly additionally suppresses the audit
	// workbook.
	Template     *template.Options
	TemplateOnly bool

	Workers    int
	MaxInputMB int
}

// Result is the outcome of one batch run.
type Result struct {
	Documents []entity.DocumentResult
	Workbook  []byte
	Payload   *artifact.Payload
	Template  *template.Result
	Summary   artifact.UploadSummary
	// StrictFailed is set when strict mode blocked at least one document.
	StrictFailed bool
}

// Pipeline wires the per-document stages together.
type Pipeline struct {
	capturer  *capture.Capturer
	parser    *parse.Parser
	validator *validate.Validator
	filler    *template.Filler
	cfg       *config.ExtractionConfig
	logger    *slog.Logger
}

func New(capturer *capture.Capturer, cfg *config.ExtractionConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		capturer:  capturer,
		parser:    parse.NewParser(cfg, logger),
		validator: validate.New(cfg, logger),
		filler:    template.NewFiller(logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes every input and assembles the batch artifacts. The returned
// error covers batch-level failures only (template fill, artifact assembly);
// per-document failures land in Result.Documents.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	workers := req.Workers
	if workers <= 0 {
		workers = 4
	}
	if req.OCRMode == "" {
		req.OCRMode = constants.OCRModeAuto
	}

	jobs, skipped := p.admit(req)

	results := make([]entity.DocumentResult, len(jobs))
	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = p.processDocument(ctx, jobs[i], req)
			}
		}()
	}
	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	res := &Result{
		Documents: results,
		Summary: artifact.UploadSummary{
			UploadedFiles:     len(req.Inputs),
			ProcessedFiles:    len(results),
			DuplicatesSkipped: skipped,
			DedupeEnabled:     req.Dedupe,
		},
	}
	for i := range results {
		if results[i].Blocked() {
			res.StrictFailed = true
		}
	}

	if !req.TemplateOnly {
		book, err := artifact.Workbook(results, req.IncludeCharLayer, p.logger)
		if err != nil {
			return nil, fmt.Errorf("assemble workbook: %w", err)
		}
		res.Workbook = book
	}

	if req.Template != nil {
		fillResult, err := p.filler.Fill(templateInputs(results), *req.Template)
		if err != nil {
			return nil, fmt.Errorf("fill template: %w", err)
		}
		res.Template = fillResult
		res.Summary.RowsWritten = fillResult.RowsWritten
	}

	res.Payload = artifact.NewPayload(req.InputArgs, results, res.Summary, res.Template, time.Now())

	p.logger.Info("pipeline.batch.done",
		"files", len(req.Inputs),
		"processed", len(results),
		"duplicates_skipped", skipped,
		"strict_failed", res.StrictFailed,
		"duration", time.Since(started).Round(time.Millisecond).String(),
	)
	return res, nil
}

// job is one admitted input, with its content hash when dedupe is on.
type job struct {
	input ingest.Input
	hash  string
}

// admit applies the size limit and optional content dedupe, in input order so
// the first occurrence of duplicated content wins.
func (p *Pipeline) admit(req Request) ([]job, int) {
	var jobs []job
	skipped := 0
	seen := map[string]string{}
	for _, in := range req.Inputs {
		j := job{input: in}
		if req.Dedupe {
			hash, err := ingest.HashFile(in.Path)
			if err != nil {
				p.logger.Warn("pipeline.dedupe.hash_failed", "file", in.FileName, "error", err)
			} else if first, dup := seen[hash]; dup {
				p.logger.Info("pipeline.dedupe.skipped", "file", in.FileName, "duplicate_of", first)
				skipped++
				continue
			} else {
				seen[hash] = in.FileName
				j.hash = hash
			}
		}
		jobs = append(jobs, j)
	}
	return jobs, skipped
}

// processDocument runs the per-document stages. All failures are folded into
// the DocumentResult; this function never panics the batch.
func (p *Pipeline) processDocument(ctx context.Context, j job, req Request) entity.DocumentResult {
	in := j.input
	result := entity.DocumentResult{FileName: in.FileName, Path: in.Path}

	if err := ingest.CheckSize(in, req.MaxInputMB); err != nil {
		p.logger.Warn("pipeline.document.rejected", "file", in.FileName, "error", err)
		return failed(result, err)
	}

	doc, err := p.capturer.Capture(ctx, in.Path, in.FileName, capture.Options{
		OCRMode:          req.OCRMode,
		IncludeCharLayer: req.IncludeCharLayer,
		IncludeTables:    !req.DisableTables,
	})
	if err != nil {
		p.logger.Error("pipeline.document.failed", "file", in.FileName, "error", err)
		return failed(result, err)
	}
	doc.HashHex = j.hash
	result.Document = doc

	items := p.parser.LineItems(doc)
	summary := p.parser.Summary(doc, items)
	items = parse.SelectForTotal(items, summary.TotalValue, p.cfg.Validation.Tolerance)
	summary.LineItemsTotal = parse.LineItemsTotal(items)

	result.Items = items
	result.Summary = summary
	result.Findings = p.validator.Validate(doc, items, summary)

	if req.Strict && entity.HasBlockingError(result.Findings) {
		result.StrictBlocked = true
		p.logger.Warn("pipeline.document.blocked", "file", in.FileName)
	} else {
		p.logger.Info("pipeline.document.ok",
			"file", in.FileName,
			"pages", doc.PageCount,
			"line_items", len(items),
			"findings", len(result.Findings),
		)
	}
	return result
}

// templateInputs selects the documents eligible for template fill. Blocked and
// failed documents never contribute rows.
func templateInputs(results []entity.DocumentResult) []template.DocumentInput {
	var docs []template.DocumentInput
	for i := range results {
		r := &results[i]
		if r.Blocked() || r.Document == nil {
			continue
		}
		docs = append(docs, template.DocumentInput{
			Metadata: r.Document.Metadata,
			Summary:  r.Summary,
			Items:    r.Items,
		})
	}
	return docs
}

func failed(result entity.DocumentResult, err error) entity.DocumentResult {
	result.Error = err.Error()
	result.Findings = []entity.ValidationFinding{{
		File:     result.FileName,
		Kind:     constants.KindProcessingError,
		Severity: constants.SeverityError,
		Status:   constants.StatusFail,
		Message:  err.Error(),
	}}
	return result
}
