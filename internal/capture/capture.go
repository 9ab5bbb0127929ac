// Package capture wraps the external PDF and OCR capabilities and produces
// the raw per-document layer set: pages, words, lines, optional chars, raw
// table grids, links and images. It owns the OCR fallback decision; the
// providers only answer "give me this page" and "render and OCR this page".
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quotestack/quote-extractor/constants"
	"github.com/quotestack/quote-extractor/internal/common"
	"github.com/quotestack/quote-extractor/internal/config"
	"github.com/quotestack/quote-extractor/internal/entity"
)

// PageOptions selects optional layers during page extraction.
type PageOptions struct {
	IncludeChars  bool
	IncludeTables bool
	TableSettings config.TableSettings
}

// PageData is the raw material one provider call returns for a single page.
type PageData struct {
	Width    float64
	Height   float64
	Rotation int
	Text     string
	Words    []entity.Word
	Chars    []entity.Char
	// Tables holds each detected table as a row-major cell grid. Rows may be
	// ragged; the capturer normalizes them.
	Tables [][][]string
	Links  []entity.LinkRecord
	Images []entity.ImageRecord
}

// DocumentReader is an open handle onto one source document.
type DocumentReader interface {
	Metadata() entity.Metadata
	PageCount() int
	Page(ctx context.Context, number int, opts PageOptions) (PageData, error)
	Close() error
}

// PageProvider is the injected PDF extraction capability. Open must fail for
// inputs that cannot be read as a document at all; per-page failures are
// reported by Page and treated as degradation, not as fatal errors.
type PageProvider interface {
	Open(ctx context.Context, path string) (DocumentReader, error)
}

// OCRResult is the outcome of rendering and OCR'ing one page.
type OCRResult struct {
	Text  string
	Words []entity.Word
}

// OCRProvider renders a page and runs OCR over it. Implementations must honor
// context cancellation; the capturer owns the timeout policy.
type OCRProvider interface {
	RenderAndOCR(ctx context.Context, path string, pageNumber int, pageWidth, pageHeight float64) (OCRResult, error)
}

// Options controls one capture run.
type Options struct {
	OCRMode          constants.OCRMode
	IncludeCharLayer bool
	IncludeTables    bool
}

// Capturer drives the providers and assembles Documents.
type Capturer struct {
	provider PageProvider
	ocr      OCRProvider
	cfg      *config.ExtractionConfig
	logger   *slog.Logger
}

func NewCapturer(provider PageProvider, ocr OCRProvider, cfg *config.ExtractionConfig, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{provider: provider, ocr: ocr, cfg: cfg, logger: logger}
}

// Capture opens a file and extracts every page layer. It returns a fatal
// error only when the input cannot be opened as a document; a corrupt or
// OCR-degraded page yields a degraded Page record and capture continues.
func (c *Capturer) Capture(ctx context.Context, path, fileName string, opts Options) (*entity.Document, error) {
	reader, err := c.provider.Open(ctx, path)
	if err != nil {
		return nil, common.FatalInputError(fmt.Sprintf("open %s", fileName), err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			c.logger.Warn("capture.close.failed", "file", fileName, "error", cerr)
		}
	}()

	doc := &entity.Document{
		ID:        uuid.New(),
		FileName:  fileName,
		Path:      path,
		PageCount: reader.PageCount(),
		Metadata:  reader.Metadata(),
		OCRMode:   string(opts.OCRMode),
	}
	doc.Metadata.ParsedAt = time.Now().UTC().Format("2006-01-02T15:04:05Z")

	pageOpts := PageOptions{
		IncludeChars:  opts.IncludeCharLayer,
		IncludeTables: opts.IncludeTables,
		TableSettings: c.cfg.TableSettings,
	}
	for number := 1; number <= doc.PageCount; number++ {
		page := c.capturePage(ctx, reader, path, number, pageOpts, opts)
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

func (c *Capturer) capturePage(ctx context.Context, reader DocumentReader, path string, number int, pageOpts PageOptions, opts Options) entity.Page {
	data, err := reader.Page(ctx, number, pageOpts)
	if err != nil {
		c.logger.Warn("capture.page.failed", "path", path, "page", number, "error", err)
		return entity.Page{
			Number:        number,
			Degraded:      true,
			DegradedCause: fmt.Sprintf("page extraction failed: %v", err),
		}
	}

	page := entity.Page{
		Number:   number,
		Width:    data.Width,
		Height:   data.Height,
		Rotation: data.Rotation,
		Links:    data.Links,
		Images:   data.Images,
	}

	nativeText := strings.TrimSpace(data.Text)
	page.TextDensity = len(nativeText)
	selectedText := nativeText
	selectedWords := tagWords(data.Words, constants.SourceNative)

	if c.shouldOCR(opts.OCRMode, page.TextDensity) {
		result, ocrErr := c.runOCR(ctx, path, number, data.Width, data.Height)
		switch {
		case ocrErr != nil:
			// OCR is best effort: keep the native layers, flag the page.
			page.Degraded = true
			page.DegradedCause = fmt.Sprintf("ocr failed: %v", ocrErr)
			c.logger.Warn("capture.ocr.failed", "path", path, "page", number, "error", ocrErr)
		case len(result.Words) > 0:
			selectedText = result.Text
			selectedWords = tagWords(result.Words, constants.SourceOCR)
			page.UsedOCR = true
		}
	}

	page.Text = selectedText
	page.Words = indexWords(selectedWords)
	page.Lines = BuildLines(page.Words, 2.5)
	if pageOpts.IncludeChars && !page.UsedOCR {
		page.Chars = data.Chars
	}
	if pageOpts.IncludeTables {
		page.Tables = flattenTables(data.Tables)
	}
	return page
}

// shouldOCR applies the density rule: mode always forces OCR, mode auto OCRs
// pages whose native character count is below the configured threshold, and
// mode off (or an absent OCR capability) never OCRs.
func (c *Capturer) shouldOCR(mode constants.OCRMode, density int) bool {
	if c.ocr == nil || mode == constants.OCRModeOff {
		return false
	}
	if mode == constants.OCRModeAlways {
		return true
	}
	return density < c.cfg.OCR.MinNativeTextChars
}

// runOCR wraps the provider call in the configured per-page timeout so a hung
// OCR binary cannot stall the batch.
func (c *Capturer) runOCR(ctx context.Context, path string, number int, width, height float64) (OCRResult, error) {
	timeout := time.Duration(c.cfg.OCR.PageTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	ocrCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.ocr.RenderAndOCR(ocrCtx, path, number, width, height)
}

func tagWords(words []entity.Word, source string) []entity.Word {
	tagged := make([]entity.Word, len(words))
	for i, w := range words {
		w.Source = source
		tagged[i] = w
	}
	return tagged
}

func indexWords(words []entity.Word) []entity.Word {
	for i := range words {
		words[i].Index = i + 1
	}
	return words
}

// BuildLines groups words into text lines by their top coordinate, with a
// vertical tolerance, then orders each line left to right.
func BuildLines(words []entity.Word, yTolerance float64) []entity.Line {
	if len(words) == 0 {
		return nil
	}
	ordered := make([]entity.Word, len(words))
	copy(ordered, words)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Top != ordered[j].Top {
			return ordered[i].Top < ordered[j].Top
		}
		return ordered[i].X0 < ordered[j].X0
	})

	var groups [][]entity.Word
	for _, word := range ordered {
		if len(groups) == 0 {
			groups = append(groups, []entity.Word{word})
			continue
		}
		last := groups[len(groups)-1]
		if abs(word.Top-last[0].Top) <= yTolerance {
			groups[len(groups)-1] = append(last, word)
		} else {
			groups = append(groups, []entity.Word{word})
		}
	}

	lines := make([]entity.Line, 0, len(groups))
	for idx, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].X0 < group[j].X0 })
		line := entity.Line{
			Index:  idx + 1,
			X0:     group[0].X0,
			Top:    group[0].Top,
			X1:     group[0].X1,
			Bottom: group[0].Bottom,
		}
		texts := make([]string, 0, len(group))
		for _, w := range group {
			line.X0 = min(line.X0, w.X0)
			line.Top = min(line.Top, w.Top)
			line.X1 = max(line.X1, w.X1)
			line.Bottom = max(line.Bottom, w.Bottom)
			texts = append(texts, w.Text)
		}
		line.Text = strings.Join(texts, " ")
		lines = append(lines, line)
	}
	return lines
}

// flattenTables converts provider grids into the flat raw cell layer,
// normalizing ragged rows so every (row, col) pair of a table appears exactly
// once, empty cells included.
func flattenTables(grids [][][]string) []entity.RawTableCell {
	var cells []entity.RawTableCell
	for tableIdx, grid := range grids {
		cols := 0
		for _, row := range grid {
			if len(row) > cols {
				cols = len(row)
			}
		}
		if cols == 0 {
			continue
		}
		for rowIdx, row := range grid {
			for colIdx := 0; colIdx < cols; colIdx++ {
				text := ""
				if colIdx < len(row) {
					text = row[colIdx]
				}
				cells = append(cells, entity.RawTableCell{
					TableIndex: tableIdx + 1,
					RowIndex:   rowIdx + 1,
					ColIndex:   colIdx + 1,
					Text:       text,
				})
			}
		}
	}
	return cells
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
