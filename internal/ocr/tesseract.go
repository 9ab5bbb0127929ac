package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/quotestack/quote-extractor/internal/capture"
	"github.com/quotestack/quote-extractor/internal/entity"
)

// TesseractProvider implements capture.OCRProvider: it renders one page with
// pdftoppm and reads word boxes from tesseract's TSV output, scaled back into
// page coordinates. Rendered images live in a per-call temp dir removed on
// every exit path.
type TesseractProvider struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Language  string // default "eng"
	DPI       int    // rasterization DPI, default 300

	runner Runner
	logger *slog.Logger
}

func NewTesseractProvider(pdftoppm, tesseract, language string, dpi int, logger *slog.Logger) *TesseractProvider {
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if tesseract == "" {
		tesseract = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	if dpi <= 0 {
		dpi = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TesseractProvider{
		Pdftoppm:  pdftoppm,
		Tesseract: tesseract,
		Language:  language,
		DPI:       dpi,
		runner:    newExecRunner(logger),
		logger:    logger,
	}
}

func (t *TesseractProvider) RenderAndOCR(ctx context.Context, path string, pageNumber int, pageWidth, pageHeight float64) (capture.OCRResult, error) {
	tmpDir, err := os.MkdirTemp("", "qx-ocr-*")
	if err != nil {
		return capture.OCRResult{}, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			t.logger.Warn("ocr.tmpdir.remove.failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	pageArg := strconv.Itoa(pageNumber)
	// pdftoppm -r <dpi> -f N -l N -png <in.pdf> <tmp/page>
	_, errb, err := t.runner.Run(ctx, t.Pdftoppm,
		"-r", strconv.Itoa(t.DPI), "-f", pageArg, "-l", pageArg, "-png", path, prefix)
	if err != nil {
		return capture.OCRResult{}, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return capture.OCRResult{}, fmt.Errorf("pdftoppm produced no image for page %d", pageNumber)
	}

	out, errb, err := t.runner.Run(ctx, t.Tesseract, matches[0], "stdout", "-l", t.Language, "tsv")
	if err != nil {
		return capture.OCRResult{}, fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	return parseTesseractTSV(string(out), pageWidth, pageHeight)
}

// parseTesseractTSV converts tesseract's TSV word rows into page-coordinate
// word boxes. The level-1 page row carries the rendered pixel dimensions used
// for scaling; level-5 rows are words.
func parseTesseractTSV(tsv string, pageWidth, pageHeight float64) (capture.OCRResult, error) {
	var result capture.OCRResult
	var widthPx, heightPx float64
	var texts []string

	lines := strings.Split(tsv, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 12 {
			continue
		}
		level, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		left, _ := strconv.ParseFloat(fields[6], 64)
		top, _ := strconv.ParseFloat(fields[7], 64)
		width, _ := strconv.ParseFloat(fields[8], 64)
		height, _ := strconv.ParseFloat(fields[9], 64)

		if level == 1 {
			widthPx, heightPx = width, height
			continue
		}
		if level != 5 {
			continue
		}
		text := strings.TrimSpace(fields[11])
		if text == "" {
			continue
		}

		xScale, yScale := 1.0, 1.0
		if widthPx > 0 && pageWidth > 0 {
			xScale = pageWidth / widthPx
		}
		if heightPx > 0 && pageHeight > 0 {
			yScale = pageHeight / heightPx
		}
		result.Words = append(result.Words, entity.Word{
			Text:   text,
			X0:     left * xScale,
			Top:    top * yScale,
			X1:     (left + width) * xScale,
			Bottom: (top + height) * yScale,
		})
		texts = append(texts, text)
	}
	result.Text = strings.Join(texts, " ")
	return result, nil
}
