// Package ocr provides exec-backed implementations of the capture layer's
// page and OCR providers, built on the poppler utilities (pdfinfo,
// pdftotext, pdftoppm) and tesseract. External commands run through the
// Runner interface so tests never need the binaries installed.
package ocr

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/quotestack/quote-extractor/internal/capture"
	"github.com/quotestack/quote-extractor/internal/common"
	"github.com/quotestack/quote-extractor/internal/entity"
)

// PopplerProvider implements capture.PageProvider by shelling out to
// pdfinfo (document metadata) and pdftotext -bbox (per-page word boxes).
// Raw table grids, links, images and the char layer are not available from
// the poppler tools; pages come back with those layers empty and the parser
// falls back to text-line rules.
type PopplerProvider struct {
	Pdfinfo   string // binary name or absolute path; if empty -> "pdfinfo"
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"

	runner Runner
	logger *slog.Logger
}

func NewPopplerProvider(pdfinfo, pdftotext string, logger *slog.Logger) *PopplerProvider {
	if pdfinfo == "" {
		pdfinfo = "pdfinfo"
	}
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PopplerProvider{Pdfinfo: pdfinfo, Pdftotext: pdftotext, runner: newExecRunner(logger), logger: logger}
}

// Open runs both tools up front and serves page reads from the parsed
// output. A pdfinfo failure means the input is not a readable document.
func (p *PopplerProvider) Open(ctx context.Context, path string) (capture.DocumentReader, error) {
	infoOut, infoErr, err := p.runner.Run(ctx, p.Pdfinfo, path)
	if err != nil {
		return nil, fmt.Errorf("pdfinfo: %w (%s)", err, truncate(string(infoErr), 512))
	}
	meta, pageCount := parsePdfinfo(string(infoOut))

	bboxOut, bboxErr, err := p.runner.Run(ctx, p.Pdftotext, "-bbox", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext -bbox: %w (%s)", err, truncate(string(bboxErr), 512))
	}
	pages, err := parseBBoxDocument(bboxOut)
	if err != nil {
		return nil, common.WrapError(err, "parse pdftotext bbox output")
	}
	if pageCount == 0 {
		pageCount = len(pages)
	}
	return &popplerReader{meta: meta, pageCount: pageCount, pages: pages}, nil
}

type popplerReader struct {
	meta      entity.Metadata
	pageCount int
	pages     []capture.PageData
}

func (r *popplerReader) Metadata() entity.Metadata { return r.meta }
func (r *popplerReader) PageCount() int            { return r.pageCount }
func (r *popplerReader) Close() error              { return nil }

func (r *popplerReader) Page(_ context.Context, number int, _ capture.PageOptions) (capture.PageData, error) {
	if number < 1 || number > r.pageCount {
		return capture.PageData{}, fmt.Errorf("page %d out of range 1..%d", number, r.pageCount)
	}
	if number > len(r.pages) {
		return capture.PageData{}, fmt.Errorf("page %d missing from bbox output", number)
	}
	return r.pages[number-1], nil
}

var pdfinfoLine = regexp.MustCompile(`^([A-Za-z ]+):\s*(.*)$`)

func parsePdfinfo(out string) (entity.Metadata, int) {
	var meta entity.Metadata
	pages := 0
	for _, line := range strings.Split(out, "\n") {
		m := pdfinfoLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[2])
		switch strings.TrimSpace(m[1]) {
		case "Title":
			meta.Title = value
		case "Creator":
			meta.Creator = value
		case "Producer":
			meta.Producer = value
		case "CreationDate":
			meta.CreationDate = value
		case "Encrypted":
			meta.Encrypted = strings.HasPrefix(value, "yes")
		case "Pages":
			if n, err := strconv.Atoi(value); err == nil {
				pages = n
			}
		}
	}
	return meta, pages
}

// bbox XML structures emitted by pdftotext -bbox.
type bboxDoc struct {
	XMLName xml.Name   `xml:"html"`
	Pages   []bboxPage `xml:"body>doc>page"`
}

type bboxPage struct {
	Width  float64    `xml:"width,attr"`
	Height float64    `xml:"height,attr"`
	Words  []bboxWord `xml:"word"`
}

type bboxWord struct {
	XMin float64 `xml:"xMin,attr"`
	YMin float64 `xml:"yMin,attr"`
	XMax float64 `xml:"xMax,attr"`
	YMax float64 `xml:"yMax,attr"`
	Text string  `xml:",chardata"`
}

func parseBBoxDocument(out []byte) ([]capture.PageData, error) {
	var doc bboxDoc
	if err := xml.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal bbox xml: %w", err)
	}
	pages := make([]capture.PageData, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		data := capture.PageData{Width: p.Width, Height: p.Height}
		var texts []string
		for _, w := range p.Words {
			text := strings.TrimSpace(w.Text)
			if text == "" {
				continue
			}
			data.Words = append(data.Words, entity.Word{
				Text:   text,
				X0:     w.XMin,
				Top:    w.YMin,
				X1:     w.XMax,
				Bottom: w.YMax,
			})
			texts = append(texts, text)
		}
		data.Text = strings.Join(texts, " ")
		pages = append(pages, data)
	}
	return pages, nil
}
