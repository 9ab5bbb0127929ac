package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotestack/quote-extractor/constants"
	"github.com/quotestack/quote-extractor/internal/config"
	"github.com/quotestack/quote-extractor/internal/entity"
)

type fakeReader struct {
	meta  entity.Metadata
	pages map[int]PageData
	fails map[int]error
}

func (r *fakeReader) Metadata() entity.Metadata { return r.meta }
func (r *fakeReader) PageCount() int            { return len(r.pages) + len(r.fails) }
func (r *fakeReader) Close() error              { return nil }

func (r *fakeReader) Page(_ context.Context, number int, _ PageOptions) (PageData, error) {
	if err, ok := r.fails[number]; ok {
		return PageData{}, err
	}
	return r.pages[number], nil
}

type fakeProvider struct {
	reader  *fakeReader
	openErr error
}

func (p *fakeProvider) Open(context.Context, string) (DocumentReader, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.reader, nil
}

type fakeOCR struct {
	result OCRResult
	err    error
	block  bool
	calls  int
}

func (o *fakeOCR) RenderAndOCR(ctx context.Context, _ string, _ int, _, _ float64) (OCRResult, error) {
	o.calls++
	if o.block {
		<-ctx.Done()
		return OCRResult{}, ctx.Err()
	}
	if o.err != nil {
		return OCRResult{}, o.err
	}
	return o.result, nil
}

func words(texts ...string) []entity.Word {
	out := make([]entity.Word, len(texts))
	for i, t := range texts {
		out[i] = entity.Word{Text: t, X0: float64(i * 50), X1: float64(i*50 + 40), Top: 10, Bottom: 20}
	}
	return out
}

func richText() string {
	return "Quote #: Q-220053 Subscription Period: 36 months TOTAL: USD 617,572.80 padded out well past the density threshold"
}

func testConfig() *config.ExtractionConfig {
	cfg := config.Default()
	return cfg
}

func TestCaptureAutoUsesOCROnLowDensityPage(t *testing.T) {
	reader := &fakeReader{
		pages: map[int]PageData{
			1: {Width: 612, Height: 792, Text: richText(), Words: words("Quote", "#:", "Q-220053")},
			2: {Width: 612, Height: 792, Text: "x", Words: words("x")},
		},
	}
	ocr := &fakeOCR{result: OCRResult{Text: "scanned page text", Words: words("scanned", "page", "text")}}
	c := NewCapturer(&fakeProvider{reader: reader}, ocr, testConfig(), nil)

	doc, err := c.Capture(context.Background(), "/tmp/q.pdf", "q.pdf", Options{OCRMode: constants.OCRModeAuto, IncludeTables: true})
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)

	assert.Equal(t, 1, ocr.calls)
	assert.False(t, doc.Pages[0].UsedOCR)
	for _, w := range doc.Pages[0].Words {
		assert.Equal(t, constants.SourceNative, w.Source)
	}
	assert.True(t, doc.Pages[1].UsedOCR)
	for _, w := range doc.Pages[1].Words {
		assert.Equal(t, constants.SourceOCR, w.Source)
	}
	assert.Equal(t, []int{2}, doc.OCRPages())
}

func TestCaptureOffNeverInvokesOCR(t *testing.T) {
	reader := &fakeReader{pages: map[int]PageData{1: {Text: "", Words: nil}}}
	ocr := &fakeOCR{result: OCRResult{Text: "hi", Words: words("hi")}}
	c := NewCapturer(&fakeProvider{reader: reader}, ocr, testConfig(), nil)

	doc, err := c.Capture(context.Background(), "p", "p.pdf", Options{OCRMode: constants.OCRModeOff})
	require.NoError(t, err)
	assert.Zero(t, ocr.calls)
	assert.False(t, doc.Pages[0].UsedOCR)
}

func TestCaptureAlwaysOCRsEveryPage(t *testing.T) {
	reader := &fakeReader{
		pages: map[int]PageData{
			1: {Text: richText(), Words: words("native")},
			2: {Text: richText(), Words: words("native")},
		},
	}
	ocr := &fakeOCR{result: OCRResult{Text: "ocr text", Words: words("ocr", "text")}}
	c := NewCapturer(&fakeProvider{reader: reader}, ocr, testConfig(), nil)

	doc, err := c.Capture(context.Background(), "p", "p.pdf", Options{OCRMode: constants.OCRModeAlways})
	require.NoError(t, err)
	assert.Equal(t, 2, ocr.calls)
	assert.True(t, doc.Pages[0].UsedOCR)
	assert.True(t, doc.Pages[1].UsedOCR)
}

func TestCaptureNilOCRProviderFallsBackToNative(t *testing.T) {
	reader := &fakeReader{pages: map[int]PageData{1: {Text: "tiny", Words: words("tiny")}}}
	c := NewCapturer(&fakeProvider{reader: reader}, nil, testConfig(), nil)

	doc, err := c.Capture(context.Background(), "p", "p.pdf", Options{OCRMode: constants.OCRModeAuto})
	require.NoError(t, err)
	assert.False(t, doc.Pages[0].UsedOCR)
	assert.Equal(t, "tiny", doc.Pages[0].Text)
}

func TestCaptureRecordsDegradedPageAndContinues(t *testing.T) {
	reader := &fakeReader{
		pages: map[int]PageData{2: {Text: richText(), Words: words("ok")}},
		fails: map[int]error{1: errors.New("bad xref")},
	}
	c := NewCapturer(&fakeProvider{reader: reader}, nil, testConfig(), nil)

	doc, err := c.Capture(context.Background(), "p", "p.pdf", Options{OCRMode: constants.OCRModeOff})
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	assert.True(t, doc.Pages[0].Degraded)
	assert.Contains(t, doc.Pages[0].DegradedCause, "bad xref")
	assert.False(t, doc.Pages[1].Degraded)
}

func TestCaptureOpenFailureIsFatal(t *testing.T) {
	c := NewCapturer(&fakeProvider{openErr: errors.New("not a pdf")}, nil, testConfig(), nil)
	_, err := c.Capture(context.Background(), "p", "p.pdf", Options{})
	require.Error(t, err)
}

func TestCaptureOCRTimeoutDegradesPageKeepingNativeText(t *testing.T) {
	cfg := testConfig()
	cfg.OCR.PageTimeoutSeconds = 1
	reader := &fakeReader{pages: map[int]PageData{1: {Text: "stub", Words: words("stub")}}}
	ocr := &fakeOCR{block: true}
	c := NewCapturer(&fakeProvider{reader: reader}, ocr, cfg, nil)

	start := time.Now()
	doc, err := c.Capture(context.Background(), "p", "p.pdf", Options{OCRMode: constants.OCRModeAuto})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	page := doc.Pages[0]
	assert.True(t, page.Degraded)
	assert.Contains(t, page.DegradedCause, "ocr failed")
	assert.Equal(t, "stub", page.Text)
	assert.False(t, page.UsedOCR)
}

func TestBuildLinesGroupsByBaseline(t *testing.T) {
	ws := []entity.Word{
		{Text: "World", X0: 60, Top: 10.5, X1: 100, Bottom: 20},
		{Text: "Hello", X0: 10, Top: 10, X1: 50, Bottom: 20},
		{Text: "Below", X0: 10, Top: 40, X1: 50, Bottom: 50},
	}
	lines := BuildLines(ws, 2.5)
	require.Len(t, lines, 2)
	assert.Equal(t, "Hello World", lines[0].Text)
	assert.Equal(t, "Below", lines[1].Text)
	assert.Equal(t, 1, lines[0].Index)
	assert.Equal(t, 10.0, lines[0].X0)
	assert.Equal(t, 100.0, lines[0].X1)
}

func TestFlattenTablesNormalizesRaggedRows(t *testing.T) {
	grids := [][][]string{
		{
			{"A", "B", "C"},
			{"d"},
		},
		{}, // zero columns: contributes nothing
	}
	cells := flattenTables(grids)
	require.Len(t, cells, 6)

	byPos := map[[3]int]string{}
	for _, c := range cells {
		byPos[[3]int{c.TableIndex, c.RowIndex, c.ColIndex}] = c.Text
	}
	assert.Equal(t, "A", byPos[[3]int{1, 1, 1}])
	assert.Equal(t, "d", byPos[[3]int{1, 2, 1}])
	// Padded cells exist and are empty rather than omitted.
	assert.Contains(t, byPos, [3]int{1, 2, 2})
	assert.Equal(t, "", byPos[[3]int{1, 2, 3}])
}
