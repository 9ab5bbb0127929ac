package ocr

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotestack/quote-extractor/internal/capture"
)

// stubRunner answers commands from a canned script keyed by binary name.
type stubRunner struct {
	outputs map[string][]byte
	errs    map[string]error
	calls   []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, name+" "+strings.Join(args, " "))
	if err, ok := s.errs[name]; ok {
		return nil, []byte("boom"), err
	}
	return s.outputs[name], nil, nil
}

const pdfinfoOutput = `Title:          Quote Q-220053
Creator:        Conga Composer
Producer:       Salesforce.com
CreationDate:   Wed Dec 24 07:52:00 2025 UTC
Custom Metadata: no
Pages:          2
Encrypted:      no
Page size:      612 x 792 pts (letter)
`

const bboxOutput = `<?xml version="1.0"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<body>
<doc>
  <page width="612.000000" height="792.000000">
    <word xMin="10.0" yMin="20.0" xMax="48.5" yMax="31.0">Quote</word>
    <word xMin="52.0" yMin="20.0" xMax="60.0" yMax="31.0">#:</word>
    <word xMin="64.0" yMin="20.0" xMax="130.0" yMax="31.0">Q-220053</word>
  </page>
  <page width="612.000000" height="792.000000">
  </page>
</doc>
</body>
</html>
`

func TestPopplerProviderOpen(t *testing.T) {
	runner := &stubRunner{outputs: map[string][]byte{
		"pdfinfo":   []byte(pdfinfoOutput),
		"pdftotext": []byte(bboxOutput),
	}}
	p := NewPopplerProvider("", "", nil)
	p.runner = runner

	reader, err := p.Open(context.Background(), "/tmp/q.pdf")
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	assert.Equal(t, 2, reader.PageCount())
	meta := reader.Metadata()
	assert.Equal(t, "Quote Q-220053", meta.Title)
	assert.Equal(t, "Salesforce.com", meta.Producer)
	assert.False(t, meta.Encrypted)

	page, err := reader.Page(context.Background(), 1, capture.PageOptions{})
	require.NoError(t, err)
	assert.Equal(t, 612.0, page.Width)
	require.Len(t, page.Words, 3)
	assert.Equal(t, "Quote #: Q-220053", page.Text)
	assert.Equal(t, 10.0, page.Words[0].X0)
	assert.Equal(t, 31.0, page.Words[0].Bottom)

	empty, err := reader.Page(context.Background(), 2, capture.PageOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty.Words)

	_, err = reader.Page(context.Background(), 3, capture.PageOptions{})
	assert.Error(t, err)
}

func TestExecRunnerLogsFailuresToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	runner := newExecRunner(logger)

	_, _, err := runner.Run(context.Background(), "no-such-extraction-binary")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "ocr.exec.failed")
	assert.Contains(t, buf.String(), "no-such-extraction-binary")
}

func TestTruncateStderr(t *testing.T) {
	assert.Equal(t, "warning: page 3", truncateStderr("warning: page 3"))

	long := strings.Repeat("x", 5<<10)
	out := truncateStderr(long)
	assert.True(t, strings.HasSuffix(out, "...(truncated)"))
	assert.Less(t, len(out), len(long))
}

func TestPopplerProviderOpenFailsWhenPdfinfoFails(t *testing.T) {
	runner := &stubRunner{errs: map[string]error{"pdfinfo": errors.New("exit 1")}}
	p := NewPopplerProvider("", "", nil)
	p.runner = runner

	_, err := p.Open(context.Background(), "/tmp/broken.pdf")
	require.Error(t, err)
}

const tsvOutput = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t2550\t3300\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t100\t200\t300\t50\t96.5\tInvoice\n" +
	"5\t1\t1\t1\t1\t2\t450\t200\t200\t50\t91.0\tTotal\n" +
	"5\t1\t1\t1\t2\t1\t100\t400\t100\t50\t-1\t\n"

func TestParseTesseractTSVScalesToPageCoordinates(t *testing.T) {
	result, err := parseTesseractTSV(tsvOutput, 612, 792)
	require.NoError(t, err)
	require.Len(t, result.Words, 2)
	assert.Equal(t, "Invoice Total", result.Text)

	// 2550 px wide render of a 612 pt page: scale 0.24.
	w := result.Words[0]
	assert.InDelta(t, 24.0, w.X0, 0.01)
	assert.InDelta(t, 48.0, w.Top, 0.01)
	assert.InDelta(t, 96.0, w.X1, 0.01)
	assert.InDelta(t, 60.0, w.Bottom, 0.01)
}
