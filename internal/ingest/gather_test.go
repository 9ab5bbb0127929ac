package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotestack/quote-extractor/internal/common"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestGatherWalksAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.pdf"), 10)
	writeFile(t, filepath.Join(dir, "sub", "a.pdf"), 10)
	writeFile(t, filepath.Join(dir, "notes.txt"), 10)

	inputs, err := Gather([]string{dir})
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "b.pdf", inputs[0].FileName)
	assert.Equal(t, "a.pdf", inputs[1].FileName)
	assert.True(t, filepath.IsAbs(inputs[0].Path))
}

func TestGatherDeduplicatesPaths(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "q.pdf")
	writeFile(t, pdf, 10)

	inputs, err := Gather([]string{pdf, pdf, dir})
	require.NoError(t, err)
	assert.Len(t, inputs, 1)
}

func TestGatherRejectsUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	writeFile(t, txt, 10)

	_, err := Gather([]string{txt})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")
}

func TestGatherEmptyResult(t *testing.T) {
	dir := t.TempDir()
	_, err := Gather([]string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents found")

	_, err = Gather(nil)
	require.Error(t, err)
}

func TestCheckSize(t *testing.T) {
	small := Input{FileName: "s.pdf", SizeMB: 0.5}
	large := Input{FileName: "l.pdf", SizeMB: 30}

	assert.NoError(t, CheckSize(small, 25))
	assert.NoError(t, CheckSize(large, 0))

	err := CheckSize(large, 25)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeOversized))
}

func TestHashFileStable(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(a, []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same content"), 0o644))

	ha, err := HashFile(a)
	require.NoError(t, err)
	hb, err := HashFile(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	require.NoError(t, os.WriteFile(b, []byte("different"), 0o644))
	hb2, err := HashFile(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb2)
}
