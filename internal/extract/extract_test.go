package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDOCXExtractsParagraphs(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	data := buildDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Welcome to </w:t></w:r><w:r><w:t>our company.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>We sell widgets.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	chunks := e.DOCX(data)

	// Runs within a paragraph concatenate, empty paragraphs drop out,
	// and the whole document lands in one chunk.
	require.Len(t, chunks, 1)
	assert.Equal(t, "Welcome to our company.\nWe sell widgets.", chunks[0].Text)
	assert.Empty(t, chunks[0].ImageURL)
}

func TestDOCXWithoutDocumentXML(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Empty(t, e.DOCX(buf.Bytes()))
}

func TestDOCXMalformedInput(t *testing.T) {
	e := NewExtractor(zap.NewNop())
	assert.Empty(t, e.DOCX([]byte("this is not a zip archive")))
}

func TestDOCXOnlyEmptyParagraphs(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	data := buildDocx(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body><w:p><w:r><w:t>   </w:t></w:r></w:p></w:body>
</w:document>`)

	assert.Empty(t, e.DOCX(data))
}

func TestPDFMalformedInput(t *testing.T) {
	e := NewExtractor(zap.NewNop())
	assert.Empty(t, e.PDF([]byte("%PDF-1.4 truncated garbage")))
	assert.Empty(t, e.PDF(nil))
}
