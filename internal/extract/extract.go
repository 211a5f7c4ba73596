// Package extract turns raw page and document bytes into retrievable
// content chunks. All extractors fail soft: a malformed document yields
// no chunks and never aborts the caller's crawl.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Chunk is a unit of extracted content. A chunk with ImageURL set
// describes an image; Text then holds its alt description.
type Chunk struct {
	Text     string
	ImageURL string
}

// Extractor converts raw bytes into content chunks
type Extractor struct {
	log *zap.Logger
}

// NewExtractor creates a new extractor
func NewExtractor(log *zap.Logger) *Extractor {
	return &Extractor{log: log}
}

// PDF concatenates per-page text into a single whole-document chunk
func (e *Extractor) PDF(data []byte) []Chunk {
	var text string
	err := func() (err error) {
		// The pdf library panics on some malformed inputs.
		defer func() {
			if r := recover(); r != nil {
				err = io.ErrUnexpectedEOF
			}
		}()

		reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return err
		}

		var b strings.Builder
		for i := 1; i <= reader.NumPage(); i++ {
			page := reader.Page(i)
			if page.V.IsNull() {
				continue
			}
			pageText, err := page.GetPlainText(nil)
			if err != nil {
				continue
			}
			b.WriteString(pageText)
			b.WriteString("\n")
		}
		text = b.String()
		return nil
	}()
	if err != nil {
		e.log.Warn("failed to process pdf", zap.Error(err))
		return nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return []Chunk{{Text: text}}
}

// docx document.xml structure, enough to reach paragraph text runs.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// DOCX concatenates non-empty paragraph texts into a single chunk
func (e *Extractor) DOCX(data []byte) []Chunk {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.log.Warn("failed to process docx", zap.Error(err))
		return nil
	}

	var content []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			e.log.Warn("failed to process docx", zap.Error(err))
			return nil
		}
		content, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			e.log.Warn("failed to process docx", zap.Error(err))
			return nil
		}
		break
	}
	if content == nil {
		return nil
	}

	var doc docxDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		e.log.Warn("failed to process docx", zap.Error(err))
		return nil
	}

	var paragraphs []string
	for _, p := range doc.Body.Paragraphs {
		if t := strings.TrimSpace(p.text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	return []Chunk{{Text: strings.Join(paragraphs, "\n")}}
}
