// Package extract turns uploaded documents into plain text.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/calder-labs/ragserve/internal/domain"
)

// Extractor converts raw document bytes into UTF-8 text based on the
// file extension. Supported formats: .txt, .md, .pdf.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Supported reports whether the filename's extension has an extractor.
func (e *Extractor) Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".pdf":
		return true
	}
	return false
}

// Text extracts plain text from the document. It returns
// domain.ErrUnsupportedFormat for unknown extensions,
// domain.ErrExtractionFailed for malformed content and
// domain.ErrEmptyDocument when nothing extractable remains.
func (e *Extractor) Text(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		text, err = plainText(data)
	case ".pdf":
		text, err = pdfText(data)
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyDocument
	}
	return text, nil
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", domain.ErrExtractionFailed)
	}
	return string(data), nil
}

// pdfText concatenates the plain text of every page. Pages that fail to
// parse are skipped; extraction fails only when the document itself is
// unreadable.
func pdfText(data []byte) (text string, err error) {
	// the pdf library panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", domain.ErrExtractionFailed, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrExtractionFailed, err.Error())
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := pageText(page)
		if err != nil {
			continue
		}
		if sb.Len() > 0 && content != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(content)
	}

	return sb.String(), nil
}

func pageText(p pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page panic: %v", r)
		}
	}()

	return p.GetPlainText(nil)
}
