// Package extract turns document files into indexable text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/fukabori/internal/models"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// File reads the file at path and returns it as a document ready for the
// pipeline, with the source path and extension in its metadata.
func (e *Extractor) File(path string) (models.Document, error) {
	text, err := e.Extract(path)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{
		Text: text,
		Metadata: map[string]interface{}{
			"source": path,
			"format": strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		},
	}, nil
}

// Extract reads the file at path and returns its text content. PDF, DOCX,
// and XLSX are unpacked from their binary formats; everything else is
// treated as plain UTF-8 text.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on the given extension.
// ext includes the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractXLSX(content)
	default:
		return extractPlain(content)
	}
}

// extractPlain returns content as a string, replacing invalid UTF-8
// sequences with the replacement character.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}
