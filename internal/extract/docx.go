package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const docxDocumentPath = "word/document.xml"

// wtNode matches the inner text of <w:t> nodes regardless of attributes
// (e.g. xml:space="preserve").
var wtNode = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// extractDOCX pulls the text nodes out of word/document.xml. DOCX is a zip
// of OOXML parts; collecting every <w:t> keeps the content searchable no
// matter how paragraphs and runs are attributed.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: not a zip: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docxDocumentPath)
	}

	parts := wtNode.FindAllSubmatch(docXML, -1)
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(string(p[1])); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " "), nil
}
