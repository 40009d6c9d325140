package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// FromFile extracts plain text from an uploaded file based on its
// extension. Unknown extensions are treated as UTF-8 text.
func FromFile(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FromPDF(data)
	case ".html", ".htm":
		return FromHTML(data)
	default:
		return FromPlainText(data), nil
	}
}

// FromPDF extracts the plain text of every page. The pdf library works
// with file paths, so the bytes go through a temp file.
func FromPDF(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "ragcite-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("failed to write temp pdf: %v", err)
	}

	f, rdr, err := pdf.Open(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %v", err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %v", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %v", err)
	}

	return sanitizeUTF8(buf.String()), nil
}

// FromHTML strips markup and returns the visible text of the document.
func FromHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %v", err)
	}

	doc.Find("script, style, noscript").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	// Collapse runs of whitespace left behind by removed elements
	return strings.Join(strings.Fields(text), " "), nil
}

// FromPlainText decodes the bytes as UTF-8, dropping invalid sequences.
func FromPlainText(data []byte) string {
	return sanitizeUTF8(string(data))
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
