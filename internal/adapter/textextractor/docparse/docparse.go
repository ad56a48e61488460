// Package docparse extracts plain text from resume documents locally:
// PDF via ledongthuc/pdf, DOC/DOCX via docconv. ZIP archives are not
// extracted here; the pipeline fans each supported entry out as its own
// job.
package docparse

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/hirewise/resume-matcher/pkg/textx"
)

// Extractor implements domain.TextExtractor over local parsers.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor { return &Extractor{} }

// Extract routes on the file extension and returns sanitized plain text.
// Unknown extensions are a permanent failure; retrying cannot fix them.
func (e *Extractor) Extract(_ context.Context, fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("invalid document: empty file %q", fileName)
	}
	var text string
	var err error
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, _, err = docconv.ConvertDocx(bytes.NewReader(data))
	case ".doc":
		text, _, err = docconv.ConvertDoc(bytes.NewReader(data))
	default:
		return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(fileName))
	}
	if err != nil {
		return "", fmt.Errorf("op=docparse.extract: malformed document %q: %w", fileName, err)
	}
	return textx.SanitizeText(text), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ZipEntry is one file pulled out of an uploaded archive.
type ZipEntry struct {
	Name string
	Data []byte
}

// IsZip sniffs whether the payload is a ZIP archive. DOCX is itself a
// zip container, so the extension decides first and sniffing second.
func IsZip(fileName string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".zip") {
		return true
	}
	return filepath.Ext(fileName) == "" && mimetype.Detect(data).Is("application/zip")
}

// ListZipEntries returns the archive entries whose extension the allowed
// predicate accepts. Directories and nested archives are skipped.
func ListZipEntries(data []byte, allowed func(ext string) bool) ([]ZipEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("op=docparse.zip: malformed archive: %w", err)
	}
	var out []ZipEntry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext == ".zip" || !allowed(ext) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("op=docparse.zip: %w", err)
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("op=docparse.zip: %w", err)
		}
		out = append(out, ZipEntry{Name: filepath.Base(f.Name), Data: b})
	}
	return out, nil
}
