// Package export writes chat transcripts as CSV or PDF documents.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/shopinsight/shopinsight/internal/session"
)

// PDFTitle heads every exported PDF.
const PDFTitle = "LLM Business Assistant - Chat History"

type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts "csv" or "pdf" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q, expected csv or pdf", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// Write renders messages in the given format.
func Write(w io.Writer, format Format, messages []session.Message) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, messages)
	case FormatPDF:
		return WritePDF(w, messages)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSV writes a role,content table with one row per message.
func WriteCSV(w io.Writer, messages []session.Message) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"role", "content"}); err != nil {
		return err
	}
	for _, m := range messages {
		if err := cw.Write([]string{string(m.Role), m.Content}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePDF writes a single-column document: the title, then a
// "Role: content" block per message.
func WritePDF(w io.Writer, messages []session.Message) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(PDFTitle, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	// core fonts are cp1252, so text is translated and anything outside it degrades
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 10, tr(PDFTitle), "", "C", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	for _, m := range messages {
		pdf.MultiCell(0, 7, tr(fmt.Sprintf("%s: %s", roleLabel(m.Role), m.Content)), "", "L", false)
		pdf.Ln(3)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf.Output(w)
}

func roleLabel(r session.Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
