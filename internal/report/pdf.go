// AngelaMos | 2026
// pdf.go

package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin  = 12.7 // 0.5in in mm
	lineHeight  = 5.5
	cellHeight  = 7
	cellPadding = 1.5
)

type rgb struct{ r, g, b int }

var (
	colorTitle   = rgb{0x1e, 0x29, 0x3b}
	colorHeading = rgb{0x3b, 0x82, 0xf6}
	colorGreen   = rgb{0x10, 0xb9, 0x81}
	colorBlue    = rgb{0x3b, 0x82, 0xf6}
	colorGrey    = rgb{0x80, 0x80, 0x80}
	colorRowFill = rgb{0xd3, 0xd3, 0xd3}
	colorText    = rgb{0x00, 0x00, 0x00}
)

// Renderer turns an assembled Document into an artifact body.
type Renderer interface {
	Render(doc *Document) ([]byte, error)
	ContentType() string
	Extension() string
}

type PDFOptions struct {
	ProductName string
	// Uncompressed output keeps page text greppable in tests.
	DisableCompression bool
}

type PDFRenderer struct {
	productName string
	compress    bool
}

func NewPDFRenderer(opts PDFOptions) *PDFRenderer {
	name := opts.ProductName
	if name == "" {
		name = "ReportRiser"
	}
	return &PDFRenderer{productName: name, compress: !opts.DisableCompression}
}

func (r *PDFRenderer) ContentType() string { return "application/pdf" }

func (r *PDFRenderer) Extension() string { return ".pdf" }

func (r *PDFRenderer) Render(doc *Document) ([]byte, error) {
	if doc == nil || doc.Len() == 0 {
		return nil, fmt.Errorf("render pdf: %w", ErrMissingInput)
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(doc.GeneratedAt())
	pdf.SetModificationDate(doc.GeneratedAt())
	pdf.SetTitle(doc.Title(), true)
	pdf.SetAuthor(r.productName, true)
	pdf.SetCreator(r.productName, true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	w := pdfWriter{pdf: pdf, tr: tr}
	for _, s := range doc.Sections() {
		w.section(s)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w pdfWriter) contentWidth() float64 {
	pageW, _ := w.pdf.GetPageSize()
	return pageW - 2*pageMargin
}

func (w pdfWriter) color(c rgb) {
	w.pdf.SetTextColor(c.r, c.g, c.b)
}

func (w pdfWriter) section(s Section) {
	switch s.Kind {
	case SectionTitle:
		w.pdf.SetFont("Helvetica", "B", 24)
		w.color(colorTitle)
		w.pdf.CellFormat(0, 14, w.tr(s.Heading), "", 1, "C", false, 0, "")
		w.pdf.Ln(6)
		return
	case SectionWatermark:
		w.pdf.Ln(10)
		w.pdf.SetFont("Helvetica", "I", 8)
		w.color(colorGrey)
		for _, p := range s.Paragraphs {
			w.pdf.CellFormat(0, lineHeight, w.tr(p), "", 1, "C", false, 0, "")
		}
		return
	}

	if s.PageBreak {
		w.pdf.AddPage()
	}

	if s.Heading != "" {
		w.pdf.Ln(5)
		w.pdf.SetFont("Helvetica", "B", 16)
		w.color(colorHeading)
		w.pdf.CellFormat(0, 9, w.tr(s.Heading), "", 1, "L", false, 0, "")
		w.pdf.Ln(2)
	}

	accent := colorGreen
	if s.Kind == SectionTopPages {
		accent = colorBlue
	}

	// Vitals put the table first and the score text after it.
	if s.Kind == SectionVitals && len(s.Tables) > 0 {
		w.tables(s.Tables[:1], accent)
		w.paragraphs(s.Paragraphs)
		w.callout(s.Callout)
		if len(s.Tables) > 1 {
			w.pdf.Ln(3)
			w.pdf.SetFont("Helvetica", "B", 12)
			w.color(colorHeading)
			w.pdf.CellFormat(0, 8, w.tr("Additional Performance Metrics"), "", 1, "L", false, 0, "")
			w.tables(s.Tables[1:], accent)
		}
		return
	}

	w.paragraphs(s.Paragraphs)
	w.tables(s.Tables, accent)
	w.callout(s.Callout)
}

func (w pdfWriter) paragraphs(ps []string) {
	w.pdf.SetFont("Helvetica", "", 10)
	w.color(colorText)
	for _, p := range ps {
		w.pdf.MultiCell(0, lineHeight, w.tr(p), "", "L", false)
	}
	if len(ps) > 0 {
		w.pdf.Ln(2)
	}
}

func (w pdfWriter) callout(text string) {
	if text == "" {
		return
	}
	w.pdf.SetFont("Helvetica", "B", 10)
	w.color(colorText)
	w.pdf.MultiCell(0, lineHeight, w.tr(text), "", "L", false)
	w.pdf.Ln(2)
}

func (w pdfWriter) tables(ts []Table, accent rgb) {
	for _, t := range ts {
		w.table(t, accent)
		w.pdf.Ln(4)
	}
}

func (w pdfWriter) table(t Table, accent rgb) {
	widths := columnWidths(t, w.contentWidth())

	w.pdf.SetDrawColor(colorGrey.r, colorGrey.g, colorGrey.b)
	w.pdf.SetFillColor(accent.r, accent.g, accent.b)
	w.pdf.SetTextColor(0xf5, 0xf5, 0xf5)
	w.pdf.SetFont("Helvetica", "B", 11)
	for i, col := range t.Columns {
		w.pdf.CellFormat(widths[i], cellHeight+2, w.fit(col, widths[i]), "1", 0, "L", true, 0, "")
	}
	w.pdf.Ln(-1)

	w.pdf.SetFillColor(colorRowFill.r, colorRowFill.g, colorRowFill.b)
	w.color(colorText)
	w.pdf.SetFont("Helvetica", "", 9)
	for _, row := range t.Rows {
		for i := range t.Columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			w.pdf.CellFormat(widths[i], cellHeight, w.fit(cell, widths[i]), "1", 0, "L", true, 0, "")
		}
		w.pdf.Ln(-1)
	}
}

// fit truncates text with an ellipsis so it stays inside a cell.
func (w pdfWriter) fit(text string, width float64) string {
	limit := width - 2*cellPadding
	if w.pdf.GetStringWidth(w.tr(text)) <= limit {
		return w.tr(text)
	}

	runes := []rune(text)
	for len(runes) > 0 && w.pdf.GetStringWidth(w.tr(string(runes)+"...")) > limit {
		runes = runes[:len(runes)-1]
	}
	return w.tr(string(runes) + "...")
}

func columnWidths(t Table, total float64) []float64 {
	n := len(t.Columns)
	widths := make([]float64, n)
	if n == 0 {
		return widths
	}

	weights := t.Weights
	if len(weights) != n {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1
		}
	}

	sum := 0.0
	for _, wt := range weights {
		sum += wt
	}
	for i, wt := range weights {
		widths[i] = total * wt / sum
	}
	return widths
}
