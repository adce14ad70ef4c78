package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/wozamali/admin-console/internal/domain"
)

const (
	lineHeight = 7.0
	pageMargin = 15.0
)

var (
	summaryWidths = []float64{60, 35, 40, 45}
	detailWidths  = []float64{25, 50, 35, 25, 30, 15}
)

// PDF renders reports as an A4 portrait document.
type PDF struct {
	// Uncompressed leaves content streams readable; used by tests.
	Uncompressed bool
}

var _ domain.ReportRenderer = PDF{}

func (PDF) Format() domain.ReportFormat { return domain.FormatPDF }

func (PDF) ContentType() string { return "application/pdf" }

func (p PDF) Render(w io.Writer, r *domain.CollectionReport) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.SetCompression(!p.Uncompressed)
	doc.SetTitle(r.Title, true)
	doc.SetCreator("Woza Mali admin console", true)
	doc.SetCreationDate(r.GeneratedAt)
	doc.SetModificationDate(r.GeneratedAt)

	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetFooterFunc(func() {
		doc.SetY(-pageMargin)
		doc.SetFont("Helvetica", "I", 8)
		doc.CellFormat(0, 10, "Page "+strconv.Itoa(doc.PageNo()), "", 0, "C", false, 0, "")
	})
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, tr(r.Title), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 6, "Period: "+periodLabel(r), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, "Generated: "+formatDate(r.GeneratedAt), "", 1, "L", false, 0, "")
	doc.Ln(4)

	writeSummaryTable(doc, tr, r.Summary)
	doc.Ln(6)
	writeDetailTable(doc, tr, r.Rows)

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func headerRow(doc *fpdf.Fpdf, widths []float64, labels ...string) {
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(217, 234, 211)
	for i, label := range labels {
		doc.CellFormat(widths[i], lineHeight, label, "1", 0, "L", true, 0, "")
	}
	doc.Ln(-1)
	doc.SetFont("Helvetica", "", 10)
}

func noDataRow(doc *fpdf.Fpdf, widths []float64) {
	var total float64
	for _, w := range widths {
		total += w
	}
	doc.CellFormat(total, lineHeight, noData, "1", 1, "C", false, 0, "")
}

func writeSummaryTable(doc *fpdf.Fpdf, tr func(string) string, summary []domain.MaterialSummary) {
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 8, "Summary by material", "", 1, "L", false, 0, "")
	headerRow(doc, summaryWidths, "Material", "Collections", "Total kg", "Total amount")

	if len(summary) == 0 {
		noDataRow(doc, summaryWidths)
		return
	}

	for _, s := range summary {
		doc.CellFormat(summaryWidths[0], lineHeight, tr(s.MaterialType), "1", 0, "L", false, 0, "")
		doc.CellFormat(summaryWidths[1], lineHeight, strconv.Itoa(s.Count), "1", 0, "R", false, 0, "")
		doc.CellFormat(summaryWidths[2], lineHeight, formatKg(s.TotalKg), "1", 0, "R", false, 0, "")
		doc.CellFormat(summaryWidths[3], lineHeight, formatRand(s.TotalAmount), "1", 1, "R", false, 0, "")
	}

	count, kg, amount := totals(summary)
	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(summaryWidths[0], lineHeight, "Total", "1", 0, "L", false, 0, "")
	doc.CellFormat(summaryWidths[1], lineHeight, strconv.Itoa(count), "1", 0, "R", false, 0, "")
	doc.CellFormat(summaryWidths[2], lineHeight, formatKg(kg), "1", 0, "R", false, 0, "")
	doc.CellFormat(summaryWidths[3], lineHeight, formatRand(amount), "1", 1, "R", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
}

func writeDetailTable(doc *fpdf.Fpdf, tr func(string) string, rows []domain.Collection) {
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 8, "Collections", "", 1, "L", false, 0, "")
	headerRow(doc, detailWidths, "Date", "Member", "Material", "Kg", "Amount", "Status")

	if len(rows) == 0 {
		noDataRow(doc, detailWidths)
		return
	}

	doc.SetFont("Helvetica", "", 9)
	for _, c := range rows {
		doc.CellFormat(detailWidths[0], lineHeight, formatDate(c.CreatedAt), "1", 0, "L", false, 0, "")
		doc.CellFormat(detailWidths[1], lineHeight, tr(c.MemberName), "1", 0, "L", false, 0, "")
		doc.CellFormat(detailWidths[2], lineHeight, tr(c.MaterialType), "1", 0, "L", false, 0, "")
		doc.CellFormat(detailWidths[3], lineHeight, formatKg(c.WeightKg), "1", 0, "R", false, 0, "")
		doc.CellFormat(detailWidths[4], lineHeight, formatRand(c.Amount), "1", 0, "R", false, 0, "")
		doc.CellFormat(detailWidths[5], lineHeight, string(c.Status), "1", 1, "L", false, 0, "")
	}
}
