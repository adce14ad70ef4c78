package report

import (
	"fmt"
	"io"

	"github.com/wozamali/admin-console/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	detailSheet  = "Collections"

	// Built-in excelize number format "0.00".
	twoDecimals = 2
)

var (
	summaryHeader = []any{"Material", "Collections", "Total kg", "Total amount (R)"}
	detailHeader  = []any{"Date", "Member", "Material", "Weight kg", "Amount (R)", "Status"}
)

// Excel renders reports as .xlsx with a summary and a detail sheet.
type Excel struct{}

var _ domain.ReportRenderer = Excel{}

func (Excel) Format() domain.ReportFormat { return domain.FormatExcel }

func (Excel) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (Excel) Render(w io.Writer, r *domain.CollectionReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if _, err := f.NewSheet(detailSheet); err != nil {
		return fmt.Errorf("failed to add detail sheet: %w", err)
	}

	styles, err := newExcelStyles(f)
	if err != nil {
		return err
	}

	if err := writeSummarySheet(f, styles, r); err != nil {
		return err
	}
	if err := writeDetailSheet(f, styles, r); err != nil {
		return err
	}

	_ = f.SetDocProps(&excelize.DocProperties{
		Title:   r.Title,
		Creator: "Woza Mali admin console",
		Created: r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type excelStyles struct {
	bold   int
	header int
	number int
}

func newExcelStyles(f *excelize.File) (excelStyles, error) {
	var s excelStyles
	var err error

	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, fmt.Errorf("failed to create title style: %w", err)
	}
	s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9EAD3"}},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	if s.number, err = f.NewStyle(&excelize.Style{NumFmt: twoDecimals}); err != nil {
		return s, fmt.Errorf("failed to create number style: %w", err)
	}
	return s, nil
}

func writeSummarySheet(f *excelize.File, st excelStyles, r *domain.CollectionReport) error {
	sh := summarySheet
	rows := [][]any{
		{r.Title},
		{"Period", periodLabel(r)},
		{"Generated", formatDate(r.GeneratedAt)},
		{},
		summaryHeader,
	}
	for i, row := range rows {
		if err := setRow(f, sh, i+1, row); err != nil {
			return err
		}
	}
	_ = f.SetCellStyle(sh, "A1", "A1", st.bold)
	_ = f.SetCellStyle(sh, "A5", "D5", st.header)

	next := len(rows) + 1
	if len(r.Summary) == 0 {
		return setRow(f, sh, next, []any{noData})
	}

	for _, s := range r.Summary {
		if err := setRow(f, sh, next, []any{s.MaterialType, s.Count, s.TotalKg, s.TotalAmount}); err != nil {
			return err
		}
		next++
	}

	count, kg, amount := totals(r.Summary)
	if err := setRow(f, sh, next, []any{"Total", count, kg, amount}); err != nil {
		return err
	}
	_ = f.SetCellStyle(sh, cell("A", next), cell("D", next), st.header)
	_ = f.SetCellStyle(sh, "C6", cell("D", next), st.number)
	_ = f.SetColWidth(sh, "A", "D", 18)
	return nil
}

func writeDetailSheet(f *excelize.File, st excelStyles, r *domain.CollectionReport) error {
	sh := detailSheet
	if err := setRow(f, sh, 1, detailHeader); err != nil {
		return err
	}
	_ = f.SetCellStyle(sh, "A1", "F1", st.header)
	_ = f.SetColWidth(sh, "A", "F", 16)

	if len(r.Rows) == 0 {
		return setRow(f, sh, 2, []any{noData})
	}

	for i, c := range r.Rows {
		row := []any{formatDate(c.CreatedAt), c.MemberName, c.MaterialType, c.WeightKg, c.Amount, string(c.Status)}
		if err := setRow(f, sh, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetCellStyle(sh, "D2", cell("E", len(r.Rows)+1), st.number)
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
