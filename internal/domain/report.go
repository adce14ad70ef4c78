package domain

import (
	"io"
	"time"
)

type ReportFormat string

const (
	FormatExcel ReportFormat = "xlsx"
	FormatPDF   ReportFormat = "pdf"
)

func ParseReportFormat(s string) (ReportFormat, error) {
	switch ReportFormat(s) {
	case FormatExcel, FormatPDF:
		return ReportFormat(s), nil
	case "":
		return FormatExcel, nil
	default:
		return "", ErrUnknownFormat
	}
}

type MaterialSummary struct {
	MaterialType string  `json:"material_type"`
	Count        int     `json:"count"`
	TotalKg      float64 `json:"total_kg"`
	TotalAmount  float64 `json:"total_amount"`
}

// CollectionReport is the document model rendered to Excel or PDF.
type CollectionReport struct {
	Title       string
	GeneratedAt time.Time
	From        time.Time
	To          time.Time
	Rows        []Collection
	Summary     []MaterialSummary
}

// ReportRenderer writes a CollectionReport in one file format.
type ReportRenderer interface {
	Format() ReportFormat
	ContentType() string
	Render(w io.Writer, report *CollectionReport) error
}
