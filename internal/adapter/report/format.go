// Package report renders collection reports as Excel workbooks and PDF documents.
package report

import (
	"fmt"
	"time"

	"github.com/wozamali/admin-console/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	noData     = "No data"
)

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatKg(kg float64) string {
	return fmt.Sprintf("%.2f", kg)
}

func formatRand(amount float64) string {
	return fmt.Sprintf("R%.2f", amount)
}

// periodLabel describes the report range; To is exclusive.
func periodLabel(r *domain.CollectionReport) string {
	switch {
	case r.From.IsZero() && r.To.IsZero():
		return "All dates"
	case r.From.IsZero():
		return "Before " + formatDate(r.To)
	case r.To.IsZero():
		return "From " + formatDate(r.From)
	default:
		return formatDate(r.From) + " to " + formatDate(r.To.AddDate(0, 0, -1))
	}
}

func totals(summary []domain.MaterialSummary) (count int, kg, amount float64) {
	for _, s := range summary {
		count += s.Count
		kg += s.TotalKg
		amount += s.TotalAmount
	}
	return count, kg, amount
}
