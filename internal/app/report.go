package app

import (
	"sort"
	"time"

	"github.com/wozamali/admin-console/internal/domain"
)

// BuildReport groups rows by material. Summary lines are sorted by material name.
func BuildReport(title string, rows []domain.Collection, from, to, now time.Time) *domain.CollectionReport {
	byMaterial := make(map[string]*domain.MaterialSummary)
	for _, r := range rows {
		sum, ok := byMaterial[r.MaterialType]
		if !ok {
			sum = &domain.MaterialSummary{MaterialType: r.MaterialType}
			byMaterial[r.MaterialType] = sum
		}
		sum.Count++
		sum.TotalKg += r.WeightKg
		sum.TotalAmount += r.Amount
	}

	summary := make([]domain.MaterialSummary, 0, len(byMaterial))
	for _, s := range byMaterial {
		summary = append(summary, *s)
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].MaterialType < summary[j].MaterialType })

	return &domain.CollectionReport{
		Title:       title,
		GeneratedAt: now,
		From:        from,
		To:          to,
		Rows:        rows,
		Summary:     summary,
	}
}
