package filter

import (
	"strings"

	"github.com/IliaW/futuretools-tracker/internal/model"
)

// Apply returns the subset of records matching the query, in the original
// order. Conditions are AND-combined; absent conditions impose no
// restriction. The input is never mutated.
func Apply(records []model.Tool, q model.FilterQuery) ([]model.Tool, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	text := strings.ToLower(q.Text)
	result := make([]model.Tool, 0, len(records))
	for _, t := range records {
		if text != "" && !matchesText(t, text) {
			continue
		}
		if len(q.Categories) > 0 && !intersects(t.Categories, q.Categories) {
			continue
		}
		if len(q.Pricing) > 0 && !intersects(t.Pricing, q.Pricing) {
			continue
		}
		result = append(result, t)
	}

	return result, nil
}

func matchesText(t model.Tool, loweredQuery string) bool {
	return strings.Contains(strings.ToLower(t.Name), loweredQuery) ||
		strings.Contains(strings.ToLower(t.Description), loweredQuery)
}

func intersects(values, wanted []string) bool {
	for _, v := range values {
		for _, w := range wanted {
			if v == w {
				return true
			}
		}
	}
	return false
}
