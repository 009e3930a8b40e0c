// Package recommend holds the static cost saving suggestions.
package recommend

import (
	"sort"

	"github.com/OldStager01/cloudpulse/pkg/models"
)

var defaultRecommendations = []models.Recommendation{
	{Title: "Purchase Reserved Instances", Service: "EC2", SavingsValue: 12000, Savings: "$12000/year"},
	{Title: "Resize underutilized DB", Service: "RDS", SavingsValue: 5400, Savings: "$450/month"},
	{Title: "Enable lifecycle rules", Service: "S3", SavingsValue: 1800, Savings: "$150/month"},
}

type Catalog struct {
	items []models.Recommendation
}

// NewCatalog returns a catalog of items, or the built-in list when none are given.
func NewCatalog(items ...models.Recommendation) *Catalog {
	if len(items) == 0 {
		items = defaultRecommendations
	}
	sorted := append([]models.Recommendation{}, items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SavingsValue > sorted[j].SavingsValue
	})
	return &Catalog{items: sorted}
}

// All returns every recommendation, highest savings first.
func (c *Catalog) All() []models.Recommendation {
	return append([]models.Recommendation{}, c.items...)
}

// Top returns the n highest-saving recommendations.
func (c *Catalog) Top(n int) []models.Recommendation {
	if n <= 0 || n > len(c.items) {
		n = len(c.items)
	}
	return append([]models.Recommendation{}, c.items[:n]...)
}

// TotalSavings sums the annualised value of every recommendation.
func (c *Catalog) TotalSavings() float64 {
	var total float64
	for _, r := range c.items {
		total += r.SavingsValue
	}
	return total
}
