package models

import "time"

type ForecastSource string

const (
	ForecastSourceModel    ForecastSource = "model"
	ForecastSourceFallback ForecastSource = "fallback"
)

// ForecastPoint aligns an observed daily total with its predicted value.
// Actual is nil for dates past the observed history.
type ForecastPoint struct {
	Date      time.Time `json:"date"`
	Actual    *float64  `json:"actual,omitempty"`
	Predicted float64   `json:"predicted"`
}

func (p ForecastPoint) Observed() bool {
	return p.Actual != nil
}

// ForecastSummary holds the headline numbers shown on the dashboard.
type ForecastSummary struct {
	TotalCost30d       float64 `json:"total_cost_30d"`
	PredictedNextMonth float64 `json:"predicted_next_month"`
	Savings            float64 `json:"savings"`
	ChangePercentage   float64 `json:"change_percentage"`
}

type ForecastResult struct {
	Points      []ForecastPoint `json:"points"`
	Source      ForecastSource  `json:"source"`
	Forecaster  string          `json:"forecaster"`
	Reason      string          `json:"fallback_reason,omitempty"`
	Summary     ForecastSummary `json:"summary"`
	GeneratedAt time.Time       `json:"generated_at"`
}

func (r *ForecastResult) IsFallback() bool {
	return r.Source == ForecastSourceFallback
}
