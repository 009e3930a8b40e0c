package forecast

import (
	"sort"
	"time"

	"github.com/OldStager01/cloudpulse/pkg/models"
)

// Join lines predictions up with observations over the union of their
// dates. Actual is only set for observed dates.
func Join(series []Observation, preds []Prediction) []models.ForecastPoint {
	actuals := make(map[time.Time]float64, len(series))
	predicted := make(map[time.Time]float64, len(preds))
	var dates []time.Time

	for _, o := range series {
		if _, ok := actuals[o.Date]; !ok {
			dates = append(dates, o.Date)
		}
		actuals[o.Date] = o.Value
	}
	for _, p := range preds {
		if _, ok := actuals[p.Date]; !ok {
			if _, dup := predicted[p.Date]; !dup {
				dates = append(dates, p.Date)
			}
		}
		predicted[p.Date] = p.Value
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	points := make([]models.ForecastPoint, len(dates))
	for i, d := range dates {
		points[i] = models.ForecastPoint{Date: d, Predicted: predicted[d]}
		if v, ok := actuals[d]; ok {
			actual := v
			points[i].Actual = &actual
		}
	}
	return points
}

// Summarize derives the dashboard totals from the unrounded points; only
// the totals are rounded to cents. window is the number of daily points in
// a "month" (30).
func Summarize(points []models.ForecastPoint, window int) models.ForecastSummary {
	if window <= 0 {
		window = 30
	}

	lastObserved := -1
	var observed []float64
	for i, p := range points {
		if p.Actual != nil {
			lastObserved = i
			observed = append(observed, *p.Actual)
		}
	}
	if lastObserved < 0 {
		return models.ForecastSummary{}
	}

	n := len(observed)
	recent := observed[max(0, n-window):]
	prior := observed[max(0, n-2*window):max(0, n-window)]

	total := sum(recent)
	priorTotal := sum(prior)

	var predicted float64
	for i, taken := lastObserved+1, 0; i < len(points) && taken < window; i, taken = i+1, taken+1 {
		predicted += points[i].Predicted
	}

	var change float64
	if len(prior) > 0 && priorTotal != 0 {
		change = (total - priorTotal) / priorTotal * 100
	}

	return models.ForecastSummary{
		TotalCost30d:       models.Round2(total),
		PredictedNextMonth: models.Round2(predicted),
		Savings:            models.Round2(predicted - total),
		ChangePercentage:   models.Round2(change),
	}
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}
