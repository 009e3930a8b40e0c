// Package forecast predicts daily spend and lines the prediction up with
// the observed history.
package forecast

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/OldStager01/cloudpulse/pkg/models"
)

var (
	ErrInsufficientData = errors.New("insufficient data for forecasting")
	ErrModelDiverged    = errors.New("forecast model produced non-finite values")
)

// Observation is one point of the value series being forecast.
type Observation struct {
	Date  time.Time
	Value float64
}

type Prediction struct {
	Date  time.Time
	Value float64
}

// Forecaster predicts values for every observed date and, when it can
// extrapolate, for horizon further steps.
type Forecaster interface {
	Name() string
	Forecast(ctx context.Context, series []Observation, horizon int) ([]Prediction, error)
}

// Normalize converts daily records into an ascending series with one
// observation per date. Rows without a usable date are dropped and
// duplicate dates are summed.
func Normalize(daily []models.DailyCostRecord) []Observation {
	sums := make(map[time.Time]float64, len(daily))
	dates := make([]time.Time, 0, len(daily))
	for _, d := range daily {
		if d.Date.IsZero() {
			continue
		}
		day := models.Day(d.Date)
		if _, seen := sums[day]; !seen {
			dates = append(dates, day)
		}
		sums[day] += d.TotalCost
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	series := make([]Observation, len(dates))
	for i, day := range dates {
		series[i] = Observation{Date: day, Value: sums[day]}
	}
	return series
}
