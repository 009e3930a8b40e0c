package forecast

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Additive models a series as trend + weekly + daily components. The trend
// is a least-squares line over elapsed days; each seasonal component is the
// centered mean residual of its bucket (weekday, hour of day).
type Additive struct {
	MinObservations   int
	WeeklySeasonality bool
	DailySeasonality  bool
	// Step is the spacing of extrapolated points.
	Step time.Duration
}

func NewAdditive() *Additive {
	return &Additive{
		MinObservations:   14,
		WeeklySeasonality: true,
		DailySeasonality:  true,
		Step:              24 * time.Hour,
	}
}

func (a *Additive) Name() string {
	return "additive"
}

func (a *Additive) Forecast(ctx context.Context, series []Observation, horizon int) ([]Prediction, error) {
	minObs := a.MinObservations
	if minObs < 2 {
		minObs = 2
	}
	if len(series) < minObs {
		return nil, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientData, len(series), minObs)
	}
	step := a.Step
	if step <= 0 {
		step = 24 * time.Hour
	}

	origin := series[0].Date
	elapsed := func(t time.Time) float64 {
		return t.Sub(origin).Hours() / 24
	}

	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, o := range series {
		xs[i] = elapsed(o.Date)
		ys[i] = o.Value
	}

	intercept, slope, ok := fitLine(xs, ys)
	if !ok {
		return nil, fmt.Errorf("%w: observations share a single timestamp", ErrInsufficientData)
	}

	residuals := make([]float64, len(series))
	for i := range series {
		residuals[i] = ys[i] - (intercept + slope*xs[i])
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	weekly := make([]float64, 7)
	if a.WeeklySeasonality {
		weekly = seasonalMeans(residuals, 7, func(i int) int { return int(series[i].Date.Weekday()) })
		for i := range residuals {
			residuals[i] -= weekly[series[i].Date.Weekday()]
		}
	}

	daily := make([]float64, 24)
	if a.DailySeasonality {
		daily = seasonalMeans(residuals, 24, func(i int) int { return series[i].Date.Hour() })
	}

	predict := func(t time.Time) float64 {
		return intercept + slope*elapsed(t) + weekly[t.Weekday()] + daily[t.Hour()]
	}

	if horizon < 0 {
		horizon = 0
	}
	out := make([]Prediction, 0, len(series)+horizon)
	for _, o := range series {
		out = append(out, Prediction{Date: o.Date, Value: predict(o.Date)})
	}
	last := series[len(series)-1].Date
	for i := 1; i <= horizon; i++ {
		t := last.Add(time.Duration(i) * step)
		out = append(out, Prediction{Date: t, Value: predict(t)})
	}

	for _, p := range out {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, ErrModelDiverged
		}
	}
	return out, nil
}

func fitLine(xs, ys []float64) (intercept, slope float64, ok bool) {
	n := float64(len(xs))
	var meanX, meanY float64
	for i := range xs {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= n
	meanY /= n

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}
	if sxx == 0 {
		return 0, 0, false
	}

	slope = sxy / sxx
	return meanY - slope*meanX, slope, true
}

// seasonalMeans averages values per bucket and centers the populated
// buckets on zero. Buckets without data contribute nothing.
func seasonalMeans(values []float64, buckets int, bucketOf func(i int) int) []float64 {
	sums := make([]float64, buckets)
	counts := make([]int, buckets)
	for i, v := range values {
		b := bucketOf(i)
		sums[b] += v
		counts[b]++
	}

	means := make([]float64, buckets)
	var total float64
	populated := 0
	for b := range means {
		if counts[b] == 0 {
			continue
		}
		means[b] = sums[b] / float64(counts[b])
		total += means[b]
		populated++
	}
	if populated == 0 {
		return means
	}

	center := total / float64(populated)
	for b := range means {
		if counts[b] > 0 {
			means[b] -= center
		}
	}
	return means
}
