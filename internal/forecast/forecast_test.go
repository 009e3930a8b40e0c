package forecast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/cloudpulse/internal/metrics"
	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dailyRows(values ...float64) []models.DailyCostRecord {
	rows := make([]models.DailyCostRecord, len(values))
	for i, v := range values {
		rows[i] = models.NewDailyCostRecord(day0.AddDate(0, 0, i), v)
	}
	return rows
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func linear(n int, start, slope float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + slope*float64(i)
	}
	return out
}

type failingForecaster struct {
	calls atomic.Int32
	err   error
}

func (f *failingForecaster) Name() string { return "failing" }

func (f *failingForecaster) Forecast(context.Context, []Observation, int) ([]Prediction, error) {
	f.calls.Add(1)
	return nil, f.err
}

func newReconciler(primary Forecaster) *Reconciler {
	return NewReconciler(primary, DefaultConfig(), metrics.New())
}

func TestRollingMean_ConstantSeries(t *testing.T) {
	series := Normalize(dailyRows(repeat(100, 10)...))

	preds, err := NewRollingMean(7).Forecast(context.Background(), series, 30)

	require.NoError(t, err)
	require.Len(t, preds, 10, "rolling mean must not extrapolate")
	assert.Equal(t, 100.0, preds[0].Value)
	assert.Equal(t, 100.0, preds[7].Value)
}

func TestRollingMean_Window(t *testing.T) {
	series := Normalize(dailyRows(1, 2, 3, 4, 5, 6, 7, 8, 9, 10))

	preds, err := NewRollingMean(7).Forecast(context.Background(), series, 0)

	require.NoError(t, err)
	assert.InDelta(t, 1.0, preds[0].Value, 1e-9)
	assert.InDelta(t, 1.5, preds[1].Value, 1e-9)
	assert.InDelta(t, 4.0, preds[6].Value, 1e-9)
	assert.InDelta(t, 5.0, preds[7].Value, 1e-9) // mean of 2..8
	assert.InDelta(t, 7.0, preds[9].Value, 1e-9) // mean of 4..10
}

func TestAdditive_LinearTrend(t *testing.T) {
	series := Normalize(dailyRows(linear(60, 100, 2)...))

	preds, err := NewAdditive().Forecast(context.Background(), series, 30)

	require.NoError(t, err)
	require.Len(t, preds, 90)
	assert.InDelta(t, 100.0, preds[0].Value, 1e-6)
	assert.InDelta(t, 220.0, preds[60].Value, 1e-6)
	assert.True(t, preds[60].Date.Equal(day0.AddDate(0, 0, 60)))
	assert.InDelta(t, 278.0, preds[89].Value, 1e-6)
}

func TestAdditive_WeeklySeasonality(t *testing.T) {
	values := make([]float64, 56)
	for i := range values {
		values[i] = 100
		switch day0.AddDate(0, 0, i).Weekday() {
		case time.Saturday, time.Sunday:
			values[i] = 70
		}
	}
	series := Normalize(dailyRows(values...))

	preds, err := NewAdditive().Forecast(context.Background(), series, 14)
	require.NoError(t, err)

	var weekend, weekday []float64
	for _, p := range preds[56:] {
		switch p.Date.Weekday() {
		case time.Saturday, time.Sunday:
			weekend = append(weekend, p.Value)
		default:
			weekday = append(weekday, p.Value)
		}
	}
	require.NotEmpty(t, weekend)
	require.NotEmpty(t, weekday)
	assert.Greater(t, weekday[0]-weekend[0], 20.0)
}

func TestAdditive_InsufficientData(t *testing.T) {
	series := Normalize(dailyRows(1, 2, 3))

	_, err := NewAdditive().Forecast(context.Background(), series, 30)

	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestNormalize(t *testing.T) {
	rows := []models.DailyCostRecord{
		models.NewDailyCostRecord(day0.AddDate(0, 0, 2), 5),
		models.NewDailyCostRecord(day0, 1),
		{Raw: "not-a-date", TotalCost: 99},
		models.NewDailyCostRecord(day0, 2),
	}

	series := Normalize(rows)

	require.Len(t, series, 2)
	assert.True(t, series[0].Date.Equal(day0))
	assert.Equal(t, 3.0, series[0].Value)
	assert.Equal(t, 5.0, series[1].Value)
}

func TestJoin_UnionOfDates(t *testing.T) {
	series := []Observation{{Date: day0, Value: 10}, {Date: day0.AddDate(0, 0, 1), Value: 20}}
	preds := []Prediction{{Date: day0.AddDate(0, 0, 1), Value: 21}, {Date: day0.AddDate(0, 0, 2), Value: 22}}

	points := Join(series, preds)

	require.Len(t, points, 3)
	require.NotNil(t, points[0].Actual)
	assert.Equal(t, 10.0, *points[0].Actual)
	assert.Equal(t, 0.0, points[0].Predicted)
	assert.Equal(t, 21.0, points[1].Predicted)
	assert.Nil(t, points[2].Actual)
	assert.Equal(t, 22.0, points[2].Predicted)
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, models.ForecastSummary{}, Summarize(nil, 30))
	})

	t.Run("change against prior window", func(t *testing.T) {
		values := append(repeat(100, 30), repeat(150, 30)...)
		series := Normalize(dailyRows(values...))
		preds := make([]Prediction, 0, 90)
		for _, o := range series {
			preds = append(preds, Prediction{Date: o.Date, Value: o.Value})
		}
		for i := 1; i <= 30; i++ {
			preds = append(preds, Prediction{Date: series[59].Date.AddDate(0, 0, i), Value: 160})
		}

		s := Summarize(Join(series, preds), 30)

		assert.Equal(t, 4500.0, s.TotalCost30d)
		assert.Equal(t, 4800.0, s.PredictedNextMonth)
		assert.Equal(t, 300.0, s.Savings)
		assert.Equal(t, 50.0, s.ChangePercentage)
	})

	t.Run("rounds only the totals", func(t *testing.T) {
		series := Normalize(dailyRows(repeat(10, 5)...))
		preds := make([]Prediction, 0, 30)
		for i := 1; i <= 30; i++ {
			preds = append(preds, Prediction{Date: series[4].Date.AddDate(0, 0, i), Value: 10.004})
		}

		points := Join(series, preds)
		assert.Equal(t, 10.004, points[5].Predicted)

		s := Summarize(points, 30)
		assert.Equal(t, 300.12, s.PredictedNextMonth)
		assert.Equal(t, 250.12, s.Savings)
	})

	t.Run("no prior window", func(t *testing.T) {
		series := Normalize(dailyRows(repeat(10, 5)...))
		preds := []Prediction{{Date: series[4].Date.AddDate(0, 0, 1), Value: 12}}

		s := Summarize(Join(series, preds), 30)

		assert.Equal(t, 50.0, s.TotalCost30d)
		assert.Equal(t, 12.0, s.PredictedNextMonth)
		assert.Equal(t, 0.0, s.ChangePercentage)
	})
}

func TestReconcile_Empty(t *testing.T) {
	r := newReconciler(NewAdditive())

	result := r.Reconcile(context.Background(), nil)

	assert.Empty(t, result.Points)
	assert.Equal(t, models.ForecastSummary{}, result.Summary)
	assert.Equal(t, 0.0, result.Summary.TotalCost30d)
	assert.Equal(t, 0.0, result.Summary.PredictedNextMonth)
	assert.Equal(t, 0.0, result.Summary.Savings)
}

func TestReconcile_ModelPath(t *testing.T) {
	r := newReconciler(NewAdditive())

	result := r.Reconcile(context.Background(), dailyRows(linear(60, 100, 1)...))

	assert.Equal(t, models.ForecastSourceModel, result.Source)
	assert.Equal(t, "additive", result.Forecaster)
	assert.False(t, result.IsFallback())
	require.Len(t, result.Points, 90)

	for i, p := range result.Points {
		if i < 60 {
			assert.True(t, p.Observed(), "point %d should carry an actual", i)
		} else {
			assert.False(t, p.Observed(), "point %d should be a pure prediction", i)
		}
	}

	// last 30 actuals are 130..159; next 30 predictions are 160..189
	assert.InDelta(t, 4335.0, result.Summary.TotalCost30d, 0.01)
	assert.InDelta(t, 5235.0, result.Summary.PredictedNextMonth, 0.5)
}

func TestReconcile_FallbackOnShortHistory(t *testing.T) {
	r := newReconciler(NewAdditive())

	result := r.Reconcile(context.Background(), dailyRows(repeat(100, 10)...))

	assert.Equal(t, models.ForecastSourceFallback, result.Source)
	assert.Equal(t, "insufficient_data", result.Reason)
	require.Len(t, result.Points, 10)
	assert.Equal(t, 100.0, result.Points[0].Predicted)
	assert.Equal(t, 100.0, result.Points[7].Predicted)
	assert.Equal(t, 1000.0, result.Summary.TotalCost30d)
	assert.Equal(t, 0.0, result.Summary.PredictedNextMonth)
}

func TestReconcile_NoModel(t *testing.T) {
	r := newReconciler(nil)

	result := r.Reconcile(context.Background(), dailyRows(repeat(5, 3)...))

	assert.True(t, result.IsFallback())
	assert.Equal(t, "no_model", result.Reason)
	assert.Len(t, result.Points, 3)
}

func TestReconcile_CircuitOpensOnRepeatedFailure(t *testing.T) {
	failing := &failingForecaster{err: errors.New("solver blew up")}
	r := newReconciler(failing)
	rows := dailyRows(repeat(10, 20)...)

	for i := 0; i < 3; i++ {
		result := r.Reconcile(context.Background(), rows)
		assert.Equal(t, "model_error", result.Reason)
	}

	result := r.Reconcile(context.Background(), rows)
	assert.Equal(t, "circuit_open", result.Reason)
	assert.Equal(t, int32(3), failing.calls.Load())
	assert.Len(t, result.Points, 20)
}

func TestReconcile_CanceledContextStillAnswers(t *testing.T) {
	r := newReconciler(NewAdditive())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := r.Reconcile(ctx, dailyRows(repeat(10, 20)...))

	assert.True(t, result.IsFallback())
	assert.Equal(t, "canceled", result.Reason)
	assert.Len(t, result.Points, 20)
}

type slowForecaster struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *slowForecaster) Name() string { return "slow" }

func (s *slowForecaster) Forecast(ctx context.Context, series []Observation, horizon int) ([]Prediction, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		prev := s.maxSeen.Load()
		if n <= prev || s.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return NewRollingMean(7).Forecast(ctx, series, horizon)
}

func TestReconcile_OneFitInFlight(t *testing.T) {
	slow := &slowForecaster{}
	r := newReconciler(slow)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := r.Reconcile(context.Background(), dailyRows(repeat(float64(i+1), 20)...))
			assert.Equal(t, models.ForecastSourceModel, result.Source)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), slow.maxSeen.Load())
}

func TestReconcileTable_Missing(t *testing.T) {
	r := newReconciler(NewAdditive())

	result := r.ReconcileTable(context.Background(), storage.NewMemoryTable[models.DailyCostRecord]())

	assert.Empty(t, result.Points)
	assert.Equal(t, "no_data", result.Reason)
}
