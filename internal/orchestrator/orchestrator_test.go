package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/cloudpulse/internal/metrics"
	"github.com/OldStager01/cloudpulse/internal/notify"
	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/config"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Dir: "data", HourlyFile: "h.csv", DailyFile: "d.csv"},
		Anomaly: config.AnomalyConfig{DeviationThreshold: 0.4, MediumCutoffPct: 70, HighCutoffPct: 120},
		Forecast: config.ForecastConfig{
			Model:             "additive",
			Horizon:           30,
			MinObservations:   14,
			WeeklySeasonality: true,
			FitTimeout:        time.Second,
		},
		Events: config.EventsConfig{BufferSize: 10},
	}
}

type countingTicker struct {
	n int32
}

func (c *countingTicker) Tick(context.Context) error {
	atomic.AddInt32(&c.n, 1)
	return nil
}

func TestLiveTicker_EmptyScheduleNeverRuns(t *testing.T) {
	target := &countingTicker{}
	ticker, err := NewLiveTicker("", target)
	require.NoError(t, err)

	ticker.Start()
	assert.False(t, ticker.IsRunning())
	ticker.Stop()
}

func TestLiveTicker_InvalidSchedule(t *testing.T) {
	_, err := NewLiveTicker("not a schedule", &countingTicker{})
	assert.Error(t, err)
}

func TestLiveTicker_Fires(t *testing.T) {
	target := &countingTicker{}
	ticker, err := NewLiveTicker("@every 1s", target)
	require.NoError(t, err)

	ticker.Start()
	assert.True(t, ticker.IsRunning())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&target.n) >= 1 }, 3*time.Second, 50*time.Millisecond)

	ticker.Stop()
	assert.False(t, ticker.IsRunning())
	assert.GreaterOrEqual(t, ticker.Runs(), 1)
}

func TestNewForecaster(t *testing.T) {
	assert.Equal(t, "additive", newForecaster(config.ForecastConfig{Model: "additive"}).Name())
	assert.Nil(t, newForecaster(config.ForecastConfig{Model: "rolling_mean"}))
	assert.Nil(t, newForecaster(config.ForecastConfig{Model: "prophet"}))
}

func TestNewNotifier(t *testing.T) {
	m := metrics.New()
	_, isLog := newNotifier(config.NotifyConfig{Enabled: true}, m).(notify.LogNotifier)
	assert.True(t, isLog)

	_, isResilient := newNotifier(config.NotifyConfig{Enabled: true, SMTPHost: "smtp.example.com"}, m).(*notify.ResilientNotifier)
	assert.True(t, isResilient)

	_, isLog = newNotifier(config.NotifyConfig{Enabled: false, SMTPHost: "smtp.example.com"}, m).(notify.LogNotifier)
	assert.True(t, isLog)
}

func TestOrchestrator_Lifecycle(t *testing.T) {
	o, err := NewWithStore(testConfig(), storage.NewMemoryStore(), nil, metrics.New())
	require.NoError(t, err)

	appended := o.SubscribeEvents(models.EventTypeHourAppended)

	require.NoError(t, o.Start())
	require.NoError(t, o.Start())

	update, err := o.Dashboard().LiveUpdate(context.Background(), 0, false)
	require.NoError(t, err)
	assert.Len(t, update.Hourly, 1)

	select {
	case ev := <-appended:
		assert.Equal(t, update.Appended.Record.Service, ev.Service)
	case <-time.After(time.Second):
		t.Fatal("hour_appended event not published")
	}

	require.NoError(t, o.RebuildDaily(context.Background()))
	daily, err := o.Store().Daily.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, daily, 1)

	o.Stop()
	o.Stop()
}
