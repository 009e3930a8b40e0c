package dashboard

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/cloudpulse/internal/anomaly"
	"github.com/OldStager01/cloudpulse/internal/events"
	"github.com/OldStager01/cloudpulse/internal/forecast"
	"github.com/OldStager01/cloudpulse/internal/metrics"
	"github.com/OldStager01/cloudpulse/internal/simulator"
	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

type stubNotifier struct {
	mu         sync.Mutex
	calls      int
	recipients []string
	anomalies  []models.Anomaly
	err        error
}

func (n *stubNotifier) NotifyAnomalies(_ context.Context, recipients []string, anomalies []models.Anomaly) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.recipients = recipients
	n.anomalies = anomalies
	return n.err
}

type stubUsers map[int]*models.User

func (u stubUsers) GetByID(_ context.Context, id int) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, errors.New("user not found")
}

var historyStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// flatHistory holds hours of identical cost for every default service.
func flatHistory(hours int) []models.HourlyCostRecord {
	var rows []models.HourlyCostRecord
	for h := 0; h < hours; h++ {
		ts := historyStart.Add(time.Duration(h) * time.Hour)
		for _, svc := range simulator.DefaultServices {
			rows = append(rows, models.NewHourlyCostRecord(ts, svc.Name, 10))
		}
	}
	return rows
}

type fixture struct {
	svc      *Service
	store    *storage.Store
	notifier *stubNotifier
	bus      *events.EventBus
}

func newFixture(t *testing.T, history []models.HourlyCostRecord) *fixture {
	t.Helper()

	m := metrics.New()
	store := &storage.Store{
		Hourly: storage.NewMemoryTable(history...),
		Daily:  storage.NewMemoryTable(models.DailyTotals(history)...),
	}
	if history == nil {
		store = storage.NewMemoryStore()
	}

	bus := events.NewEventBus(100)
	t.Cleanup(bus.Close)

	live := simulator.NewLiveHour(store, simulator.NewAnomalyFlag(), simulator.DefaultLiveConfig(),
		simulator.WithRand(rand.New(rand.NewSource(3))),
		simulator.WithClock(func() time.Time { return historyStart }),
		simulator.WithMetrics(m),
	)
	notifier := &stubNotifier{}

	svc, err := NewService(Deps{
		Store:      store,
		Scanner:    anomaly.New(anomaly.DefaultConfig()),
		Reconciler: forecast.NewReconciler(nil, forecast.DefaultConfig(), m),
		Live:       live,
		Notifier:   notifier,
		Users: stubUsers{
			7: {ID: 7, Username: "ops", Email: "ops@example.com", NotificationEmails: []string{"finance@example.com"}},
			8: {ID: 8, Username: "quiet"},
		},
		Publisher: events.NewPublisher(bus),
		Metrics:   m,
	}, DefaultConfig())
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, notifier: notifier, bus: bus}
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Deps{}, DefaultConfig())
	assert.Error(t, err)
}

func TestOverview_Empty(t *testing.T) {
	f := newFixture(t, nil)

	ov, err := f.svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Empty(t, ov.Hourly)
	assert.Empty(t, ov.TopAnomalies)
	assert.Len(t, ov.TopRecommendations, 3)
	assert.Equal(t, models.ForecastSummary{}, ov.Summary)
	assert.Equal(t, models.ForecastSourceFallback, ov.ForecastSource)
	assert.False(t, ov.AnomalyActive)
}

func TestOverview_ChartKeepsLast72Hours(t *testing.T) {
	f := newFixture(t, flatHistory(100))

	ov, err := f.svc.Overview(context.Background())
	require.NoError(t, err)

	require.Len(t, ov.Hourly, 72)
	assert.Equal(t, historyStart.Add(99*time.Hour).Format(models.MinuteKeyLayout), ov.Hourly[71].Timestamp)
	assert.Equal(t, 40.0, ov.Hourly[0].Cost)
	assert.Empty(t, ov.TopAnomalies)
	assert.Greater(t, ov.Summary.TotalCost30d, 0.0)
}

func TestLiveUpdate_SpikeIsDetectedAndEmailed(t *testing.T) {
	f := newFixture(t, flatHistory(48))
	detected := f.bus.Subscribe(models.EventTypeAnomalyDetected)
	f.svc.SetAnomaly(true)

	update, err := f.svc.LiveUpdate(context.Background(), 7, false)
	require.NoError(t, err)

	wantTS := historyStart.Add(48 * time.Hour)
	assert.Equal(t, wantTS, update.Appended.Record.Timestamp)
	assert.True(t, update.Appended.Spiked)

	require.Len(t, update.NewAnomalies, 1)
	got := update.NewAnomalies[0]
	assert.Equal(t, wantTS.Format(models.MinuteKeyLayout), got.Timestamp)
	assert.Equal(t, update.Appended.Record.Service, got.Service)
	assert.Greater(t, got.DeviationPct, 40.0)

	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, []string{"ops@example.com", "finance@example.com"}, f.notifier.recipients)
	assert.Equal(t, 2, update.Notified)

	require.Len(t, update.Future, 12)
	assert.Equal(t, wantTS.Add(time.Hour).Format(models.MinuteKeyLayout), update.Future[0].Timestamp)
	assert.True(t, update.AnomalyActive)

	select {
	case ev := <-detected:
		assert.Equal(t, got.Service, ev.Service)
	case <-time.After(time.Second):
		t.Fatal("anomaly event not published")
	}
}

func TestLiveUpdate_ForcedSpikeLeavesFlagOff(t *testing.T) {
	f := newFixture(t, flatHistory(48))

	update, err := f.svc.LiveUpdate(context.Background(), 0, true)
	require.NoError(t, err)

	assert.True(t, update.Appended.Spiked)
	assert.Len(t, update.NewAnomalies, 1)
	assert.False(t, f.svc.Flag().Active())
	// no user, no email
	assert.Equal(t, 0, f.notifier.calls)
	assert.Equal(t, 0, update.Notified)
}

func TestLiveUpdate_NoRecipients(t *testing.T) {
	f := newFixture(t, flatHistory(48))

	update, err := f.svc.LiveUpdate(context.Background(), 8, true)
	require.NoError(t, err)

	assert.Len(t, update.NewAnomalies, 1)
	assert.Equal(t, 0, f.notifier.calls)
}

func TestLiveUpdate_NotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, flatHistory(48))
	f.notifier.err = errors.New("smtp down")

	update, err := f.svc.LiveUpdate(context.Background(), 7, true)
	require.NoError(t, err)

	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, 0, update.Notified)
}

func TestLiveUpdate_QuietHourHasNoNewAnomalies(t *testing.T) {
	f := newFixture(t, nil)

	update, err := f.svc.LiveUpdate(context.Background(), 7, false)
	require.NoError(t, err)

	assert.False(t, update.Appended.Spiked)
	assert.NotNil(t, update.NewAnomalies)
	assert.Empty(t, update.NewAnomalies)
	assert.Empty(t, update.Future)
	assert.Len(t, update.Hourly, 1)
}

func TestLiveUpdate_Serialized(t *testing.T) {
	f := newFixture(t, flatHistory(24))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.Tick(context.Background()))
		}()
	}
	wg.Wait()

	rows, err := f.store.Hourly.ReadAll(context.Background())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, r := range rows[24*len(simulator.DefaultServices):] {
		key := r.MinuteKey()
		assert.False(t, seen[key], "duplicate live hour %s", key)
		seen[key] = true
	}
	assert.Len(t, seen, 8)
}

func TestAnomalies_Filtering(t *testing.T) {
	history := flatHistory(48)
	spikeTS := historyStart.Add(47 * time.Hour)
	history = append(history,
		models.NewHourlyCostRecord(spikeTS, "EC2", 100),
	)
	f := newFixture(t, history)

	all := f.svc.Anomalies(context.Background(), "", 0)
	require.Len(t, all, 1)
	assert.Equal(t, models.SeverityHigh, all[0].Severity)

	assert.Len(t, f.svc.Anomalies(context.Background(), models.SeverityHigh, 0), 1)
	assert.Len(t, f.svc.Anomalies(context.Background(), models.SeverityLow, 0), 1)
}

func TestSetAnomaly_PublishesFlagEvents(t *testing.T) {
	f := newFixture(t, nil)
	changes := f.bus.Subscribe(models.EventTypeFlagChanged)

	assert.True(t, f.svc.SetAnomaly(true))
	assert.True(t, f.svc.SetAnomaly(true))
	assert.False(t, f.svc.SetAnomaly(false))

	for _, want := range []bool{true, false} {
		select {
		case ev := <-changes:
			data := ev.Data.(map[string]interface{})
			assert.Equal(t, want, data["active"])
		case <-time.After(time.Second):
			t.Fatal("flag event not published")
		}
	}
	assert.Empty(t, changes)
}

func TestForceAnomaly_AppendsSpikeImmediately(t *testing.T) {
	f := newFixture(t, flatHistory(48))

	update, err := f.svc.ForceAnomaly(context.Background(), 7)
	require.NoError(t, err)

	assert.True(t, f.svc.Flag().Active())
	assert.True(t, update.AnomalyActive)
	assert.True(t, update.Appended.Spiked)
	assert.Equal(t, historyStart.Add(48*time.Hour), update.Appended.Record.Timestamp)

	require.Len(t, update.NewAnomalies, 1)
	assert.Equal(t, update.Appended.Record.Service, update.NewAnomalies[0].Service)
	assert.Equal(t, 1, f.notifier.calls)

	rows, err := f.store.Hourly.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 48*len(simulator.DefaultServices)+1)
}

func TestRecommendations(t *testing.T) {
	f := newFixture(t, nil)
	recs := f.svc.Recommendations()
	require.Len(t, recs, 3)
	assert.Equal(t, 12000.0, recs[0].SavingsValue)
}

func TestProject(t *testing.T) {
	totals := make([]models.HourlyTotal, 6)
	for i := range totals {
		totals[i] = models.HourlyTotal{
			Timestamp: historyStart.Add(time.Duration(i) * time.Hour).Format(models.MinuteKeyLayout),
			Cost:      float64(i + 1),
		}
	}

	got := Project(totals, 6, 12, 0.1)
	require.Len(t, got, 12)
	assert.Equal(t, 7.0, got[0].Predicted)
	assert.Equal(t, 18.0, got[11].Predicted)
	assert.Equal(t, historyStart.Add(6*time.Hour).Format(models.MinuteKeyLayout), got[0].Timestamp)

	// falling totals clamp at the floor
	for i := range totals {
		totals[i].Cost = float64(6 - i)
	}
	got = Project(totals, 6, 12, 0.1)
	assert.Equal(t, 0.1, got[11].Predicted)

	assert.Empty(t, Project(totals[:5], 6, 12, 0.1))
}
