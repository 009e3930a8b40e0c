package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/OldStager01/cloudpulse/internal/anomaly"
	"github.com/OldStager01/cloudpulse/internal/dashboard"
	"github.com/OldStager01/cloudpulse/internal/events"
	"github.com/OldStager01/cloudpulse/internal/forecast"
	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/internal/metrics"
	"github.com/OldStager01/cloudpulse/internal/notify"
	"github.com/OldStager01/cloudpulse/internal/recommend"
	"github.com/OldStager01/cloudpulse/internal/resilience"
	"github.com/OldStager01/cloudpulse/internal/simulator"
	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/config"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

// Orchestrator owns the long-lived pieces of the service: the event bus, the
// cost tables, the dashboard service and the live ticker.
type Orchestrator struct {
	config      *config.Config
	eventBus    *events.EventBus
	eventLogger *events.EventLogger
	store       *storage.Store
	dashboard   *dashboard.Service
	ticker      *LiveTicker
	metrics     *metrics.Metrics
	mu          sync.Mutex
	started     bool
}

// New wires the service from configuration. users may be nil, in which case
// live updates never send email.
func New(cfg *config.Config, users dashboard.UserLookup) (*Orchestrator, error) {
	m := metrics.Get()
	store := storage.OpenCSV(cfg.Storage.Dir, cfg.Storage.HourlyFile, cfg.Storage.DailyFile)
	return NewWithStore(cfg, store, users, m)
}

// NewWithStore is New with explicit storage and metrics.
func NewWithStore(cfg *config.Config, store *storage.Store, users dashboard.UserLookup, m *metrics.Metrics) (*Orchestrator, error) {
	eventBus := events.NewEventBus(cfg.Events.BufferSize)
	eventBus.OnDrop(func(*models.Event) { m.IncEventsDropped() })

	// Subscribe event logger to all events
	eventLogger := events.NewEventLogger(eventBus.SubscribeAll())

	scanner := anomaly.New(anomaly.Config{
		DeviationThreshold: cfg.Anomaly.DeviationThreshold,
		MediumCutoffPct:    cfg.Anomaly.MediumCutoffPct,
		HighCutoffPct:      cfg.Anomaly.HighCutoffPct,
	})

	reconciler := forecast.NewReconciler(newForecaster(cfg.Forecast), forecast.Config{
		Horizon:       cfg.Forecast.Horizon,
		SummaryWindow: cfg.Forecast.SummaryWindow,
		RollingWindow: cfg.Forecast.RollingWindow,
		FitTimeout:    cfg.Forecast.FitTimeout,
		Breaker: resilience.CircuitBreakerConfig{
			Name:        "forecast-" + cfg.Forecast.Model,
			MaxFailures: cfg.Forecast.CircuitBreaker.MaxFailures,
			CoolDown:    cfg.Forecast.CircuitBreaker.Timeout,
		},
	}, m)

	live := simulator.NewLiveHour(store, simulator.NewAnomalyFlag(), simulator.LiveConfig{
		Services:             cfg.Simulator.Services,
		BaselineMin:          cfg.Simulator.BaselineMin,
		BaselineMax:          cfg.Simulator.BaselineMax,
		SpikeMin:             cfg.Simulator.SpikeMin,
		SpikeMax:             cfg.Simulator.SpikeMax,
		NoiseRatio:           cfg.Simulator.NoiseRatio,
		SpontaneousSpikeRate: cfg.Simulator.SpontaneousSpikeRate,
	}, simulator.WithMetrics(m))

	svc, err := dashboard.NewService(dashboard.Deps{
		Store:      store,
		Scanner:    scanner,
		Reconciler: reconciler,
		Catalog:    recommend.NewCatalog(),
		Live:       live,
		Notifier:   newNotifier(cfg.Notify, m),
		Users:      users,
		Publisher:  events.NewPublisher(eventBus),
		Metrics:    m,
	}, dashboard.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard service: %w", err)
	}

	ticker, err := NewLiveTicker(cfg.Simulator.LiveSchedule, svc)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		config:      cfg,
		eventBus:    eventBus,
		eventLogger: eventLogger,
		store:       store,
		dashboard:   svc,
		ticker:      ticker,
		metrics:     m,
	}, nil
}

func newForecaster(cfg config.ForecastConfig) forecast.Forecaster {
	switch cfg.Model {
	case "", "additive":
		model := forecast.NewAdditive()
		if cfg.MinObservations > 0 {
			model.MinObservations = cfg.MinObservations
		}
		model.WeeklySeasonality = cfg.WeeklySeasonality
		model.DailySeasonality = cfg.DailySeasonality
		return model
	case "rolling_mean", "none":
		return nil
	default:
		logger.Warnf("Unknown forecast model %q, using rolling mean only", cfg.Model)
		return nil
	}
}

func newNotifier(cfg config.NotifyConfig, m *metrics.Metrics) notify.Notifier {
	if !cfg.Enabled || cfg.SMTPHost == "" {
		return notify.LogNotifier{}
	}
	smtpNotifier := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.From,
		Timeout:  cfg.Timeout,
	})
	return notify.NewResilientNotifier(notify.ResilientConfig{
		Notifier:      smtpNotifier,
		MaxFailures:   cfg.CircuitBreaker.MaxFailures,
		CoolDown:      cfg.CircuitBreaker.Timeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		OnStateChange: func(name string, from, to resilience.State) {
			m.SetCircuitBreakerState(name, int(to))
			logger.Warnf("Circuit %s: %s -> %s", name, from, to)
		},
	})
}

func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"hourly": filepath.Join(o.config.Storage.Dir, o.config.Storage.HourlyFile),
		"daily":  filepath.Join(o.config.Storage.Dir, o.config.Storage.DailyFile),
	}).Info("Orchestrator starting")

	o.eventLogger.Start()
	o.ticker.Start()
	o.started = true
	return nil
}

func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return
	}
	logger.Info("Orchestrator stopping")

	o.ticker.Stop()

	// Close the bus first so the logger drains and exits
	o.eventBus.Close()
	o.eventLogger.Stop()

	o.started = false
	logger.Info("Orchestrator stopped")
}

func (o *Orchestrator) Dashboard() *dashboard.Service {
	return o.dashboard
}

func (o *Orchestrator) Store() *storage.Store {
	return o.store
}

func (o *Orchestrator) Ticker() *LiveTicker {
	return o.ticker
}

func (o *Orchestrator) SubscribeEvents(eventType models.EventType) <-chan *models.Event {
	return o.eventBus.Subscribe(eventType)
}

func (o *Orchestrator) SubscribeAllEvents() <-chan *models.Event {
	return o.eventBus.SubscribeAll()
}

// RebuildDaily recomputes the daily table, e.g. after an external edit of
// the hourly file.
func (o *Orchestrator) RebuildDaily(ctx context.Context) error {
	_, err := o.store.RebuildDaily(ctx)
	return err
}
