// Package dashboard composes scans, forecasts, recommendations and live
// updates into the views served by the API.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/OldStager01/cloudpulse/internal/anomaly"
	"github.com/OldStager01/cloudpulse/internal/events"
	"github.com/OldStager01/cloudpulse/internal/forecast"
	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/internal/metrics"
	"github.com/OldStager01/cloudpulse/internal/notify"
	"github.com/OldStager01/cloudpulse/internal/recommend"
	"github.com/OldStager01/cloudpulse/internal/simulator"
	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

// UserLookup resolves the account whose addresses receive alerts.
type UserLookup interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

type Config struct {
	ChartPoints     int
	ProjectionHours int
	ProjectionBasis int
	TopN            int
	MinProjection   float64
}

func DefaultConfig() Config {
	return Config{
		ChartPoints:     72,
		ProjectionHours: 12,
		ProjectionBasis: 6,
		TopN:            3,
		MinProjection:   0.1,
	}
}

type Deps struct {
	Store      *storage.Store
	Scanner    *anomaly.Scanner
	Reconciler *forecast.Reconciler
	Catalog    *recommend.Catalog
	Live       *simulator.LiveHour
	Notifier   notify.Notifier
	Users      UserLookup
	Publisher  *events.Publisher
	Metrics    *metrics.Metrics
}

// ProjectedHour is a short-term extrapolated hourly total.
type ProjectedHour struct {
	Timestamp string  `json:"timestamp"`
	Predicted float64 `json:"predicted"`
}

type Overview struct {
	Hourly             []models.HourlyTotal    `json:"hourly"`
	TopAnomalies       []models.Anomaly        `json:"top_anomalies"`
	TopRecommendations []models.Recommendation `json:"top_recommendations"`
	Summary            models.ForecastSummary  `json:"summary"`
	ForecastSource     models.ForecastSource   `json:"forecast_source"`
	AnomalyCounts      map[models.Severity]int `json:"anomaly_counts"`
	AnomalyActive      bool                    `json:"anomaly_active"`
}

type LiveUpdate struct {
	Overview
	Appended     *simulator.AppendResult `json:"appended"`
	Future       []ProjectedHour         `json:"future"`
	NewAnomalies []models.Anomaly        `json:"new_anomalies"`
	Notified     int                     `json:"notified"`
}

type Service struct {
	config Config
	deps   Deps
	liveMu sync.Mutex
}

func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Store == nil || deps.Scanner == nil || deps.Reconciler == nil || deps.Live == nil {
		return nil, errors.New("dashboard: store, scanner, reconciler and live simulator are required")
	}

	def := DefaultConfig()
	if cfg.ChartPoints <= 0 {
		cfg.ChartPoints = def.ChartPoints
	}
	if cfg.ProjectionHours <= 0 {
		cfg.ProjectionHours = def.ProjectionHours
	}
	if cfg.ProjectionBasis < 2 {
		cfg.ProjectionBasis = def.ProjectionBasis
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.MinProjection <= 0 {
		cfg.MinProjection = def.MinProjection
	}
	if deps.Catalog == nil {
		deps.Catalog = recommend.NewCatalog()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.LogNotifier{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Get()
	}

	s := &Service{config: cfg, deps: deps}

	deps.Live.Flag().OnChange(func(active bool) {
		s.deps.Metrics.SetAnomalyFlag(active)
		s.deps.Publisher.FlagChanged(active)
	})

	return s, nil
}

func (s *Service) Flag() *simulator.AnomalyFlag {
	return s.deps.Live.Flag()
}

// Overview builds the dashboard landing view.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	hourly, err := storage.ReadOrEmpty(ctx, s.deps.Store.Hourly)
	if err != nil {
		return nil, fmt.Errorf("failed to read hourly table: %w", err)
	}
	return s.overview(ctx, hourly), nil
}

func (s *Service) overview(ctx context.Context, hourly []models.HourlyCostRecord) *Overview {
	anomalies := s.scan(hourly)
	result := s.Forecast(ctx)

	return &Overview{
		Hourly:             lastN(models.HourlyTotals(hourly), s.config.ChartPoints),
		TopAnomalies:       anomaly.Filter(anomalies, "", s.config.TopN),
		TopRecommendations: s.deps.Catalog.Top(s.config.TopN),
		Summary:            result.Summary,
		ForecastSource:     result.Source,
		AnomalyCounts:      anomaly.CountBySeverity(anomalies),
		AnomalyActive:      s.Flag().Active(),
	}
}

// Anomalies scans the hourly table, newest first, keeping severities at or
// above minSeverity and at most limit rows when limit is positive.
func (s *Service) Anomalies(ctx context.Context, minSeverity models.Severity, limit int) []models.Anomaly {
	start := time.Now()
	found := s.deps.Scanner.ScanTable(ctx, s.deps.Store.Hourly)
	s.recordScan(found, time.Since(start))
	return anomaly.Filter(found, minSeverity, limit)
}

// Forecast reconciles the daily table. It never fails; fallbacks are tagged
// on the result.
func (s *Service) Forecast(ctx context.Context) *models.ForecastResult {
	result := s.deps.Reconciler.ReconcileTable(ctx, s.deps.Store.Daily)
	if result.IsFallback() && result.Reason != forecast.ReasonNoData {
		s.deps.Publisher.ForecastFallback(result.Forecaster, result.Reason)
	}
	return result
}

func (s *Service) Recommendations() []models.Recommendation {
	return s.deps.Catalog.All()
}

// LiveUpdate appends one synthetic hour, rescans, and alerts the given user
// about anomalies that landed on the new hour. userID 0 skips the email.
func (s *Service) LiveUpdate(ctx context.Context, userID int, forceSpike bool) (*LiveUpdate, error) {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()

	var (
		appended *simulator.AppendResult
		err      error
	)
	if forceSpike {
		appended, err = s.deps.Live.AppendSpike(ctx)
	} else {
		appended, err = s.deps.Live.Append(ctx)
	}
	if err != nil {
		s.deps.Publisher.Error("", "live update failed", err)
		return nil, err
	}
	s.deps.Publisher.HourAppended(appended.Record, appended.Spiked)

	hourly, err := storage.ReadOrEmpty(ctx, s.deps.Store.Hourly)
	if err != nil {
		return nil, fmt.Errorf("failed to read hourly table: %w", err)
	}

	ov := s.overview(ctx, hourly)
	newAnomalies := anomaly.At(s.scan(hourly), appended.Record.MinuteKey())
	for _, a := range newAnomalies {
		s.deps.Publisher.AnomalyDetected(a)
	}

	update := &LiveUpdate{
		Overview:     *ov,
		Appended:     appended,
		Future:       Project(ov.Hourly, s.config.ProjectionBasis, s.config.ProjectionHours, s.config.MinProjection),
		NewAnomalies: newAnomalies,
	}
	if update.NewAnomalies == nil {
		update.NewAnomalies = []models.Anomaly{}
	}

	if len(newAnomalies) > 0 && userID != 0 {
		update.Notified = s.notify(ctx, userID, newAnomalies)
	}

	return update, nil
}

// Tick is a live update with nobody to email, used by the scheduler.
func (s *Service) Tick(ctx context.Context) error {
	_, err := s.LiveUpdate(ctx, 0, false)
	return err
}

// SetAnomaly switches spike injection and reports the resulting state.
func (s *Service) SetAnomaly(active bool) bool {
	if active {
		s.Flag().Activate()
	} else {
		s.Flag().Deactivate()
	}
	return s.Flag().Active()
}

// ForceAnomaly turns spike injection on and immediately appends one spiked
// hour, so the caller sees the anomalies it produced without waiting for
// the next tick.
func (s *Service) ForceAnomaly(ctx context.Context, userID int) (*LiveUpdate, error) {
	s.SetAnomaly(true)
	return s.LiveUpdate(ctx, userID, true)
}

func (s *Service) scan(hourly []models.HourlyCostRecord) []models.Anomaly {
	start := time.Now()
	found := s.deps.Scanner.Scan(hourly)
	s.recordScan(found, time.Since(start))
	return found
}

func (s *Service) recordScan(found []models.Anomaly, d time.Duration) {
	counts := make(map[string]int)
	for sev, n := range anomaly.CountBySeverity(found) {
		counts[string(sev)] = n
	}
	s.deps.Metrics.RecordScan(d, counts)
}

func (s *Service) notify(ctx context.Context, userID int, anomalies []models.Anomaly) int {
	if s.deps.Users == nil {
		return 0
	}

	user, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("Cannot resolve alert recipients")
		s.deps.Metrics.IncNotification("failed")
		return 0
	}

	recipients := user.Recipients()
	if len(recipients) == 0 {
		s.deps.Metrics.IncNotification("skipped")
		return 0
	}

	if err := s.deps.Notifier.NotifyAnomalies(ctx, recipients, anomalies); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("Anomaly notification failed")
		s.deps.Metrics.IncNotification("failed")
		return 0
	}

	s.deps.Metrics.IncNotification("sent")
	s.deps.Publisher.NotificationSent(recipients, len(anomalies))
	return len(recipients)
}

// Project extrapolates the last basis hourly totals linearly for hours steps.
// Fewer than basis points yields no projection.
func Project(totals []models.HourlyTotal, basis, hours int, floor float64) []ProjectedHour {
	out := []ProjectedHour{}
	if basis < 2 || len(totals) < basis {
		return out
	}

	window := totals[len(totals)-basis:]
	first, last := window[0].Cost, window[len(window)-1].Cost
	slope := (last - first) / float64(basis-1)

	lastTS, err := time.ParseInLocation(models.MinuteKeyLayout, window[len(window)-1].Timestamp, time.UTC)
	if err != nil {
		return out
	}

	for i := 1; i <= hours; i++ {
		out = append(out, ProjectedHour{
			Timestamp: lastTS.Add(time.Duration(i) * time.Hour).Format(models.MinuteKeyLayout),
			Predicted: models.Round2(math.Max(floor, last+slope*float64(i))),
		})
	}
	return out
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
