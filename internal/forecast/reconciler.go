package forecast

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/internal/metrics"
	"github.com/OldStager01/cloudpulse/internal/resilience"
	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

// Fallback reasons reported on ForecastResult.Reason.
const (
	ReasonNoData           = "no_data"
	ReasonNoModel          = "no_model"
	ReasonInsufficientData = "insufficient_data"
	ReasonDiverged         = "diverged"
	ReasonCircuitOpen      = "circuit_open"
	ReasonTimeout          = "timeout"
	ReasonCanceled         = "canceled"
	ReasonModelError       = "model_error"
)

type Config struct {
	Horizon       int
	SummaryWindow int
	RollingWindow int
	FitTimeout    time.Duration
	Breaker       resilience.CircuitBreakerConfig
}

func DefaultConfig() Config {
	return Config{
		Horizon:       30,
		SummaryWindow: 30,
		RollingWindow: DefaultRollingWindow,
		FitTimeout:    30 * time.Second,
		Breaker: resilience.CircuitBreakerConfig{
			Name:        "forecast-model",
			MaxFailures: 3,
			CoolDown:    5 * time.Minute,
		},
	}
}

// Reconciler produces the actual-vs-predicted series for the daily table.
// The primary forecaster is used when it is available and healthy; the
// rolling mean covers every other case.
type Reconciler struct {
	config   Config
	primary  Forecaster
	fallback Forecaster
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics

	flight  singleflight.Group
	fitSlot chan struct{}
}

// NewReconciler builds a reconciler. A nil primary always uses the fallback.
func NewReconciler(primary Forecaster, cfg Config, m *metrics.Metrics) *Reconciler {
	def := DefaultConfig()
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.SummaryWindow <= 0 {
		cfg.SummaryWindow = def.SummaryWindow
	}
	if cfg.RollingWindow <= 0 {
		cfg.RollingWindow = def.RollingWindow
	}
	if cfg.FitTimeout <= 0 {
		cfg.FitTimeout = def.FitTimeout
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = def.Breaker.Name
	}
	if m == nil {
		m = metrics.Get()
	}

	userHook := cfg.Breaker.OnStateChange
	cfg.Breaker.OnStateChange = func(name string, from, to resilience.State) {
		m.SetCircuitBreakerState(name, int(to))
		logger.WithFields(map[string]interface{}{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("Forecast circuit breaker changed state")
		if userHook != nil {
			userHook(name, from, to)
		}
	}

	return &Reconciler{
		config:   cfg,
		primary:  primary,
		fallback: NewRollingMean(cfg.RollingWindow),
		breaker:  resilience.NewCircuitBreaker(cfg.Breaker),
		metrics:  m,
		fitSlot:  make(chan struct{}, 1),
	}
}

func (r *Reconciler) Breaker() *resilience.CircuitBreaker {
	return r.breaker
}

// ReconcileTable reads the daily table and reconciles it. Unreadable data is
// treated as an empty table.
func (r *Reconciler) ReconcileTable(ctx context.Context, table storage.DailyTable) *models.ForecastResult {
	daily, err := table.ReadAll(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrTableNotFound) {
			logger.WithContext(ctx).WithError(err).Warn("Daily table unreadable, forecasting from no data")
		}
		daily = nil
	}
	return r.Reconcile(ctx, daily)
}

// Reconcile never fails; the Source field tells model output from the
// fallback estimate.
func (r *Reconciler) Reconcile(ctx context.Context, daily []models.DailyCostRecord) *models.ForecastResult {
	series := Normalize(daily)
	result := &models.ForecastResult{
		Points:      []models.ForecastPoint{},
		Source:      models.ForecastSourceFallback,
		Forecaster:  r.fallback.Name(),
		GeneratedAt: time.Now(),
	}
	if len(series) == 0 {
		result.Reason = ReasonNoData
		return result
	}

	var preds []Prediction
	if r.primary != nil {
		start := time.Now()
		p, err := r.fitPrimary(ctx, series)
		if err == nil {
			r.metrics.RecordForecast(string(models.ForecastSourceModel), r.primary.Name(), time.Since(start))
			preds = p
			result.Source = models.ForecastSourceModel
			result.Forecaster = r.primary.Name()
		} else {
			result.Reason = fallbackReason(err)
			r.metrics.IncForecastFallback(result.Reason)
			logger.WithContext(ctx).WithError(err).WithField("reason", result.Reason).
				Warn("Forecast model unavailable, using rolling mean")
		}
	} else {
		result.Reason = ReasonNoModel
	}

	if preds == nil {
		start := time.Now()
		// pure in-memory computation; run it even if the caller has gone
		preds, _ = r.fallback.Forecast(context.WithoutCancel(ctx), series, 0)
		r.metrics.RecordForecast(string(models.ForecastSourceFallback), r.fallback.Name(), time.Since(start))
	}

	result.Points = Join(series, preds)
	result.Summary = Summarize(result.Points, r.config.SummaryWindow)
	return result
}

// fitPrimary runs at most one model fit at a time. Callers asking for the
// same series share a single fit.
func (r *Reconciler) fitPrimary(ctx context.Context, series []Observation) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := r.flight.DoChan(fingerprint(series), func() (interface{}, error) {
		fitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.FitTimeout)
		defer cancel()

		select {
		case r.fitSlot <- struct{}{}:
		case <-fitCtx.Done():
			return nil, fitCtx.Err()
		}
		defer func() { <-r.fitSlot }()

		var preds []Prediction
		err := r.breaker.Execute(fitCtx, func(ctx context.Context) error {
			p, err := r.primary.Forecast(ctx, series, r.config.Horizon)
			preds = p
			return err
		})
		return preds, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		preds, _ := res.Val.([]Prediction)
		if len(preds) == 0 {
			return nil, ErrInsufficientData
		}
		return preds, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return ReasonInsufficientData
	case errors.Is(err, ErrModelDiverged):
		return ReasonDiverged
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ReasonCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonModelError
	}
}

func fingerprint(series []Observation) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, o := range series {
		binary.LittleEndian.PutUint64(buf[:], uint64(o.Date.Unix()))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(o.Value))
		h.Write(buf[:])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
