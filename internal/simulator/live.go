package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/internal/metrics"
	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

type LiveConfig struct {
	Services    []string
	BaselineMin float64
	BaselineMax float64
	SpikeMin    float64
	SpikeMax    float64
	NoiseRatio  float64
	MinCost     float64
	// SpontaneousSpikeRate is the chance of a spike while the flag is off.
	SpontaneousSpikeRate float64
}

func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		Services:    ServiceNames(DefaultServices),
		BaselineMin: 8,
		BaselineMax: 25,
		SpikeMin:    3,
		SpikeMax:    5,
		NoiseRatio:  0.08,
		MinCost:     0.1,
	}
}

// AppendResult describes one appended hour.
type AppendResult struct {
	Record   models.HourlyCostRecord `json:"record"`
	Baseline float64                 `json:"baseline"`
	Spiked   bool                    `json:"spiked"`
}

// LiveHour extends the hourly table one synthetic hour at a time.
type LiveHour struct {
	config  LiveConfig
	store   *storage.Store
	flag    *AnomalyFlag
	metrics *metrics.Metrics

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

type Option func(*LiveHour)

func WithRand(rng *rand.Rand) Option {
	return func(l *LiveHour) { l.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(l *LiveHour) { l.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *LiveHour) { l.metrics = m }
}

func NewLiveHour(store *storage.Store, flag *AnomalyFlag, cfg LiveConfig, opts ...Option) *LiveHour {
	def := DefaultLiveConfig()
	if len(cfg.Services) == 0 {
		cfg.Services = def.Services
	}
	if cfg.BaselineMax <= cfg.BaselineMin {
		cfg.BaselineMin, cfg.BaselineMax = def.BaselineMin, def.BaselineMax
	}
	if cfg.SpikeMax <= cfg.SpikeMin {
		cfg.SpikeMin, cfg.SpikeMax = def.SpikeMin, def.SpikeMax
	}
	if cfg.NoiseRatio <= 0 {
		cfg.NoiseRatio = def.NoiseRatio
	}
	if cfg.MinCost <= 0 {
		cfg.MinCost = def.MinCost
	}
	if flag == nil {
		flag = NewAnomalyFlag()
	}

	l := &LiveHour{
		config: cfg,
		store:  store,
		flag:   flag,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = metrics.Get()
	}
	return l
}

func (l *LiveHour) Flag() *AnomalyFlag {
	return l.flag
}

// Append adds one hour after the latest recorded timestamp and refreshes
// the daily totals. The hour spikes when the anomaly flag is active.
func (l *LiveHour) Append(ctx context.Context) (*AppendResult, error) {
	return l.appendHour(ctx, false)
}

// AppendSpike appends one hour that always spikes, whatever the flag says.
func (l *LiveHour) AppendSpike(ctx context.Context) (*AppendResult, error) {
	return l.appendHour(ctx, true)
}

func (l *LiveHour) appendHour(ctx context.Context, force bool) (*AppendResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := storage.ReadOrEmpty(ctx, l.store.Hourly)
	if err != nil {
		return nil, fmt.Errorf("failed to read hourly table: %w", err)
	}

	next := l.nextTimestamp(records)
	result := l.draw(next, force)

	if err := l.store.Hourly.Append(ctx, result.Record); err != nil {
		return nil, fmt.Errorf("failed to append live hour: %w", err)
	}
	if _, err := l.store.RebuildDaily(ctx); err != nil {
		return nil, fmt.Errorf("failed to rebuild daily totals: %w", err)
	}

	l.metrics.IncLiveAppend(result.Record.Service, result.Spiked)
	logger.WithService(result.Record.Service).WithFields(map[string]interface{}{
		"timestamp": result.Record.TimestampText(),
		"cost":      result.Record.Cost,
		"spiked":    result.Spiked,
	}).Info("Appended live hour")

	return result, nil
}

func (l *LiveHour) nextTimestamp(records []models.HourlyCostRecord) time.Time {
	var last time.Time
	for _, r := range records {
		if r.HasTime() && r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	if last.IsZero() {
		return models.WallClock(l.now()).Truncate(time.Hour)
	}
	return last.Add(time.Hour)
}

func (l *LiveHour) draw(ts time.Time, force bool) *AppendResult {
	cfg := l.config
	service := cfg.Services[l.rng.Intn(len(cfg.Services))]
	baseline := models.Round2(cfg.BaselineMin + l.rng.Float64()*(cfg.BaselineMax-cfg.BaselineMin))

	spiked := force || l.flag.Active()
	if !spiked && cfg.SpontaneousSpikeRate > 0 {
		spiked = l.rng.Float64() < cfg.SpontaneousSpikeRate
	}

	var cost float64
	if spiked {
		factor := cfg.SpikeMin + l.rng.Float64()*(cfg.SpikeMax-cfg.SpikeMin)
		cost = baseline * factor
	} else {
		cost = math.Max(cfg.MinCost, baseline+l.rng.NormFloat64()*baseline*cfg.NoiseRatio)
	}

	return &AppendResult{
		Record:   models.NewHourlyCostRecord(ts, service, models.Round2(cost)),
		Baseline: baseline,
		Spiked:   spiked,
	}
}
