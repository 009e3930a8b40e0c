package anomaly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

const (
	DefaultDeviationThreshold = 0.40
	DefaultMediumCutoffPct    = 70.0
	DefaultHighCutoffPct      = 120.0
)

type Config struct {
	// DeviationThreshold is the relative excess over baseline (0.40 = 40%)
	// a cost must exceed to be reported.
	DeviationThreshold float64
	MediumCutoffPct    float64
	HighCutoffPct      float64
}

func DefaultConfig() Config {
	return Config{
		DeviationThreshold: DefaultDeviationThreshold,
		MediumCutoffPct:    DefaultMediumCutoffPct,
		HighCutoffPct:      DefaultHighCutoffPct,
	}
}

// Scanner flags hourly costs that sit well above the mean cost of the same
// service at the same hour of day.
type Scanner struct {
	config Config
}

func New(cfg Config) *Scanner {
	if cfg.DeviationThreshold == 0 {
		cfg.DeviationThreshold = DefaultDeviationThreshold
	}
	if cfg.MediumCutoffPct == 0 {
		cfg.MediumCutoffPct = DefaultMediumCutoffPct
	}
	if cfg.HighCutoffPct == 0 {
		cfg.HighCutoffPct = DefaultHighCutoffPct
	}

	return &Scanner{config: cfg}
}

func (s *Scanner) Config() Config {
	return s.config
}

type groupKey struct {
	service string
	hour    int
}

type groupStat struct {
	sum   float64
	count int
}

type candidate struct {
	key     string
	anomaly models.Anomaly
}

// Scan returns the anomalies in records, newest first. It never fails: an
// empty input gives an empty result and rows without a parsed timestamp
// are measured against the table-wide mean.
func (s *Scanner) Scan(records []models.HourlyCostRecord) []models.Anomaly {
	if len(records) == 0 {
		return []models.Anomaly{}
	}

	groups := make(map[groupKey]*groupStat)
	var total float64
	for _, r := range records {
		total += r.Cost
		if !r.HasTime() {
			continue
		}
		k := groupKey{service: r.Service, hour: r.Timestamp.Hour()}
		g, ok := groups[k]
		if !ok {
			g = &groupStat{}
			groups[k] = g
		}
		g.sum += r.Cost
		g.count++
	}

	fallback := total / float64(len(records))
	if fallback == 0 || math.IsNaN(fallback) || math.IsInf(fallback, 0) {
		fallback = 1.0
	}

	var found []candidate
	for _, r := range records {
		baseline := fallback
		if r.HasTime() {
			if g := groups[groupKey{service: r.Service, hour: r.Timestamp.Hour()}]; g != nil && g.count > 0 {
				baseline = g.sum / float64(g.count)
			}
		}

		deviation := Deviation(r.Cost, baseline)
		if deviation <= s.config.DeviationThreshold {
			continue
		}

		pct := RoundPct(deviation)
		found = append(found, candidate{
			key: r.MinuteKey(),
			anomaly: models.Anomaly{
				Timestamp:    r.MinuteKey(),
				Service:      r.Service,
				Description:  Describe(pct),
				Severity:     s.Classify(pct),
				DeviationPct: pct,
				Cost:         r.Cost,
				Baseline:     baseline,
			},
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].key > found[j].key
	})

	out := make([]models.Anomaly, len(found))
	for i, c := range found {
		out[i] = c.anomaly
	}

	logger.WithComponent("anomaly").Debugf("Scanned %d rows: %d anomalies", len(records), len(out))
	return out
}

// ScanTable reads the hourly table and scans it. Missing or unreadable data
// is logged and reported as no anomalies.
func (s *Scanner) ScanTable(ctx context.Context, table storage.HourlyTable) []models.Anomaly {
	records, err := table.ReadAll(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrTableNotFound) {
			logger.WithContext(ctx).WithError(err).Warn("Hourly table unreadable, reporting no anomalies")
		}
		return []models.Anomaly{}
	}
	return s.Scan(records)
}

// Classify buckets a deviation percentage into a severity.
func (s *Scanner) Classify(pct float64) models.Severity {
	switch {
	case pct > s.config.HighCutoffPct:
		return models.SeverityHigh
	case pct > s.config.MediumCutoffPct:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Deviation is the relative excess of cost over baseline.
func Deviation(cost, baseline float64) float64 {
	denom := baseline
	if denom == 0 {
		denom = 1
	}
	return (cost - baseline) / denom
}

// RoundPct converts a fractional deviation to a percentage with one decimal,
// rounding halves to even.
func RoundPct(deviation float64) float64 {
	return math.RoundToEven(deviation*100*10) / 10
}

func Describe(pct float64) string {
	return fmt.Sprintf("%.1f%% above normal usage", pct)
}
