package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/OldStager01/cloudpulse/pkg/models"
)

type Service struct {
	Name     string
	Category string
	Ratio    float64
}

var DefaultServices = []Service{
	{Name: "EC2", Category: "Compute", Ratio: 0.45},
	{Name: "RDS", Category: "Database", Ratio: 0.25},
	{Name: "S3", Category: "Storage", Ratio: 0.20},
	{Name: "CloudFront", Category: "Network", Ratio: 0.10},
}

func ServiceNames(services []Service) []string {
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = s.Name
	}
	return names
}

type GeneratorConfig struct {
	Start    time.Time
	End      time.Time
	Services []Service
	// BaseDaily is the day-zero total; it grows by GrowthPerDay each day.
	BaseDaily    float64
	GrowthPerDay float64
	Spikes       int
	SpikeMin     float64
	SpikeMax     float64
	Seed         int64
	// Patterns names the shaping stages to apply. Nil means DefaultPatterns.
	Patterns []string
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Services:     DefaultServices,
		BaseDaily:    40,
		GrowthPerDay: 0.25,
		Spikes:       20,
		SpikeMin:     1.8,
		SpikeMax:     3.2,
		Seed:         42,
		Patterns:     DefaultPatterns,
	}
}

// Dataset is a complete synthetic billing history.
type Dataset struct {
	Hourly   []models.HourlyCostRecord
	Detailed []models.ServiceDailyCost
	Daily    []models.DailyCostRecord
}

// Generator builds synthetic billing data from a stack of patterns.
type Generator struct {
	config GeneratorConfig
	rng    *rand.Rand
	stack  PatternStack
}

// NewGenerator builds a generator. Unknown pattern names are skipped; use
// NewPatternStack to validate them first.
func NewGenerator(cfg GeneratorConfig) *Generator {
	def := DefaultGeneratorConfig()
	if cfg.Start.IsZero() {
		cfg.Start = def.Start
	}
	cfg.Start = models.Day(cfg.Start)
	if !cfg.End.IsZero() {
		cfg.End = models.Day(cfg.End)
	}
	if cfg.End.IsZero() || cfg.End.Before(cfg.Start) {
		cfg.End = cfg.Start.AddDate(0, 0, 90)
	}
	if len(cfg.Services) == 0 {
		cfg.Services = def.Services
	}
	if cfg.BaseDaily == 0 {
		cfg.BaseDaily = def.BaseDaily
	}
	if cfg.SpikeMin == 0 {
		cfg.SpikeMin = def.SpikeMin
	}
	if cfg.SpikeMax < cfg.SpikeMin {
		cfg.SpikeMax = cfg.SpikeMin
	}
	if cfg.Patterns == nil {
		cfg.Patterns = DefaultPatterns
	}

	var known []string
	for _, name := range cfg.Patterns {
		if _, err := ParsePattern(name); err == nil {
			known = append(known, name)
		}
	}
	stack, _ := NewPatternStack(known)

	return &Generator{
		config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		stack:  stack,
	}
}

func (g *Generator) Generate() *Dataset {
	cfg := g.config
	days := int(cfg.End.Sub(cfg.Start).Hours()/24) + 1

	hourly := make([]models.HourlyCostRecord, 0, days*24*len(cfg.Services))
	d := 0
	for day := cfg.Start; !day.After(cfg.End); day = day.AddDate(0, 0, 1) {
		total := g.stack.Day.Apply(cfg.BaseDaily+float64(d)*cfg.GrowthPerDay, day, g.rng)
		d++

		for h := 0; h < 24; h++ {
			ts := day.Add(time.Duration(h) * time.Hour)
			hourBase := g.stack.Hour.Apply(total/24.0, ts, g.rng)

			for _, svc := range cfg.Services {
				cost := math.Max(0, g.stack.Row.Apply(hourBase*svc.Ratio, ts, g.rng))
				hourly = append(hourly, models.NewHourlyCostRecord(ts, svc.Name, models.Round2(cost)))
			}
		}
	}

	g.injectSpikes(hourly)

	return &Dataset{
		Hourly:   hourly,
		Detailed: detailedDaily(hourly, cfg.Services),
		Daily:    models.DailyTotals(hourly),
	}
}

func (g *Generator) injectSpikes(hourly []models.HourlyCostRecord) {
	n := g.config.Spikes
	if n > len(hourly) {
		n = len(hourly)
	}
	for _, idx := range g.rng.Perm(len(hourly))[:n] {
		factor := g.config.SpikeMin + g.rng.Float64()*(g.config.SpikeMax-g.config.SpikeMin)
		hourly[idx].Cost = models.Round2(hourly[idx].Cost * factor)
	}
}

func detailedDaily(hourly []models.HourlyCostRecord, services []Service) []models.ServiceDailyCost {
	category := make(map[string]string, len(services))
	for _, s := range services {
		category[s.Name] = s.Category
	}

	type key struct {
		day     time.Time
		service string
	}
	sums := make(map[key]float64)
	var order []key
	for _, r := range hourly {
		k := key{
			day:     models.Day(r.Timestamp),
			service: r.Service,
		}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += r.Cost
	}

	out := make([]models.ServiceDailyCost, 0, len(order))
	for _, k := range order {
		out = append(out, models.ServiceDailyCost{
			Date:     k.day,
			Service:  k.service,
			Category: category[k.service],
			Cost:     models.Round2(sums[k]),
		})
	}
	return out
}
