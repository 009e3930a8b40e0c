package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Pattern shapes a cost value for a point in time.
type Pattern interface {
	Apply(base float64, t time.Time, rng *rand.Rand) float64
	Name() string
}

// DefaultPatterns is the full shaping stack used by the generator.
var DefaultPatterns = []string{"weekday", "hour_of_day", "noise"}

func ParsePattern(name string) (Pattern, error) {
	switch name {
	case "steady":
		return SteadyPattern{}, nil
	case "hour_of_day":
		return DefaultHourOfDay(), nil
	case "weekday":
		return DefaultWeekday(), nil
	case "noise":
		return &NoisePattern{Ratio: 0.05}, nil
	default:
		return nil, fmt.Errorf("unknown pattern %q", name)
	}
}

// PatternStack holds one pattern per generation stage. Stages absent from
// the stack stay steady.
type PatternStack struct {
	Day  Pattern
	Hour Pattern
	Row  Pattern
}

func NewPatternStack(names []string) (PatternStack, error) {
	stack := PatternStack{Day: SteadyPattern{}, Hour: SteadyPattern{}, Row: SteadyPattern{}}
	for _, name := range names {
		p, err := ParsePattern(name)
		if err != nil {
			return stack, err
		}
		switch p.(type) {
		case *WeekdayPattern:
			stack.Day = p
		case *HourOfDayPattern:
			stack.Hour = p
		case *NoisePattern:
			stack.Row = p
		}
	}
	return stack, nil
}

func (s PatternStack) Names() []string {
	var names []string
	for _, p := range []Pattern{s.Day, s.Hour, s.Row} {
		if p.Name() != "steady" {
			names = append(names, p.Name())
		}
	}
	return names
}

// SteadyPattern - constant cost
type SteadyPattern struct{}

func (SteadyPattern) Apply(base float64, _ time.Time, _ *rand.Rand) float64 {
	return base
}

func (SteadyPattern) Name() string {
	return "steady"
}

// HourOfDayPattern - office hours cost more, nights cost less
type HourOfDayPattern struct {
	PeakStart, PeakEnd   int
	NightStart, NightEnd int
	Peak, Night, Off     float64
}

func DefaultHourOfDay() *HourOfDayPattern {
	return &HourOfDayPattern{
		PeakStart:  9,
		PeakEnd:    18,
		NightStart: 0,
		NightEnd:   5,
		Peak:       1.15,
		Night:      0.6,
		Off:        0.9,
	}
}

func (p *HourOfDayPattern) Factor(hour int) float64 {
	switch {
	case hour >= p.PeakStart && hour <= p.PeakEnd:
		return p.Peak
	case hour >= p.NightStart && hour <= p.NightEnd:
		return p.Night
	default:
		return p.Off
	}
}

func (p *HourOfDayPattern) Apply(base float64, t time.Time, _ *rand.Rand) float64 {
	return base * p.Factor(t.Hour())
}

func (p *HourOfDayPattern) Name() string {
	return "hour_of_day"
}

// WeekdayPattern - working days run above the trend, weekends below it
type WeekdayPattern struct {
	WeekdayMean, WeekdayStdDev float64
	WeekendShift               float64
	WeekendMean, WeekendStdDev float64
}

func DefaultWeekday() *WeekdayPattern {
	return &WeekdayPattern{
		WeekdayMean:   8,
		WeekdayStdDev: 3,
		WeekendShift:  -8,
		WeekendMean:   3,
		WeekendStdDev: 2,
	}
}

func (p *WeekdayPattern) Apply(base float64, t time.Time, rng *rand.Rand) float64 {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return base + p.WeekendShift + p.WeekendMean + rng.NormFloat64()*p.WeekendStdDev
	default:
		return base + p.WeekdayMean + rng.NormFloat64()*p.WeekdayStdDev
	}
}

func (p *WeekdayPattern) Name() string {
	return "weekday"
}

// NoisePattern - gaussian jitter proportional to the base
type NoisePattern struct {
	Ratio float64
}

func (p *NoisePattern) Apply(base float64, _ time.Time, rng *rand.Rand) float64 {
	return base + rng.NormFloat64()*math.Abs(base)*p.Ratio
}

func (p *NoisePattern) Name() string {
	return "noise"
}
