package models

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Layouts used by the cost tables on disk.
const (
	HourlyTimestampLayout = "2006-01-02 15:04:05"
	DailyDateLayout       = "2006-01-02"
	MinuteKeyLayout       = "2006-01-02 15:04"
)

// Cost tables carry naive wall-clock times. They are held as UTC so hour
// arithmetic never crosses a daylight saving transition.

// WallClock re-reads t's calendar fields as UTC, dropping its zone.
func WallClock(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Day is the UTC midnight of t's calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// HourlyCostRecord is one billed hour for one service.
// Timestamp is zero when Raw could not be parsed.
type HourlyCostRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Raw       string    `json:"-"`
	Service   string    `json:"service"`
	Cost      float64   `json:"cost"`
}

func NewHourlyCostRecord(ts time.Time, service string, cost float64) HourlyCostRecord {
	ts = WallClock(ts)
	return HourlyCostRecord{
		Timestamp: ts,
		Raw:       ts.Format(HourlyTimestampLayout),
		Service:   service,
		Cost:      cost,
	}
}

// HasTime reports whether the record carries a parsed timestamp.
func (r HourlyCostRecord) HasTime() bool {
	return !r.Timestamp.IsZero()
}

// MinuteKey is the "YYYY-MM-DD HH:MM" sort key, falling back to the raw
// timestamp text when it did not parse.
func (r HourlyCostRecord) MinuteKey() string {
	if r.HasTime() {
		return r.Timestamp.Format(MinuteKeyLayout)
	}
	return r.Raw
}

// TimestampText renders the timestamp the way it is stored on disk.
func (r HourlyCostRecord) TimestampText() string {
	if r.HasTime() {
		return r.Timestamp.Format(HourlyTimestampLayout)
	}
	return r.Raw
}

// DailyCostRecord is the total cost of one calendar day.
type DailyCostRecord struct {
	Date      time.Time `json:"date"`
	Raw       string    `json:"-"`
	TotalCost float64   `json:"total_cost"`
}

func NewDailyCostRecord(date time.Time, total float64) DailyCostRecord {
	date = Day(date)
	return DailyCostRecord{
		Date:      date,
		Raw:       date.Format(DailyDateLayout),
		TotalCost: total,
	}
}

// ServiceDailyCost is the cost of one service on one day.
type ServiceDailyCost struct {
	Date     time.Time `json:"date"`
	Service  string    `json:"service"`
	Category string    `json:"category"`
	Cost     float64   `json:"cost"`
}

// HourlyTotal is the cost of all services for one hour.
type HourlyTotal struct {
	Timestamp string  `json:"timestamp"`
	Cost      float64 `json:"cost"`
}

// ParseHourlyTimestamp accepts the stored layout and a few looser variants.
func ParseHourlyTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{HourlyTimestampLayout, MinuteKeyLayout, time.RFC3339, "2006-01-02T15:04:05", DailyDateLayout} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return WallClock(t), true
		}
	}
	return time.Time{}, false
}

// ParseDailyDate accepts YYYY-MM-DD or a full timestamp.
func ParseDailyDate(raw string) (time.Time, bool) {
	t, ok := ParseHourlyTimestamp(raw)
	if !ok {
		return time.Time{}, false
	}
	return Day(t), true
}

// ParseCost coerces a cost cell to a float; anything non-numeric is zero.
func ParseCost(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round2 rounds a monetary value to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DailyTotals sums hourly records per calendar date in ascending date order.
// Records without a parsed timestamp are skipped.
func DailyTotals(records []HourlyCostRecord) []DailyCostRecord {
	sums := make(map[time.Time]float64)
	var order []time.Time
	for _, r := range records {
		if !r.HasTime() {
			continue
		}
		day := Day(r.Timestamp)
		if _, ok := sums[day]; !ok {
			order = append(order, day)
		}
		sums[day] += r.Cost
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	out := make([]DailyCostRecord, 0, len(order))
	for _, day := range order {
		out = append(out, NewDailyCostRecord(day, Round2(sums[day])))
	}
	return out
}

// HourlyTotals sums all services per hour in ascending order, keyed by the
// "YYYY-MM-DD HH:MM" minute key. Records without a parsed timestamp are
// skipped.
func HourlyTotals(records []HourlyCostRecord) []HourlyTotal {
	sums := make(map[string]float64)
	var keys []string
	for _, r := range records {
		if !r.HasTime() {
			continue
		}
		key := r.MinuteKey()
		if _, ok := sums[key]; !ok {
			keys = append(keys, key)
		}
		sums[key] += r.Cost
	}

	sort.Strings(keys)
	out := make([]HourlyTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, HourlyTotal{Timestamp: k, Cost: Round2(sums[k])})
	}
	return out
}
