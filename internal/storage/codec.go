package storage

import (
	"strconv"
	"strings"

	"github.com/OldStager01/cloudpulse/pkg/models"
)

// Codec maps rows to and from CSV records.
type Codec[T any] interface {
	Header() []string
	Encode(row T) []string
	Decode(record []string, cols Columns) T
}

// Columns resolves header names to record positions.
type Columns map[string]int

func NewColumns(header []string) Columns {
	cols := make(Columns, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, exists := cols[name]; !exists {
			cols[name] = i
		}
	}
	return cols
}

// Get returns the first present column among names.
func (c Columns) Get(record []string, names ...string) (string, bool) {
	for _, name := range names {
		if i, ok := c[name]; ok && i < len(record) {
			return record[i], true
		}
	}
	return "", false
}

type HourlyCodec struct{}

func (HourlyCodec) Header() []string {
	return []string{"timestamp", "service", "cost"}
}

func (HourlyCodec) Encode(r models.HourlyCostRecord) []string {
	return []string{r.TimestampText(), r.Service, formatCost(r.Cost)}
}

func (HourlyCodec) Decode(record []string, cols Columns) models.HourlyCostRecord {
	raw, _ := cols.Get(record, "timestamp", "ds")
	service, _ := cols.Get(record, "service")
	cost, _ := cols.Get(record, "cost")

	rec := models.HourlyCostRecord{
		Raw:     strings.TrimSpace(raw),
		Service: strings.TrimSpace(service),
		Cost:    models.ParseCost(cost),
	}
	if ts, ok := models.ParseHourlyTimestamp(raw); ok {
		rec.Timestamp = ts
	}
	return rec
}

// DailyCodec accepts either the date/total_cost pair or the ds/y pair used
// by forecasting tools.
type DailyCodec struct{}

func (DailyCodec) Header() []string {
	return []string{"date", "total_cost"}
}

func (DailyCodec) Encode(r models.DailyCostRecord) []string {
	date := r.Raw
	if !r.Date.IsZero() {
		date = r.Date.Format(models.DailyDateLayout)
	}
	return []string{date, formatCost(r.TotalCost)}
}

func (DailyCodec) Decode(record []string, cols Columns) models.DailyCostRecord {
	raw, _ := cols.Get(record, "date", "ds")
	total, _ := cols.Get(record, "total_cost", "y", "cost")

	rec := models.DailyCostRecord{
		Raw:       strings.TrimSpace(raw),
		TotalCost: models.ParseCost(total),
	}
	if d, ok := models.ParseDailyDate(raw); ok {
		rec.Date = d
	}
	return rec
}

func formatCost(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DetailedCodec writes per-service daily costs. It is write-mostly and only
// used for exported data sets.
type DetailedCodec struct{}

func (DetailedCodec) Header() []string {
	return []string{"date", "service", "category", "daily_cost"}
}

func (DetailedCodec) Encode(r models.ServiceDailyCost) []string {
	return []string{r.Date.Format(models.DailyDateLayout), r.Service, r.Category, formatCost(r.Cost)}
}

func (DetailedCodec) Decode(record []string, cols Columns) models.ServiceDailyCost {
	raw, _ := cols.Get(record, "date")
	service, _ := cols.Get(record, "service")
	category, _ := cols.Get(record, "category")
	cost, _ := cols.Get(record, "daily_cost", "cost")

	rec := models.ServiceDailyCost{
		Service:  strings.TrimSpace(service),
		Category: strings.TrimSpace(category),
		Cost:     models.ParseCost(cost),
	}
	if d, ok := models.ParseDailyDate(raw); ok {
		rec.Date = d
	}
	return rec
}
