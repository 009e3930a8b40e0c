package models

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Rank orders severities from LOW (1) to HIGH (3); unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// Anomaly is an hourly cost that sits well above its hour-of-day baseline.
// It is derived from the hourly table on every scan and never stored.
type Anomaly struct {
	Timestamp    string   `json:"timestamp"`
	Service      string   `json:"service"`
	Description  string   `json:"description"`
	Severity     Severity `json:"severity"`
	DeviationPct float64  `json:"deviation_pct"`
	Cost         float64  `json:"cost"`
	Baseline     float64  `json:"baseline"`
}
