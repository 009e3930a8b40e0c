package anomaly

import "github.com/OldStager01/cloudpulse/pkg/models"

// At returns the anomalies recorded at the given minute key.
func At(anomalies []models.Anomaly, minuteKey string) []models.Anomaly {
	var out []models.Anomaly
	for _, a := range anomalies {
		if a.Timestamp == minuteKey {
			out = append(out, a)
		}
	}
	return out
}

// Filter keeps anomalies at or above minSeverity (empty keeps all) and caps
// the result at limit when limit is positive.
func Filter(anomalies []models.Anomaly, minSeverity models.Severity, limit int) []models.Anomaly {
	out := make([]models.Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		if minSeverity != "" && a.Severity.Rank() < minSeverity.Rank() {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// CountBySeverity tallies anomalies per severity.
func CountBySeverity(anomalies []models.Anomaly) map[models.Severity]int {
	counts := map[models.Severity]int{
		models.SeverityLow:    0,
		models.SeverityMedium: 0,
		models.SeverityHigh:   0,
	}
	for _, a := range anomalies {
		counts[a.Severity]++
	}
	return counts
}
