// Package notify delivers anomaly alerts to account holders.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OldStager01/cloudpulse/pkg/models"
)

const subjectPrefix = "[CloudPulse AI] Anomaly detected at "

var ErrNoRecipients = errors.New("no recipients")

// Notifier sends a batch of anomalies found at one timestamp.
type Notifier interface {
	NotifyAnomalies(ctx context.Context, recipients []string, anomalies []models.Anomaly) error
}

// Message is a rendered alert.
type Message struct {
	Subject string
	Body    string
}

// Render builds the alert for anomalies that share a timestamp. The subject
// uses the first anomaly's timestamp.
func Render(anomalies []models.Anomaly) Message {
	if len(anomalies) == 0 {
		return Message{}
	}

	lines := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		lines = append(lines, fmt.Sprintf("%s | %s | %s\n%s\n", a.Timestamp, a.Service, a.Severity, a.Description))
	}

	return Message{
		Subject: subjectPrefix + anomalies[0].Timestamp,
		Body:    strings.Join(lines, "\n"),
	}
}
