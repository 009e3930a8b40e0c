package events

import (
	"fmt"

	"github.com/OldStager01/cloudpulse/pkg/models"
)

type Publisher struct {
	bus     *EventBus
	traceID string
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) WithTraceID(traceID string) *Publisher {
	return &Publisher{
		bus:     p.bus,
		traceID: traceID,
	}
}

func (p *Publisher) publish(event *models.Event) {
	if p == nil || p.bus == nil {
		return
	}
	if p.traceID != "" {
		event.TraceID = p.traceID
	}
	p.bus.Publish(event)
}

func (p *Publisher) HourAppended(record models.HourlyCostRecord, spiked bool) {
	msg := fmt.Sprintf("Appended %s cost %.2f at %s", record.Service, record.Cost, record.TimestampText())
	event := models.NewEvent(models.EventTypeHourAppended, record.Service, msg).
		WithData(map[string]interface{}{
			"timestamp": record.TimestampText(),
			"service":   record.Service,
			"cost":      record.Cost,
			"spiked":    spiked,
		})
	p.publish(event)
}

func (p *Publisher) AnomalyDetected(anomaly models.Anomaly) {
	msg := fmt.Sprintf("%s anomaly on %s: %s", anomaly.Severity, anomaly.Service, anomaly.Description)
	event := models.NewEvent(models.EventTypeAnomalyDetected, anomaly.Service, msg).
		WithSeverity(models.EventSeverityFor(anomaly.Severity)).
		WithData(anomaly)
	p.publish(event)
}

func (p *Publisher) FlagChanged(active bool) {
	msg := "Anomaly injection deactivated"
	severity := models.EventSeverityInfo
	if active {
		msg = "Anomaly injection activated"
		severity = models.EventSeverityWarning
	}
	event := models.NewEvent(models.EventTypeFlagChanged, "", msg).
		WithSeverity(severity).
		WithData(map[string]interface{}{"active": active})
	p.publish(event)
}

func (p *Publisher) ForecastFallback(forecaster, reason string) {
	msg := "Forecast fell back to rolling mean: " + reason
	event := models.NewEvent(models.EventTypeForecastFallback, "", msg).
		WithSeverity(models.EventSeverityWarning).
		WithData(map[string]interface{}{
			"forecaster": forecaster,
			"reason":     reason,
		})
	p.publish(event)
}

func (p *Publisher) NotificationSent(recipients []string, count int) {
	msg := fmt.Sprintf("Emailed %d anomalies to %d recipients", count, len(recipients))
	event := models.NewEvent(models.EventTypeNotificationSent, "", msg).
		WithData(map[string]interface{}{
			"recipients": recipients,
			"anomalies":  count,
		})
	p.publish(event)
}

func (p *Publisher) Error(service string, message string, err error) {
	event := models.NewEvent(models.EventTypeError, service, message).
		WithSeverity(models.EventSeverityCritical).
		WithData(map[string]interface{}{
			"error": err.Error(),
		})
	p.publish(event)
}
