package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeHourAppended     EventType = "hour_appended"
	EventTypeAnomalyDetected  EventType = "anomaly_detected"
	EventTypeFlagChanged      EventType = "anomaly_flag_changed"
	EventTypeForecastFallback EventType = "forecast_fallback"
	EventTypeNotificationSent EventType = "notification_sent"
	EventTypeError            EventType = "error"
)

type EventSeverity string

const (
	EventSeverityInfo     EventSeverity = "info"
	EventSeverityWarning  EventSeverity = "warning"
	EventSeverityCritical EventSeverity = "critical"
)

// Event represents an internal system event
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Severity  EventSeverity `json:"severity"`
	Service   string        `json:"service,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
	Data      interface{}   `json:"data,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
}

func NewEvent(eventType EventType, service, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Severity:  EventSeverityInfo,
		Service:   service,
		Timestamp: time.Now(),
		Message:   message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

func (e *Event) WithTraceID(traceID string) *Event {
	e.TraceID = traceID
	return e
}

// EventSeverityFor maps an anomaly severity onto the event scale.
func EventSeverityFor(s Severity) EventSeverity {
	switch s {
	case SeverityHigh:
		return EventSeverityCritical
	case SeverityMedium:
		return EventSeverityWarning
	}
	return EventSeverityInfo
}
