package events

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

// EventLogger mirrors bus traffic into the structured log. Hourly appends
// are chatty and go to debug.
type EventLogger struct {
	events   <-chan *models.Event
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewEventLogger(events <-chan *models.Event) *EventLogger {
	return &EventLogger{
		events: events,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (l *EventLogger) Start() {
	go l.run()
}

// Stop ends the loop and waits for it to exit.
func (l *EventLogger) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
	<-l.done
}

func (l *EventLogger) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case event, ok := <-l.events:
			if !ok {
				return
			}
			l.log(event)
		}
	}
}

func (l *EventLogger) log(event *models.Event) {
	fields := logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"severity":   event.Severity,
	}
	if event.Service != "" {
		fields["service"] = event.Service
	}
	if event.TraceID != "" {
		fields["trace_id"] = event.TraceID
	}
	if a, ok := event.Data.(models.Anomaly); ok {
		fields["deviation_pct"] = a.DeviationPct
		fields["cost"] = a.Cost
	}
	entry := logger.WithFields(fields)

	switch {
	case event.Severity == models.EventSeverityCritical:
		entry.Error(event.Message)
	case event.Severity == models.EventSeverityWarning:
		entry.Warn(event.Message)
	case event.Type == models.EventTypeHourAppended:
		entry.Debug(event.Message)
	default:
		entry.Info(event.Message)
	}
}
