package websocket

import (
	"sync"
	"sync/atomic"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

// wsTypes maps bus events onto dashboard message types. Notification
// details stay server-side.
var wsTypes = map[models.EventType]MessageType{
	models.EventTypeHourAppended:     MessageTypeLiveUpdate,
	models.EventTypeAnomalyDetected:  MessageTypeAnomaly,
	models.EventTypeFlagChanged:      MessageTypeAnomalyFlag,
	models.EventTypeForecastFallback: MessageTypeForecast,
	models.EventTypeError:            MessageTypeError,
}

func mapEventType(t models.EventType) MessageType {
	return wsTypes[t]
}

// EventBridge relays bus events to the hub, routed by the event's service.
type EventBridge struct {
	hub       *Hub
	events    <-chan *models.Event
	forwarded atomic.Uint64
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

func NewEventBridge(hub *Hub, events <-chan *models.Event) *EventBridge {
	return &EventBridge{
		hub:    hub,
		events: events,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (b *EventBridge) Start() {
	go b.run()
	logger.WithComponent("ws-bridge").Info("WebSocket event bridge started")
}

// Stop ends the relay and waits for it to exit.
func (b *EventBridge) Stop() {
	b.stopOnce.Do(func() { close(b.quit) })
	<-b.done
	logger.WithComponent("ws-bridge").
		WithField("forwarded", b.Forwarded()).
		Info("WebSocket event bridge stopped")
}

// Forwarded counts events handed to the hub.
func (b *EventBridge) Forwarded() uint64 {
	return b.forwarded.Load()
}

func (b *EventBridge) run() {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			return
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.forward(event)
		}
	}
}

func (b *EventBridge) forward(event *models.Event) {
	typ := mapEventType(event.Type)
	if typ == "" {
		return
	}

	msg := NewMessage(typ, event.Service, event.Data)
	msg.Timestamp = event.Timestamp
	msg.Severity = string(event.Severity)
	msg.Message = event.Message

	data, err := msg.JSON()
	if err != nil {
		logger.WithError(err).Error("Failed to encode WebSocket message")
		return
	}

	b.hub.BroadcastToService(event.Service, data)
	b.forwarded.Add(1)
}
