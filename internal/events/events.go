package events

import (
	"sync"
	"sync/atomic"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

const defaultBufferSize = 100

type subscription struct {
	ch chan *models.Event
	// nil accepts every type
	types map[models.EventType]struct{}
}

func (s *subscription) wants(t models.EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// EventBus fans cost-pipeline events out to buffered subscribers. Publishing
// never blocks: a subscriber that falls behind loses events.
type EventBus struct {
	subs       []*subscription
	onDrop     func(*models.Event)
	dropped    atomic.Uint64
	mu         sync.RWMutex
	bufferSize int
	closed     bool
}

func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &EventBus{bufferSize: bufferSize}
}

// OnDrop registers a hook called whenever a full subscriber drops an event.
func (b *EventBus) OnDrop(fn func(*models.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = fn
}

// Subscribe returns a channel receiving the given event types, or every type
// when none are named. The channel is closed by Close.
func (b *EventBus) Subscribe(types ...models.EventType) <-chan *models.Event {
	sub := &subscription{ch: make(chan *models.Event, b.bufferSize)}
	if len(types) > 0 {
		sub.types = make(map[models.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

func (b *EventBus) SubscribeAll() <-chan *models.Event {
	return b.Subscribe()
}

func (b *EventBus) Publish(event *models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			logger.WithService(event.Service).Warnf("Event channel full, dropping %s", event.Type)
			if b.onDrop != nil {
				b.onDrop(event)
			}
		}
	}
}

// Dropped reports how many deliveries were lost to full subscribers.
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
