// Package eventing is a small in-process pub/sub bus. Publishing never
// blocks; slow subscribers drop events.
package eventing

import (
	"sync"
	"time"
)

// Topics published by the services.
const (
	TopicCriticalAlert        = "equipment.alert.critical"
	TopicMaintenanceScheduled = "equipment.maintenance.scheduled"
	TopicFirmwareResult       = "firmware.update.result"
	TopicReportCompleted      = "report.completed"
)

// Event is one published message.
type Event struct {
	Topic   string
	Payload any
	At      time.Time
}

// Bus fans events out to topic subscribers.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan Event
	nextID int
}

// NewBus constructs a bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Publish delivers an event to current subscribers of its topic.
func (b *Bus) Publish(topic string, payload any) {
	if b == nil || topic == "" {
		return
	}
	event := Event{Topic: topic, Payload: payload, At: time.Now().UTC()}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener for one topic.
func (b *Bus) Subscribe(topic string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if topicSubs, ok := b.subs[topic]; ok {
			if existing, ok := topicSubs[id]; ok {
				delete(topicSubs, id)
				close(existing)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
