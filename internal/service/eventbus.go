package service

import (
	"sync"
)

const (
	EventTypeEntity = "entity"
	EventTypeJob    = "job"
)

// Event is a progress notice for one request. Entity events carry the new
// status of one entity; the job event is the last one sent for a request.
type Event struct {
	Type     string `json:"type"`
	EntityID int64  `json:"entityId,omitempty"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

type EventPublisher interface {
	Publish(requestID string, event Event)
}

// finishedLimit bounds how many job outcomes are remembered for late
// subscribers. The oldest is forgotten first.
const finishedLimit = 1024

type EventBus struct {
	subscribers map[string][]chan Event
	finished    map[string]Event
	order       []string
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		finished:    make(map[string]Event),
	}
}

func (eb *EventBus) Subscribe(requestID string) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 64)
	eb.subscribers[requestID] = append(eb.subscribers[requestID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(requestID string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[requestID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[requestID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[requestID]) == 0 {
		delete(eb.subscribers, requestID)
	}
}

func (eb *EventBus) Publish(requestID string, event Event) {
	if event.Type == EventTypeJob {
		eb.remember(requestID, event)
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[requestID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}

func (eb *EventBus) remember(requestID string, event Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, ok := eb.finished[requestID]; !ok {
		eb.order = append(eb.order, requestID)
		if len(eb.order) > finishedLimit {
			delete(eb.finished, eb.order[0])
			eb.order = eb.order[1:]
		}
	}
	eb.finished[requestID] = event
}

// JobEvent returns the job event already published for requestID, if any.
func (eb *EventBus) JobEvent(requestID string) (Event, bool) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	event, ok := eb.finished[requestID]
	return event, ok
}

// SubscriberCount counts open subscriptions across all requests.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	n := 0
	for _, subs := range eb.subscribers {
		n += len(subs)
	}
	return n
}
