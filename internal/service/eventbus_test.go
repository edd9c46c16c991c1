package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus_PublishToSubscribersOfRequest(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe("req-a")
	b := bus.Subscribe("req-b")

	bus.Publish("req-a", Event{Type: EventTypeEntity, EntityID: 1, Status: "complete"})

	select {
	case e := <-a:
		assert.Equal(t, int64(1), e.EntityID)
	default:
		t.Fatal("subscriber of req-a got nothing")
	}
	assert.Empty(t, b)
	assert.Equal(t, 2, bus.SubscriberCount())
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("req-a")

	bus.Unsubscribe("req-a", ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())
	bus.Publish("req-a", Event{Type: EventTypeJob})
}

func TestEventBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("req-a")

	for i := 0; i < 200; i++ {
		bus.Publish("req-a", Event{Type: EventTypeEntity, EntityID: int64(i)})
	}

	assert.Equal(t, cap(ch), len(ch))
}

func TestEventBus_RemembersJobEvent(t *testing.T) {
	bus := NewEventBus()

	_, ok := bus.JobEvent("req-a")
	assert.False(t, ok)

	bus.Publish("req-a", Event{Type: EventTypeEntity, EntityID: 1, Status: "complete"})
	_, ok = bus.JobEvent("req-a")
	assert.False(t, ok, "entity events are not remembered")

	bus.Publish("req-a", Event{Type: EventTypeJob, Status: "failed"})
	event, ok := bus.JobEvent("req-a")
	assert.True(t, ok)
	assert.Equal(t, "failed", event.Status)
}

func TestEventBus_ForgetsOldestJobEvent(t *testing.T) {
	bus := NewEventBus()

	for i := 0; i <= finishedLimit; i++ {
		bus.Publish(fmt.Sprintf("req-%d", i), Event{Type: EventTypeJob, Status: "complete"})
	}

	_, ok := bus.JobEvent("req-0")
	assert.False(t, ok)
	_, ok = bus.JobEvent(fmt.Sprintf("req-%d", finishedLimit))
	assert.True(t, ok)
	assert.Len(t, bus.finished, finishedLimit)
}
