package rules

import (
	"testing"
	"time"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	stolenCount := 0
	drewCount := 0

	handle1 := bus.SubscribeTyped(EventStolen, func(e Event) {
		stolenCount++
	})
	bus.SubscribeTyped(EventDrewCard, func(e Event) {
		drewCount += e.Amount
	})

	bus.Publish(NewEvent(EventStolen, "player1", "J-S", "0000000000000003"))
	if stolenCount != 1 {
		t.Fatalf("expected stolen count 1, got %d", stolenCount)
	}
	if drewCount != 0 {
		t.Fatalf("expected drew count 0, got %d", drewCount)
	}

	bus.Publish(NewEventWithAmount(EventDrewCard, "player2", 2))
	if drewCount != 2 {
		t.Fatalf("expected drew count 2, got %d", drewCount)
	}

	bus.Unsubscribe(handle1)
	bus.Publish(NewEvent(EventStolen, "player1", "J-H", "0000000000000004"))
	if stolenCount != 1 {
		t.Fatalf("expected stolen count still 1 after unsubscribe, got %d", stolenCount)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	var seen []EventType
	handle := bus.Subscribe(func(e Event) {
		seen = append(seen, e.Type)
	})

	bus.PublishBatch([]Event{
		NewEvent(EventOneOffPlayed, "player1", "5-H", ""),
		NewEvent(EventAllowed, "player2", "5", ""),
		NewEvent(EventEffectResolved, "player1", "5", ""),
	})
	if len(seen) != 3 || seen[1] != EventAllowed {
		t.Fatalf("expected three events in order, got %v", seen)
	}

	bus.Unsubscribe(handle)
	bus.Publish(NewEvent(EventTurnPassed, "player2", "", ""))
	if len(seen) != 3 {
		t.Fatalf("expected no delivery after unsubscribe, got %v", seen)
	}
}

func TestEventBusStampsTimestamp(t *testing.T) {
	bus := NewEventBus()
	var got Event
	bus.Subscribe(func(e Event) { got = e })

	before := time.Now()
	bus.Publish(NewEvent(EventGameOver, "player1", "", ""))
	if got.Timestamp.Before(before) {
		t.Fatalf("expected timestamp at or after %v, got %v", before, got.Timestamp)
	}

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	evt := NewEvent(EventGameOver, "player1", "", "")
	evt.Timestamp = fixed
	bus.Publish(evt)
	if !got.Timestamp.Equal(fixed) {
		t.Fatalf("expected preset timestamp to be kept, got %v", got.Timestamp)
	}
}

func TestEventBusIgnoresNilListeners(t *testing.T) {
	bus := NewEventBus()
	if h := bus.Subscribe(nil); h != -1 {
		t.Fatalf("expected -1 handle for nil listener, got %d", h)
	}
	if h := bus.SubscribeTyped(EventGameOver, nil); h != -1 {
		t.Fatalf("expected -1 handle for nil typed listener, got %d", h)
	}
}
