package rules

import (
	"sync"
	"time"

	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Room events
	EventRoomCreated  EventType = "ROOM_CREATED"
	EventPlayerJoined EventType = "PLAYER_JOINED"
	EventReconnected  EventType = "RECONNECTED"
	EventRestarted    EventType = "RESTARTED"

	// Card movement
	EventDrewCard      EventType = "DREW_CARD"
	EventDeckEmpty     EventType = "DECK_EMPTY"
	EventPointPlayed   EventType = "POINT_PLAYED"
	EventPermanentPlay EventType = "PERMANENT_PLAYED"
	EventScuttled      EventType = "SCUTTLED"
	EventDiscarded     EventType = "DISCARDED"
	EventFished        EventType = "FISHED"
	EventReturnedHand  EventType = "RETURNED_TO_HAND"

	// Steal graph
	EventStolen         EventType = "STOLEN"
	EventControlChanged EventType = "CONTROL_CHANGED"
	EventJackDetached   EventType = "JACK_DETACHED"

	// One-offs
	EventOneOffPlayed   EventType = "ONE_OFF_PLAYED"
	EventCountered      EventType = "COUNTERED"
	EventAllowed        EventType = "ALLOWED"
	EventEffectResolved EventType = "EFFECT_RESOLVED"
	EventEffectFizzled  EventType = "EFFECT_FIZZLED"
	EventDestroyed      EventType = "DESTROYED"

	// Turn/victory
	EventTurnPassed EventType = "TURN_PASSED"
	EventTurnKept   EventType = "TURN_KEPT"
	EventGameOver   EventType = "GAME_OVER"

	// EventCommitted follows every write and carries the stored room.
	EventCommitted EventType = "COMMITTED"
)

// Event captures a rules event along with contextual data.
type Event struct {
	Type     EventType         `json:"type"`
	ID       string            `json:"id,omitempty"`
	RoomID   string            `json:"roomId,omitempty"`
	PlayerID string            `json:"playerId,omitempty"`
	CardID   string            `json:"cardId,omitempty"`
	TargetID string            `json:"targetId,omitempty"`
	Amount   int               `json:"amount,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Room     *match.Room       `json:"-"`
	// Timestamp is stamped by the publisher; rules code leaves it zero.
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with the common fields populated.
func NewEvent(eventType EventType, player, cardID, targetID string) Event {
	return Event{
		Type:     eventType,
		PlayerID: player,
		CardID:   cardID,
		TargetID: targetID,
	}
}

// NewEventWithAmount creates an event carrying a count.
func NewEventWithAmount(eventType EventType, player string, amount int) Event {
	evt := NewEvent(eventType, player, "", "")
	evt.Amount = amount
	return evt
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}
