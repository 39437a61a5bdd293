package rules

import (
	"fmt"

	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// JoinResult reports which seat a name ended up in.
type JoinResult struct {
	Room   *match.Room
	Seat   match.PlayerID
	Events []Event
	// Created is set when the room did not exist before.
	Created bool
	// Rejoined is set when name already held a seat.
	Rejoined bool
}

// Join seats name in room. A nil room is created with a fresh deck and name in the
// first seat; a second name takes the other seat and starts play; a returning name
// gets its seat back unchanged. Any other name is refused.
func (rb *Rulebook) Join(room *match.Room, roomID, name string, deck []cards.Card) (*JoinResult, error) {
	if name == "" {
		return nil, Reject(KindIllegalMove, "player name is required")
	}
	if room == nil {
		next := &match.Room{
			ID:     roomID,
			Status: match.StatusWaiting,
			Turn:   match.Player1,
		}
		dealt, rest := cards.Deal(deck, rb.InitialHandSize)
		next.Deck = rest
		next.Player1 = match.NewPlayer(name, dealt, &next.Keys)
		next.LastAction = fmt.Sprintf("%s opened the room", name)
		return &JoinResult{
			Room:    next,
			Seat:    match.Player1,
			Created: true,
			Events:  []Event{roomEvent(roomID, EventRoomCreated, match.Player1)},
		}, nil
	}

	if seat, ok := room.SeatOf(name); ok {
		return &JoinResult{
			Room:     room,
			Seat:     seat,
			Rejoined: true,
			Events:   []Event{roomEvent(room.ID, EventReconnected, seat)},
		}, nil
	}
	if room.Player2 != nil {
		return nil, Reject(KindIllegalMove, "room is full", "room", room.ID)
	}

	next := room.Clone()
	dealt, rest := cards.Deal(next.Deck, rb.InitialHandSize)
	next.Deck = rest
	next.Player2 = match.NewPlayer(name, dealt, &next.Keys)
	next.Status = match.StatusReady
	next.Turn = match.Player1
	next.LastAction = fmt.Sprintf("%s joined", name)
	return &JoinResult{
		Room:   next,
		Seat:   match.Player2,
		Events: []Event{roomEvent(room.ID, EventPlayerJoined, match.Player2)},
	}, nil
}

// Restart deals a new game in an existing room. Cumulative wins are kept.
func (rb *Rulebook) Restart(room *match.Room, deck []cards.Card) (*Result, error) {
	if room == nil {
		return nil, Broken("room not loaded").Err()
	}
	if room.Player1 == nil || room.Player2 == nil {
		return nil, Reject(KindIllegalMove, "waiting for an opponent")
	}
	next := &match.Room{
		ID:     room.ID,
		Status: match.StatusReady,
		Turn:   match.Player1,
		Keys:   room.Keys,
	}
	first, rest := cards.Deal(deck, rb.InitialHandSize)
	second, rest := cards.Deal(rest, rb.RestartSecondHandSize)
	next.Deck = rest
	next.Player1 = match.NewPlayer(room.Player1.Name, first, &next.Keys)
	next.Player1.Wins = room.Player1.Wins
	next.Player2 = match.NewPlayer(room.Player2.Name, second, &next.Keys)
	next.Player2.Wins = room.Player2.Wins
	next.LastAction = "new game"
	return &Result{
		Room:   next,
		Events: []Event{roomEvent(room.ID, EventRestarted, match.Player1)},
	}, nil
}

func roomEvent(roomID string, t EventType, seat match.PlayerID) Event {
	evt := NewEvent(t, string(seat), "", "")
	evt.RoomID = roomID
	return evt
}
