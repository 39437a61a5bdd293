package match

import (
	"fmt"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
)

// MoveKind enumerates the moves a player can submit.
type MoveKind string

const (
	MoveDraw       MoveKind = "draw"
	MovePlayPoint  MoveKind = "play_point"
	MoveScuttle    MoveKind = "scuttle"
	MovePlayEffect MoveKind = "play_effect"
	MovePlayJack   MoveKind = "play_jack"
	MoveCounter    MoveKind = "counter"
	MoveAllow      MoveKind = "allow"
	MoveFish       MoveKind = "fish"
	MoveDiscard    MoveKind = "discard"
)

// Contended reports whether the move touches fields both players race on
// (deck, turn marker, the counter window) and must commit through a
// conditional update.
func (k MoveKind) Contended() bool {
	switch k {
	case MoveDraw, MoveCounter, MoveAllow, MoveFish, MoveDiscard:
		return true
	}
	return false
}

// Command is a fully specified move.
type Command struct {
	Kind   MoveKind  `json:"kind"`
	Player PlayerID  `json:"player"`
	Card   board.Key `json:"card,omitempty"`
	Target board.Key `json:"target,omitempty"`
	// Index selects a card in the discard pile when fishing.
	Index int `json:"index,omitempty"`
}

func (c Command) String() string {
	return fmt.Sprintf("%s by %s card=%s target=%s", c.Kind, c.Player, c.Card, c.Target)
}
