package match

import (
	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
)

// PlayerID is the seat identifier used throughout a room.
type PlayerID = board.PlayerID

const (
	Player1 = board.Player1
	Player2 = board.Player2
)

// Status is the room's position in the turn state machine.
type Status string

const (
	StatusWaiting            Status = "waiting"
	StatusReady              Status = "ready"
	StatusCounterOpportunity Status = "counter_opportunity"
	StatusWaitingFishing3    Status = "waiting_fishing_3"
	StatusWaitingDiscard4    Status = "waiting_discard_4"
	StatusGameOver           Status = "game_over"
)

func (s Status) String() string {
	return string(s)
}

// PendingKind names the effect a pending action will resolve.
type PendingKind string

const (
	PendingEffectPrefix             = "effect_"
	PendingResolving3   PendingKind = "resolving_3"
	PendingResolving4   PendingKind = "resolving_4"
)

// EffectKind returns the pending kind for a one-off played with face f.
func EffectKind(f cards.Face) PendingKind {
	return PendingKind(PendingEffectPrefix + string(f))
}

// Face extracts the card face from an effect_<face> kind.
func (k PendingKind) Face() (cards.Face, bool) {
	s := string(k)
	if len(s) <= len(PendingEffectPrefix) || s[:len(PendingEffectPrefix)] != PendingEffectPrefix {
		return "", false
	}
	return cards.Face(s[len(PendingEffectPrefix):]), true
}

// PendingAction is the one-off awaiting resolution.
type PendingAction struct {
	Type         PendingKind `json:"type"`
	Source       PlayerID    `json:"source"`
	TargetID     board.Key   `json:"targetId,omitempty"`
	Victim       PlayerID    `json:"victim,omitempty"`
	DiscardCount int         `json:"discardCount,omitempty"`
}

// Player is one seat's private and public state.
type Player struct {
	Name  string       `json:"name"`
	Hand  *board.Hand  `json:"hand"`
	Table *board.Table `json:"table"`
	Score int          `json:"score"`
	Wins  int          `json:"wins"`
}

// NewPlayer seats a player with the given starting cards.
func NewPlayer(name string, hand []cards.Card, keys *board.KeySeq) *Player {
	p := &Player{Name: name, Hand: board.NewHand(), Table: board.NewTable()}
	for _, c := range hand {
		p.Hand.Put(keys.NewKey(), c)
	}
	return p
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	out := *p
	out.Hand = p.Hand.Clone()
	out.Table = p.Table.Clone()
	return &out
}

func (p *Player) normalize() {
	if p.Hand == nil {
		p.Hand = board.NewHand()
	}
	if p.Table == nil {
		p.Table = board.NewTable()
	}
}

// Room is the complete shared state of one match.
type Room struct {
	ID            string         `json:"id"`
	Status        Status         `json:"status"`
	Turn          PlayerID       `json:"turn"`
	Player1       *Player        `json:"player1"`
	Player2       *Player        `json:"player2"`
	Deck          []cards.Card   `json:"deck"`
	DiscardPile   []cards.Card   `json:"discardPile"`
	PendingAction *PendingAction `json:"pendingAction"`
	Winner        PlayerID       `json:"winner,omitempty"`
	LastAction    string         `json:"lastAction,omitempty"`
	Keys          board.KeySeq   `json:"keySeq"`
}

// Player returns the seat's state, or nil for an empty seat.
func (r *Room) Player(id PlayerID) *Player {
	switch id {
	case Player1:
		return r.Player1
	case Player2:
		return r.Player2
	}
	return nil
}

// SetPlayer replaces a seat.
func (r *Room) SetPlayer(id PlayerID, p *Player) {
	switch id {
	case Player1:
		r.Player1 = p
	case Player2:
		r.Player2 = p
	}
}

// SeatOf returns the seat held by name.
func (r *Room) SeatOf(name string) (PlayerID, bool) {
	if r.Player1 != nil && r.Player1.Name == name {
		return Player1, true
	}
	if r.Player2 != nil && r.Player2.Name == name {
		return Player2, true
	}
	return "", false
}

// NewKey allocates the next monotonic hand/table key.
func (r *Room) NewKey() board.Key {
	return r.Keys.NewKey()
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	out := *r
	out.Player1 = r.Player1.Clone()
	out.Player2 = r.Player2.Clone()
	out.Deck = append([]cards.Card(nil), r.Deck...)
	out.DiscardPile = append([]cards.Card(nil), r.DiscardPile...)
	if r.PendingAction != nil {
		pending := *r.PendingAction
		out.PendingAction = &pending
	}
	return &out
}

// Normalize replaces missing collections with empty ones after decoding.
func (r *Room) Normalize() {
	if r.Player1 != nil {
		r.Player1.normalize()
	}
	if r.Player2 != nil {
		r.Player2.normalize()
	}
}
