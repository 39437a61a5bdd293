package match

import (
	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
)

// SeatView is one seat as seen by a particular viewer.
type SeatView struct {
	Seat      PlayerID     `json:"seat"`
	Name      string       `json:"name"`
	Hand      *board.Hand  `json:"hand,omitempty"`
	HandCount int          `json:"handCount"`
	Revealed  bool         `json:"revealed"`
	Table     *board.Table `json:"table"`
	Score     int          `json:"score"`
	Wins      int          `json:"wins"`
	Kings     int          `json:"kings"`
	Goal      int          `json:"goal"`
}

// View is the redacted room snapshot pushed to one player.
type View struct {
	RoomID        string         `json:"roomId"`
	Viewer        PlayerID       `json:"viewer"`
	Status        Status         `json:"status"`
	Turn          PlayerID       `json:"turn"`
	You           *SeatView      `json:"you,omitempty"`
	Opponent      *SeatView      `json:"opponent,omitempty"`
	DeckCount     int            `json:"deckCount"`
	DiscardPile   []cards.Card   `json:"discardPile"`
	PendingAction *PendingAction `json:"pendingAction,omitempty"`
	Winner        PlayerID       `json:"winner,omitempty"`
	LastAction    string         `json:"lastAction,omitempty"`
}

// ViewFor builds the viewer's snapshot. The opponent's hand is only included when
// the viewer has a Glass (8) on their own table; otherwise just its size is exposed.
func ViewFor(room *Room, viewer PlayerID) *View {
	v := &View{
		RoomID:      room.ID,
		Viewer:      viewer,
		Status:      room.Status,
		Turn:        room.Turn,
		DeckCount:   len(room.Deck),
		DiscardPile: append([]cards.Card(nil), room.DiscardPile...),
		Winner:      room.Winner,
		LastAction:  room.LastAction,
	}
	if room.PendingAction != nil {
		pending := *room.PendingAction
		v.PendingAction = &pending
	}

	own := room.Player(viewer)
	if own != nil {
		v.You = seatView(viewer, own, true)
	}
	if opp := room.Player(viewer.Opponent()); opp != nil {
		glass := own != nil && own.Table.HasFace(cards.FaceEight)
		v.Opponent = seatView(viewer.Opponent(), opp, glass)
	}
	return v
}

func seatView(seat PlayerID, p *Player, reveal bool) *SeatView {
	sv := &SeatView{
		Seat:      seat,
		Name:      p.Name,
		HandCount: p.Hand.Len(),
		Revealed:  reveal,
		Table:     p.Table.Clone(),
		Score:     p.Score,
		Wins:      p.Wins,
	}
	if reveal {
		sv.Hand = p.Hand.Clone()
	}
	return sv
}

// Board rebuilds the part of the room visible in v. Hidden hands are left empty and
// the deck is not filled in; it is meant for client-side target checks.
func (v *View) Board() *Room {
	room := &Room{ID: v.RoomID, Status: v.Status, Turn: v.Turn, Winner: v.Winner}
	for _, sv := range []*SeatView{v.You, v.Opponent} {
		if sv == nil {
			continue
		}
		p := &Player{Name: sv.Name, Hand: board.NewHand(), Table: board.NewTable(), Score: sv.Score, Wins: sv.Wins}
		if sv.Hand != nil {
			p.Hand = sv.Hand.Clone()
		}
		if sv.Table != nil {
			p.Table = sv.Table.Clone()
		}
		room.SetPlayer(sv.Seat, p)
	}
	return room
}
