package match

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
)

// Field paths addressable by a partial room update.
const (
	PathStatus        = "status"
	PathTurn          = "turn"
	PathPlayer1       = "player1"
	PathPlayer2       = "player2"
	PathDeck          = "deck"
	PathDiscardPile   = "discardPile"
	PathPendingAction = "pendingAction"
	PathWinner        = "winner"
	PathLastAction    = "lastAction"
	PathKeySeq        = "keySeq"
)

// Fields is a partial update: field path to new value. A nil value clears the field.
type Fields map[string]any

// Paths returns the field paths in sorted order.
func (f Fields) Paths() []string {
	paths := make([]string, 0, len(f))
	for p := range f {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Diff returns the field groups that differ between prev and next.
func Diff(prev, next *Room) Fields {
	fields := make(Fields)
	if prev == nil {
		prev = &Room{}
	}
	if prev.Status != next.Status {
		fields[PathStatus] = next.Status
	}
	if prev.Turn != next.Turn {
		fields[PathTurn] = next.Turn
	}
	if !samePlayer(prev.Player1, next.Player1) {
		fields[PathPlayer1] = next.Player1
	}
	if !samePlayer(prev.Player2, next.Player2) {
		fields[PathPlayer2] = next.Player2
	}
	if !sameCards(prev.Deck, next.Deck) {
		fields[PathDeck] = next.Deck
	}
	if !sameCards(prev.DiscardPile, next.DiscardPile) {
		fields[PathDiscardPile] = next.DiscardPile
	}
	if !reflect.DeepEqual(prev.PendingAction, next.PendingAction) {
		fields[PathPendingAction] = next.PendingAction
	}
	if prev.Winner != next.Winner {
		fields[PathWinner] = next.Winner
	}
	if prev.LastAction != next.LastAction {
		fields[PathLastAction] = next.LastAction
	}
	if prev.Keys != next.Keys {
		fields[PathKeySeq] = next.Keys
	}
	return fields
}

// sameCards treats nil and empty piles as equal.
func sameCards(a, b []cards.Card) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func samePlayer(a, b *Player) bool {
	if a == nil || b == nil {
		return a == b
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}

// Apply writes the fields onto the room. Values may be the typed values produced
// by Diff or their decoded JSON form.
func (f Fields) Apply(r *Room) error {
	for _, path := range f.Paths() {
		value := f[path]
		var err error
		switch path {
		case PathStatus:
			err = assign(value, &r.Status)
		case PathTurn:
			err = assign(value, &r.Turn)
		case PathPlayer1:
			r.Player1 = nil
			err = assign(value, &r.Player1)
		case PathPlayer2:
			r.Player2 = nil
			err = assign(value, &r.Player2)
		case PathDeck:
			r.Deck = nil
			err = assign(value, &r.Deck)
		case PathDiscardPile:
			r.DiscardPile = nil
			err = assign(value, &r.DiscardPile)
		case PathPendingAction:
			r.PendingAction = nil
			err = assign(value, &r.PendingAction)
		case PathWinner:
			err = assign(value, &r.Winner)
		case PathLastAction:
			err = assign(value, &r.LastAction)
		case PathKeySeq:
			err = assign(value, &r.Keys)
		default:
			return fmt.Errorf("unknown room field %q", path)
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", path, err)
		}
	}
	r.Normalize()
	return nil
}

// assign copies value into dst. Values of the exact destination type are copied
// deeply; anything else goes through a JSON round trip.
func assign(value any, dst any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case Status:
		if d, ok := dst.(*Status); ok {
			*d = v
			return nil
		}
	case PlayerID:
		if d, ok := dst.(*PlayerID); ok {
			*d = v
			return nil
		}
	case string:
		if d, ok := dst.(*string); ok {
			*d = v
			return nil
		}
	case *Player:
		if d, ok := dst.(**Player); ok {
			*d = v.Clone()
			return nil
		}
	case []cards.Card:
		if d, ok := dst.(*[]cards.Card); ok {
			*d = append([]cards.Card(nil), v...)
			return nil
		}
	case *PendingAction:
		if d, ok := dst.(**PendingAction); ok {
			if v != nil {
				pending := *v
				*d = &pending
			}
			return nil
		}
	case board.KeySeq:
		if d, ok := dst.(*board.KeySeq); ok {
			*d = v
			return nil
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
