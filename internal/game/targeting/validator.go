package targeting

import (
	"fmt"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// TargetValidator checks table targets against a room snapshot from one player's seat.
type TargetValidator struct {
	room  *match.Room
	actor match.PlayerID
}

// NewTargetValidator creates a validator for actor's moves in room.
func NewTargetValidator(room *match.Room, actor match.PlayerID) *TargetValidator {
	return &TargetValidator{room: room, actor: actor}
}

func (tv *TargetValidator) locate(key board.Key) (match.PlayerID, board.Entry, bool) {
	for _, seat := range []match.PlayerID{match.Player1, match.Player2} {
		p := tv.room.Player(seat)
		if p == nil {
			continue
		}
		if entry, ok := p.Table.Get(key); ok {
			return seat, entry, true
		}
	}
	return "", board.Entry{}, false
}

// ValidateTarget checks whether key satisfies requirement. attacker is only consulted
// for scuttles.
func (tv *TargetValidator) ValidateTarget(key board.Key, requirement TargetRequirement, attacker cards.Card) error {
	if tv == nil || tv.room == nil {
		return fmt.Errorf("target validator not initialized")
	}
	holder, entry, ok := tv.locate(key)
	if !ok {
		return fmt.Errorf("target %s not found on the table", key)
	}
	opponent := holder != tv.actor

	switch requirement.Type {
	case TargetStealable:
		if !opponent {
			return fmt.Errorf("target %s is on your own table", entry.ID())
		}
		if tv.room.Player(holder).Table.HasFace(cards.FaceQueen) {
			return fmt.Errorf("a queen protects %s", entry.ID())
		}
		root, ok := tv.room.Player(holder).Table.Root(key)
		if !ok {
			return fmt.Errorf("target %s is not a point card", entry.ID())
		}
		if point, _ := tv.room.Player(holder).Table.Get(root); !point.Face.IsPoint() {
			return fmt.Errorf("target %s is not a point card", point.ID())
		}
	case TargetScuttleable:
		if !opponent {
			return fmt.Errorf("target %s is on your own table", entry.ID())
		}
		defense := cards.ScuttlePower(entry.Card)
		if defense == 0 {
			return fmt.Errorf("target %s cannot be scuttled", entry.ID())
		}
		if cards.ScuttlePower(attacker) <= defense {
			return fmt.Errorf("%s is too weak to scuttle %s", attacker.ID(), entry.ID())
		}
	case TargetPermanent:
		if !entry.Face.IsPermanent() {
			return fmt.Errorf("target %s is not a permanent", entry.ID())
		}
	case TargetTableCard:
	default:
		return fmt.Errorf("unknown target type %s", requirement.Type)
	}
	return nil
}

// LegalTargets lists every table key that satisfies requirement, in creation order.
func (tv *TargetValidator) LegalTargets(requirement TargetRequirement, attacker cards.Card) []board.Key {
	var keys []board.Key
	for _, seat := range []match.PlayerID{match.Player1, match.Player2} {
		p := tv.room.Player(seat)
		if p == nil {
			continue
		}
		for _, key := range p.Table.Keys() {
			if tv.ValidateTarget(key, requirement, attacker) == nil {
				keys = append(keys, key)
			}
		}
	}
	return keys
}
