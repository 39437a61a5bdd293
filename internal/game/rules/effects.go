package rules

import (
	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// Outcome is what resolving a one-off did to the turn.
type Outcome struct {
	// KeepTurn is set by the Seven: the source plays again.
	KeepTurn bool
	// Deferred is non-empty when the effect continues in a sub-flow
	// (fishing for the Three, forced discards for the Four).
	Deferred match.Status
	// Fizzled is set when a targeted effect lost its target before resolving.
	Fizzled bool
}

// TargetRequirement describes what a targeted one-off may aim at.
type TargetRequirement func(room *match.Room, source match.PlayerID, target board.Key) LegalityResult

// effectTargets holds the requirements for the faces that take a target.
var effectTargets = map[cards.Face]TargetRequirement{
	cards.FaceTwo:  permanentTarget,
	cards.FaceNine: anyTableTarget,
}

func permanentTarget(room *match.Room, _ match.PlayerID, target board.Key) LegalityResult {
	_, entry, ok := Locate(room, target)
	if !ok {
		return Stale("target not on the table", "target", string(target))
	}
	if !entry.Face.IsPermanent() {
		return Illegal("a two only destroys permanents (J, Q, K, 8)", "target", entry.ID())
	}
	return Legal()
}

func anyTableTarget(room *match.Room, _ match.PlayerID, target board.Key) LegalityResult {
	if _, _, ok := Locate(room, target); !ok {
		return Stale("target not on the table", "target", string(target))
	}
	return Legal()
}

// CheckEffectTarget validates the target of a one-off at play time.
func CheckEffectTarget(room *match.Room, face cards.Face, source match.PlayerID, target board.Key) LegalityResult {
	req, ok := effectTargets[face]
	if !ok {
		return Legal()
	}
	if target == "" {
		return Illegal("effect needs a target", "face", string(face))
	}
	return req(room, source, target)
}

// resolveEffect applies the one-off described by pending to the working room.
func (r *resolution) resolveEffect(pending *match.PendingAction) Outcome {
	face, ok := pending.Type.Face()
	if !ok {
		return Outcome{}
	}
	source := pending.Source

	if req, needsTarget := effectTargets[face]; needsTarget {
		if res := req(r.room, source, pending.TargetID); !res.Legal {
			r.emit(NewEvent(EventEffectFizzled, string(source), string(face), string(pending.TargetID)))
			return Outcome{Fizzled: true}
		}
	}

	var out Outcome
	switch face {
	case cards.FaceAce:
		r.destroyAllPoints()
	case cards.FaceTwo:
		r.destroyPermanent(pending.TargetID)
	case cards.FaceThree:
		out.Deferred = match.StatusWaitingFishing3
	case cards.FaceFour:
		out.Deferred = match.StatusWaitingDiscard4
	case cards.FaceFive:
		r.drawFront(source, 2)
	case cards.FaceSix:
		r.destroyAllPermanents()
	case cards.FaceSeven:
		r.drawBack(source, 1)
		out.KeepTurn = true
	case cards.FaceNine:
		r.retreat(pending.TargetID)
	}
	if out.Deferred == "" {
		r.emit(NewEvent(EventEffectResolved, string(source), string(face), string(pending.TargetID)))
	}
	return out
}

// drawFront moves up to n cards from the front of the deck into the player's hand.
// Effect draws ignore the hand limit.
func (r *resolution) drawFront(player match.PlayerID, n int) {
	dealt, rest := cards.Deal(r.room.Deck, n)
	r.room.Deck = rest
	for _, c := range dealt {
		r.hand(player).Put(r.room.NewKey(), c)
	}
	r.emit(NewEventWithAmount(EventDrewCard, string(player), len(dealt)))
}

// drawBack pops up to n cards from the end of the deck into the player's hand.
func (r *resolution) drawBack(player match.PlayerID, n int) int {
	drawn := 0
	for ; drawn < n && len(r.room.Deck) > 0; drawn++ {
		last := len(r.room.Deck) - 1
		c := r.room.Deck[last]
		r.room.Deck = r.room.Deck[:last]
		r.hand(player).Put(r.room.NewKey(), c)
	}
	r.emit(NewEventWithAmount(EventDrewCard, string(player), drawn))
	return drawn
}
