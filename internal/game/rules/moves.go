package rules

import (
	"fmt"
	"strconv"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

const (
	DefaultMaxHandSize     = 8
	DefaultInitialHandSize = 5
	// DefaultRestartSecondHandSize is the second player's hand after a restart.
	DefaultRestartSecondHandSize = 6
	// ForcedDiscards is how many cards a Four makes the victim discard.
	ForcedDiscards = 2
)

// Rulebook validates and applies moves. It holds no room state; every call is a
// pure function of the room snapshot it is given.
type Rulebook struct {
	MaxHandSize           int
	InitialHandSize       int
	RestartSecondHandSize int
}

// NewRulebook returns a rulebook with the standard sizes.
func NewRulebook() *Rulebook {
	return &Rulebook{
		MaxHandSize:           DefaultMaxHandSize,
		InitialHandSize:       DefaultInitialHandSize,
		RestartSecondHandSize: DefaultRestartSecondHandSize,
	}
}

// Result is the next room state produced by an accepted move.
type Result struct {
	Room     *match.Room
	Events   []Event
	KeepTurn bool
	// Winner is set when this move ended the game.
	Winner match.PlayerID
}

// Check validates cmd against room without mutating anything.
func (rb *Rulebook) Check(room *match.Room, cmd match.Command) LegalityResult {
	if room == nil {
		return Broken("room not loaded")
	}
	if res := CheckTurn(room, cmd); !res.Legal {
		return res
	}
	actor := room.Player(cmd.Player)
	if actor == nil || room.Player(cmd.Player.Opponent()) == nil {
		return Illegal("waiting for an opponent")
	}

	switch cmd.Kind {
	case match.MoveDraw:
		if len(room.Deck) == 0 {
			return Legal()
		}
		if actor.Hand.Len() >= rb.MaxHandSize {
			return Illegal("hand is full", "max", strconv.Itoa(rb.MaxHandSize))
		}
		return Legal()

	case match.MovePlayPoint:
		card, res := handCard(actor, cmd.Card)
		if !res.Legal {
			return res
		}
		if card.Face == cards.FaceJack {
			return Illegal("a jack must be played onto a point card", "card", card.ID())
		}
		return Legal()

	case match.MoveScuttle:
		return checkScuttle(room, actor, cmd)

	case match.MovePlayEffect:
		card, res := handCard(actor, cmd.Card)
		if !res.Legal {
			return res
		}
		if !card.Face.HasOneOff() {
			return Illegal("card has no one-off effect", "card", card.ID())
		}
		return CheckEffectTarget(room, card.Face, cmd.Player, cmd.Target)

	case match.MovePlayJack:
		return checkSteal(room, actor, cmd)

	case match.MoveCounter:
		card, res := handCard(actor, cmd.Card)
		if !res.Legal {
			return res
		}
		if card.Face != cards.FaceTwo {
			return Illegal("only a two can counter", "card", card.ID())
		}
		return Legal()

	case match.MoveAllow:
		return Legal()

	case match.MoveFish:
		if cmd.Index < 0 || cmd.Index >= len(room.DiscardPile) {
			return Illegal("no such card in the discard pile", "index", strconv.Itoa(cmd.Index))
		}
		return Legal()

	case match.MoveDiscard:
		_, res := handCard(actor, cmd.Card)
		return res
	}
	return Illegal("unknown move", "move", string(cmd.Kind))
}

func handCard(p *match.Player, key board.Key) (cards.Card, LegalityResult) {
	card, ok := p.Hand.Get(key)
	if !ok {
		return cards.Card{}, Stale("card not in hand", "card", string(key))
	}
	return card, Legal()
}

func checkScuttle(room *match.Room, actor *match.Player, cmd match.Command) LegalityResult {
	attacker, res := handCard(actor, cmd.Card)
	if !res.Legal {
		return res
	}
	holder, defender, ok := Locate(room, cmd.Target)
	if !ok {
		return Stale("target not on the table", "target", string(cmd.Target))
	}
	if holder == cmd.Player {
		return Illegal("can only scuttle the opponent's cards", "target", defender.ID())
	}
	attack, defense := cards.ScuttlePower(attacker), cards.ScuttlePower(defender.Card)
	if attack == 0 || defense == 0 {
		return Illegal("permanents cannot scuttle or be scuttled", "card", attacker.ID(), "target", defender.ID())
	}
	if attack <= defense {
		return Illegal("card is too weak to scuttle", "attack", strconv.Itoa(attack), "defense", strconv.Itoa(defense))
	}
	return Legal()
}

func checkSteal(room *match.Room, actor *match.Player, cmd match.Command) LegalityResult {
	jack, res := handCard(actor, cmd.Card)
	if !res.Legal {
		return res
	}
	if jack.Face != cards.FaceJack {
		return Illegal("only a jack can steal", "card", jack.ID())
	}
	victim := room.Player(cmd.Player.Opponent())
	if victim.Table.HasFace(cards.FaceQueen) {
		return Illegal("the opponent's queen protects their cards")
	}
	holder, _, ok := Locate(room, cmd.Target)
	if !ok {
		return Stale("target not on the table", "target", string(cmd.Target))
	}
	if holder == cmd.Player {
		return Illegal("can only steal from the opponent", "target", string(cmd.Target))
	}
	root, ok := victim.Table.Root(cmd.Target)
	if !ok {
		return Illegal("a jack only steals point cards (A-10)", "target", string(cmd.Target))
	}
	if point, _ := victim.Table.Get(root); !point.Face.IsPoint() {
		return Illegal("a jack only steals point cards (A-10)", "target", point.ID())
	}
	return Legal()
}

// Apply validates cmd and returns the next room. The input room is never modified.
func (rb *Rulebook) Apply(room *match.Room, cmd match.Command) (*Result, error) {
	if res := rb.Check(room, cmd); !res.Legal {
		return nil, res.Err()
	}
	r := &resolution{room: room.Clone()}
	next := r.room
	actor := next.Player(cmd.Player)
	result := &Result{Room: next}

	switch cmd.Kind {
	case match.MoveDraw:
		if len(next.Deck) == 0 {
			r.emit(NewEvent(EventDeckEmpty, string(cmd.Player), "", ""))
			next.LastAction = fmt.Sprintf("%s tried to draw from an empty deck", actor.Name)
		} else {
			r.drawBack(cmd.Player, 1)
			next.LastAction = fmt.Sprintf("%s drew a card", actor.Name)
		}
		r.emit(EndTurn(next, false))

	case match.MovePlayPoint:
		card, _ := actor.Hand.Remove(cmd.Card)
		actor.Table.Place(next.NewKey(), card, cmd.Player)
		if card.Face.IsPoint() {
			r.emit(NewEvent(EventPointPlayed, string(cmd.Player), card.ID(), ""))
			next.LastAction = fmt.Sprintf("%s played %s for %d points", actor.Name, card.ID(), card.PointValue())
		} else {
			r.emit(NewEvent(EventPermanentPlay, string(cmd.Player), card.ID(), ""))
			next.LastAction = fmt.Sprintf("%s played %s as a permanent", actor.Name, card.ID())
		}
		r.emit(EndTurn(next, false))

	case match.MoveScuttle:
		attacker, _ := actor.Hand.Remove(cmd.Card)
		holder, _, _ := Locate(next, cmd.Target)
		defender, _ := r.table(holder).Remove(cmd.Target)
		r.discard(attacker)
		r.discard(defender.Card)
		r.emit(NewEvent(EventScuttled, string(cmd.Player), attacker.ID(), string(cmd.Target)))
		next.LastAction = fmt.Sprintf("%s scuttled %s with %s", actor.Name, defender.ID(), attacker.ID())
		r.emit(EndTurn(next, false))

	case match.MovePlayEffect:
		card, _ := actor.Hand.Remove(cmd.Card)
		r.discard(card)
		next.PendingAction = &match.PendingAction{
			Type:     match.EffectKind(card.Face),
			Source:   cmd.Player,
			TargetID: cmd.Target,
		}
		next.Status = match.StatusCounterOpportunity
		r.emit(NewEvent(EventOneOffPlayed, string(cmd.Player), card.ID(), string(cmd.Target)))
		next.LastAction = fmt.Sprintf("%s played %s as a one-off", actor.Name, card.ID())

	case match.MovePlayJack:
		jack, _ := actor.Hand.Remove(cmd.Card)
		if err := r.steal(cmd.Player, jack, cmd.Target); err != nil {
			return nil, Reject(KindStaleTarget, err.Error(), "target", string(cmd.Target))
		}
		next.LastAction = fmt.Sprintf("%s stole a card with %s", actor.Name, jack.ID())
		r.emit(EndTurn(next, false))

	case match.MoveCounter:
		two, _ := actor.Hand.Remove(cmd.Card)
		r.discard(two)
		r.emit(NewEvent(EventCountered, string(cmd.Player), two.ID(), string(next.PendingAction.Type)))
		next.LastAction = fmt.Sprintf("%s countered with %s", actor.Name, two.ID())
		r.emit(GiveTurn(next, cmd.Player))

	case match.MoveAllow:
		result.KeepTurn = rb.allow(r, actor)

	case match.MoveFish:
		card := next.DiscardPile[cmd.Index]
		next.DiscardPile = append(next.DiscardPile[:cmd.Index], next.DiscardPile[cmd.Index+1:]...)
		actor.Hand.Put(next.NewKey(), card)
		r.emit(NewEvent(EventFished, string(cmd.Player), card.ID(), ""))
		r.emit(NewEvent(EventEffectResolved, string(cmd.Player), string(cards.FaceThree), ""))
		next.LastAction = fmt.Sprintf("%s fished %s from the discard pile", actor.Name, card.ID())
		r.emit(EndTurn(next, false))

	case match.MoveDiscard:
		card, _ := actor.Hand.Remove(cmd.Card)
		r.discard(card)
		next.PendingAction.DiscardCount++
		r.emit(NewEvent(EventDiscarded, string(cmd.Player), card.ID(), ""))
		next.LastAction = fmt.Sprintf("%s discarded %s", actor.Name, card.ID())
		if next.PendingAction.DiscardCount >= ForcedDiscards || actor.Hand.Len() == 0 {
			r.emit(NewEvent(EventEffectResolved, string(next.PendingAction.Source), string(cards.FaceFour), ""))
			r.emit(GiveTurn(next, cmd.Player))
		}
	}

	if r.broken != nil {
		return nil, r.broken
	}
	UpdateScores(next)
	if winner, ended := Evaluate(next, cmd.Player); ended {
		result.Winner = winner
		r.emit(NewEvent(EventGameOver, string(winner), "", ""))
		next.LastAction = fmt.Sprintf("%s wins", next.Player(winner).Name)
	}
	result.Events = r.events
	return result, nil
}

// allow resolves the pending one-off after the defender declines to counter.
func (rb *Rulebook) allow(r *resolution, defender *match.Player) bool {
	next := r.room
	pending := *next.PendingAction
	face, _ := pending.Type.Face()
	r.emit(NewEvent(EventAllowed, string(pending.Source.Opponent()), string(face), ""))

	out := r.resolveEffect(&pending)
	switch out.Deferred {
	case match.StatusWaitingFishing3:
		next.Status = match.StatusWaitingFishing3
		next.PendingAction = &match.PendingAction{Type: match.PendingResolving3, Source: pending.Source}
		next.LastAction = fmt.Sprintf("%s let the three through", defender.Name)
		return false
	case match.StatusWaitingDiscard4:
		victim := pending.Source.Opponent()
		if next.Player(victim).Hand.Len() == 0 {
			r.emit(NewEvent(EventEffectResolved, string(pending.Source), string(face), ""))
			next.LastAction = fmt.Sprintf("%s had nothing to discard", defender.Name)
			r.emit(GiveTurn(next, victim))
			return false
		}
		next.Status = match.StatusWaitingDiscard4
		next.PendingAction = &match.PendingAction{
			Type:   match.PendingResolving4,
			Source: pending.Source,
			Victim: victim,
		}
		next.LastAction = fmt.Sprintf("%s must discard %d cards", defender.Name, ForcedDiscards)
		return false
	}

	if out.Fizzled {
		next.LastAction = fmt.Sprintf("the %s fizzled", face)
	} else {
		next.LastAction = fmt.Sprintf("the %s resolved", face)
	}
	next.Turn = pending.Source
	r.emit(EndTurn(next, out.KeepTurn))
	return out.KeepTurn
}
