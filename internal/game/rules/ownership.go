package rules

import (
	"fmt"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// resolution is a working copy of a room being mutated by one move, plus the
// events the mutation produced.
type resolution struct {
	room   *match.Room
	events []Event
	// broken is the first inconsistency found while mutating; Apply refuses to
	// commit when it is set.
	broken *Rejection
}

func (r *resolution) emit(e Event) {
	e.RoomID = r.room.ID
	r.events = append(r.events, e)
}

func (r *resolution) discard(c cards.Card) {
	r.room.DiscardPile = append(r.room.DiscardPile, c)
}

func (r *resolution) table(p match.PlayerID) *board.Table {
	return r.room.Player(p).Table
}

func (r *resolution) hand(p match.PlayerID) *board.Hand {
	return r.room.Player(p).Hand
}

// Locate finds which table holds key.
func Locate(room *match.Room, key board.Key) (match.PlayerID, board.Entry, bool) {
	for _, seat := range []match.PlayerID{match.Player1, match.Player2} {
		p := room.Player(seat)
		if p == nil {
			continue
		}
		if entry, ok := p.Table.Get(key); ok {
			return seat, entry, true
		}
	}
	return "", board.Entry{}, false
}

// Controller returns the seat whose table physically holds the point card at key.
func Controller(room *match.Room, key board.Key) (match.PlayerID, bool) {
	seat, _, ok := Locate(room, key)
	return seat, ok
}

// steal moves the point card behind target, together with every Jack already
// stacked on it, to the thief's table and stacks the new Jack on top.
func (r *resolution) steal(thief match.PlayerID, jack cards.Card, target board.Key) error {
	victim := thief.Opponent()
	victimTable := r.table(victim)
	root, ok := victimTable.Root(target)
	if !ok {
		return fmt.Errorf("target %s has no point card", target)
	}
	point, _ := victimTable.Get(root)
	if point.OriginalOwner == "" {
		victimTable.SetOriginalOwner(root, victim)
	}
	if err := victimTable.MoveChain(root, r.table(thief)); err != nil {
		return err
	}
	if err := r.table(thief).Attach(r.room.NewKey(), jack, thief, root); err != nil {
		return err
	}
	r.emit(NewEvent(EventStolen, string(thief), point.ID(), string(root)))
	return nil
}

// transfer moves a point card and its chain between tables when control changes.
func (r *resolution) transfer(from, to match.PlayerID, point board.Key) {
	if from == to || !to.Valid() || r.room.Player(to) == nil {
		return
	}
	if err := r.table(from).MoveChain(point, r.table(to)); err != nil {
		if r.broken == nil {
			r.broken = Reject(KindInvariant, fmt.Sprintf("control of %s cannot pass to %s: %v", point, to, err),
				"card", string(point), "from", string(from), "to", string(to))
		}
		return
	}
	r.emit(NewEvent(EventControlChanged, string(to), "", string(point)))
}

// destroyPermanent discards a single J/Q/K/8 (the Two). When the card was a Jack
// holding a point card, control passes to the owner of the most recently played
// Jack left on the chain, or back to the point card's original owner if none remain.
func (r *resolution) destroyPermanent(target board.Key) {
	holder, entry, ok := Locate(r.room, target)
	if !ok {
		return
	}
	table := r.table(holder)
	table.Remove(target)
	r.discard(entry.Card)
	r.emit(NewEvent(EventDestroyed, string(holder), entry.ID(), string(target)))

	if !entry.IsAttachedJack() {
		return
	}
	point, ok := table.Get(entry.Stealing)
	if !ok {
		return
	}
	next := point.OriginalOwner
	if _, top, found := table.TopJack(entry.Stealing); found {
		next = top.Owner
	}
	r.transfer(holder, next, entry.Stealing)
}

// destroyAllPoints discards every point card on both tables (the Ace). Permanents
// stay; Jacks that held a discarded card remain on the table detached.
func (r *resolution) destroyAllPoints() {
	for _, seat := range []match.PlayerID{match.Player1, match.Player2} {
		table := r.table(seat)
		for _, key := range table.Keys() {
			entry, _ := table.Get(key)
			if !entry.Face.IsPoint() {
				continue
			}
			for _, jack := range table.Chain(key) {
				r.emit(NewEvent(EventJackDetached, string(seat), "", string(jack)))
			}
			table.Remove(key)
			r.discard(entry.Card)
			r.emit(NewEvent(EventDestroyed, string(seat), entry.ID(), string(key)))
		}
	}
}

// destroyAllPermanents discards every J/Q/K/8 on both tables (the Six). Point cards
// that were held by a Jack and sit away from their original owner go back to them.
func (r *resolution) destroyAllPermanents() {
	type stolen struct {
		holder match.PlayerID
		key    board.Key
		owner  match.PlayerID
	}
	var reverts []stolen
	for _, seat := range []match.PlayerID{match.Player1, match.Player2} {
		table := r.table(seat)
		table.Each(func(key board.Key, e board.Entry) bool {
			if e.Face.IsPoint() && len(table.Chain(key)) > 0 && e.OriginalOwner != "" && e.OriginalOwner != seat {
				reverts = append(reverts, stolen{holder: seat, key: key, owner: e.OriginalOwner})
			}
			return true
		})
	}

	for _, seat := range []match.PlayerID{match.Player1, match.Player2} {
		table := r.table(seat)
		for _, key := range table.Keys() {
			entry, _ := table.Get(key)
			if !entry.Face.IsPermanent() {
				continue
			}
			table.Remove(key)
			r.discard(entry.Card)
			r.emit(NewEvent(EventDestroyed, string(seat), entry.ID(), string(key)))
		}
	}

	for _, s := range reverts {
		r.transfer(s.holder, s.owner, s.key)
	}
}

// retreat returns a table card to its controller's hand (the Nine). A Jack holding
// a point card goes to the thief's hand while the point card goes back to its
// original owner's table; any other Jacks on that chain stay behind detached.
// Unlike the Two, the lower Jacks never take control, even when the bounced Jack
// belonged to the original owner.
func (r *resolution) retreat(target board.Key) {
	holder, entry, ok := Locate(r.room, target)
	if !ok {
		return
	}
	table := r.table(holder)

	if entry.IsAttachedJack() {
		pointKey := entry.Stealing
		table.Remove(target)
		r.hand(holder).Put(r.room.NewKey(), entry.Card)
		r.emit(NewEvent(EventReturnedHand, string(holder), entry.ID(), string(target)))

		point, ok := table.Get(pointKey)
		if !ok {
			return
		}
		for _, jack := range table.DetachAll(pointKey) {
			r.emit(NewEvent(EventJackDetached, string(holder), "", string(jack)))
		}
		owner := point.OriginalOwner
		if owner == "" || owner == holder || r.room.Player(owner) == nil {
			return
		}
		table.Remove(pointKey)
		r.table(owner).Place(pointKey, point.Card, owner)
		r.emit(NewEvent(EventControlChanged, string(owner), point.ID(), string(pointKey)))
		return
	}

	for _, jack := range table.Chain(target) {
		r.emit(NewEvent(EventJackDetached, string(holder), "", string(jack)))
	}
	table.Remove(target)
	r.hand(holder).Put(r.room.NewKey(), entry.Card)
	r.emit(NewEvent(EventReturnedHand, string(holder), entry.ID(), string(target)))
}
