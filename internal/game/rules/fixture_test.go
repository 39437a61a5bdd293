package rules

import (
	"testing"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/stretchr/testify/require"
)

// fixture is a ready room with empty hands and tables; tests add cards explicitly.
type fixture struct {
	room *match.Room
	rb   *Rulebook
}

func newFixture() *fixture {
	room := &match.Room{ID: "room-1", Status: match.StatusReady, Turn: match.Player1}
	room.Player1 = match.NewPlayer("alice", nil, &room.Keys)
	room.Player2 = match.NewPlayer("bob", nil, &room.Keys)
	room.Deck = []cards.Card{
		cards.New(cards.FaceThree, cards.SuitClubs),
		cards.New(cards.FaceFour, cards.SuitClubs),
		cards.New(cards.FaceFive, cards.SuitClubs),
	}
	return &fixture{room: room, rb: NewRulebook()}
}

func (f *fixture) hand(seat match.PlayerID, face cards.Face, suit cards.Suit) board.Key {
	key := f.room.NewKey()
	f.room.Player(seat).Hand.Put(key, cards.New(face, suit))
	return key
}

// point places a card on seat's table that was originally put down by owner.
func (f *fixture) point(seat, owner match.PlayerID, face cards.Face, suit cards.Suit) board.Key {
	key := f.room.NewKey()
	f.room.Player(seat).Table.Place(key, cards.New(face, suit), owner)
	return key
}

func (f *fixture) jack(seat, owner match.PlayerID, suit cards.Suit, point board.Key) board.Key {
	key := f.room.NewKey()
	if err := f.room.Player(seat).Table.Attach(key, cards.New(cards.FaceJack, suit), owner, point); err != nil {
		panic(err)
	}
	return key
}

func (f *fixture) apply(t *testing.T, cmd match.Command) *Result {
	t.Helper()
	res, err := f.rb.Apply(f.room, cmd)
	require.NoError(t, err, "command %s", cmd)
	f.room = res.Room
	return res
}

func (f *fixture) reject(t *testing.T, cmd match.Command) *Rejection {
	t.Helper()
	before := f.room.Clone()
	_, err := f.rb.Apply(f.room, cmd)
	require.Error(t, err, "command %s", cmd)
	rej, ok := AsRejection(err)
	require.True(t, ok)
	require.Empty(t, match.Diff(before, f.room), "rejected move must not mutate the room")
	return rej
}

// oneOff plays an effect card for source and has the defender allow it.
func (f *fixture) oneOff(t *testing.T, source match.PlayerID, card, target board.Key) *Result {
	t.Helper()
	f.apply(t, match.Command{Kind: match.MovePlayEffect, Player: source, Card: card, Target: target})
	require.Equal(t, match.StatusCounterOpportunity, f.room.Status)
	return f.apply(t, match.Command{Kind: match.MoveAllow, Player: source.Opponent()})
}

func (f *fixture) controller(t *testing.T, key board.Key) match.PlayerID {
	t.Helper()
	seat, ok := Controller(f.room, key)
	require.True(t, ok, "card %s not on any table", key)
	return seat
}
