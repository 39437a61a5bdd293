package rules

import (
	"math/rand/v2"
	"testing"

	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinLifecycle(t *testing.T) {
	rb := NewRulebook()
	rng := rand.New(rand.NewPCG(1, 2))

	created, err := rb.Join(nil, "room-9", "alice", cards.NewShuffledDeck(rng))
	require.NoError(t, err)
	assert.True(t, created.Created)
	assert.Equal(t, match.Player1, created.Seat)
	room := created.Room
	assert.Equal(t, match.StatusWaiting, room.Status)
	assert.Equal(t, match.Player1, room.Turn)
	assert.Equal(t, DefaultInitialHandSize, room.Player1.Hand.Len())
	assert.Len(t, room.Deck, cards.DeckSize-DefaultInitialHandSize)
	assert.Nil(t, room.Player2)

	joined, err := rb.Join(room, room.ID, "bob", nil)
	require.NoError(t, err)
	assert.Equal(t, match.Player2, joined.Seat)
	room = joined.Room
	assert.Equal(t, match.StatusReady, room.Status)
	assert.Equal(t, DefaultInitialHandSize, room.Player2.Hand.Len())
	assert.Len(t, room.Deck, cards.DeckSize-2*DefaultInitialHandSize)

	back, err := rb.Join(room, room.ID, "alice", nil)
	require.NoError(t, err)
	assert.True(t, back.Rejoined)
	assert.Equal(t, match.Player1, back.Seat)
	assert.Same(t, room, back.Room)

	_, err = rb.Join(room, room.ID, "carol", nil)
	require.Error(t, err)
	assert.Equal(t, KindIllegalMove, KindOf(err))

	_, err = rb.Join(room, room.ID, "", nil)
	assert.Error(t, err)
}

func TestRestartKeepsWins(t *testing.T) {
	rb := NewRulebook()
	rng := rand.New(rand.NewPCG(3, 4))
	f := newFixture()
	f.point(match.Player1, match.Player1, cards.FaceTen, cards.SuitHearts)
	f.room.Player1.Wins = 2
	f.room.Player2.Wins = 1
	f.room.Status = match.StatusGameOver
	f.room.Winner = match.Player1
	f.room.DiscardPile = []cards.Card{cards.New(cards.FaceAce, cards.SuitClubs)}
	seqBefore := f.room.Keys.Next

	res, err := rb.Restart(f.room, cards.NewShuffledDeck(rng))
	require.NoError(t, err)
	room := res.Room

	assert.Equal(t, match.StatusReady, room.Status)
	assert.Equal(t, match.Player1, room.Turn)
	assert.Empty(t, room.Winner)
	assert.Nil(t, room.PendingAction)
	assert.Empty(t, room.DiscardPile)
	assert.Equal(t, DefaultInitialHandSize, room.Player1.Hand.Len())
	assert.Equal(t, DefaultRestartSecondHandSize, room.Player2.Hand.Len())
	assert.Len(t, room.Deck, cards.DeckSize-DefaultInitialHandSize-DefaultRestartSecondHandSize)
	assert.Equal(t, 0, room.Player1.Table.Len())
	assert.Equal(t, 0, room.Player1.Score)
	assert.Equal(t, 2, room.Player1.Wins)
	assert.Equal(t, 1, room.Player2.Wins)
	assert.Greater(t, room.Keys.Next, seqBefore, "keys keep increasing across games")
}

func TestRestartNeedsBothPlayers(t *testing.T) {
	f := newFixture()
	f.room.Player2 = nil
	_, err := NewRulebook().Restart(f.room, cards.BuildDeck())
	assert.Equal(t, KindIllegalMove, KindOf(err))
}
