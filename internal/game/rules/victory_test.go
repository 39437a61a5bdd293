package rules

import (
	"encoding/json"
	"testing"

	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReachingGoalEndsGameOnce(t *testing.T) {
	f := newFixture()
	f.point(match.Player1, match.Player1, cards.FaceTen, cards.SuitSpades)
	f.point(match.Player1, match.Player1, cards.FaceNine, cards.SuitSpades)
	two := f.hand(match.Player1, cards.FaceTwo, cards.SuitHearts)
	f.room.Player1.Wins = 3

	res := f.apply(t, match.Command{Kind: match.MovePlayPoint, Player: match.Player1, Card: two})

	assert.Equal(t, match.Player1, res.Winner)
	assert.Equal(t, match.StatusGameOver, f.room.Status)
	assert.Equal(t, match.Player1, f.room.Winner)
	assert.Equal(t, 4, f.room.Player1.Wins)
	assert.Equal(t, 21, f.room.Player1.Score)
	assert.Equal(t, EventGameOver, res.Events[len(res.Events)-1].Type)

	// observing the same snapshot again must not credit a second win
	data, err := json.Marshal(f.room)
	require.NoError(t, err)
	var again match.Room
	require.NoError(t, json.Unmarshal(data, &again))
	again.Normalize()
	_, ended := Evaluate(&again, match.Player1)
	assert.False(t, ended)
	assert.False(t, DeclareWinner(&again, match.Player1))
	assert.Equal(t, 4, again.Player1.Wins)

	rej := f.reject(t, match.Command{Kind: match.MoveDraw, Player: match.Player2})
	assert.Equal(t, KindIllegalMove, rej.Kind)
}

func TestKingsLowerTheGoal(t *testing.T) {
	f := newFixture()
	f.point(match.Player1, match.Player1, cards.FaceKing, cards.SuitSpades)
	f.point(match.Player1, match.Player1, cards.FaceKing, cards.SuitHearts)
	f.point(match.Player1, match.Player1, cards.FaceSix, cards.SuitHearts)
	four := f.hand(match.Player1, cards.FaceFour, cards.SuitClubs)

	f.apply(t, match.Command{Kind: match.MovePlayPoint, Player: match.Player1, Card: four})

	assert.Equal(t, match.StatusGameOver, f.room.Status)
	assert.Equal(t, match.Player1, f.room.Winner)
}

func TestOpponentCanWinOnActorsMove(t *testing.T) {
	f := newFixture()
	f.point(match.Player2, match.Player2, cards.FaceTen, cards.SuitSpades)
	f.point(match.Player2, match.Player2, cards.FaceNine, cards.SuitSpades)
	stolen := f.point(match.Player1, match.Player2, cards.FaceTwo, cards.SuitDiamonds)
	jack := f.jack(match.Player1, match.Player1, cards.SuitClubs, stolen)
	nine := f.hand(match.Player1, cards.FaceNine, cards.SuitHearts)

	f.oneOff(t, match.Player1, nine, jack)

	assert.Equal(t, match.StatusGameOver, f.room.Status)
	assert.Equal(t, match.Player2, f.room.Winner)
	assert.Equal(t, 1, f.room.Player2.Wins)
	assert.Equal(t, 0, f.room.Player1.Wins)
}

func TestEvaluateChecksActorFirst(t *testing.T) {
	f := newFixture()
	f.point(match.Player1, match.Player1, cards.FaceTen, cards.SuitSpades)
	f.point(match.Player1, match.Player1, cards.FaceTen, cards.SuitHearts)
	f.point(match.Player1, match.Player1, cards.FaceAce, cards.SuitHearts)
	f.point(match.Player2, match.Player2, cards.FaceTen, cards.SuitClubs)
	f.point(match.Player2, match.Player2, cards.FaceTen, cards.SuitDiamonds)
	f.point(match.Player2, match.Player2, cards.FaceAce, cards.SuitClubs)

	winner, ended := Evaluate(f.room, match.Player2)
	require.True(t, ended)
	assert.Equal(t, match.Player2, winner)
	assert.Equal(t, 0, f.room.Player1.Wins)
}
