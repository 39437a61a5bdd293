package rules

import (
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// UpdateScores mirrors each seat's table points into its score.
func UpdateScores(room *match.Room) {
	for _, seat := range []match.PlayerID{match.Player1, match.Player2} {
		if p := room.Player(seat); p != nil {
			p.Score = TableStats(p.Table).Points
		}
	}
}

// Evaluate checks the acting player first, then the opponent, and ends the game
// for the first one whose points reach their goal. It returns the winner, if any.
func Evaluate(room *match.Room, actor match.PlayerID) (match.PlayerID, bool) {
	if room.Status == match.StatusGameOver {
		return room.Winner, false
	}
	for _, seat := range []match.PlayerID{actor, actor.Opponent()} {
		p := room.Player(seat)
		if p == nil {
			continue
		}
		if TableStats(p.Table).Reached() {
			return seat, DeclareWinner(room, seat)
		}
	}
	return "", false
}

// DeclareWinner ends the game and credits the win exactly once. It reports false
// when the room was already over.
func DeclareWinner(room *match.Room, winner match.PlayerID) bool {
	if room.Status == match.StatusGameOver {
		return false
	}
	p := room.Player(winner)
	if p == nil {
		return false
	}
	room.Status = match.StatusGameOver
	room.Winner = winner
	room.PendingAction = nil
	p.Wins++
	return true
}
