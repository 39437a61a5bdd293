package rules

import (
	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
)

// Stats summarises a table for scoring.
type Stats struct {
	Points int `json:"points"`
	Kings  int `json:"kings"`
}

// TableStats sums point cards and counts kings. Jacks, queens and eights score nothing.
func TableStats(table *board.Table) Stats {
	var s Stats
	table.Each(func(_ board.Key, e board.Entry) bool {
		if e.Face == cards.FaceKing {
			s.Kings++
		}
		s.Points += e.PointValue()
		return true
	})
	return s
}

// WinningGoal is the point target for a player holding the given number of kings.
func WinningGoal(kings int) int {
	switch {
	case kings <= 0:
		return 21
	case kings == 1:
		return 14
	case kings == 2:
		return 10
	case kings == 3:
		return 7
	default:
		return 5
	}
}

// Goal returns the winning goal for the table's current kings.
func (s Stats) Goal() int {
	return WinningGoal(s.Kings)
}

// Reached reports whether the table's points meet its goal.
func (s Stats) Reached() bool {
	return s.Points >= s.Goal()
}
