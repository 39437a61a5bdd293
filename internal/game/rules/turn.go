package rules

import (
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// allowedMoves lists the moves each status accepts.
var allowedMoves = map[match.Status][]match.MoveKind{
	match.StatusReady: {
		match.MoveDraw,
		match.MovePlayPoint,
		match.MoveScuttle,
		match.MovePlayEffect,
		match.MovePlayJack,
	},
	match.StatusCounterOpportunity: {match.MoveCounter, match.MoveAllow},
	match.StatusWaitingFishing3:    {match.MoveFish},
	match.StatusWaitingDiscard4:    {match.MoveDiscard},
}

// Allowed reports whether status accepts the move kind at all.
func Allowed(status match.Status, kind match.MoveKind) bool {
	for _, k := range allowedMoves[status] {
		if k == kind {
			return true
		}
	}
	return false
}

// ExpectedActor returns the seat entitled to make a move of the given kind in the
// room's current status. In ready that is the turn holder. The counter window
// belongs to the defender, which is the only out-of-turn action in the game.
func ExpectedActor(room *match.Room, kind match.MoveKind) (match.PlayerID, LegalityResult) {
	switch room.Status {
	case match.StatusReady:
		return room.Turn, Legal()
	case match.StatusCounterOpportunity, match.StatusWaitingFishing3, match.StatusWaitingDiscard4:
		pending := room.PendingAction
		if pending == nil {
			return "", Broken("no pending action", "status", room.Status.String())
		}
		switch kind {
		case match.MoveCounter, match.MoveAllow:
			return pending.Source.Opponent(), Legal()
		case match.MoveFish:
			return pending.Source, Legal()
		case match.MoveDiscard:
			return pending.Victim, Legal()
		}
	}
	return "", Illegal("move not accepted in this state", "status", room.Status.String(), "move", string(kind))
}

// CheckTurn validates that cmd is acceptable in the room's status and comes from
// the right seat.
func CheckTurn(room *match.Room, cmd match.Command) LegalityResult {
	if !cmd.Player.Valid() {
		return Illegal("unknown player", "player", string(cmd.Player))
	}
	if room.Status == match.StatusGameOver {
		return Illegal("game is over", "winner", string(room.Winner))
	}
	if room.Status == match.StatusWaiting {
		return Illegal("waiting for an opponent")
	}
	if !Allowed(room.Status, cmd.Kind) {
		return Illegal("move not accepted in this state", "status", room.Status.String(), "move", string(cmd.Kind))
	}
	actor, res := ExpectedActor(room, cmd.Kind)
	if !res.Legal {
		return res
	}
	if actor != cmd.Player {
		if room.Status == match.StatusReady {
			return Illegal("not your turn", "turn", string(room.Turn), "player", string(cmd.Player))
		}
		return Illegal("waiting on the other player", "expected", string(actor), "player", string(cmd.Player))
	}
	return Legal()
}

// EndTurn returns the room to ready and hands the turn over. keepTurn leaves it
// with the current holder.
func EndTurn(room *match.Room, keepTurn bool) Event {
	room.Status = match.StatusReady
	room.PendingAction = nil
	if keepTurn {
		return NewEvent(EventTurnKept, string(room.Turn), "", "")
	}
	room.Turn = room.Turn.Opponent()
	return NewEvent(EventTurnPassed, string(room.Turn), "", "")
}

// GiveTurn returns the room to ready with the turn set to player.
func GiveTurn(room *match.Room, player match.PlayerID) Event {
	room.Status = match.StatusReady
	room.PendingAction = nil
	room.Turn = player
	return NewEvent(EventTurnPassed, string(player), "", "")
}
