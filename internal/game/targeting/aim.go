package targeting

import (
	"errors"
	"fmt"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// Mode is the client-side interaction state of a player building a move.
type Mode string

const (
	ModeIdle           Mode = "idle"
	ModeSelecting      Mode = "selecting"
	ModeAwaitingTarget Mode = "awaiting_target"
)

var (
	ErrNoCardSelected = errors.New("select a card from your hand first")
	ErrNotAiming      = errors.New("not waiting for a target")
)

// Aim turns a player's clicks into a fully specified match.Command. It lives on the
// client only; the engine never sees an Aim, just the command it produces.
type Aim struct {
	player      match.PlayerID
	mode        Mode
	card        board.Key
	selected    cards.Card
	kind        match.MoveKind
	requirement TargetRequirement
}

// NewAim returns an idle aim for player.
func NewAim(player match.PlayerID) *Aim {
	return &Aim{player: player, mode: ModeIdle}
}

func (a *Aim) Mode() Mode {
	return a.mode
}

// Selected returns the hand card currently picked.
func (a *Aim) Selected() (board.Key, bool) {
	return a.card, a.mode != ModeIdle
}

// Requirement returns what the pending move is aiming for.
func (a *Aim) Requirement() (TargetRequirement, bool) {
	return a.requirement, a.mode == ModeAwaitingTarget
}

// SelectCard picks a hand card. Picking a different card while aiming cancels the
// aim and starts over with the new card; picking the same card again deselects it.
func (a *Aim) SelectCard(key board.Key, card cards.Card) {
	if a.mode != ModeIdle && a.card == key {
		a.Cancel()
		return
	}
	a.mode = ModeSelecting
	a.card = key
	a.selected = card
	a.kind = ""
	a.requirement = TargetRequirement{}
}

// Choose picks what to do with the selected card. Moves that need no target come
// back as a command straight away; the rest switch to awaiting a table click.
func (a *Aim) Choose(kind match.MoveKind) (*match.Command, error) {
	if a.mode == ModeIdle {
		return nil, ErrNoCardSelected
	}
	req, needsTarget := RequirementFor(kind, a.selected)
	if !needsTarget {
		cmd := &match.Command{Kind: kind, Player: a.player, Card: a.card}
		a.Cancel()
		return cmd, nil
	}
	a.mode = ModeAwaitingTarget
	a.kind = kind
	a.requirement = req
	return nil, nil
}

// ClickTable commits the pending move against a table card, checked against the
// current snapshot. An invalid target leaves the aim in place.
func (a *Aim) ClickTable(room *match.Room, target board.Key) (*match.Command, error) {
	if a.mode != ModeAwaitingTarget {
		return nil, ErrNotAiming
	}
	validator := NewTargetValidator(room, a.player)
	if err := validator.ValidateTarget(target, a.requirement, a.selected); err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	cmd := &match.Command{Kind: a.kind, Player: a.player, Card: a.card, Target: target}
	a.Cancel()
	return cmd, nil
}

// Cancel drops back to idle.
func (a *Aim) Cancel() {
	*a = Aim{player: a.player, mode: ModeIdle}
}
