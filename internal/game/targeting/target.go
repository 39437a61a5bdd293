package targeting

import (
	"fmt"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// TargetType represents what kind of table card a move can aim at.
type TargetType string

const (
	// TargetStealable is an opponent's point card, or a Jack holding one.
	TargetStealable TargetType = "STEALABLE"
	// TargetScuttleable is an opponent's card with a numeric rank.
	TargetScuttleable TargetType = "SCUTTLEABLE"
	// TargetPermanent is a J, Q, K or 8 on either table.
	TargetPermanent TargetType = "PERMANENT"
	// TargetTableCard is any card on either table.
	TargetTableCard TargetType = "TABLE_CARD"
)

// TargetRequirement defines what a move needs to aim at.
type TargetRequirement struct {
	Type        TargetType
	Description string
}

// RequirementFor returns the target requirement for playing card as kind, or false
// when that move commits without a target.
func RequirementFor(kind match.MoveKind, card cards.Card) (TargetRequirement, bool) {
	switch kind {
	case match.MovePlayJack:
		return TargetRequirement{Type: TargetStealable, Description: "an opponent's point card"}, true
	case match.MoveScuttle:
		return TargetRequirement{Type: TargetScuttleable, Description: "a weaker opponent's point card"}, true
	case match.MovePlayEffect:
		switch card.Face {
		case cards.FaceTwo:
			return TargetRequirement{Type: TargetPermanent, Description: "a permanent (J, Q, K, 8)"}, true
		case cards.FaceNine:
			return TargetRequirement{Type: TargetTableCard, Description: "any card on the table"}, true
		}
	}
	return TargetRequirement{}, false
}

// TargetSelection is a chosen target paired with the requirement it answers.
type TargetSelection struct {
	Target      board.Key
	Requirement TargetRequirement
}

// IsComplete checks whether a target has been picked.
func (ts *TargetSelection) IsComplete() bool {
	return ts != nil && ts.Target != ""
}

// Validate checks the selection is filled in.
func (ts *TargetSelection) Validate() error {
	if ts == nil {
		return fmt.Errorf("target selection is nil")
	}
	if ts.Target == "" {
		return fmt.Errorf("no target chosen: need %s", ts.Requirement.Description)
	}
	return nil
}
