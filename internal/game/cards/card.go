package cards

import (
	"fmt"
	"strings"
)

// Suit identifies one of the four French suits.
type Suit string

const (
	SuitSpades   Suit = "spades"
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
)

// Suits lists every suit in tiebreak order, strongest first.
var Suits = []Suit{SuitSpades, SuitHearts, SuitDiamonds, SuitClubs}

var suitTiebreak = map[Suit]int{
	SuitSpades:   4,
	SuitHearts:   3,
	SuitDiamonds: 2,
	SuitClubs:    1,
}

// Tiebreak returns the suit's weight in scuttle comparisons (spades=4 .. clubs=1).
// Unknown suits weigh 0.
func (s Suit) Tiebreak() int {
	return suitTiebreak[s]
}

// Initial returns the upper-case first letter of the suit name.
func (s Suit) Initial() string {
	if s == "" {
		return "?"
	}
	return strings.ToUpper(string(s[0]))
}

// Face is the printed rank of a card.
type Face string

const (
	FaceAce   Face = "A"
	FaceTwo   Face = "2"
	FaceThree Face = "3"
	FaceFour  Face = "4"
	FaceFive  Face = "5"
	FaceSix   Face = "6"
	FaceSeven Face = "7"
	FaceEight Face = "8"
	FaceNine  Face = "9"
	FaceTen   Face = "10"
	FaceJack  Face = "J"
	FaceQueen Face = "Q"
	FaceKing  Face = "K"
)

// Faces lists every face in deck order.
var Faces = []Face{
	FaceAce, FaceTwo, FaceThree, FaceFour, FaceFive, FaceSix, FaceSeven,
	FaceEight, FaceNine, FaceTen, FaceJack, FaceQueen, FaceKing,
}

var faceRanks = map[Face]int{
	FaceAce:   1,
	FaceTwo:   2,
	FaceThree: 3,
	FaceFour:  4,
	FaceFive:  5,
	FaceSix:   6,
	FaceSeven: 7,
	FaceEight: 8,
	FaceNine:  9,
	FaceTen:   10,
}

// Rank returns the numeric rank of the face: A=1, 2..10 at face value, J/Q/K=0.
func (f Face) Rank() int {
	return faceRanks[f]
}

// IsPermanent reports whether the face stays on the table as a non-scoring
// effect card (J, Q, K, 8).
func (f Face) IsPermanent() bool {
	switch f {
	case FaceJack, FaceQueen, FaceKing, FaceEight:
		return true
	}
	return false
}

// IsPoint reports whether a card of this face scores when on the table and can be
// stolen by a Jack (A through 10, excluding the 8).
func (f Face) IsPoint() bool {
	return f.Rank() > 0 && f != FaceEight
}

// HasOneOff reports whether the face can be played for a one-off effect.
func (f Face) HasOneOff() bool {
	switch f {
	case FaceAce, FaceTwo, FaceThree, FaceFour, FaceFive, FaceSix, FaceSeven, FaceNine:
		return true
	}
	return false
}

// NeedsTarget reports whether the one-off effect of this face acts on a single table card.
func (f Face) NeedsTarget() bool {
	return f == FaceTwo || f == FaceNine
}

// Card is an immutable playing card.
type Card struct {
	Suit  Suit `json:"suit"`
	Face  Face `json:"face"`
	Power int  `json:"power"`
}

// New creates a card with its rank power populated.
func New(face Face, suit Suit) Card {
	return Card{Suit: suit, Face: face, Power: face.Rank()}
}

// ID returns the identity of the card as "<face>-<suit initial>", e.g. "10-H".
func (c Card) ID() string {
	return fmt.Sprintf("%s-%s", c.Face, c.Suit.Initial())
}

func (c Card) String() string {
	return c.ID()
}

// PointValue returns how much the card contributes to a table's score.
func (c Card) PointValue() int {
	if !c.Face.IsPoint() {
		return 0
	}
	return c.Face.Rank()
}

// ScuttlePower returns the attack strength used by scuttles: rank*10 plus the suit
// tiebreak. Cards without a numeric rank return 0 and can neither scuttle nor be scuttled.
func ScuttlePower(c Card) int {
	rank := c.Face.Rank()
	if rank == 0 {
		return 0
	}
	return rank*10 + c.Suit.Tiebreak()
}
