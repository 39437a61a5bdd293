package cards

import (
	"math/rand/v2"
)

// DeckSize is the number of cards in a full deck.
const DeckSize = 52

// BuildDeck returns all 52 face/suit combinations in a fixed order.
func BuildDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, suit := range Suits {
		for _, face := range Faces {
			deck = append(deck, New(face, suit))
		}
	}
	return deck
}

// Shuffle permutes deck in place with a Fisher-Yates shuffle and returns it.
// A nil rng falls back to the runtime's global source.
func Shuffle(deck []Card, rng *rand.Rand) []Card {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := intN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// NewShuffledDeck builds and shuffles a fresh deck.
func NewShuffledDeck(rng *rand.Rand) []Card {
	return Shuffle(BuildDeck(), rng)
}

// Deal removes up to n cards from the front of deck and returns them with the
// remaining deck.
func Deal(deck []Card, n int) (dealt []Card, rest []Card) {
	if n > len(deck) {
		n = len(deck)
	}
	dealt = append([]Card(nil), deck[:n]...)
	rest = append([]Card(nil), deck[n:]...)
	return dealt, rest
}
