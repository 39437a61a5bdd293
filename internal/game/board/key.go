package board

import (
	"fmt"
	"strconv"
)

// PlayerID identifies a seat in a room.
type PlayerID string

const (
	Player1 PlayerID = "player1"
	Player2 PlayerID = "player2"
)

// Opponent returns the other seat.
func (p PlayerID) Opponent() PlayerID {
	if p == Player1 {
		return Player2
	}
	return Player1
}

// Valid reports whether p names one of the two seats.
func (p PlayerID) Valid() bool {
	return p == Player1 || p == Player2
}

// Key is the opaque identifier of a card slot in a hand or on a table.
// Keys are rendered from a monotonically increasing sequence as fixed-width hex,
// so comparing two generated keys as strings or by Seq gives the same order.
type Key string

const keyWidth = 16

// KeyFromSeq renders a sequence number as a key.
func KeyFromSeq(seq uint64) Key {
	return Key(fmt.Sprintf("%0*x", keyWidth, seq))
}

// Seq parses the sequence number a key was generated from.
func (k Key) Seq() (uint64, bool) {
	if len(k) != keyWidth {
		return 0, false
	}
	seq, err := strconv.ParseUint(string(k), 16, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Less orders keys by creation. Generated keys compare by sequence; anything else
// sorts after them by plain string comparison.
func (k Key) Less(other Key) bool {
	a, okA := k.Seq()
	b, okB := other.Seq()
	switch {
	case okA && okB:
		return a < b
	case okA:
		return true
	case okB:
		return false
	default:
		return k < other
	}
}

// KeySeq hands out monotonically increasing keys. The counter is persisted with the
// room so keys stay ordered across processes.
type KeySeq struct {
	Next uint64 `json:"next"`
}

// NewKey returns the next key and advances the counter.
func (s *KeySeq) NewKey() Key {
	s.Next++
	return KeyFromSeq(s.Next)
}
