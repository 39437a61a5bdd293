package game

import (
	"testing"

	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum(t *testing.T) {
	sum, err := ComputeChecksum(createTestRoom())
	require.NoError(t, err)
	assert.Len(t, sum.Hash, 64)
	assert.Equal(t, checksumVersion, sum.Version)

	_, err = ComputeChecksum(nil)
	assert.Error(t, err)
}

func TestDeterministicChecksum(t *testing.T) {
	a, err := ComputeChecksum(createTestRoom())
	require.NoError(t, err)
	b, err := ComputeChecksum(createTestRoom())
	require.NoError(t, err)
	assert.Equal(t, a.Hash, b.Hash)
}

func TestChecksumDetectsChanges(t *testing.T) {
	base, err := ComputeChecksum(createTestRoom())
	require.NoError(t, err)

	mutations := map[string]func(r *match.Room){
		"turn":   func(r *match.Room) { r.Turn = match.Player2 },
		"status": func(r *match.Room) { r.Status = match.StatusCounterOpportunity },
		"wins":   func(r *match.Room) { r.Player2.Wins++ },
		"deck order": func(r *match.Room) {
			r.Deck[0], r.Deck[1] = r.Deck[1], r.Deck[0]
		},
		"discard": func(r *match.Room) { r.DiscardPile = append(r.DiscardPile, cards.New(cards.FaceTwo, cards.SuitHearts)) },
		"hand": func(r *match.Room) {
			r.Player1.Hand.Put(r.NewKey(), cards.New(cards.FaceSix, cards.SuitHearts))
		},
		"steal edge": func(r *match.Room) {
			point := r.Player2.Table.Keys()[0]
			require.NoError(t, r.Player2.Table.Attach(r.NewKey(), cards.New(cards.FaceJack, cards.SuitClubs), match.Player2, point))
		},
		"pending": func(r *match.Room) {
			r.PendingAction = &match.PendingAction{Type: match.EffectKind(cards.FaceSeven), Source: match.Player1}
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			room := createTestRoom()
			mutate(room)
			sum, err := ComputeChecksum(room)
			require.NoError(t, err)
			assert.NotEqual(t, base.Hash, sum.Hash)
		})
	}
}

func TestChecksumIgnoresLastAction(t *testing.T) {
	a := createTestRoom()
	b := createTestRoom()
	b.LastAction = "something else happened"

	sa, err := ComputeChecksum(a)
	require.NoError(t, err)
	sb, err := ComputeChecksum(b)
	require.NoError(t, err)
	assert.Equal(t, sa.Hash, sb.Hash)
}

func TestSerializeDeserialize(t *testing.T) {
	room := createTestRoom()
	snapshot, err := NewRoomSnapshot(room, "draw by player1", 4)
	require.NoError(t, err)

	data, err := snapshot.SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeFromBytes(data)
	require.NoError(t, err)

	assert.Equal(t, snapshot.RoomID, decoded.RoomID)
	assert.Equal(t, 4, decoded.Sequence)
	assert.Equal(t, snapshot.Checksum, decoded.Checksum)
	assert.Equal(t, room.Deck, decoded.Room.Deck)

	ok, err := decoded.VerifyChecksum()
	require.NoError(t, err)
	assert.True(t, ok)

	// the steal graph survives the trip
	p2 := decoded.Room.Player2.Table
	root := p2.Keys()[0]
	assert.Len(t, p2.Chain(root), 1)

	require.NoError(t, ValidateSerializationRoundtrip(snapshot))
}

func TestDeserializeGarbage(t *testing.T) {
	_, err := DeserializeFromBytes([]byte("not gob"))
	assert.Error(t, err)
}

// createTestRoom builds a mid-game room: bob holds a point card stolen from
// alice, and alice has cards in hand and a glass on the table.
func createTestRoom() *match.Room {
	r := &match.Room{ID: "room-test", Status: match.StatusReady, Turn: match.Player1}
	r.Player1 = match.NewPlayer("alice", []cards.Card{
		cards.New(cards.FaceAce, cards.SuitSpades),
		cards.New(cards.FaceNine, cards.SuitDiamonds),
	}, &r.Keys)
	r.Player2 = match.NewPlayer("bob", []cards.Card{
		cards.New(cards.FaceQueen, cards.SuitHearts),
	}, &r.Keys)

	stolen := r.NewKey()
	r.Player2.Table.Place(stolen, cards.New(cards.FaceSeven, cards.SuitClubs), match.Player1)
	if err := r.Player2.Table.Attach(r.NewKey(), cards.New(cards.FaceJack, cards.SuitDiamonds), match.Player2, stolen); err != nil {
		panic(err)
	}
	r.Player1.Table.Place(r.NewKey(), cards.New(cards.FaceEight, cards.SuitSpades), match.Player1)

	r.Deck = []cards.Card{
		cards.New(cards.FaceThree, cards.SuitHearts),
		cards.New(cards.FaceTen, cards.SuitClubs),
		cards.New(cards.FaceKing, cards.SuitSpades),
	}
	r.DiscardPile = []cards.Card{cards.New(cards.FaceFive, cards.SuitHearts)}
	r.Player2.Score = 7
	return r
}
