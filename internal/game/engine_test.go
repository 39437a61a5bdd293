package game

import (
	"context"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/cuttlefree/cuttle-server-go/internal/game/rules"
	"github.com/cuttlefree/cuttle-server-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.MemoryStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	st := store.NewMemoryStore(0, logger)
	t.Cleanup(st.Close)
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(7, 11)))}, opts...)
	return NewEngine(st, logger, opts...), st
}

// seedRoom stores a ready room with alice and bob seated and empty hands.
func seedRoom(t *testing.T, st store.RoomStore, build func(r *match.Room)) *match.Room {
	t.Helper()
	room, err := st.AtomicUpdate(context.Background(), "r1", func(*match.Room) (*match.Room, error) {
		r := &match.Room{ID: "r1", Status: match.StatusReady, Turn: match.Player1}
		r.Player1 = match.NewPlayer("alice", nil, &r.Keys)
		r.Player2 = match.NewPlayer("bob", nil, &r.Keys)
		r.Deck = []cards.Card{
			cards.New(cards.FaceThree, cards.SuitClubs),
			cards.New(cards.FaceFour, cards.SuitClubs),
			cards.New(cards.FaceFive, cards.SuitClubs),
		}
		if build != nil {
			build(r)
		}
		return r, nil
	})
	require.NoError(t, err)
	return room
}

func give(r *match.Room, seat match.PlayerID, face cards.Face, suit cards.Suit) board.Key {
	key := r.NewKey()
	r.Player(seat).Hand.Put(key, cards.New(face, suit))
	return key
}

func place(r *match.Room, seat match.PlayerID, face cards.Face, suit cards.Suit) board.Key {
	key := r.NewKey()
	r.Player(seat).Table.Place(key, cards.New(face, suit), seat)
	return key
}

func TestJoinRoomLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.JoinRoom(ctx, "r1", "alice")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, match.Player1, first.Seat)
	assert.Equal(t, match.StatusWaiting, first.Room.Status)
	assert.Equal(t, 5, first.Room.Player1.Hand.Len())
	assert.Len(t, first.Room.Deck, 47)

	_, err = e.Submit(ctx, "r1", match.Command{Kind: match.MoveDraw, Player: match.Player1})
	assert.Equal(t, rules.KindIllegalMove, rules.KindOf(err), "no moves before the opponent arrives")

	second, err := e.JoinRoom(ctx, "r1", "bob")
	require.NoError(t, err)
	assert.Equal(t, match.Player2, second.Seat)
	assert.Equal(t, match.StatusReady, second.Room.Status)
	assert.Equal(t, match.Player1, second.Room.Turn)
	assert.Len(t, second.Room.Deck, 42)

	again, err := e.JoinRoom(ctx, "r1", "alice")
	require.NoError(t, err)
	assert.True(t, again.Rejoined)
	assert.Equal(t, match.Player1, again.Seat)
	assert.Equal(t, second.Room.Player1.Hand.Keys(), again.Room.Player1.Hand.Keys())

	_, err = e.JoinRoom(ctx, "r1", "carol")
	rej, ok := rules.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "room is full", rej.Reason)

	fresh, err := e.JoinRoom(ctx, "", "dave")
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.Room.ID)
	assert.NotEqual(t, "r1", fresh.Room.ID)
}

func TestSubmitDrawTakesFromDeckEnd(t *testing.T) {
	e, st := newTestEngine(t)
	seedRoom(t, st, nil)
	ctx := context.Background()

	res, err := e.Submit(ctx, "r1", match.Command{Kind: match.MoveDraw, Player: match.Player1})
	require.NoError(t, err)
	assert.Equal(t, match.Player2, res.Room.Turn)
	assert.Len(t, res.Room.Deck, 2)
	require.Equal(t, 1, res.Room.Player1.Hand.Len())
	assert.Equal(t, cards.New(cards.FaceFive, cards.SuitClubs), res.Room.Player1.Hand.Values()[0])

	_, err = e.Submit(ctx, "r1", match.Command{Kind: match.MoveDraw, Player: match.Player1})
	assert.Equal(t, rules.KindIllegalMove, rules.KindOf(err))

	stored, err := e.Room(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, stored.Deck, 2, "rejected draw left the room alone")
}

func TestEmptyDeckDrawPassesTurn(t *testing.T) {
	e, st := newTestEngine(t)
	seedRoom(t, st, func(r *match.Room) { r.Deck = nil })

	res, err := e.Submit(context.Background(), "r1", match.Command{Kind: match.MoveDraw, Player: match.Player1})
	require.NoError(t, err)
	assert.Equal(t, match.Player2, res.Room.Turn)
	assert.Equal(t, 0, res.Room.Player1.Hand.Len())
}

func TestCounterThroughEngine(t *testing.T) {
	e, st := newTestEngine(t)
	var five, two board.Key
	seedRoom(t, st, func(r *match.Room) {
		five = give(r, match.Player1, cards.FaceFive, cards.SuitHearts)
		two = give(r, match.Player2, cards.FaceTwo, cards.SuitSpades)
	})
	ctx := context.Background()

	res, err := e.Submit(ctx, "r1", match.Command{Kind: match.MovePlayEffect, Player: match.Player1, Card: five})
	require.NoError(t, err)
	assert.Equal(t, match.StatusCounterOpportunity, res.Room.Status)

	res, err = e.Submit(ctx, "r1", match.Command{Kind: match.MoveCounter, Player: match.Player2, Card: two})
	require.NoError(t, err)
	assert.Equal(t, match.StatusReady, res.Room.Status)
	assert.Equal(t, match.Player2, res.Room.Turn)
	assert.Nil(t, res.Room.PendingAction)
	assert.Len(t, res.Room.DiscardPile, 2)
	assert.Len(t, res.Room.Deck, 3, "countered five drew nothing")
}

func TestVictoryRecordsReplayOnce(t *testing.T) {
	dir := t.TempDir()
	rr := NewReplayRecorder(zaptest.NewLogger(t), dir)
	e, st := newTestEngine(t, WithReplays(rr))

	var ace board.Key
	seedRoom(t, st, func(r *match.Room) {
		place(r, match.Player1, cards.FaceTen, cards.SuitSpades)
		place(r, match.Player1, cards.FaceTen, cards.SuitHearts)
		ace = give(r, match.Player1, cards.FaceAce, cards.SuitClubs)
	})
	rr.StartRecording("r1")

	gameOver := 0
	e.Events().SubscribeTyped(rules.EventGameOver, func(evt rules.Event) {
		gameOver++
		assert.NotEmpty(t, evt.ID)
		assert.Equal(t, "r1", evt.RoomID)
	})

	ctx := context.Background()
	res, err := e.Submit(ctx, "r1", match.Command{Kind: match.MovePlayPoint, Player: match.Player1, Card: ace})
	require.NoError(t, err)
	assert.Equal(t, match.Player1, res.Winner)
	assert.Equal(t, match.StatusGameOver, res.Room.Status)
	assert.Equal(t, 21, res.Room.Player1.Score)
	assert.Equal(t, 1, res.Room.Player1.Wins)
	assert.Equal(t, 1, gameOver)

	_, err = e.Submit(ctx, "r1", match.Command{Kind: match.MoveDraw, Player: match.Player2})
	assert.Error(t, err)
	stored, err := e.Room(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Player1.Wins)
	assert.Equal(t, match.Player1, stored.Winner)

	assert.False(t, rr.IsRecording("r1"))
	replay, err := LoadReplayFromFile(dir, "r1-1")
	require.NoError(t, err)
	require.Equal(t, 1, replay.Size())
	assert.Equal(t, match.StatusGameOver, replay.States[0].Room.Status)
	assert.Equal(t, "r1", replay.States[0].Room.ID)
}

func TestRestartKeepsWins(t *testing.T) {
	rr := NewReplayRecorder(zaptest.NewLogger(t), t.TempDir())
	e, st := newTestEngine(t, WithReplays(rr))
	seedRoom(t, st, func(r *match.Room) {
		r.Status = match.StatusGameOver
		r.Winner = match.Player2
		r.Player2.Wins = 3
		place(r, match.Player2, cards.FaceKing, cards.SuitSpades)
	})
	ctx := context.Background()

	_, err := e.Restart(ctx, "r1", match.PlayerID("player3"))
	assert.Equal(t, rules.KindIllegalMove, rules.KindOf(err))

	res, err := e.Restart(ctx, "r1", match.Player2)
	require.NoError(t, err)
	room := res.Room
	assert.Equal(t, match.StatusReady, room.Status)
	assert.Equal(t, match.Player1, room.Turn)
	assert.Empty(t, room.Winner)
	assert.Equal(t, 5, room.Player1.Hand.Len())
	assert.Equal(t, 6, room.Player2.Hand.Len())
	assert.Equal(t, 0, room.Player2.Table.Len())
	assert.Equal(t, 3, room.Player2.Wins)
	assert.Len(t, room.Deck, 52-11)
	assert.True(t, rr.IsRecording("r1"))

	_, err = e.Restart(ctx, "missing", match.Player1)
	assert.ErrorIs(t, err, store.ErrRoomNotFound)
}

func TestReplayFollowsRoomLifecycle(t *testing.T) {
	dir := t.TempDir()
	rr := NewReplayRecorder(zaptest.NewLogger(t), dir)
	e, _ := newTestEngine(t, WithReplays(rr))
	ctx := context.Background()

	_, err := e.JoinRoom(ctx, "r1", "alice")
	require.NoError(t, err)
	_, err = e.JoinRoom(ctx, "r1", "bob")
	require.NoError(t, err)
	_, err = e.JoinRoom(ctx, "r1", "alice")
	require.NoError(t, err)
	_, err = e.Submit(ctx, "r1", match.Command{Kind: match.MoveDraw, Player: match.Player1})
	require.NoError(t, err)

	first, ok := rr.GetReplay("r1")
	require.True(t, ok)
	require.Equal(t, 3, first.Size(), "a rejoin writes nothing and records nothing")
	assert.Equal(t, "join alice", first.States[0].Command)
	assert.Equal(t, "join bob", first.States[1].Command)
	assert.Equal(t, 2, first.States[2].Sequence)
	assert.Equal(t, match.Player2, first.States[2].Room.Turn)

	// restarting mid-game throws the unfinished recording away
	_, err = e.Restart(ctx, "r1", match.Player2)
	require.NoError(t, err)
	second, ok := rr.GetReplay("r1")
	require.True(t, ok)
	assert.NotSame(t, first, second)
	require.Equal(t, 1, second.Size())
	assert.Equal(t, "restart", second.States[0].Command)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCloseDetachesListeners(t *testing.T) {
	rr := NewReplayRecorder(zaptest.NewLogger(t), t.TempDir())
	e, _ := newTestEngine(t, WithReplays(rr))
	ctx := context.Background()

	_, err := e.JoinRoom(ctx, "r1", "alice")
	require.NoError(t, err)
	assert.True(t, rr.IsRecording("r1"))

	e.Close()
	e.Close()

	_, err = e.JoinRoom(ctx, "r2", "carol")
	require.NoError(t, err)
	assert.False(t, rr.IsRecording("r2"))

	seen := 0
	e.Events().Subscribe(func(rules.Event) { seen++ })
	_, err = e.JoinRoom(ctx, "r2", "dave")
	require.NoError(t, err)
	assert.Positive(t, seen, "the bus itself keeps working for other listeners")
}

func TestViewOfFillsGoals(t *testing.T) {
	e, st := newTestEngine(t)
	seedRoom(t, st, func(r *match.Room) {
		place(r, match.Player1, cards.FaceKing, cards.SuitSpades)
		place(r, match.Player1, cards.FaceSeven, cards.SuitSpades)
		give(r, match.Player2, cards.FaceNine, cards.SuitClubs)
	})

	v, err := e.View(context.Background(), "r1", match.Player1)
	require.NoError(t, err)
	assert.Equal(t, 1, v.You.Kings)
	assert.Equal(t, 14, v.You.Goal)
	assert.Equal(t, 21, v.Opponent.Goal)
	assert.Nil(t, v.Opponent.Hand)
	assert.Equal(t, 1, v.Opponent.HandCount)
}

type conflictingStore struct {
	*store.MemoryStore
}

func (conflictingStore) AtomicUpdate(context.Context, string, store.UpdateFunc) (*match.Room, error) {
	return nil, store.ErrConflict
}

func TestConflictSurfacesAsRejection(t *testing.T) {
	logger := zaptest.NewLogger(t)
	st := conflictingStore{store.NewMemoryStore(0, logger)}
	seedRoom(t, st.MemoryStore, nil)
	e := NewEngine(st, logger)

	_, err := e.Submit(context.Background(), "r1", match.Command{Kind: match.MoveDraw, Player: match.Player1})
	assert.Equal(t, rules.KindConflict, rules.KindOf(err))
}

func TestSubscribersSeeCommittedMoves(t *testing.T) {
	e, st := newTestEngine(t)
	var ten board.Key
	seedRoom(t, st, func(r *match.Room) {
		ten = give(r, match.Player1, cards.FaceTen, cards.SuitDiamonds)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop, err := e.Subscribe(ctx, "r1")
	require.NoError(t, err)
	defer stop()

	_, err = e.Submit(ctx, "r1", match.Command{Kind: match.MovePlayPoint, Player: match.Player1, Card: ten})
	require.NoError(t, err)

	select {
	case room := <-ch:
		assert.Equal(t, 10, room.Player1.Score)
		assert.Equal(t, match.Player2, room.Turn)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after commit")
	}
}
