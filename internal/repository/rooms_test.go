package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cuttlefree/cuttle-server-go/internal/config"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/cuttlefree/cuttle-server-go/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRepository(t *testing.T) *RoomRepository {
	t.Helper()
	url := os.Getenv("CUTTLE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CUTTLE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	db, err := NewDB(ctx, config.DatabaseConfig{URL: url, MaxConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	repo := NewRoomRepository(db, "cuttle_rooms_test", 3, logger)
	t.Cleanup(repo.Close)
	return repo
}

func newRoom() *match.Room {
	r := &match.Room{Status: match.StatusWaiting, Turn: match.Player1}
	r.Player1 = match.NewPlayer("alice", []cards.Card{cards.New(cards.FaceAce, cards.SuitHearts)}, &r.Keys)
	r.Deck = []cards.Card{cards.New(cards.FaceNine, cards.SuitClubs)}
	return r
}

func TestRoomRepositoryRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := repo.ReadRoom(ctx, id)
	assert.ErrorIs(t, err, store.ErrRoomNotFound)

	created, err := repo.AtomicUpdate(ctx, id, func(current *match.Room) (*match.Room, error) {
		require.Nil(t, current)
		return newRoom(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, id, created.ID)

	require.NoError(t, repo.WriteFields(ctx, id, match.Fields{
		match.PathStatus:     match.StatusReady,
		match.PathLastAction: "bob joined",
	}))

	room, err := repo.ReadRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, match.StatusReady, room.Status)
	assert.Equal(t, "bob joined", room.LastAction)
	assert.Equal(t, 1, room.Player1.Hand.Len())
	assert.Equal(t, uint64(1), room.Keys.Next)
}

func TestRoomRepositoryAbort(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := repo.AtomicUpdate(ctx, id, func(*match.Room) (*match.Room, error) { return nil, nil })
	assert.ErrorIs(t, err, store.ErrAborted)
	_, err = repo.ReadRoom(ctx, id)
	assert.ErrorIs(t, err, store.ErrRoomNotFound)
}

func TestRoomRepositoryNotifiesSubscribers(t *testing.T) {
	repo := newTestRepository(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id := uuid.NewString()

	ch, stop, err := repo.Subscribe(ctx, id)
	require.NoError(t, err)
	defer stop()

	listening := make(chan error, 1)
	go func() { listening <- repo.Listen(ctx) }()
	// LISTEN must be registered before the first commit
	time.Sleep(200 * time.Millisecond)

	_, err = repo.AtomicUpdate(ctx, id, func(*match.Room) (*match.Room, error) { return newRoom(), nil })
	require.NoError(t, err)

	select {
	case room := <-ch:
		assert.Equal(t, id, room.ID)
		assert.Equal(t, "alice", room.Player1.Name)
	case err := <-listening:
		t.Fatalf("listener stopped: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot received")
	}
}
