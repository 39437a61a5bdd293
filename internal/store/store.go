// Package store defines the room persistence contract the game engine runs
// against, plus an in-memory implementation.
package store

import (
	"context"
	"errors"

	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

var (
	// ErrRoomNotFound is returned when a room id has never been written.
	ErrRoomNotFound = errors.New("room not found")
	// ErrConflict is returned when an atomic update kept losing the race.
	ErrConflict = errors.New("room changed concurrently")
	// ErrAborted is returned when an update function declined to commit.
	ErrAborted = errors.New("update aborted")
)

// UpdateFunc computes the next room from the current one. current is nil when the
// room does not exist yet. Returning a nil room aborts the update; returning an
// error aborts it and the error is passed back to the caller unchanged.
//
// The function may run more than once and must not have side effects.
type UpdateFunc func(current *match.Room) (*match.Room, error)

// RoomStore is a shared key-value room store with partial writes, optimistic
// transactions and change notification.
type RoomStore interface {
	// ReadRoom returns a private copy of the room.
	ReadRoom(ctx context.Context, id string) (*match.Room, error)
	// WriteFields applies a partial multi-path update as one write.
	WriteFields(ctx context.Context, id string, fields match.Fields) error
	// AtomicUpdate commits fn's result only if the room was not changed since fn
	// read it, retrying on conflict. It returns the committed room.
	AtomicUpdate(ctx context.Context, id string, fn UpdateFunc) (*match.Room, error)
	// Subscribe streams full snapshots of the room after every committed change.
	// The returned function cancels the subscription and closes the channel.
	Subscribe(ctx context.Context, id string) (<-chan *match.Room, func(), error)
}
