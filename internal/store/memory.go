package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"go.uber.org/zap"
)

// DefaultMaxRetries bounds how often AtomicUpdate re-runs after losing a race.
const DefaultMaxRetries = 5

type versioned struct {
	room    *match.Room
	version uint64
}

// MemoryStore keeps rooms in process memory. Every read and write works on copies,
// so callers never share state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	rooms      map[string]*versioned
	feed       *Feed
	maxRetries int
	logger     *zap.Logger

	// beforeCommit runs between computing an update and committing it.
	// Tests use it to force conflicts.
	beforeCommit func(id string)
}

// NewMemoryStore creates an empty store. maxRetries <= 0 uses DefaultMaxRetries.
func NewMemoryStore(maxRetries int, logger *zap.Logger) *MemoryStore {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &MemoryStore{
		rooms:      make(map[string]*versioned),
		feed:       NewFeed(logger),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (s *MemoryStore) snapshot(id string) (*match.Room, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.rooms[id]
	if !ok {
		return nil, 0
	}
	return v.room.Clone(), v.version
}

// ReadRoom returns a copy of the stored room.
func (s *MemoryStore) ReadRoom(ctx context.Context, id string) (*match.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	room, _ := s.snapshot(id)
	if room == nil {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return room, nil
}

// WriteFields applies fields to the stored room in one step.
func (s *MemoryStore) WriteFields(ctx context.Context, id string, fields match.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	v, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	next := v.room.Clone()
	if err := fields.Apply(next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to apply fields: %w", err)
	}
	v.room = next
	v.version++
	// publish before unlocking so subscribers see commits in version order
	s.feed.Publish(next)
	s.mu.Unlock()
	return nil
}

// AtomicUpdate runs fn against a snapshot and commits only if nothing else was
// committed in between.
func (s *MemoryStore) AtomicUpdate(ctx context.Context, id string, fn UpdateFunc) (*match.Room, error) {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, version := s.snapshot(id)
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, ErrAborted
		}
		next = next.Clone()
		next.ID = id

		if s.beforeCommit != nil {
			s.beforeCommit(id)
		}

		s.mu.Lock()
		stored, exists := s.rooms[id]
		if exists != (current != nil) || (exists && stored.version != version) {
			s.mu.Unlock()
			if s.logger != nil {
				s.logger.Debug("atomic update conflict, retrying",
					zap.String("room_id", id),
					zap.Int("attempt", attempt+1),
				)
			}
			continue
		}
		if !exists {
			stored = &versioned{}
			s.rooms[id] = stored
		}
		stored.room = next
		stored.version++
		s.feed.Publish(next)
		s.mu.Unlock()
		return next.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrConflict, id, s.maxRetries+1)
}

// Subscribe registers for snapshots of id. The subscription ends when ctx is done
// or the cancel function is called.
func (s *MemoryStore) Subscribe(ctx context.Context, id string) (<-chan *match.Room, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Add(id)
	return ch, CancelOnDone(ctx, cancel), nil
}

// Close ends every subscription.
func (s *MemoryStore) Close() {
	s.feed.Close()
}
