package store

import (
	"context"
	"sync"

	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"go.uber.org/zap"
)

// SubscriberBuffer is the number of snapshots queued per subscriber. A slow
// subscriber loses the oldest queued snapshot, never the newest.
const SubscriberBuffer = 16

type subscriber struct {
	roomID string
	ch     chan *match.Room
}

// Feed fans room snapshots out to per-room subscribers.
type Feed struct {
	logger *zap.Logger
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

// NewFeed creates an empty feed.
func NewFeed(logger *zap.Logger) *Feed {
	return &Feed{
		logger: logger,
		subs:   make(map[int]*subscriber),
	}
}

// Add registers a subscriber for roomID. The returned cancel function is safe to
// call more than once.
func (f *Feed) Add(roomID string) (<-chan *match.Room, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan *match.Room, SubscriberBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = &subscriber{roomID: roomID, ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() { f.remove(id) })
	}
}

func (f *Feed) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sub, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(sub.ch)
	}
}

// Publish delivers a copy of room to every subscriber of its id.
func (f *Feed) Publish(room *match.Room) {
	if room == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, sub := range f.subs {
		if sub.roomID != room.ID {
			continue
		}
		snapshot := room.Clone()
		select {
		case sub.ch <- snapshot:
			continue
		default:
		}
		// full: drop the oldest queued snapshot to make room for the newest
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snapshot:
		default:
		}
		if f.logger != nil {
			f.logger.Debug("subscriber lagging, dropped a snapshot",
				zap.String("room_id", room.ID),
			)
		}
	}
}

// CancelOnDone ties cancel to ctx: it runs when ctx is done or when the returned
// function is called, whichever happens first.
func CancelOnDone(ctx context.Context, cancel func()) func() {
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			cancel()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()
	return stop
}

// Subscribers returns how many subscribers are attached to roomID.
func (f *Feed) Subscribers(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, sub := range f.subs {
		if sub.roomID == roomID {
			n++
		}
	}
	return n
}

// Close closes every subscriber channel. Later Add calls return closed channels.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, sub := range f.subs {
		delete(f.subs, id)
		close(sub.ch)
	}
	f.closed = true
}
